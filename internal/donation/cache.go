package donation

import (
	"context"
	"log/slog"
	"sort"

	"github.com/hitoshi/donorlink/internal/cache"
	"github.com/hitoshi/donorlink/internal/metrics"
	"github.com/hitoshi/donorlink/internal/model"
)

// CampaignSource は自団体のキャンペーン一覧を提供する。
type CampaignSource interface {
	Mine(ctx context.Context) ([]model.Campaign, error)
}

// Cache は寄付の各一覧を保持する。
type Cache struct {
	api    *API
	logger *slog.Logger

	Mine       *cache.Collection[model.Donation]
	Received   *cache.Collection[model.Donation]
	All        *cache.Collection[model.Donation]
	ByCampaign *cache.Keyed[int64, model.Donation]
	ByUser     *cache.Keyed[int64, model.Donation]
}

// NewCache はCacheを生成する。
// Received は自団体の全キャンペーンの寄付を最大 fanOutLimit 並行で取得し、すべて揃ってから反映する。
func NewCache(api *API, campaigns CampaignSource, fanOutLimit int, m metrics.MetricsCollector, logger *slog.Logger) *Cache {
	c := &Cache{
		api:    api,
		logger: logger,
		Mine:   cache.NewCollection("donations.mine", api.Mine, donationID, m, logger),
		All:    cache.NewCollection("donations.all", api.All, donationID, m, logger),
		ByCampaign: cache.NewKeyed(func(campaignID int64) *cache.Collection[model.Donation] {
			fetch := func(ctx context.Context) ([]model.Donation, error) {
				return api.ByCampaign(ctx, campaignID)
			}
			return cache.NewCollection("donations.campaign", fetch, donationID, m, logger)
		}),
		ByUser: cache.NewKeyed(func(userID int64) *cache.Collection[model.Donation] {
			fetch := func(ctx context.Context) ([]model.Donation, error) {
				return api.ByUser(ctx, userID)
			}
			return cache.NewCollection("donations.user", fetch, donationID, m, logger)
		}),
	}
	c.Received = cache.NewCollection("donations.received", func(ctx context.Context) ([]model.Donation, error) {
		return c.fetchReceived(ctx, campaigns, fanOutLimit)
	}, donationID, m, logger)
	return c
}

func donationID(d model.Donation) int64 { return d.ID }

// fetchReceived は自団体のキャンペーンごとに寄付を取得し、キャンペーンを付与して新しい順に並べる。
func (c *Cache) fetchReceived(ctx context.Context, campaigns CampaignSource, limit int) ([]model.Donation, error) {
	mine, err := campaigns.Mine(ctx)
	if err != nil {
		return nil, err
	}

	all, err := cache.FanOut(ctx, mine, limit, func(ctx context.Context, campaign model.Campaign) ([]model.Donation, error) {
		donations, err := c.api.ByCampaign(ctx, campaign.ID)
		if err != nil {
			return nil, err
		}
		for i := range donations {
			donations[i].Campaign = &campaign
		}
		return donations, nil
	})
	if err != nil {
		return nil, err
	}

	SortNewestFirst(all)
	c.logger.Debug("received donations aggregated",
		slog.Int("campaigns", len(mine)),
		slog.Int("donations", len(all)),
	)
	return all, nil
}

// Get は寄付を取得する。キャッシュは経由しない。
func (c *Cache) Get(ctx context.Context, id int64) (model.Donation, error) {
	return c.api.Get(ctx, id)
}

// MyCampaignsServerSide はサーバー側で集計した自団体宛ての寄付を取得する。キャッシュは経由しない。
func (c *Cache) MyCampaignsServerSide(ctx context.Context) ([]model.Donation, error) {
	return c.api.MyCampaigns(ctx)
}

// Create は寄付を登録し、影響する一覧を無効化する。
func (c *Cache) Create(ctx context.Context, req model.DonationRequest) (model.Donation, error) {
	created, err := c.api.Create(ctx, req)
	if err != nil {
		return model.Donation{}, err
	}
	c.Mine.Invalidate()
	c.All.Invalidate()
	c.Received.Invalidate()
	c.ByCampaign.Invalidate(req.CampaignID)
	if created.UserID != 0 {
		c.ByUser.Invalidate(created.UserID)
	}
	c.logger.Info("donation created",
		slog.Int64("donation_id", created.ID),
		slog.Int64("campaign_id", req.CampaignID),
	)
	return created, nil
}

// Reset はすべての一覧を破棄する。
func (c *Cache) Reset() {
	c.Mine.Reset()
	c.Received.Reset()
	c.All.Reset()
	c.ByCampaign.Reset()
	c.ByUser.Reset()
}

// SortNewestFirst は寄付日時の新しい順に並べ替える。
func SortNewestFirst(items []model.Donation) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DonationDate.After(items[j].DonationDate)
	})
}

var _ cache.Resettable = (*Cache)(nil)
