package campaign

import (
	"context"
	"log/slog"

	"github.com/hitoshi/donorlink/internal/cache"
	"github.com/hitoshi/donorlink/internal/metrics"
	"github.com/hitoshi/donorlink/internal/model"
)

// Cache はキャンペーンの各一覧を保持する。
type Cache struct {
	api    *API
	logger *slog.Logger

	Active        *cache.Collection[model.Campaign]
	Mine          *cache.Collection[model.Campaign]
	Pending       *cache.Collection[model.Campaign]
	WithDetails   *cache.Collection[model.CampaignDetails]
	ByAssociation *cache.Keyed[int64, model.Campaign]
}

// NewCache はCacheを生成する。
func NewCache(api *API, m metrics.MetricsCollector, logger *slog.Logger) *Cache {
	return &Cache{
		api:         api,
		logger:      logger,
		Active:      cache.NewCollection("campaigns.active", api.Active, model.Campaign.CampaignID, m, logger),
		Mine:        cache.NewCollection("campaigns.mine", api.Mine, model.Campaign.CampaignID, m, logger),
		Pending:     cache.NewCollection("campaigns.pending", api.Pending, model.Campaign.CampaignID, m, logger),
		WithDetails: cache.NewCollection("campaigns.details", api.ActiveWithDetails, detailsID, m, logger),
		ByAssociation: cache.NewKeyed(func(associationID int64) *cache.Collection[model.Campaign] {
			fetch := func(ctx context.Context) ([]model.Campaign, error) {
				return api.ByAssociation(ctx, associationID)
			}
			return cache.NewCollection("campaigns.association", fetch, model.Campaign.CampaignID, m, logger)
		}),
	}
}

func detailsID(d model.CampaignDetails) int64 { return d.ID }

// Get はキャンペーンを取得する。キャッシュは経由しない。
func (c *Cache) Get(ctx context.Context, id int64) (model.Campaign, error) {
	return c.api.Get(ctx, id)
}

// Progress は最新の集計額を取得し、保持している一覧にも反映する。
func (c *Cache) Progress(ctx context.Context, id int64) (model.Campaign, error) {
	updated, err := c.api.Progress(ctx, id)
	if err != nil {
		return model.Campaign{}, err
	}
	c.patchEverywhere(updated)
	return updated, nil
}

// Create はキャンペーンを作成し、自団体の一覧に追加する。
func (c *Cache) Create(ctx context.Context, req model.CampaignCreateRequest) (model.Campaign, error) {
	created, err := c.api.Create(ctx, req)
	if err != nil {
		return model.Campaign{}, err
	}
	c.Mine.Upsert(created)
	c.Pending.Invalidate()
	c.logger.Info("campaign created", slog.Int64("campaign_id", created.ID))
	return created, nil
}

// Update はキャンペーンを更新し、サーバーが返した内容で各一覧を置き換える。
func (c *Cache) Update(ctx context.Context, id int64, req model.CampaignUpdateRequest) (model.Campaign, error) {
	updated, err := c.api.Update(ctx, id, req)
	if err != nil {
		return model.Campaign{}, err
	}
	c.patchEverywhere(updated)
	return updated, nil
}

// Approve はキャンペーンを承認し、承認待ちから除く。公開一覧は次回取得し直す。
func (c *Cache) Approve(ctx context.Context, id int64) error {
	if _, err := c.api.Approve(ctx, id); err != nil {
		return err
	}
	c.Pending.Remove(id)
	c.Active.Invalidate()
	c.WithDetails.Invalidate()
	c.logger.Info("campaign approved", slog.Int64("campaign_id", id))
	return nil
}

// Reject はキャンペーンを却下し、承認待ちから除く。
func (c *Cache) Reject(ctx context.Context, id int64) error {
	if _, err := c.api.Reject(ctx, id); err != nil {
		return err
	}
	c.Pending.Remove(id)
	c.logger.Info("campaign rejected", slog.Int64("campaign_id", id))
	return nil
}

// Reset はすべての一覧を破棄する。
func (c *Cache) Reset() {
	c.Active.Reset()
	c.Mine.Reset()
	c.Pending.Reset()
	c.WithDetails.Reset()
	c.ByAssociation.Reset()
}

func (c *Cache) patchEverywhere(updated model.Campaign) {
	replace := func(dst *model.Campaign) { *dst = updated }
	c.Active.ApplyLocalPatch(updated.ID, replace)
	c.Mine.ApplyLocalPatch(updated.ID, replace)
	c.Pending.ApplyLocalPatch(updated.ID, replace)
	c.WithDetails.ApplyLocalPatch(updated.ID, func(d *model.CampaignDetails) { d.Campaign = updated })
	if updated.AssociationID != 0 {
		if col, ok := c.ByAssociation.Lookup(updated.AssociationID); ok {
			col.ApplyLocalPatch(updated.ID, replace)
		}
	}
}

var _ cache.Resettable = (*Cache)(nil)
