package comment

import (
	"context"
	"log/slog"

	"github.com/hitoshi/donorlink/internal/cache"
	"github.com/hitoshi/donorlink/internal/metrics"
	"github.com/hitoshi/donorlink/internal/model"
)

// Cache はコメントの一覧を保持する。
type Cache struct {
	api    *API
	logger *slog.Logger

	All        *cache.Collection[model.Comment]
	ByCampaign *cache.Keyed[int64, model.Comment]
}

// NewCache はCacheを生成する。
func NewCache(api *API, m metrics.MetricsCollector, logger *slog.Logger) *Cache {
	return &Cache{
		api:    api,
		logger: logger,
		All:    cache.NewCollection("comments.all", api.All, commentID, m, logger),
		ByCampaign: cache.NewKeyed(func(campaignID int64) *cache.Collection[model.Comment] {
			fetch := func(ctx context.Context) ([]model.Comment, error) {
				return api.ByCampaign(ctx, campaignID)
			}
			return cache.NewCollection("comments.campaign", fetch, commentID, m, logger)
		}),
	}
}

func commentID(c model.Comment) int64 { return c.ID }

// Create はコメントを投稿し、読み込み済みの一覧に追加する。
func (c *Cache) Create(ctx context.Context, req model.CommentRequest) (model.Comment, error) {
	created, err := c.api.Create(ctx, req)
	if err != nil {
		return model.Comment{}, err
	}
	if created.CampaignID == 0 {
		created.CampaignID = req.CampaignID
	}
	c.All.Upsert(created)
	if col, ok := c.ByCampaign.Lookup(created.CampaignID); ok {
		col.Upsert(created)
	}
	return created, nil
}

// Update はコメントを更新し、読み込み済みの一覧を置き換える。
func (c *Cache) Update(ctx context.Context, id int64, req model.CommentRequest) (model.Comment, error) {
	updated, err := c.api.Update(ctx, id, req)
	if err != nil {
		return model.Comment{}, err
	}
	replace := func(dst *model.Comment) { *dst = updated }
	c.All.ApplyLocalPatch(id, replace)
	c.ByCampaign.Each(func(_ int64, col *cache.Collection[model.Comment]) {
		col.ApplyLocalPatch(id, replace)
	})
	return updated, nil
}

// Delete はコメントを削除し、すべての一覧から除く。
func (c *Cache) Delete(ctx context.Context, id int64) error {
	if err := c.api.Delete(ctx, id); err != nil {
		return err
	}
	c.All.Remove(id)
	c.ByCampaign.Each(func(_ int64, col *cache.Collection[model.Comment]) {
		col.Remove(id)
	})
	c.logger.Info("comment deleted", slog.Int64("comment_id", id))
	return nil
}

// Reset はすべての一覧を破棄する。
func (c *Cache) Reset() {
	c.All.Reset()
	c.ByCampaign.Reset()
}

var _ cache.Resettable = (*Cache)(nil)
