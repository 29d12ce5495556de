// Package admin は管理者向けのユーザー管理と団体承認を提供する。
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/donorlink/internal/cache"
	"github.com/hitoshi/donorlink/internal/mapping"
	"github.com/hitoshi/donorlink/internal/metrics"
	"github.com/hitoshi/donorlink/internal/model"
	"github.com/hitoshi/donorlink/internal/transport"
)

const basePath = "/api/admin"

// API は管理者向けエンドポイントを呼び出す。
type API struct {
	caller transport.Caller
	mapper *mapping.Mapper
}

// NewAPI はAPIを生成する。
func NewAPI(caller transport.Caller, mapper *mapping.Mapper) *API {
	return &API{caller: caller, mapper: mapper}
}

// Users はすべてのユーザーを取得する。
func (a *API) Users(ctx context.Context) ([]model.AdminUser, error) {
	return a.users(ctx, transport.Get(basePath+"/users"))
}

// User はユーザーを取得する。
func (a *API) User(ctx context.Context, id int64) (model.AdminUser, error) {
	return a.user(ctx, transport.Get(fmt.Sprintf("%s/users/%d", basePath, id)))
}

// Search はユーザーを検索する。
func (a *API) Search(ctx context.Context, query string) ([]model.AdminUser, error) {
	call := transport.Get(basePath + "/users/search").WithQuery(url.Values{"q": {query}})
	return a.users(ctx, call)
}

// UpdateUser はユーザーを更新する。
func (a *API) UpdateUser(ctx context.Context, id int64, req model.UserUpdateRequest) (model.AdminUser, error) {
	call, err := transport.WithJSON(http.MethodPut, fmt.Sprintf("%s/users/%d", basePath, id), req)
	if err != nil {
		return model.AdminUser{}, err
	}
	return a.user(ctx, call)
}

// DeleteUser はユーザーを削除する。
func (a *API) DeleteUser(ctx context.Context, id int64) error {
	_, err := a.caller.Do(ctx, transport.Delete(fmt.Sprintf("%s/users/%d", basePath, id)))
	return err
}

// PendingAssociations は承認待ちの団体を取得する。
func (a *API) PendingAssociations(ctx context.Context) ([]model.AssociationApplication, error) {
	body, err := transport.Body(ctx, a.caller, transport.Get(basePath+"/associations/pending"))
	if err != nil {
		return nil, err
	}
	items, err := a.mapper.AssociationApplications(body)
	if err != nil {
		return nil, model.NewUnknownError(http.StatusOK, err)
	}
	return items, nil
}

// ApproveAssociation は団体を承認する。
func (a *API) ApproveAssociation(ctx context.Context, id int64) error {
	return a.decide(ctx, id, "approve")
}

// RejectAssociation は団体を却下する。
func (a *API) RejectAssociation(ctx context.Context, id int64) error {
	return a.decide(ctx, id, "reject")
}

func (a *API) decide(ctx context.Context, id int64, action string) error {
	call, err := transport.WithJSON(http.MethodPost, fmt.Sprintf("%s/associations/%d/%s", basePath, id, action), struct{}{})
	if err != nil {
		return err
	}
	_, err = a.caller.Do(ctx, call)
	return err
}

func (a *API) users(ctx context.Context, call transport.Call) ([]model.AdminUser, error) {
	body, err := transport.Body(ctx, a.caller, call)
	if err != nil {
		return nil, err
	}
	items, err := a.mapper.AdminUsers(body)
	if err != nil {
		return nil, model.NewUnknownError(http.StatusOK, err)
	}
	return items, nil
}

func (a *API) user(ctx context.Context, call transport.Call) (model.AdminUser, error) {
	body, err := transport.Body(ctx, a.caller, call)
	if err != nil {
		return model.AdminUser{}, err
	}
	u, err := a.mapper.AdminUserJSON(body)
	if err != nil {
		return model.AdminUser{}, model.NewUnknownError(http.StatusOK, err)
	}
	return u, nil
}

// Cache はユーザー一覧と承認待ち団体を保持する。
type Cache struct {
	api    *API
	logger *slog.Logger

	Users               *cache.Collection[model.AdminUser]
	PendingAssociations *cache.Collection[model.AssociationApplication]
}

// NewCache はCacheを生成する。
func NewCache(api *API, m metrics.MetricsCollector, logger *slog.Logger) *Cache {
	return &Cache{
		api:    api,
		logger: logger,
		Users:  cache.NewCollection("admin.users", api.Users, func(u model.AdminUser) int64 { return u.ID }, m, logger),
		PendingAssociations: cache.NewCollection("admin.associations.pending", api.PendingAssociations,
			func(a model.AssociationApplication) int64 { return a.ID }, m, logger),
	}
}

// User はユーザーを取得する。キャッシュは経由しない。
func (c *Cache) User(ctx context.Context, id int64) (model.AdminUser, error) {
	return c.api.User(ctx, id)
}

// Search はユーザーを検索する。結果はキャッシュしない。
func (c *Cache) Search(ctx context.Context, query string) ([]model.AdminUser, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.NewInvalidRequestError("search query is required")
	}
	return c.api.Search(ctx, query)
}

// UpdateUser はユーザーを更新し、一覧の該当ユーザーを置き換える。
func (c *Cache) UpdateUser(ctx context.Context, id int64, req model.UserUpdateRequest) (model.AdminUser, error) {
	if req.Role != nil && !req.Role.Valid() {
		return model.AdminUser{}, model.NewInvalidRequestError("unknown role")
	}
	updated, err := c.api.UpdateUser(ctx, id, req)
	if err != nil {
		return model.AdminUser{}, err
	}
	c.Users.ApplyLocalPatch(id, func(u *model.AdminUser) { *u = updated })
	return updated, nil
}

// DeleteUser はユーザーを削除し、一覧から除く。
func (c *Cache) DeleteUser(ctx context.Context, id int64) error {
	if err := c.api.DeleteUser(ctx, id); err != nil {
		return err
	}
	c.Users.Remove(id)
	c.logger.Info("user deleted by administrator", slog.Int64("user_id", id))
	return nil
}

// ApproveAssociation は団体を承認し、承認待ちから除く。
func (c *Cache) ApproveAssociation(ctx context.Context, id int64) error {
	if err := c.api.ApproveAssociation(ctx, id); err != nil {
		return err
	}
	c.PendingAssociations.Remove(id)
	c.Users.Invalidate()
	c.logger.Info("association approved", slog.Int64("association_id", id))
	return nil
}

// RejectAssociation は団体を却下し、承認待ちから除く。
func (c *Cache) RejectAssociation(ctx context.Context, id int64) error {
	if err := c.api.RejectAssociation(ctx, id); err != nil {
		return err
	}
	c.PendingAssociations.Remove(id)
	c.Users.Invalidate()
	c.logger.Info("association rejected", slog.Int64("association_id", id))
	return nil
}

// Reset はすべての一覧を破棄する。
func (c *Cache) Reset() {
	c.Users.Reset()
	c.PendingAssociations.Reset()
}

var _ cache.Resettable = (*Cache)(nil)
