// Package campaign はキャンペーンのAPI呼び出しとキャッシュを提供する。
package campaign

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/donorlink/internal/mapping"
	"github.com/hitoshi/donorlink/internal/model"
	"github.com/hitoshi/donorlink/internal/transport"
)

const basePath = "/api/campaigns"

// API はキャンペーンのエンドポイントを呼び出す。
type API struct {
	caller transport.Caller
	mapper *mapping.Mapper
}

// NewAPI はAPIを生成する。
func NewAPI(caller transport.Caller, mapper *mapping.Mapper) *API {
	return &API{caller: caller, mapper: mapper}
}

// Active は公開中のキャンペーン一覧を取得する。
func (a *API) Active(ctx context.Context) ([]model.Campaign, error) {
	return a.list(ctx, transport.Get(basePath+"/active"))
}

// ActiveWithDetails はコメントと寄付を含む公開中のキャンペーン一覧を取得する。
func (a *API) ActiveWithDetails(ctx context.Context) ([]model.CampaignDetails, error) {
	body, err := transport.Body(ctx, a.caller, transport.Get(basePath+"/active/with-details"))
	if err != nil {
		return nil, err
	}
	items, err := a.mapper.CampaignsWithDetails(body)
	if err != nil {
		return nil, model.NewUnknownError(http.StatusOK, err)
	}
	return items, nil
}

// Mine はログイン中の団体のキャンペーン一覧を取得する。
func (a *API) Mine(ctx context.Context) ([]model.Campaign, error) {
	return a.list(ctx, transport.Get(basePath+"/my-campaigns"))
}

// Pending は承認待ちのキャンペーン一覧を取得する。
func (a *API) Pending(ctx context.Context) ([]model.Campaign, error) {
	return a.list(ctx, transport.Get(basePath+"/pending"))
}

// ByAssociation は団体ごとのキャンペーン一覧を取得する。
func (a *API) ByAssociation(ctx context.Context, associationID int64) ([]model.Campaign, error) {
	return a.list(ctx, transport.Get(fmt.Sprintf("%s/association/%d", basePath, associationID)))
}

// Get はキャンペーンを取得する。
func (a *API) Get(ctx context.Context, id int64) (model.Campaign, error) {
	return a.one(ctx, transport.Get(fmt.Sprintf("%s/%d", basePath, id)))
}

// Progress は集計額を反映したキャンペーンを取得する。
func (a *API) Progress(ctx context.Context, id int64) (model.Campaign, error) {
	return a.one(ctx, transport.Get(fmt.Sprintf("%s/%d/progress", basePath, id)))
}

// Create はキャンペーンを作成する。
func (a *API) Create(ctx context.Context, req model.CampaignCreateRequest) (model.Campaign, error) {
	call, err := transport.WithJSON(http.MethodPost, basePath, req)
	if err != nil {
		return model.Campaign{}, err
	}
	return a.one(ctx, call)
}

// Update はキャンペーンを更新する。
func (a *API) Update(ctx context.Context, id int64, req model.CampaignUpdateRequest) (model.Campaign, error) {
	call, err := transport.WithJSON(http.MethodPut, fmt.Sprintf("%s/%d", basePath, id), req)
	if err != nil {
		return model.Campaign{}, err
	}
	return a.one(ctx, call)
}

// Approve はキャンペーンを承認する。
func (a *API) Approve(ctx context.Context, id int64) (model.Campaign, error) {
	return a.transition(ctx, id, "approve")
}

// Reject はキャンペーンを却下する。
func (a *API) Reject(ctx context.Context, id int64) (model.Campaign, error) {
	return a.transition(ctx, id, "reject")
}

func (a *API) transition(ctx context.Context, id int64, action string) (model.Campaign, error) {
	call, err := transport.WithJSON(http.MethodPut, fmt.Sprintf("%s/%d/%s", basePath, id, action), struct{}{})
	if err != nil {
		return model.Campaign{}, err
	}
	return a.one(ctx, call)
}

func (a *API) list(ctx context.Context, call transport.Call) ([]model.Campaign, error) {
	body, err := transport.Body(ctx, a.caller, call)
	if err != nil {
		return nil, err
	}
	items, err := a.mapper.Campaigns(body)
	if err != nil {
		return nil, model.NewUnknownError(http.StatusOK, err)
	}
	return items, nil
}

func (a *API) one(ctx context.Context, call transport.Call) (model.Campaign, error) {
	body, err := transport.Body(ctx, a.caller, call)
	if err != nil {
		return model.Campaign{}, err
	}
	c, err := a.mapper.CampaignJSON(body)
	if err != nil {
		return model.Campaign{}, model.NewUnknownError(http.StatusOK, err)
	}
	return c, nil
}
