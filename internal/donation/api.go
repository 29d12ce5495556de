// Package donation は寄付のAPI呼び出し、キャッシュ、集計を提供する。
package donation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/donorlink/internal/mapping"
	"github.com/hitoshi/donorlink/internal/model"
	"github.com/hitoshi/donorlink/internal/transport"
)

const basePath = "/api/donations"

// API は寄付のエンドポイントを呼び出す。
type API struct {
	caller transport.Caller
	mapper *mapping.Mapper
}

// NewAPI はAPIを生成する。
func NewAPI(caller transport.Caller, mapper *mapping.Mapper) *API {
	return &API{caller: caller, mapper: mapper}
}

// Create は寄付を登録する。通貨が空の場合は既定通貨を使う。
func (a *API) Create(ctx context.Context, req model.DonationRequest) (model.Donation, error) {
	if req.Amount <= 0 {
		return model.Donation{}, model.NewInvalidRequestError("amount must be positive")
	}
	if req.CampaignID == 0 {
		return model.Donation{}, model.NewInvalidRequestError("campaign id is required")
	}
	if req.Currency == "" {
		req.Currency = model.DefaultCurrency
	}
	call, err := transport.WithJSON(http.MethodPost, basePath, req)
	if err != nil {
		return model.Donation{}, err
	}
	return a.one(ctx, call)
}

// All はすべての寄付を取得する（管理者向け）。
func (a *API) All(ctx context.Context) ([]model.Donation, error) {
	return a.list(ctx, transport.Get(basePath))
}

// Get は寄付を取得する。
func (a *API) Get(ctx context.Context, id int64) (model.Donation, error) {
	return a.one(ctx, transport.Get(fmt.Sprintf("%s/%d", basePath, id)))
}

// Mine はログイン中のユーザーの寄付を取得する。
func (a *API) Mine(ctx context.Context) ([]model.Donation, error) {
	return a.list(ctx, transport.Get(basePath+"/my-donations"))
}

// ByUser はユーザーごとの寄付を取得する。
func (a *API) ByUser(ctx context.Context, userID int64) ([]model.Donation, error) {
	return a.list(ctx, transport.Get(fmt.Sprintf("%s/user/%d", basePath, userID)))
}

// ByCampaign はキャンペーンごとの寄付を取得する。
func (a *API) ByCampaign(ctx context.Context, campaignID int64) ([]model.Donation, error) {
	return a.list(ctx, transport.Get(fmt.Sprintf("%s/campaign/%d", basePath, campaignID)))
}

// MyCampaigns は自団体のキャンペーンへの寄付をサーバー側で集計したものを取得する。
func (a *API) MyCampaigns(ctx context.Context) ([]model.Donation, error) {
	return a.list(ctx, transport.Get(basePath+"/my-campaigns"))
}

func (a *API) list(ctx context.Context, call transport.Call) ([]model.Donation, error) {
	body, err := transport.Body(ctx, a.caller, call)
	if err != nil {
		return nil, err
	}
	items, err := a.mapper.Donations(body)
	if err != nil {
		return nil, model.NewUnknownError(http.StatusOK, err)
	}
	return items, nil
}

func (a *API) one(ctx context.Context, call transport.Call) (model.Donation, error) {
	body, err := transport.Body(ctx, a.caller, call)
	if err != nil {
		return model.Donation{}, err
	}
	d, err := a.mapper.DonationJSON(body)
	if err != nil {
		return model.Donation{}, model.NewUnknownError(http.StatusOK, err)
	}
	return d, nil
}
