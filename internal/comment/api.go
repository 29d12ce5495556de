// Package comment はキャンペーンへのコメントのAPI呼び出しとキャッシュを提供する。
// コメントは別サービスで提供されるため、ベースURLを個別に持つ。
package comment

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/donorlink/internal/mapping"
	"github.com/hitoshi/donorlink/internal/model"
	"github.com/hitoshi/donorlink/internal/transport"
)

const basePath = "/comments"

// maxContentLength はコメント本文の最大文字数。
const maxContentLength = 2000

// API はコメントのエンドポイントを呼び出す。
type API struct {
	caller transport.Caller
	mapper *mapping.Mapper
	base   string
}

// NewAPI はAPIを生成する。base が空の場合はDispatcherの既定ベースURLを使う。
func NewAPI(caller transport.Caller, mapper *mapping.Mapper, base string) *API {
	return &API{caller: caller, mapper: mapper, base: base}
}

// All はすべてのコメントを取得する。
func (a *API) All(ctx context.Context) ([]model.Comment, error) {
	return a.list(ctx, a.call(transport.Get(basePath)))
}

// ByCampaign はキャンペーンへのコメントを取得する。
func (a *API) ByCampaign(ctx context.Context, campaignID int64) ([]model.Comment, error) {
	return a.list(ctx, a.call(transport.Get(fmt.Sprintf("%s/campaign/%d", basePath, campaignID))))
}

// Create はコメントを投稿する。
func (a *API) Create(ctx context.Context, req model.CommentRequest) (model.Comment, error) {
	if err := validate(req); err != nil {
		return model.Comment{}, err
	}
	call, err := transport.WithJSON(http.MethodPost, basePath, req)
	if err != nil {
		return model.Comment{}, err
	}
	return a.one(ctx, a.call(call))
}

// Update はコメントを更新する。
func (a *API) Update(ctx context.Context, id int64, req model.CommentRequest) (model.Comment, error) {
	if err := validate(req); err != nil {
		return model.Comment{}, err
	}
	call, err := transport.WithJSON(http.MethodPut, fmt.Sprintf("%s/%d", basePath, id), req)
	if err != nil {
		return model.Comment{}, err
	}
	return a.one(ctx, a.call(call))
}

// Delete はコメントを削除する。
func (a *API) Delete(ctx context.Context, id int64) error {
	_, err := a.caller.Do(ctx, a.call(transport.Delete(fmt.Sprintf("%s/%d", basePath, id))))
	return err
}

func validate(req model.CommentRequest) error {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return model.NewInvalidRequestError("comment content is required")
	}
	if len([]rune(content)) > maxContentLength {
		return model.NewInvalidRequestError(fmt.Sprintf("comment content must be at most %d characters", maxContentLength))
	}
	if req.CampaignID == 0 {
		return model.NewInvalidRequestError("campaign id is required")
	}
	return nil
}

func (a *API) call(c transport.Call) transport.Call {
	if a.base == "" {
		return c
	}
	return c.WithBase(a.base)
}

func (a *API) list(ctx context.Context, call transport.Call) ([]model.Comment, error) {
	body, err := transport.Body(ctx, a.caller, call)
	if err != nil {
		return nil, err
	}
	items, err := a.mapper.Comments(body)
	if err != nil {
		return nil, model.NewUnknownError(http.StatusOK, err)
	}
	return items, nil
}

func (a *API) one(ctx context.Context, call transport.Call) (model.Comment, error) {
	body, err := transport.Body(ctx, a.caller, call)
	if err != nil {
		return model.Comment{}, err
	}
	c, err := a.mapper.CommentJSON(body)
	if err != nil {
		return model.Comment{}, model.NewUnknownError(http.StatusOK, err)
	}
	return c, nil
}
