// Package auth は認証系エンドポイントの呼び出し、トークン更新の調停、ログイン操作を提供する。
package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/donorlink/internal/mapping"
	"github.com/hitoshi/donorlink/internal/model"
	"github.com/hitoshi/donorlink/internal/transport"
)

// 認証系エンドポイント
const (
	pathLogin               = "/api/auth/login"
	pathRegisterCitizen     = "/api/auth/register/citizen"
	pathRegisterAssociation = "/api/auth/register/association"
	pathGoogle              = "/api/auth/google"
	pathRefresh             = "/api/auth/refresh"
)

// Client は認証系エンドポイントを呼び出す。
// 資格情報を付与せずDispatcherへ直接送信するため、Pipelineを経由しない。
type Client struct {
	doer   transport.Doer
	mapper *mapping.Mapper
}

// NewClient はClientを生成する。
func NewClient(doer transport.Doer, mapper *mapping.Mapper) *Client {
	return &Client{doer: doer, mapper: mapper}
}

// Login はメールアドレスとパスワードで認証する。
func (c *Client) Login(ctx context.Context, req model.LoginRequest) (mapping.AuthResult, error) {
	return c.authenticate(ctx, pathLogin, req)
}

// RegisterCitizen は市民ユーザーを登録する。
func (c *Client) RegisterCitizen(ctx context.Context, req model.RegisterCitizenRequest) (mapping.AuthResult, error) {
	return c.authenticate(ctx, pathRegisterCitizen, req)
}

// RegisterAssociation は団体ユーザーを登録する。
func (c *Client) RegisterAssociation(ctx context.Context, req model.RegisterAssociationRequest) (mapping.AuthResult, error) {
	return c.authenticate(ctx, pathRegisterAssociation, req)
}

// Google はGoogleのIDトークンで認証する。
func (c *Client) Google(ctx context.Context, idToken string) (mapping.AuthResult, error) {
	return c.authenticate(ctx, pathGoogle, map[string]string{"token": idToken})
}

// Refresh はリフレッシュトークンで新しいアクセストークンを取得する。
// リフレッシュトークンがローテーションされない場合、rotated は空になる。
func (c *Client) Refresh(ctx context.Context, renewal string) (access, rotated string, err error) {
	call, err := transport.WithJSON(http.MethodPost, pathRefresh, map[string]string{"refreshToken": renewal})
	if err != nil {
		return "", "", err
	}
	resp, err := c.doer.Dispatch(ctx, call, "")
	if err != nil {
		return "", "", err
	}
	access, rotated, err = c.mapper.RenewalResponse(resp.Body)
	if err != nil {
		return "", "", model.NewUnknownError(resp.Status, fmt.Errorf("failed to decode refresh response: %w", err))
	}
	return access, rotated, nil
}

func (c *Client) authenticate(ctx context.Context, path string, payload any) (mapping.AuthResult, error) {
	call, err := transport.WithJSON(http.MethodPost, path, payload)
	if err != nil {
		return mapping.AuthResult{}, err
	}
	resp, err := c.doer.Dispatch(ctx, call, "")
	if err != nil {
		return mapping.AuthResult{}, err
	}
	res, err := c.mapper.AuthResponse(resp.Body)
	if err != nil {
		return mapping.AuthResult{}, model.NewUnknownError(resp.Status, fmt.Errorf("failed to decode auth response: %w", err))
	}
	return res, nil
}
