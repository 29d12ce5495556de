// Package profile はログインユーザー自身のプロフィール操作を提供する。
package profile

import (
	"context"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/hitoshi/donorlink/internal/mapping"
	"github.com/hitoshi/donorlink/internal/model"
	"github.com/hitoshi/donorlink/internal/transport"
)

const (
	basePath = "/api/profile"

	minPasswordLength = 8
)

// SessionEnder はローカルのセッションを破棄する。
type SessionEnder interface {
	Logout(ctx context.Context) error
}

// Service はプロフィールのエンドポイントを呼び出す。結果はキャッシュしない。
type Service struct {
	caller  transport.Caller
	mapper  *mapping.Mapper
	session SessionEnder
	logger  *slog.Logger
}

// NewService はServiceを生成する。
func NewService(caller transport.Caller, mapper *mapping.Mapper, session SessionEnder, logger *slog.Logger) *Service {
	return &Service{
		caller:  caller,
		mapper:  mapper,
		session: session,
		logger:  logger,
	}
}

// Me はプロフィールを取得する。
func (s *Service) Me(ctx context.Context) (model.Profile, error) {
	return s.profile(ctx, transport.Get(basePath+"/me"))
}

// UpdateMe はプロフィールを更新する。
func (s *Service) UpdateMe(ctx context.Context, req model.ProfileUpdateRequest) (model.Profile, error) {
	call, err := transport.WithJSON(http.MethodPut, basePath+"/me", req)
	if err != nil {
		return model.Profile{}, err
	}
	return s.profile(ctx, call)
}

// ChangePassword はパスワードを変更する。
func (s *Service) ChangePassword(ctx context.Context, req model.ChangePasswordRequest) error {
	switch {
	case req.CurrentPassword == "":
		return model.NewInvalidRequestError("current password is required")
	case utf8.RuneCountInString(req.NewPassword) < minPasswordLength:
		return model.NewInvalidRequestError("new password must be at least 8 characters")
	case req.NewPassword != req.ConfirmPassword:
		return model.NewInvalidRequestError("password confirmation does not match")
	}

	call, err := transport.WithJSON(http.MethodPost, basePath+"/change-password", req)
	if err != nil {
		return err
	}
	if _, err := s.caller.Do(ctx, call); err != nil {
		return err
	}
	s.logger.Info("password changed")
	return nil
}

// DeleteAccount はアカウントを削除し、成功した場合はローカルのセッションも破棄する。
func (s *Service) DeleteAccount(ctx context.Context) error {
	if _, err := s.caller.Do(ctx, transport.Delete(basePath+"/me")); err != nil {
		return err
	}
	s.logger.Info("account deleted")
	return s.session.Logout(ctx)
}

func (s *Service) profile(ctx context.Context, call transport.Call) (model.Profile, error) {
	body, err := transport.Body(ctx, s.caller, call)
	if err != nil {
		return model.Profile{}, err
	}
	p, err := s.mapper.ProfileJSON(body)
	if err != nil {
		return model.Profile{}, model.NewUnknownError(http.StatusOK, err)
	}
	return p, nil
}
