package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/donorlink/internal/mapping"
	"github.com/hitoshi/donorlink/internal/model"
)

// Service はログイン・登録・ログアウトを提供する。
// 認証に成功した場合のみセッションストアへ反映する。
type Service struct {
	client  *Client
	session SessionStore
	logger  *slog.Logger
}

// NewService はServiceを生成する。
func NewService(client *Client, session SessionStore, logger *slog.Logger) *Service {
	return &Service{
		client:  client,
		session: session,
		logger:  logger,
	}
}

// Login はメールアドレスとパスワードでログインする。
func (s *Service) Login(ctx context.Context, email, password string) (model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.Session{}, model.NewInvalidRequestError("email and password are required")
	}
	res, err := s.client.Login(ctx, model.LoginRequest{Email: email, Password: password})
	if err != nil {
		return model.Session{}, err
	}
	return s.establish(ctx, res)
}

// RegisterCitizen は市民ユーザーを登録してログインする。
func (s *Service) RegisterCitizen(ctx context.Context, req model.RegisterCitizenRequest) (model.Session, error) {
	if req.Email == "" || req.Password == "" {
		return model.Session{}, model.NewInvalidRequestError("email and password are required")
	}
	res, err := s.client.RegisterCitizen(ctx, req)
	if err != nil {
		return model.Session{}, err
	}
	// 登録レスポンスに氏名が含まれない場合は入力値で補う
	if res.User.FirstName == "" && res.User.LastName == "" {
		res.User.FirstName = req.FirstName
		res.User.LastName = req.LastName
		res.User.Phone = req.Phone
	}
	return s.establish(ctx, res)
}

// RegisterAssociation は団体ユーザーを登録してログインする。
func (s *Service) RegisterAssociation(ctx context.Context, req model.RegisterAssociationRequest) (model.Session, error) {
	if req.Email == "" || req.Password == "" {
		return model.Session{}, model.NewInvalidRequestError("email and password are required")
	}
	res, err := s.client.RegisterAssociation(ctx, req)
	if err != nil {
		return model.Session{}, err
	}
	if res.User.Description == "" {
		res.User.Description = req.Description
		res.User.Address = req.Address
		res.User.Website = req.Website
	}
	return s.establish(ctx, res)
}

// GoogleLogin はGoogleのIDトークンでログインする。
func (s *Service) GoogleLogin(ctx context.Context, idToken string) (model.Session, error) {
	if idToken == "" {
		return model.Session{}, model.NewInvalidRequestError("google token is required")
	}
	res, err := s.client.Google(ctx, idToken)
	if err != nil {
		return model.Session{}, err
	}
	return s.establish(ctx, res)
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context) error {
	if err := s.session.Logout(ctx); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// Current は現在のセッションを返す。
func (s *Service) Current() model.Session {
	return s.session.Current()
}

func (s *Service) establish(ctx context.Context, res mapping.AuthResult) (model.Session, error) {
	if err := s.session.Login(ctx, res.User, res.AccessCredential, res.RenewalCredential); err != nil {
		return model.Session{}, fmt.Errorf("failed to store session: %w", err)
	}
	return s.session.Current(), nil
}
