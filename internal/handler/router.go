package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/donorlink/internal/client"
	"github.com/hitoshi/donorlink/internal/media"
	"github.com/hitoshi/donorlink/internal/middleware"
	"github.com/hitoshi/donorlink/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Client *client.Client

	// Hub は /ws で状態を配信するハンドラー。
	Hub http.Handler
	// Metrics は /metrics で公開するハンドラー。nil の場合は登録しない。
	Metrics    http.Handler
	ImageProxy *media.Proxy

	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → CSRF → RateLimit(Command) → Session → RequireRole
//
// /health, /metrics, /ws はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Client.Session))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCSRFMiddleware(deps.CORSAllowedOrigin, deps.Logger))

	c := deps.Client
	sessionHandler := NewSessionHandler(c.Auth, deps.Logger)
	campaignHandler := NewCampaignHandler(c.Campaigns, deps.ImageProxy)
	donationHandler := NewDonationHandler(c.Donations)
	commentHandler := NewCommentHandler(c.Comments)
	adminHandler := NewAdminHandler(c.Admin)
	profileHandler := NewProfileHandler(c.Profile)

	r.Get("/health", Health)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}
	if deps.Hub != nil {
		r.Handle("/ws", deps.Hub)
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.CommandMiddleware())

		// --- 認証不要のルート ---
		r.Get("/api/session", sessionHandler.Current)
		r.Post("/api/session/logout", sessionHandler.Logout)
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.LoginMiddleware())
			r.Post("/api/session/login", sessionHandler.Login)
			r.Post("/api/session/google", sessionHandler.GoogleLogin)
			r.Post("/api/session/register/citizen", sessionHandler.RegisterCitizen)
			r.Post("/api/session/register/association", sessionHandler.RegisterAssociation)
		})
		campaignHandler.MountPublic(r)
		commentHandler.MountPublic(r)

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(c.Session))

			profileHandler.Mount(r)
			donationHandler.MountAuthenticated(r)
			commentHandler.MountAuthenticated(r)

			r.With(middleware.RequireRole(model.RoleCitizen)).Group(donationHandler.MountCitizen)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleAssociation))
				campaignHandler.MountAssociation(r)
				donationHandler.MountAssociation(r)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleAdministrator))
				campaignHandler.MountAdmin(r)
				donationHandler.MountAdmin(r)
				adminHandler.Mount(r)
			})
		})
	})

	return r
}

// Health はブリッジプロセスの死活を返す。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
