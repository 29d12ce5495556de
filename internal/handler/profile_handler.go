package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/donorlink/internal/model"
)

// ProfileService はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileService interface {
	Me(ctx context.Context) (model.Profile, error)
	UpdateMe(ctx context.Context, req model.ProfileUpdateRequest) (model.Profile, error)
	ChangePassword(ctx context.Context, req model.ChangePasswordRequest) error
	DeleteAccount(ctx context.Context) error
}

// ProfileHandler はプロフィールのHTTPハンドラー。
type ProfileHandler struct {
	service ProfileService
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// Mount はログインユーザー向けのルートを登録する。
func (h *ProfileHandler) Mount(r chi.Router) {
	r.Get("/api/profile", h.Me)
	r.Put("/api/profile", h.UpdateMe)
	r.Post("/api/profile/password", h.ChangePassword)
	r.Delete("/api/profile", h.DeleteAccount)
}

// Me はプロフィールを返す。
// GET /api/profile
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Me(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateMe はプロフィールを更新する。
// PUT /api/profile
func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req model.ProfileUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	p, err := h.service.UpdateMe(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ChangePassword はパスワードを変更する。
// POST /api/profile/password
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req model.ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := h.service.ChangePassword(r.Context(), req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount はアカウントを削除する。成功するとセッションも破棄される。
// DELETE /api/profile
func (h *ProfileHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAccount(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
