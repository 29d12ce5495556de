package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/donorlink/internal/admin"
	"github.com/hitoshi/donorlink/internal/model"
)

// AdminHandler は管理者向けのHTTPハンドラー。
type AdminHandler struct {
	cache *admin.Cache
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(c *admin.Cache) *AdminHandler {
	return &AdminHandler{cache: c}
}

// Mount は管理者向けのルートを登録する。
func (h *AdminHandler) Mount(r chi.Router) {
	mountCollection(r, "/api/admin/users", fixed(h.cache.Users), nil)
	r.Get("/api/admin/users/search", h.Search)
	r.Get("/api/admin/users/{id}", h.GetUser)
	r.Put("/api/admin/users/{id}", h.UpdateUser)
	r.Delete("/api/admin/users/{id}", h.DeleteUser)

	mountCollection(r, "/api/admin/associations/pending", fixed(h.cache.PendingAssociations), nil)
	r.Post("/api/admin/associations/{id}/approve", h.ApproveAssociation)
	r.Post("/api/admin/associations/{id}/reject", h.RejectAssociation)
}

// Search はユーザーを検索する。
// GET /api/admin/users/search?q=
func (h *AdminHandler) Search(w http.ResponseWriter, r *http.Request) {
	users, err := h.cache.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if users == nil {
		users = []model.AdminUser{}
	}
	writeJSON(w, http.StatusOK, users)
}

// GetUser はユーザーを1件取得する。
// GET /api/admin/users/{id}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	u, err := h.cache.User(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdateUser はユーザーを更新する。
// PUT /api/admin/users/{id}
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req model.UserUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	u, err := h.cache.UpdateUser(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// DeleteUser はユーザーを削除する。
// DELETE /api/admin/users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, h.cache.DeleteUser)
}

// ApproveAssociation は団体を承認する。
// POST /api/admin/associations/{id}/approve
func (h *AdminHandler) ApproveAssociation(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, h.cache.ApproveAssociation)
}

// RejectAssociation は団体を却下する。
// POST /api/admin/associations/{id}/reject
func (h *AdminHandler) RejectAssociation(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, h.cache.RejectAssociation)
}

func (h *AdminHandler) byID(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) error) {
	id, err := idParam(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := fn(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
