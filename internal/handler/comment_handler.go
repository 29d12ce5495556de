package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/donorlink/internal/comment"
	"github.com/hitoshi/donorlink/internal/middleware"
	"github.com/hitoshi/donorlink/internal/model"
)

// CommentHandler はコメントのHTTPハンドラー。
type CommentHandler struct {
	cache *comment.Cache
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(c *comment.Cache) *CommentHandler {
	return &CommentHandler{cache: c}
}

// MountPublic は未ログインでも参照できるルートを登録する。
func (h *CommentHandler) MountPublic(r chi.Router) {
	mountCollection(r, "/api/comments", fixed(h.cache.All), nil)
	mountCollection(r, "/api/campaigns/{id}/comments", keyed(h.cache.ByCampaign), nil)
}

// MountAuthenticated はログインユーザー向けのルートを登録する。
func (h *CommentHandler) MountAuthenticated(r chi.Router) {
	r.Post("/api/comments", h.Create)
	r.Put("/api/comments/{id}", h.Update)
	r.Delete("/api/comments/{id}", h.Delete)
}

// Create はコメントを投稿する。投稿者はログイン中のユーザーになる。
// POST /api/comments
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
		req.CitizenID = userID
	}

	c, err := h.cache.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Update はコメントを更新する。
// PUT /api/comments/{id}
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req model.CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
		req.CitizenID = userID
	}

	c, err := h.cache.Update(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete はコメントを削除する。
// DELETE /api/comments/{id}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := h.cache.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
