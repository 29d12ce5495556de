package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/donorlink/internal/campaign"
	"github.com/hitoshi/donorlink/internal/media"
	"github.com/hitoshi/donorlink/internal/model"
)

// CampaignHandler はキャンペーンのHTTPハンドラー。
type CampaignHandler struct {
	cache *campaign.Cache
	proxy *media.Proxy
	now   func() time.Time
}

// NewCampaignHandler はCampaignHandlerを生成する。
func NewCampaignHandler(c *campaign.Cache, proxy *media.Proxy) *CampaignHandler {
	return &CampaignHandler{cache: c, proxy: proxy, now: time.Now}
}

// campaignSummary は団体ダッシュボード向けの集計。
type campaignSummary struct {
	campaign.Buckets
	TotalRaised float64 `json:"totalRaised"`
	TotalGoal   float64 `json:"totalGoal"`
}

// MountPublic は未ログインでも参照できるルートを登録する。
func (h *CampaignHandler) MountPublic(r chi.Router) {
	mountCollection(r, "/api/campaigns/active", fixed(h.cache.Active), filterByCategory)
	mountCollection(r, "/api/campaigns/details", fixed(h.cache.WithDetails), nil)
	mountCollection(r, "/api/associations/{id}/campaigns", keyed(h.cache.ByAssociation), filterByCategory)
	r.Get("/api/campaigns/{id}", h.Get)
	r.Post("/api/campaigns/{id}/progress", h.Progress)
	r.Get("/api/campaigns/{id}/image", h.Image)
}

// MountAssociation は団体ユーザー向けのルートを登録する。
func (h *CampaignHandler) MountAssociation(r chi.Router) {
	mountCollection(r, "/api/campaigns/mine", fixed(h.cache.Mine), nil)
	r.Get("/api/campaigns/mine/summary", h.MineSummary)
	r.Post("/api/campaigns", h.Create)
	r.Put("/api/campaigns/{id}", h.Update)
}

// MountAdmin は管理者向けのルートを登録する。
func (h *CampaignHandler) MountAdmin(r chi.Router) {
	mountCollection(r, "/api/campaigns/pending", fixed(h.cache.Pending), nil)
	r.Post("/api/campaigns/{id}/approve", h.Approve)
	r.Post("/api/campaigns/{id}/reject", h.Reject)
}

// Get はキャンペーンを1件取得する。
// GET /api/campaigns/{id}
func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	c, err := h.cache.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Progress は最新の集計額を取得し、保持している一覧にも反映する。
// POST /api/campaigns/{id}/progress
func (h *CampaignHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	c, err := h.cache.Progress(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Image はキャンペーン画像を中継する。
// GET /api/campaigns/{id}/image
func (h *CampaignHandler) Image(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	img, err := h.proxy.CampaignImage(r.Context(), h.cache, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	w.WriteHeader(http.StatusOK)
	w.Write(img.Data)
}

// MineSummary は自団体のキャンペーンを受付中・承認待ち・終了に分類して返す。
// GET /api/campaigns/mine/summary
func (h *CampaignHandler) MineSummary(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Mine.EnsureLoaded(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}
	items := h.cache.Mine.Snapshot().Items
	writeJSON(w, http.StatusOK, campaignSummary{
		Buckets:     campaign.BucketByLifecycle(items, h.now()),
		TotalRaised: campaign.TotalRaised(items),
		TotalGoal:   campaign.TotalGoal(items),
	})
}

// Create はキャンペーンを作成する。
// POST /api/campaigns
func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CampaignCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	fields := requireFields(map[string]string{"title": req.Title, "description": req.Description})
	if req.GoalAmount <= 0 {
		if fields == nil {
			fields = make(map[string]string)
		}
		fields["goalAmount"] = "must be positive"
	}
	if fields != nil {
		handleServiceError(w, r, model.NewValidationError(http.StatusBadRequest, fields))
		return
	}

	c, err := h.cache.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Update はキャンペーンを更新する。
// PUT /api/campaigns/{id}
func (h *CampaignHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req model.CampaignUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	c, err := h.cache.Update(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Approve はキャンペーンを承認する。
// POST /api/campaigns/{id}/approve
func (h *CampaignHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.cache.Approve)
}

// Reject はキャンペーンを却下する。
// POST /api/campaigns/{id}/reject
func (h *CampaignHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.cache.Reject)
}

func (h *CampaignHandler) decide(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) error) {
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

// filterByCategory はクエリパラメータ category で絞り込む。
func filterByCategory(r *http.Request, items []model.Campaign) []model.Campaign {
	category := model.CampaignCategory(strings.ToUpper(r.URL.Query().Get("category")))
	return campaign.FilterByCategory(items, category)
}
