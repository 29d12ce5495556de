package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/donorlink/internal/donation"
	"github.com/hitoshi/donorlink/internal/model"
)

// DonationHandler は寄付のHTTPハンドラー。
type DonationHandler struct {
	cache *donation.Cache
}

// NewDonationHandler はDonationHandlerを生成する。
func NewDonationHandler(c *donation.Cache) *DonationHandler {
	return &DonationHandler{cache: c}
}

// donationTotal は寄付一覧の合計。
type donationTotal struct {
	Count       int     `json:"count"`
	TotalAmount float64 `json:"totalAmount"`
}

// MountAuthenticated はログインユーザー向けのルートを登録する。
func (h *DonationHandler) MountAuthenticated(r chi.Router) {
	mountCollection(r, "/api/donations/mine", fixed(h.cache.Mine), nil)
	r.Get("/api/donations/mine/total", h.MineTotal)
	r.Get("/api/donations/{id}", h.Get)
	mountCollection(r, "/api/campaigns/{id}/donations", keyed(h.cache.ByCampaign), nil)
	r.Get("/api/campaigns/{id}/donations/stats", h.CampaignStats)
}

// MountCitizen は市民ユーザー向けのルートを登録する。
func (h *DonationHandler) MountCitizen(r chi.Router) {
	r.Post("/api/donations", h.Create)
}

// MountAssociation は団体ユーザー向けのルートを登録する。
func (h *DonationHandler) MountAssociation(r chi.Router) {
	mountCollection(r, "/api/donations/received", fixed(h.cache.Received), nil)
	r.Get("/api/donations/received/server", h.ReceivedServerSide)
}

// MountAdmin は管理者向けのルートを登録する。
func (h *DonationHandler) MountAdmin(r chi.Router) {
	mountCollection(r, "/api/donations/all", fixed(h.cache.All), nil)
	mountCollection(r, "/api/admin/users/{id}/donations", keyed(h.cache.ByUser), nil)
}

// Create は寄付を登録する。通貨が未指定の場合は既定の通貨を使う。
// POST /api/donations
func (h *DonationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.DonationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	fields := map[string]string{}
	if req.Amount <= 0 {
		fields["amount"] = "must be positive"
	}
	if req.CampaignID <= 0 {
		fields["campaignId"] = "required"
	}
	if len(fields) > 0 {
		handleServiceError(w, r, model.NewValidationError(http.StatusBadRequest, fields))
		return
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		req.Currency = model.DefaultCurrency
	}

	d, err := h.cache.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// Get は寄付を1件取得する。
// GET /api/donations/{id}
func (h *DonationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	d, err := h.cache.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// MineTotal は自分の寄付の件数と合計額を返す。
// GET /api/donations/mine/total
func (h *DonationHandler) MineTotal(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Mine.EnsureLoaded(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}
	items := h.cache.Mine.Snapshot().Items
	writeJSON(w, http.StatusOK, donationTotal{Count: len(items), TotalAmount: donation.TotalAmount(items)})
}

// CampaignStats はキャンペーンの寄付集計を返す。
// GET /api/campaigns/{id}/donations/stats
func (h *DonationHandler) CampaignStats(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	c := h.cache.ByCampaign.Get(id)
	if err := c.EnsureLoaded(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, donation.Stats(c.Snapshot().Items, id))
}

// ReceivedServerSide はサーバー側で集計した自団体宛ての寄付を返す。キャッシュは経由しない。
// GET /api/donations/received/server
func (h *DonationHandler) ReceivedServerSide(w http.ResponseWriter, r *http.Request) {
	items, err := h.cache.MyCampaignsServerSide(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Donation{}
	}
	writeJSON(w, http.StatusOK, items)
}
