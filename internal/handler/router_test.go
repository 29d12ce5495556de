package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/donorlink/internal/bridge"
	"github.com/hitoshi/donorlink/internal/client"
	"github.com/hitoshi/donorlink/internal/logger"
	"github.com/hitoshi/donorlink/internal/media"
	"github.com/hitoshi/donorlink/internal/middleware"
	"github.com/hitoshi/donorlink/internal/model"
	"github.com/hitoshi/donorlink/internal/security"
	"github.com/hitoshi/donorlink/internal/storage"
)

// fakeAPI はブリッジの背後にあるテスト用APIサーバー。
type fakeAPI struct {
	server    *httptest.Server
	approvals atomic.Int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req model.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		role, id := "CITIZEN", 7
		switch {
		case strings.HasPrefix(req.Email, "admin"):
			role, id = "ADMINISTRATOR", 1
		case strings.HasPrefix(req.Email, "assoc"):
			role, id = "ASSOCIATION", 9
		}
		json.NewEncoder(w).Encode(map[string]any{
			"token": "tok-" + role, "refreshToken": "r1", "userId": id, "email": req.Email, "role": role,
		})
	})
	mux.HandleFunc("GET /api/campaigns/active", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":3,"title":"Water","category":"FOOD_WATER","status":"ACTIVE"},
			{"id":4,"title":"Books","category":"EDUCATION","status":"ACTIVE"}
		]`))
	})
	mux.HandleFunc("GET /api/campaigns/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "3" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Campaign not found"}`))
			return
		}
		w.Write([]byte(`{"id":3,"title":"Water","status":"ACTIVE"}`))
	})
	mux.HandleFunc("GET /api/donations/my-donations", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer tok-") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[{"id":1,"amount":10,"userId":7,"campaignId":3},{"id":2,"amount":5.5,"userId":7,"campaignId":4}]`))
	})
	mux.HandleFunc("POST /api/admin/associations/{id}/approve", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-ADMINISTRATOR" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		api.approvals.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /api/admin/associations/pending", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":5,"email":"assoc@example.com","name":"Teach"}]`))
	})
	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	return api
}

type testBridge struct {
	client *client.Client
	router http.Handler
}

func newTestBridge(t *testing.T) (*testBridge, *fakeAPI) {
	t.Helper()
	api := newFakeAPI(t)
	c, err := client.New(context.Background(), client.Options{
		APIBaseURL:     api.server.URL,
		Store:          storage.NewMemoryStore(),
		RequestTimeout: 2 * time.Second,
		Logger:         logger.Discard(),
	})
	if err != nil {
		t.Fatalf("client.New returned error: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), logger.Discard())
	t.Cleanup(rl.Stop)

	router := NewRouter(&RouterDeps{
		Client:            c,
		ImageProxy:        media.NewProxy(security.NewURLGuard(), 0, time.Second, logger.Discard()),
		CORSAllowedOrigin: "http://localhost:4200",
		RateLimiter:       rl,
		Logger:            logger.Discard(),
	})
	return &testBridge{client: c, router: router}, api
}

func (b *testBridge) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	b.router.ServeHTTP(w, req)
	return w
}

func (b *testBridge) login(t *testing.T, email string) {
	t.Helper()
	w := b.do(t, http.MethodPost, "/api/session/login", `{"email":"`+email+`","password":"secret"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func TestHealth(t *testing.T) {
	b, _ := newTestBridge(t)
	w := b.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestSession_LoginAndLogout(t *testing.T) {
	b, _ := newTestBridge(t)

	w := b.do(t, http.MethodGet, "/api/session", "")
	var view bridge.SessionView
	json.NewDecoder(w.Body).Decode(&view)
	if view.Authenticated {
		t.Fatal("session should start unauthenticated")
	}

	w = b.do(t, http.MethodPost, "/api/session/login", `{"email":"a@example.com","password":"secret"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "tok-") || strings.Contains(w.Body.String(), `"r1"`) {
		t.Errorf("session response leaks credentials: %s", w.Body.String())
	}
	json.NewDecoder(w.Body).Decode(&view)
	if !view.Authenticated || view.User == nil || view.User.ID != 7 || !view.CanRenew {
		t.Errorf("session view = %+v", view)
	}

	w = b.do(t, http.MethodPost, "/api/session/logout", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("logout status = %d, want 204", w.Code)
	}
	if b.client.Session.Current().Authenticated() {
		t.Error("session should be cleared after logout")
	}
}

func TestSession_LoginValidation(t *testing.T) {
	b, _ := newTestBridge(t)

	t.Run("必須項目なし", func(t *testing.T) {
		w := b.do(t, http.MethodPost, "/api/session/login", `{"email":"a@example.com"}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		body := decodeError(t, w)
		if body.Category != "validation" || body.Fields["password"] == "" {
			t.Errorf("body = %+v", body)
		}
	})

	t.Run("不正なJSON", func(t *testing.T) {
		w := b.do(t, http.MethodPost, "/api/session/login", `{"email":`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("認証失敗", func(t *testing.T) {
		w := b.do(t, http.MethodPost, "/api/session/login", `{"email":"a@example.com","password":"wrong"}`)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
		if body := decodeError(t, w); body.Category != "unauthenticated" {
			t.Errorf("category = %q, want unauthenticated", body.Category)
		}
	})
}

func TestCampaigns_ActiveFilteredByCategory(t *testing.T) {
	b, _ := newTestBridge(t)

	w := b.do(t, http.MethodGet, "/api/campaigns/active?category=food_water", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var view bridge.CollectionView[model.Campaign]
	json.NewDecoder(w.Body).Decode(&view)
	if !view.Loaded || len(view.Items) != 1 || view.Items[0].ID != 3 {
		t.Errorf("view = %+v", view)
	}

	// 絞り込みは表示のみでキャッシュは全件を保持する
	if n := len(b.client.Campaigns.Active.Snapshot().Items); n != 2 {
		t.Errorf("cached items = %d, want 2", n)
	}
}

func TestCampaigns_InvalidateAndReload(t *testing.T) {
	b, _ := newTestBridge(t)
	b.do(t, http.MethodGet, "/api/campaigns/active", "")

	w := b.do(t, http.MethodPost, "/api/campaigns/active/invalidate", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("invalidate status = %d, want 204", w.Code)
	}
	if b.client.Campaigns.Active.Loaded() {
		t.Error("collection should not be loaded after invalidate")
	}

	w = b.do(t, http.MethodPost, "/api/campaigns/active/reload", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reload status = %d, want 200", w.Code)
	}
	if !b.client.Campaigns.Active.Loaded() {
		t.Error("collection should be loaded after reload")
	}
}

func TestCampaigns_UpstreamErrors(t *testing.T) {
	b, _ := newTestBridge(t)

	tests := []struct {
		name     string
		path     string
		status   int
		category string
	}{
		{"存在しないキャンペーン", "/api/campaigns/99", http.StatusNotFound, "not_found"},
		{"不正なID", "/api/campaigns/abc/image", http.StatusBadRequest, "validation"},
		{"画像なし", "/api/campaigns/3/image", http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := b.do(t, http.MethodGet, tt.path, "")
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body = %s)", w.Code, tt.status, w.Body.String())
			}
			if body := decodeError(t, w); body.Category != tt.category {
				t.Errorf("category = %q, want %q", body.Category, tt.category)
			}
		})
	}
}

func TestDonations_RequireSession(t *testing.T) {
	b, _ := newTestBridge(t)

	w := b.do(t, http.MethodGet, "/api/donations/mine", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	b.login(t, "a@example.com")

	w = b.do(t, http.MethodGet, "/api/donations/mine", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var view bridge.CollectionView[model.Donation]
	json.NewDecoder(w.Body).Decode(&view)
	if len(view.Items) != 2 {
		t.Errorf("items = %d, want 2", len(view.Items))
	}

	w = b.do(t, http.MethodGet, "/api/donations/mine/total", "")
	var total donationTotal
	json.NewDecoder(w.Body).Decode(&total)
	if total.Count != 2 || total.TotalAmount != 15.5 {
		t.Errorf("total = %+v, want {2 15.5}", total)
	}
}

func TestDonations_CreateValidation(t *testing.T) {
	b, _ := newTestBridge(t)
	b.login(t, "a@example.com")

	w := b.do(t, http.MethodPost, "/api/donations", `{"amount":0}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decodeError(t, w)
	if body.Fields["amount"] == "" || body.Fields["campaignId"] == "" {
		t.Errorf("fields = %v", body.Fields)
	}
}

func TestRoles(t *testing.T) {
	b, api := newTestBridge(t)

	b.login(t, "a@example.com")
	if w := b.do(t, http.MethodGet, "/api/admin/associations/pending", ""); w.Code != http.StatusForbidden {
		t.Errorf("citizen admin access status = %d, want 403", w.Code)
	}
	if w := b.do(t, http.MethodGet, "/api/campaigns/mine", ""); w.Code != http.StatusForbidden {
		t.Errorf("citizen association access status = %d, want 403", w.Code)
	}

	b.login(t, "admin@example.com")
	w := b.do(t, http.MethodGet, "/api/admin/associations/pending", "")
	if w.Code != http.StatusOK {
		t.Fatalf("pending status = %d, body = %s", w.Code, w.Body.String())
	}
	w = b.do(t, http.MethodPost, "/api/admin/associations/5/approve", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("approve status = %d, body = %s", w.Code, w.Body.String())
	}
	if api.approvals.Load() != 1 {
		t.Errorf("approvals = %d, want 1", api.approvals.Load())
	}
	if n := len(b.client.Admin.PendingAssociations.Snapshot().Items); n != 0 {
		t.Errorf("pending after approve = %d, want 0", n)
	}
}

func TestCSRF_RejectsForeignOrigin(t *testing.T) {
	b, _ := newTestBridge(t)

	req := httptest.NewRequest(http.MethodPost, "/api/session/logout", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	b.router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestIDParam(t *testing.T) {
	tests := map[string]bool{"1": true, "42": true, "0": false, "-3": false, "x": false, "": false}
	for raw, valid := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", raw)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
		_, err := idParam(req, "id")
		if (err == nil) != valid {
			t.Errorf("idParam(%q) err = %v, valid = %v", raw, err, valid)
		}
	}
}
