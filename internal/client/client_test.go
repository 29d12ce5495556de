package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/donorlink/internal/logger"
	"github.com/hitoshi/donorlink/internal/model"
	"github.com/hitoshi/donorlink/internal/storage"
)

// fakeAPI は認証と寄付一覧を持つテスト用APIサーバー。
type fakeAPI struct {
	server *httptest.Server

	mu         sync.Mutex
	validToken string
	refreshOK  bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{validToken: "tok1", refreshOK: true}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req model.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		id := 7
		if req.Email == "other@example.com" {
			id = 8
		}
		json.NewEncoder(w).Encode(map[string]any{
			"token": "tok1", "refreshToken": "r1", "userId": id, "email": req.Email, "role": "CITIZEN",
		})
	})
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		if !api.refreshOK {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		api.validToken = "tok2"
		w.Write([]byte(`{"token":"tok2"}`))
	})
	mux.HandleFunc("GET /api/donations/my-donations", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		valid := api.validToken
		api.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[{"id":1,"amount":10,"userId":7,"campaignId":3}]`))
	})
	mux.HandleFunc("GET /api/campaigns/active", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":3,"title":"Water","status":"ACTIVE"}]`))
	})
	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) expireTokens(refreshOK bool) {
	a.mu.Lock()
	a.validToken = "tok-server-side-only"
	a.refreshOK = refreshOK
	a.mu.Unlock()
}

func newTestClient(t *testing.T, api *fakeAPI, store storage.Store) *Client {
	t.Helper()
	c, err := New(context.Background(), Options{
		APIBaseURL:     api.server.URL,
		Store:          store,
		RequestTimeout: 2 * time.Second,
		FanOutLimit:    2,
		Logger:         logger.Discard(),
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(context.Background(), Options{Store: storage.NewMemoryStore()}); err == nil {
		t.Fatal("expected error without API base url")
	}
}

func TestNew_OpensStoreFromURL(t *testing.T) {
	api := newFakeAPI(t)
	path := filepath.Join(t.TempDir(), "session.json")

	c, err := New(context.Background(), Options{
		APIBaseURL: api.server.URL,
		StoreURL:   "file://" + path,
		Logger:     logger.Discard(),
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := c.Auth.Login(context.Background(), "a@example.com", "secret"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	c.Close()

	// 同じファイルから開き直すとセッションが復元される
	reopened, err := New(context.Background(), Options{
		APIBaseURL: api.server.URL,
		StoreURL:   "file://" + path,
		Logger:     logger.Discard(),
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer reopened.Close()
	if got := reopened.Session.Current(); got.UserID() != 7 || got.AccessCredential != "tok1" {
		t.Errorf("restored session = %+v", got)
	}
}

func TestClient_LogoutResetsCaches(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(t, api, storage.NewMemoryStore())
	ctx := context.Background()

	if _, err := c.Auth.Login(ctx, "a@example.com", "secret"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if err := c.Donations.Mine.EnsureLoaded(ctx); err != nil {
		t.Fatalf("EnsureLoaded returned error: %v", err)
	}
	if snap := c.Donations.Mine.Snapshot(); !snap.Loaded || len(snap.Items) != 1 {
		t.Fatalf("snapshot before logout = %+v", snap)
	}

	if err := c.Auth.Logout(ctx); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	snap := c.Donations.Mine.Snapshot()
	if snap.Loaded || len(snap.Items) != 0 {
		t.Errorf("snapshot after logout = %+v, want reset", snap)
	}
}

func TestClient_RenewalKeepsCaches(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(t, api, storage.NewMemoryStore())
	ctx := context.Background()

	if _, err := c.Auth.Login(ctx, "a@example.com", "secret"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if err := c.Campaigns.Active.EnsureLoaded(ctx); err != nil {
		t.Fatalf("EnsureLoaded returned error: %v", err)
	}

	api.expireTokens(true)
	if err := c.Donations.Mine.Reload(ctx); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if got := c.Session.Current().AccessCredential; got != "tok2" {
		t.Errorf("access = %q, want tok2", got)
	}
	if !c.Campaigns.Active.Snapshot().Loaded {
		t.Error("credential renewal for the same user must not reset caches")
	}
}

func TestClient_ForcedLogoutResetsCaches(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(t, api, storage.NewMemoryStore())
	ctx := context.Background()

	if _, err := c.Auth.Login(ctx, "a@example.com", "secret"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if err := c.Campaigns.Active.EnsureLoaded(ctx); err != nil {
		t.Fatalf("EnsureLoaded returned error: %v", err)
	}

	api.expireTokens(false)
	err := c.Donations.Mine.EnsureLoaded(ctx)
	if !model.IsCategory(err, model.CategoryUnauthenticated) {
		t.Fatalf("err = %v, want unauthenticated", err)
	}
	if c.Session.Current().Authenticated() {
		t.Error("session should be cleared after renewal failure")
	}
	if c.Campaigns.Active.Snapshot().Loaded {
		t.Error("caches should be reset after forced logout")
	}
}

func TestClient_SwitchingUserResetsCaches(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(t, api, storage.NewMemoryStore())
	ctx := context.Background()

	if _, err := c.Auth.Login(ctx, "a@example.com", "secret"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if err := c.Donations.Mine.EnsureLoaded(ctx); err != nil {
		t.Fatalf("EnsureLoaded returned error: %v", err)
	}

	if _, err := c.Auth.Login(ctx, "other@example.com", "secret"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if c.Donations.Mine.Snapshot().Loaded {
		t.Error("caches of the previous user should be reset")
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(t, api, storage.NewMemoryStore())
	if err := c.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
}
