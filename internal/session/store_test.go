package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/donorlink/internal/model"
	"github.com/hitoshi/donorlink/internal/storage"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// failingStorage は書き込み・削除を失敗させるストア。
type failingStorage struct {
	*storage.MemoryStore
	putErr    error
	deleteErr error
}

func (f *failingStorage) Put(ctx context.Context, entries map[string]string) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.MemoryStore.Put(ctx, entries)
}

func (f *failingStorage) Delete(ctx context.Context, keys ...string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MemoryStore.Delete(ctx, keys...)
}

func seed(t *testing.T, st storage.Store, entries map[string]string) {
	t.Helper()
	if err := st.Put(context.Background(), entries); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func assertAbsent(t *testing.T, st storage.Store, keys ...string) {
	t.Helper()
	for _, k := range keys {
		if _, ok, _ := st.Get(context.Background(), k); ok {
			t.Errorf("storage key %s should have been purged", k)
		}
	}
}

func TestNew_RestoresValidSession(t *testing.T) {
	st := storage.NewMemoryStore()
	seed(t, st, map[string]string{
		storage.KeyCurrentUser:  `{"id":7,"email":"a@b.com","userType":"ASSOCIATION"}`,
		storage.KeyAuthToken:    "tok1",
		storage.KeyRefreshToken: "r1",
	})

	s := New(context.Background(), st, newTestLogger(&bytes.Buffer{}))
	cur := s.Current()

	if !cur.Authenticated() {
		t.Fatal("expected restored session to be authenticated")
	}
	if cur.User.ID != 7 || cur.User.Role != model.RoleAssociation {
		t.Errorf("user = %+v, want id 7 ASSOCIATION", cur.User)
	}
	if cur.AccessCredential != "tok1" || cur.RenewalCredential != "r1" {
		t.Errorf("credentials = (%q, %q), want (tok1, r1)", cur.AccessCredential, cur.RenewalCredential)
	}
}

func TestNew_SentinelValuesAreTreatedAsAbsent(t *testing.T) {
	tests := []struct {
		name    string
		entries map[string]string
	}{
		{
			name: "user undefined",
			entries: map[string]string{
				storage.KeyCurrentUser: "undefined",
				storage.KeyAuthToken:   "tok1",
			},
		},
		{
			name: "token null",
			entries: map[string]string{
				storage.KeyCurrentUser: `{"id":7,"email":"a@b.com","userType":"CITIZEN"}`,
				storage.KeyAuthToken:   "null",
			},
		},
		{
			name: "user unparsable",
			entries: map[string]string{
				storage.KeyCurrentUser:  `{"id":`,
				storage.KeyAuthToken:    "tok1",
				storage.KeyRefreshToken: "r1",
			},
		},
		{
			name: "user without id",
			entries: map[string]string{
				storage.KeyCurrentUser: `{"email":"a@b.com"}`,
				storage.KeyAuthToken:   "tok1",
			},
		},
		{
			name: "token missing",
			entries: map[string]string{
				storage.KeyCurrentUser:  `{"id":7,"email":"a@b.com","userType":"CITIZEN"}`,
				storage.KeyRefreshToken: "r1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := storage.NewMemoryStore()
			seed(t, st, tt.entries)

			s := New(context.Background(), st, newTestLogger(&bytes.Buffer{}))
			cur := s.Current()

			if cur.User != nil || cur.AccessCredential != "" || cur.RenewalCredential != "" {
				t.Errorf("expected absent session, got %+v", cur)
			}
			assertAbsent(t, st, storage.SessionKeys...)
		})
	}
}

func TestNew_SentinelRenewalCredentialIsPurgedButSessionKept(t *testing.T) {
	st := storage.NewMemoryStore()
	seed(t, st, map[string]string{
		storage.KeyCurrentUser:  `{"id":7,"email":"a@b.com","userType":"CITIZEN"}`,
		storage.KeyAuthToken:    "tok1",
		storage.KeyRefreshToken: "undefined",
	})

	s := New(context.Background(), st, newTestLogger(&bytes.Buffer{}))
	cur := s.Current()

	if !cur.Authenticated() {
		t.Fatal("expected session to survive without renewal credential")
	}
	if cur.RenewalCredential != "" {
		t.Errorf("renewal = %q, want empty", cur.RenewalCredential)
	}
	assertAbsent(t, st, storage.KeyRefreshToken)
}

func TestNew_EmptyStorageStartsLoggedOut(t *testing.T) {
	s := New(context.Background(), storage.NewMemoryStore(), newTestLogger(&bytes.Buffer{}))
	if s.Current().Authenticated() {
		t.Error("expected absent session")
	}
}

func TestLogin_PersistsThenPublishes(t *testing.T) {
	st := storage.NewMemoryStore()
	s := New(context.Background(), st, newTestLogger(&bytes.Buffer{}))

	var seen []model.Session
	unsubscribe := s.Subscribe(func(sess model.Session) { seen = append(seen, sess) })
	defer unsubscribe()

	user := model.UserIdentity{ID: 7, Email: "a@b.com", Role: model.RoleAssociation}
	if err := s.Login(context.Background(), user, "tok1", "r1"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	cur := s.Current()
	if cur.User == nil || cur.User.ID != 7 || cur.AccessCredential != "tok1" {
		t.Fatalf("session after login = %+v", cur)
	}
	if len(seen) != 2 || !seen[1].Authenticated() {
		t.Errorf("subscriber saw %d emissions, want replay + login", len(seen))
	}

	for key, want := range map[string]string{storage.KeyAuthToken: "tok1", storage.KeyRefreshToken: "r1"} {
		if v, _, _ := st.Get(context.Background(), key); v != want {
			t.Errorf("stored %s = %q, want %q", key, v, want)
		}
	}

	restored := New(context.Background(), st, newTestLogger(&bytes.Buffer{}))
	if restored.Current().User == nil || restored.Current().User.Email != "a@b.com" {
		t.Errorf("restored user = %+v", restored.Current().User)
	}
}

func TestLogin_WithoutRenewalClearsPreviousRenewal(t *testing.T) {
	st := storage.NewMemoryStore()
	seed(t, st, map[string]string{storage.KeyRefreshToken: "old"})
	s := New(context.Background(), st, newTestLogger(&bytes.Buffer{}))

	if err := s.Login(context.Background(), model.UserIdentity{ID: 1, Email: "x@y.z"}, "tok", ""); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	assertAbsent(t, st, storage.KeyRefreshToken)
}

func TestLogin_RejectsIncompleteSession(t *testing.T) {
	s := New(context.Background(), storage.NewMemoryStore(), newTestLogger(&bytes.Buffer{}))

	if err := s.Login(context.Background(), model.UserIdentity{}, "tok", ""); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("err = %v, want ErrInvalidSession", err)
	}
	if err := s.Login(context.Background(), model.UserIdentity{ID: 1}, "", ""); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("err = %v, want ErrInvalidSession", err)
	}
}

func TestLogin_PersistFailureLeavesStateUnchanged(t *testing.T) {
	st := &failingStorage{MemoryStore: storage.NewMemoryStore(), putErr: errors.New("disk full")}
	s := New(context.Background(), st, newTestLogger(&bytes.Buffer{}))

	err := s.Login(context.Background(), model.UserIdentity{ID: 7}, "tok1", "r1")
	if err == nil {
		t.Fatal("expected error")
	}
	if s.Current().Authenticated() {
		t.Error("session must not be published when persisting fails")
	}
}

func TestLogin_ClearFailureLeavesStateUnchanged(t *testing.T) {
	st := &failingStorage{MemoryStore: storage.NewMemoryStore()}
	seed(t, st, map[string]string{storage.KeyRefreshToken: "stale"})
	s := New(context.Background(), st, newTestLogger(&bytes.Buffer{}))

	st.deleteErr = errors.New("io error")
	err := s.Login(context.Background(), model.UserIdentity{ID: 7}, "tok1", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if s.Current().Authenticated() {
		t.Error("session must not be published when the stale refresh token cannot be cleared")
	}
	if _, ok, _ := st.Get(context.Background(), storage.KeyAuthToken); ok {
		t.Error("access token must not be persisted alongside a stale refresh token")
	}

	st.deleteErr = nil
	restored := New(context.Background(), st, newTestLogger(&bytes.Buffer{}))
	if restored.Current().Authenticated() {
		t.Errorf("restored session = %+v, want none", restored.Current())
	}
}

func TestLogout_ClearsAndEmitsOnce(t *testing.T) {
	st := storage.NewMemoryStore()
	s := New(context.Background(), st, newTestLogger(&bytes.Buffer{}))
	if err := s.Login(context.Background(), model.UserIdentity{ID: 7}, "tok1", "r1"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	absent := 0
	unsubscribe := s.Subscribe(func(sess model.Session) {
		if !sess.Authenticated() {
			absent++
		}
	})
	defer unsubscribe()

	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("second Logout returned error: %v", err)
	}

	cur := s.Current()
	if cur.User != nil || cur.AccessCredential != "" {
		t.Errorf("session after logout = %+v", cur)
	}
	if absent != 1 {
		t.Errorf("absent emissions = %d, want 1", absent)
	}
	assertAbsent(t, st, storage.SessionKeys...)
}

func TestLogout_StorageFailureStillClearsMemory(t *testing.T) {
	st := &failingStorage{MemoryStore: storage.NewMemoryStore()}
	s := New(context.Background(), st, newTestLogger(&bytes.Buffer{}))
	if err := s.Login(context.Background(), model.UserIdentity{ID: 7}, "tok1", ""); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	st.deleteErr = errors.New("io error")
	if err := s.Logout(context.Background()); err == nil {
		t.Error("expected storage error to be returned")
	}
	if s.Current().Authenticated() {
		t.Error("memory session must be cleared even when storage fails")
	}
}

func TestUpdateCredentials_KeepsUser(t *testing.T) {
	st := storage.NewMemoryStore()
	s := New(context.Background(), st, newTestLogger(&bytes.Buffer{}))
	user := model.UserIdentity{ID: 7, Email: "a@b.com", Role: model.RoleAssociation}
	if err := s.Login(context.Background(), user, "tok1", "r1"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if err := s.UpdateCredentials(context.Background(), s.Current(), "tok2", ""); err != nil {
		t.Fatalf("UpdateCredentials returned error: %v", err)
	}

	cur := s.Current()
	if cur.AccessCredential != "tok2" {
		t.Errorf("access = %q, want tok2", cur.AccessCredential)
	}
	if cur.RenewalCredential != "r1" {
		t.Errorf("renewal = %q, want r1 kept", cur.RenewalCredential)
	}
	if cur.User == nil || *cur.User != user {
		t.Errorf("user = %+v, want %+v", cur.User, user)
	}
	if v, _, _ := st.Get(context.Background(), storage.KeyAuthToken); v != "tok2" {
		t.Errorf("stored token = %q, want tok2", v)
	}

	if err := s.UpdateCredentials(context.Background(), s.Current(), "tok3", "r2"); err != nil {
		t.Fatalf("UpdateCredentials returned error: %v", err)
	}
	if s.RenewalCredential() != "r2" {
		t.Errorf("renewal = %q, want rotated r2", s.RenewalCredential())
	}
}

func TestUpdateCredentials_AfterLogoutFails(t *testing.T) {
	s := New(context.Background(), storage.NewMemoryStore(), newTestLogger(&bytes.Buffer{}))

	held := model.Session{User: &model.UserIdentity{ID: 7}, AccessCredential: "tok1", RenewalCredential: "r1"}
	if err := s.UpdateCredentials(context.Background(), held, "tok2", ""); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
	if s.Current().Authenticated() {
		t.Error("credential update must not resurrect a session")
	}
}

func TestUpdateCredentials_RejectsReplacedSession(t *testing.T) {
	tests := []struct {
		name    string
		user    model.UserIdentity
		renewal string
	}{
		{"別ユーザーがログインしている", model.UserIdentity{ID: 99}, "rB"},
		{"同じユーザーが再ログインしている", model.UserIdentity{ID: 7}, "r9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := storage.NewMemoryStore()
			s := New(context.Background(), st, newTestLogger(&bytes.Buffer{}))
			if err := s.Login(context.Background(), model.UserIdentity{ID: 7}, "tokA", "rA"); err != nil {
				t.Fatalf("Login returned error: %v", err)
			}
			held := s.Current()

			if err := s.Login(context.Background(), tt.user, "tokB", tt.renewal); err != nil {
				t.Fatalf("Login returned error: %v", err)
			}
			if err := s.UpdateCredentials(context.Background(), held, "tokA2", "rA2"); !errors.Is(err, ErrNoSession) {
				t.Errorf("err = %v, want ErrNoSession", err)
			}

			cur := s.Current()
			if cur.AccessCredential != "tokB" || cur.RenewalCredential != tt.renewal {
				t.Errorf("session = (%q, %q), want (tokB, %s)", cur.AccessCredential, cur.RenewalCredential, tt.renewal)
			}
			if v, _, _ := st.Get(context.Background(), storage.KeyAuthToken); v != "tokB" {
				t.Errorf("stored token = %q, want tokB", v)
			}
		})
	}
}

func TestExpireSession(t *testing.T) {
	st := storage.NewMemoryStore()
	s := New(context.Background(), st, newTestLogger(&bytes.Buffer{}))
	if err := s.Login(context.Background(), model.UserIdentity{ID: 7}, "tokA", "rA"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	heldA := s.Current()

	t.Run("別のセッションは破棄しない", func(t *testing.T) {
		if err := s.Login(context.Background(), model.UserIdentity{ID: 99}, "tokB", "rB"); err != nil {
			t.Fatalf("Login returned error: %v", err)
		}
		expired, err := s.ExpireSession(context.Background(), heldA)
		if err != nil || expired {
			t.Errorf("ExpireSession = (%v, %v), want (false, nil)", expired, err)
		}
		if s.Current().UserID() != 99 {
			t.Errorf("user = %d, want 99 kept", s.Current().UserID())
		}
	})

	t.Run("同じセッションは破棄する", func(t *testing.T) {
		expired, err := s.ExpireSession(context.Background(), s.Current())
		if err != nil || !expired {
			t.Errorf("ExpireSession = (%v, %v), want (true, nil)", expired, err)
		}
		if s.Current().Authenticated() {
			t.Error("session should be absent")
		}
		assertAbsent(t, st, storage.SessionKeys...)
	})
}

func TestAccessExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "7",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	got := AccessExpiry(token)
	if got == nil || !got.Equal(exp) {
		t.Errorf("AccessExpiry = %v, want %v", got, exp)
	}

	if AccessExpiry("opaque-token") != nil {
		t.Error("expected nil for non-JWT token")
	}
	if AccessExpiry("") != nil {
		t.Error("expected nil for empty token")
	}
}
