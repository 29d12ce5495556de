package transport

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hitoshi/donorlink/internal/model"
)

// mockDoer はbearerごとの応答を返すDoerのモック。
type mockDoer struct {
	mu      sync.Mutex
	bearers []string
	fn      func(call Call, bearer string) (*Response, error)
}

func (m *mockDoer) Dispatch(_ context.Context, call Call, bearer string) (*Response, error) {
	m.mu.Lock()
	m.bearers = append(m.bearers, bearer)
	m.mu.Unlock()
	return m.fn(call, bearer)
}

type staticSession struct{ token string }

func (s staticSession) Current() model.Session {
	return model.Session{AccessCredential: s.token}
}

type mockRenewer struct {
	calls    int
	rejected []string
	fn       func() (string, error)
}

func (m *mockRenewer) RequestRenewal(_ context.Context, rejected string) (string, error) {
	m.calls++
	m.rejected = append(m.rejected, rejected)
	return m.fn()
}

func acceptOnly(valid string) func(Call, string) (*Response, error) {
	return func(_ Call, bearer string) (*Response, error) {
		if bearer != valid {
			return nil, model.NewUnauthenticatedError()
		}
		return &Response{Status: 200, Body: []byte(`ok`)}, nil
	}
}

func newTestPipeline(doer Doer, token string, renewer Renewer) *Pipeline {
	var buf bytes.Buffer
	return NewPipeline(doer, staticSession{token: token}, renewer, newTestLogger(&buf))
}

func TestPipeline_SuccessWithoutRenewal(t *testing.T) {
	doer := &mockDoer{fn: acceptOnly("tok1")}
	renewer := &mockRenewer{fn: func() (string, error) { return "", errors.New("unexpected") }}

	resp, err := newTestPipeline(doer, "tok1", renewer).Do(context.Background(), Get("/api/donations/user/7"))
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("body = %s", resp.Body)
	}
	if renewer.calls != 0 {
		t.Errorf("renewal calls = %d, want 0", renewer.calls)
	}
}

func TestPipeline_RenewsAndRetriesOnce(t *testing.T) {
	doer := &mockDoer{fn: acceptOnly("tok2")}
	renewer := &mockRenewer{fn: func() (string, error) { return "tok2", nil }}

	resp, err := newTestPipeline(doer, "tok1", renewer).Do(context.Background(), Get("/api/donations/user/7"))
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("body = %s", resp.Body)
	}
	if renewer.calls != 1 || renewer.rejected[0] != "tok1" {
		t.Errorf("renewal = %d calls rejected %v, want 1 call with tok1", renewer.calls, renewer.rejected)
	}
	if len(doer.bearers) != 2 || doer.bearers[0] != "tok1" || doer.bearers[1] != "tok2" {
		t.Errorf("bearers = %v, want [tok1 tok2]", doer.bearers)
	}
}

func TestPipeline_SecondUnauthorizedIsTerminal(t *testing.T) {
	doer := &mockDoer{fn: acceptOnly("never")}
	renewer := &mockRenewer{fn: func() (string, error) { return "tok2", nil }}

	_, err := newTestPipeline(doer, "tok1", renewer).Do(context.Background(), Get("/api/x"))
	if !model.IsCategory(err, model.CategoryUnauthenticated) {
		t.Errorf("err = %v, want unauthenticated", err)
	}
	if len(doer.bearers) != 2 {
		t.Errorf("dispatch count = %d, want 2", len(doer.bearers))
	}
	if renewer.calls != 1 {
		t.Errorf("renewal calls = %d, want 1", renewer.calls)
	}
}

func TestPipeline_RenewalFailureSurfaces(t *testing.T) {
	doer := &mockDoer{fn: acceptOnly("never")}
	renewalErr := model.NewSessionExpiredError(errors.New("refresh rejected"))
	renewer := &mockRenewer{fn: func() (string, error) { return "", renewalErr }}

	_, err := newTestPipeline(doer, "tok1", renewer).Do(context.Background(), Get("/api/x"))
	if !errors.Is(err, renewalErr) {
		t.Errorf("err = %v, want renewal error", err)
	}
	if len(doer.bearers) != 1 {
		t.Errorf("dispatch count = %d, want 1 (no retry after failed renewal)", len(doer.bearers))
	}
}

func TestPipeline_NonAuthErrorsPassThrough(t *testing.T) {
	doer := &mockDoer{fn: func(Call, string) (*Response, error) { return nil, model.NewForbiddenError() }}
	renewer := &mockRenewer{fn: func() (string, error) { return "tok2", nil }}

	_, err := newTestPipeline(doer, "tok1", renewer).Do(context.Background(), Get("/api/admin/users"))
	if !model.IsCategory(err, model.CategoryForbidden) {
		t.Errorf("err = %v, want forbidden", err)
	}
	if renewer.calls != 0 {
		t.Errorf("renewal calls = %d, want 0", renewer.calls)
	}
}

func TestPipeline_IdentityCallsBypass(t *testing.T) {
	doer := &mockDoer{fn: func(Call, string) (*Response, error) { return nil, model.NewUnauthenticatedError() }}
	renewer := &mockRenewer{fn: func() (string, error) { return "tok2", nil }}

	_, err := newTestPipeline(doer, "tok1", renewer).Do(context.Background(), Get("/api/auth/login"))
	if !model.IsCategory(err, model.CategoryUnauthenticated) {
		t.Errorf("err = %v, want unauthenticated", err)
	}
	if renewer.calls != 0 {
		t.Errorf("renewal calls = %d, want 0 for identity call", renewer.calls)
	}
	if doer.bearers[0] != "" {
		t.Errorf("identity call carried bearer %q", doer.bearers[0])
	}
}
