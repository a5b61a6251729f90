package goBlog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goBlog/api"
	"github.com/MrEthical07/goBlog/internal/apitest"
	"github.com/MrEthical07/goBlog/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingPersister struct{}

func (failingPersister) Get(context.Context, string) (string, bool, error) {
	return "", false, ErrStorageUnavailable
}

func (failingPersister) Set(context.Context, string, string) error {
	return ErrStorageUnavailable
}

func (failingPersister) Remove(context.Context, string) error {
	return ErrStorageUnavailable
}

type portalFixture struct {
	portal    *Portal
	server    *apitest.Server
	persister *session.MemoryPersister
	viewer    api.Viewer
}

func newPortalFixture(t *testing.T, mutate func(*Config)) *portalFixture {
	t.Helper()
	srv, baseURL := apitest.NewTestServer(t, apitest.Options{Logger: discardLogger()})
	viewer, err := apitest.SeedDemo(srv)
	if err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}

	cfg := DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.API.RequestsPerSecond = 0
	if mutate != nil {
		mutate(&cfg)
	}

	mem := session.NewMemoryPersister()
	p, err := New().
		WithConfig(cfg).
		WithPersister(mem).
		WithLogger(discardLogger()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	return &portalFixture{portal: p, server: srv, persister: mem, viewer: viewer}
}

func (f *portalFixture) login(t *testing.T) {
	t.Helper()
	err := f.portal.Login(context.Background(), api.Credentials{
		Email:    "demo@example.com",
		Password: apitest.DemoPassword,
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func (f *portalFixture) persisted(t *testing.T, key string) (string, bool) {
	t.Helper()
	v, ok, err := f.persister.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get %s: %v", key, err)
	}
	return v, ok
}

func TestBuilderRejectsSecondBuild(t *testing.T) {
	b := New().WithLogger(discardLogger())
	p, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer p.Close()

	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Fatalf("expected ErrBuilderUsed, got %v", err)
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Backend = StorageFile
	if _, err := New().WithConfig(cfg).Build(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestBuilderFileBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Backend = StorageFile
	cfg.Storage.FilePath = t.TempDir() + "/session.json"

	p, err := New().WithConfig(cfg).WithLogger(discardLogger()).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer p.Close()

	if _, ok := p.persister.(*session.FilePersister); !ok {
		t.Fatalf("expected file persister, got %T", p.persister)
	}
}

func TestBootstrapHydratesStore(t *testing.T) {
	f := newPortalFixture(t, nil)
	ctx := context.Background()
	tok, err := f.server.IssueToken(f.viewer, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	viewerJSON, _ := json.Marshal(f.viewer)
	_ = f.persister.Set(ctx, session.KeyToken, tok)
	_ = f.persister.Set(ctx, session.KeyUser, "{not json")
	_ = f.persister.Set(ctx, session.KeyViewer, string(viewerJSON))

	if err := f.portal.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	snap := f.portal.Session()
	if snap.Token != tok {
		t.Fatalf("expected token hydrated")
	}
	if snap.User != nil {
		t.Fatalf("expected unparseable user skipped, got %s", snap.User)
	}
	if snap.ViewerID() != f.viewer.ID {
		t.Fatalf("expected viewer %s, got %s", f.viewer.ID, snap.ViewerID())
	}
}

func TestBootstrapReportsStorageFailure(t *testing.T) {
	f := newPortalFixture(t, nil)
	f.portal.persister = failingPersister{}

	err := f.portal.Bootstrap(context.Background())
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if got := f.portal.Metrics().Value(MetricStorageReadFailure); got != 3 {
		t.Fatalf("expected 3 read failures, got %d", got)
	}
}

func TestLoginMirrorsSessionToStorage(t *testing.T) {
	f := newPortalFixture(t, nil)
	f.login(t)

	snap := f.portal.Session()
	if !snap.HasToken() {
		t.Fatalf("expected token in store")
	}
	if snap.ViewerID() != f.viewer.ID {
		t.Fatalf("expected viewer %s in store, got %q", f.viewer.ID, snap.ViewerID())
	}

	tok, ok := f.persisted(t, session.KeyToken)
	if !ok || tok != snap.Token {
		t.Fatalf("expected persisted token to match store")
	}
	for _, key := range []string{session.KeyUser, session.KeyViewer} {
		v, ok := f.persisted(t, key)
		if !ok || !strings.Contains(v, f.viewer.ID) {
			t.Fatalf("expected %s persisted with viewer id, got %q", key, v)
		}
	}
	if got := f.portal.Metrics().Value(MetricLoginSuccess); got != 1 {
		t.Fatalf("expected 1 login success, got %d", got)
	}

	if d := f.portal.Evaluate(context.Background()); d.Kind != Allow {
		t.Fatalf("expected Allow after login, got %s", d.Kind)
	}
}

func TestLoginRejectsBadInput(t *testing.T) {
	f := newPortalFixture(t, nil)

	tests := []api.Credentials{
		{Email: "", Password: "x"},
		{Email: "not-an-email", Password: "x"},
		{Email: "demo@example.com", Password: ""},
	}
	for _, creds := range tests {
		if err := f.portal.Login(context.Background(), creds); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Login(%+v): expected ErrInvalidCredentials, got %v", creds, err)
		}
	}
	if hits := f.server.Hits(apitest.RouteLogin); hits != 0 {
		t.Fatalf("expected no API calls for invalid input, got %d", hits)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newPortalFixture(t, nil)

	err := f.portal.Login(context.Background(), api.Credentials{Email: "demo@example.com", Password: "wrong-password"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if f.portal.Session().HasToken() {
		t.Fatalf("expected no token after failed login")
	}
	if f.persister.Len() != 0 {
		t.Fatalf("expected nothing persisted after failed login")
	}
	if got := f.portal.Metrics().Value(MetricLoginFailure); got != 1 {
		t.Fatalf("expected 1 login failure, got %d", got)
	}
}

func TestSignupRequiresUsername(t *testing.T) {
	f := newPortalFixture(t, nil)

	err := f.portal.Signup(context.Background(), api.Credentials{Email: "new@example.com", Password: "long-enough-pass"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	err = f.portal.Signup(context.Background(), api.Credentials{
		Email:    "new@example.com",
		Password: "long-enough-pass",
		Username: "newbie",
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if !f.portal.Session().HasToken() {
		t.Fatalf("expected token after signup")
	}
	if got := f.portal.Metrics().Value(MetricSignupSuccess); got != 1 {
		t.Fatalf("expected 1 signup success, got %d", got)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newPortalFixture(t, nil)
	f.login(t)

	for i := 0; i < 2; i++ {
		if err := f.portal.Logout(context.Background()); err != nil {
			t.Fatalf("Logout #%d: %v", i+1, err)
		}
		snap := f.portal.Session()
		if snap.HasToken() || snap.User != nil || snap.Viewer != nil || snap.IsAuthenticated {
			t.Fatalf("expected cleared session after logout #%d, got %+v", i+1, snap)
		}
		if f.persister.Len() != 0 {
			t.Fatalf("expected empty persisted storage after logout #%d", i+1)
		}
	}

	if d := f.portal.Evaluate(context.Background()); d.Kind != RedirectToLogin {
		t.Fatalf("expected redirect after logout, got %s", d.Kind)
	}
}

func TestReconcileFetchesViewer(t *testing.T) {
	f := newPortalFixture(t, nil)
	tok, err := f.server.IssueToken(f.viewer, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	_ = f.persister.Set(context.Background(), session.KeyToken, tok)

	d := f.portal.Evaluate(context.Background())
	if d.Kind != ReconcileAndAllow {
		t.Fatalf("expected ReconcileAndAllow, got %s", d.Kind)
	}
	if got := f.portal.Session().ViewerID(); got != f.viewer.ID {
		t.Fatalf("expected viewer fetched after reconcile, got %q", got)
	}
	if hits := f.server.Hits(apitest.RouteViewerDetails); hits != 1 {
		t.Fatalf("expected one viewer lookup, got %d", hits)
	}
}

func TestReconcileViewerFailureKeepsDecision(t *testing.T) {
	f := newPortalFixture(t, nil)
	tok, _ := f.server.IssueToken(f.viewer, time.Hour)
	_ = f.persister.Set(context.Background(), session.KeyToken, tok)
	f.server.FailNext(apitest.RouteViewerDetails, http.StatusInternalServerError)

	if d := f.portal.Evaluate(context.Background()); d.Kind != ReconcileAndAllow {
		t.Fatalf("expected ReconcileAndAllow, got %s", d.Kind)
	}
	if f.portal.Session().Viewer != nil {
		t.Fatalf("expected no viewer after failed lookup")
	}
	if got := f.portal.Metrics().Value(MetricViewerFetchFailure); got != 1 {
		t.Fatalf("expected 1 viewer fetch failure, got %d", got)
	}
}
