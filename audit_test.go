package goBlog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goBlog/api"
	"github.com/MrEthical07/goBlog/internal/apitest"
)

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	return &captureSink{events: make(chan AuditEvent, buffer)}
}

func (s *captureSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *captureSink) collect(t *testing.T, n int) []AuditEvent {
	t.Helper()
	out := make([]AuditEvent, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case ev := <-s.events:
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("expected %d audit events, got %d", n, len(out))
		}
	}
	return out
}

func auditConfig(c *Config) {
	c.Audit.Enabled = true
	c.Audit.BufferSize = 32
	c.Audit.DropIfFull = false
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := newCaptureSink(8)
	cfg := DefaultConfig()
	cfg.Audit.Enabled = false

	p, err := New().WithConfig(cfg).WithAuditSink(sink).WithLogger(discardLogger()).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer p.Close()

	p.Evaluate(context.Background())
	_ = p.Logout(context.Background())

	select {
	case ev := <-sink.events:
		t.Fatalf("expected no audit events when disabled, got %+v", ev)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestAuditLoginAndLogoutEvents(t *testing.T) {
	srv, baseURL := apitest.NewTestServer(t, apitest.Options{Logger: discardLogger()})
	viewer, err := apitest.SeedDemo(srv)
	if err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}

	cfg := DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.API.RequestsPerSecond = 0
	auditConfig(&cfg)

	sink := newCaptureSink(32)
	p, err := New().WithConfig(cfg).WithAuditSink(sink).WithLogger(discardLogger()).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer p.Close()

	ctx := context.Background()
	_ = p.Login(ctx, api.Credentials{Email: "demo@example.com", Password: "wrong-password"})
	if err := p.Login(ctx, api.Credentials{Email: "demo@example.com", Password: apitest.DemoPassword}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	token := p.Session().Token
	if err := p.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	events := sink.collect(t, 3)
	if events[0].EventType != EventLogin || events[0].Success {
		t.Fatalf("expected failed login first, got %+v", events[0])
	}
	if events[1].EventType != EventLogin || !events[1].Success || events[1].ViewerID != viewer.ID {
		t.Fatalf("expected successful login for %s, got %+v", viewer.ID, events[1])
	}
	if events[2].EventType != EventLogout || events[2].ViewerID != viewer.ID {
		t.Fatalf("expected logout for %s, got %+v", viewer.ID, events[2])
	}

	secrets := []string{"wrong-password", apitest.DemoPassword, token}
	for _, ev := range events {
		for _, secret := range secrets {
			if strings.Contains(ev.Error, secret) {
				t.Fatalf("secret leaked in audit error: %q", ev.Error)
			}
			for k, v := range ev.Metadata {
				if strings.Contains(k, secret) || strings.Contains(v, secret) {
					t.Fatalf("secret leaked in audit metadata")
				}
			}
		}
	}
}
