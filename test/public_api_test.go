package test

import (
	"context"
	"net/http"
	"testing"
	"time"

	goBlog "github.com/MrEthical07/goBlog"
	"github.com/MrEthical07/goBlog/api"
	"github.com/MrEthical07/goBlog/jwt"
	"github.com/MrEthical07/goBlog/middleware"
	"github.com/MrEthical07/goBlog/session"
)

// This test guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = goBlog.New
	_ = goBlog.DefaultConfig
	_ = goBlog.EvaluateTokens

	var _ *goBlog.Portal
	var _ *goBlog.Builder
	var _ *goBlog.GuardMount
	var _ goBlog.Config
	var _ goBlog.Decision
	var _ goBlog.GuardPolicy
	var _ goBlog.BlogDetail
	var _ goBlog.View
	var _ goBlog.AuditSink
	var _ session.Persister = session.NewMemoryPersister()
	var _ session.Persister = (*session.FilePersister)(nil)
	var _ session.Persister = (*session.RedisPersister)(nil)

	var _ error = goBlog.ErrLoginRequired
	var _ error = goBlog.ErrInvalidCredentials
	var _ error = goBlog.ErrUnexpectedResponse
	var _ error = goBlog.ErrInvalidConfig
	var _ error = goBlog.ErrStorageUnavailable
	var _ error = jwt.ErrMalformedToken
	var _ error = api.ErrUnauthorized

	var _ func(string) (*jwt.Claims, error) = jwt.Decode
	var _ func(string, string, time.Time, goBlog.GuardPolicy) goBlog.Decision = goBlog.EvaluateTokens

	var _ func(*goBlog.Portal, string) func(http.Handler) http.Handler = middleware.RequireSession
	var _ func(goBlog.GuardPolicy) func(http.Handler) http.Handler = middleware.RequireBearer

	var _ func(*goBlog.Portal, context.Context) error = (*goBlog.Portal).Bootstrap
	var _ func(*goBlog.Portal, context.Context) goBlog.Decision = (*goBlog.Portal).Evaluate
	var _ func(*goBlog.Portal, context.Context, goBlog.View) error = (*goBlog.Portal).Protect
	var _ func(*goBlog.Portal, context.Context, api.Credentials) error = (*goBlog.Portal).Login
	var _ func(*goBlog.Portal, context.Context, api.Credentials) error = (*goBlog.Portal).Signup
	var _ func(*goBlog.Portal, context.Context) error = (*goBlog.Portal).Logout
	var _ func(*goBlog.Portal, context.Context, string) *goBlog.BlogDetail = (*goBlog.Portal).BlogPage
	var _ func(*goBlog.Portal, context.Context, string, int) (float64, error) = (*goBlog.Portal).Rate
}
