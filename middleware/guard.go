package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	goBlog "github.com/MrEthical07/goBlog"
)

type decisionContextKey struct{}

// DecisionFromContext returns the guard decision that admitted the request.
func DecisionFromContext(ctx context.Context) (goBlog.Decision, bool) {
	d, ok := ctx.Value(decisionContextKey{}).(goBlog.Decision)
	return d, ok
}

func withDecision(r *http.Request, d goBlog.Decision) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), decisionContextKey{}, d))
}

// RequireSession runs the portal's guard before every request. A redirect
// decision answers 302 to loginPath, or to the configured Guard.LoginPath
// when loginPath is empty. Allowed requests reach next with the decision in
// their context.
func RequireSession(portal *goBlog.Portal, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if portal == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			target := loginPath
			if target == "" {
				target = portal.Config().Guard.LoginPath
			}

			ctx := goBlog.WithRoute(r.Context(), r.URL.Path)
			m := portal.Mount()
			if m.Resolve(ctx) != goBlog.Authenticated {
				http.Redirect(w, r, target, http.StatusFound)
				return
			}

			decision, _ := m.Decision()
			next.ServeHTTP(w, withDecision(r, decision))
		})
	}
}

// RequireBearer admits requests whose Authorization header carries a token
// the guard would allow, without consulting any session. Rejected requests
// get 401.
func RequireBearer(policy goBlog.GuardPolicy) func(http.Handler) http.Handler {
	return requireBearer(policy, time.Now)
}

func requireBearer(policy goBlog.GuardPolicy, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			d := goBlog.EvaluateTokens(token, "", now(), policy)
			if !d.Allowed() {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, withDecision(r, d))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
