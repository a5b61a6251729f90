package goBlog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goBlog/jwt"
	"github.com/MrEthical07/goBlog/session"
)

// DecisionKind is the outcome of one guard evaluation.
type DecisionKind uint8

const (
	// RedirectToLogin sends the viewer to the login view.
	RedirectToLogin DecisionKind = iota
	// Allow renders the protected view with the token already in the store.
	Allow
	// ReconcileAndAllow copies the persisted token into the store, then renders.
	ReconcileAndAllow
)

func (k DecisionKind) String() string {
	switch k {
	case Allow:
		return "allow"
	case ReconcileAndAllow:
		return "reconcile_and_allow"
	case RedirectToLogin:
		return "redirect_to_login"
	default:
		return fmt.Sprintf("decision(%d)", uint8(k))
	}
}

// DecisionReason explains a [Decision].
type DecisionReason string

const (
	ReasonValid     DecisionReason = "valid"
	ReasonNoToken   DecisionReason = "no_token"
	ReasonMalformed DecisionReason = "malformed"
	ReasonExpired   DecisionReason = "expired"
)

// ExpiredPolicy decides how the guard treats a token whose expiry has passed.
type ExpiredPolicy uint8

const (
	// ExpiredRedirect sends expired tokens to login.
	ExpiredRedirect ExpiredPolicy = iota
	// ExpiredAllow lets expired tokens through and marks the session
	// authenticated. Such decisions carry Expired=true and are counted.
	ExpiredAllow
)

func (p ExpiredPolicy) String() string {
	switch p {
	case ExpiredRedirect:
		return "redirect"
	case ExpiredAllow:
		return "allow"
	default:
		return fmt.Sprintf("expired_policy(%d)", uint8(p))
	}
}

// ParseExpiredPolicy accepts "redirect" or "allow", case-insensitively.
func ParseExpiredPolicy(s string) (ExpiredPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "redirect":
		return ExpiredRedirect, nil
	case "allow":
		return ExpiredAllow, nil
	}
	return 0, fmt.Errorf("%w: unknown expired policy %q", ErrInvalidConfig, s)
}

// GuardPolicy is the part of the configuration the pure evaluation needs.
type GuardPolicy struct {
	Expired ExpiredPolicy
	Leeway  time.Duration
}

// Decision is the result of [EvaluateTokens].
type Decision struct {
	Kind   DecisionKind
	Reason DecisionReason

	// Reconcile is set when the store had no token and a persisted one was
	// found. Token is then the persisted value to adopt, whatever Kind is.
	Reconcile bool
	Token     string

	// Expired is set when the effective token's expiry has passed.
	Expired bool

	// Claims holds the decoded token when decoding succeeded.
	Claims *jwt.Claims
}

// Allowed reports whether the protected view may render.
func (d Decision) Allowed() bool {
	return d.Kind == Allow || d.Kind == ReconcileAndAllow
}

// EvaluateTokens decides whether a protected view may render. It is pure:
// reconciliation is reported, not applied.
//
// The effective token is the store token, or the persisted one when the
// store has none. No token and undecodable tokens always redirect. An
// expired token redirects unless policy.Expired is [ExpiredAllow].
func EvaluateTokens(storeToken, persistedToken string, now time.Time, policy GuardPolicy) Decision {
	storeToken = session.NormalizeToken(storeToken)
	persistedToken = session.NormalizeToken(persistedToken)

	var d Decision
	effective := storeToken
	if effective == "" && persistedToken != "" {
		effective = persistedToken
		d.Reconcile = true
		d.Token = persistedToken
	}
	if effective == "" {
		d.Kind = RedirectToLogin
		d.Reason = ReasonNoToken
		return d
	}

	claims, err := jwt.Decode(effective)
	if err != nil {
		d.Kind = RedirectToLogin
		d.Reason = ReasonMalformed
		return d
	}
	d.Claims = claims
	d.Reason = ReasonValid

	if claims.Expired(now, policy.Leeway) {
		d.Expired = true
		d.Reason = ReasonExpired
		if policy.Expired != ExpiredAllow {
			d.Kind = RedirectToLogin
			return d
		}
	}

	if d.Reconcile {
		d.Kind = ReconcileAndAllow
	} else {
		d.Kind = Allow
	}
	return d
}

// Evaluate runs the guard against the portal's store and persisted storage.
//
// Reconciliation is applied to the store before Evaluate returns, so a view
// rendered on an allow decision always sees the token. The store's
// authenticated flag follows the decision. A failed persisted-storage read
// is logged and treated as no persisted token.
func (p *Portal) Evaluate(ctx context.Context) Decision {
	storeToken := p.store.Token()

	var persisted string
	if storeToken == "" {
		v, ok, err := p.persister.Get(ctx, session.KeyToken)
		switch {
		case err != nil:
			p.metrics.Inc(MetricStorageReadFailure)
			p.logger.Warn("guard: persisted token unreadable",
				slog.String("error", err.Error()))
		case ok:
			persisted = v
		}
	}

	d := EvaluateTokens(storeToken, persisted, p.now(), p.policy())

	if d.Reconcile {
		p.store.AdoptToken(d.Token)
	}
	p.store.SetAuthenticated(d.Allowed())

	switch d.Kind {
	case Allow:
		p.metrics.Inc(MetricGuardAllow)
	case ReconcileAndAllow:
		p.metrics.Inc(MetricGuardReconcile)
	case RedirectToLogin:
		p.metrics.Inc(MetricGuardRedirect)
	}
	if d.Reason == ReasonMalformed {
		p.metrics.Inc(MetricTokenDecodeFailure)
		p.logger.Debug("guard: token could not be decoded")
	}
	if d.Expired && d.Allowed() {
		p.metrics.Inc(MetricGuardExpiredAllowed)
		p.logger.Warn("guard: allowing expired token",
			slog.Time("expired_at", d.Claims.ExpiresAt),
			slog.Bool("has_expiry", d.Claims.HasExpiry))
	}

	if d.Kind == ReconcileAndAllow && p.config.Guard.FetchViewerOnReconcile {
		if snap := p.store.Snapshot(); snap.Viewer == nil {
			p.fetchViewer(ctx)
		}
	}

	meta := map[string]string{
		"reason":    string(d.Reason),
		"reconcile": fmt.Sprintf("%t", d.Reconcile),
	}
	if route := routeFromContext(ctx); route != "" {
		meta["route"] = route
	}
	p.emitAudit(ctx, AuditEvent{
		EventType: EventGuardDecision,
		ViewerID:  p.store.Snapshot().ViewerID(),
		Decision:  d.Kind.String(),
		Success:   d.Allowed(),
		Metadata:  meta,
	})
	return d
}

func (p *Portal) policy() GuardPolicy {
	return GuardPolicy{
		Expired: p.config.Guard.Expired,
		Leeway:  p.config.Guard.Leeway,
	}
}

// fetchViewer loads the token owner's profile into the store. Failures are
// logged and leave the store unchanged.
func (p *Portal) fetchViewer(ctx context.Context) {
	raw, err := p.client.ViewerDetails(ctx)
	if err != nil {
		p.metrics.Inc(MetricViewerFetchFailure)
		p.logger.Warn("guard: viewer details unavailable",
			slog.String("error", err.Error()))
		return
	}
	p.store.SetViewer(raw)
}

// GuardState is the lifecycle of one protected-view mount.
type GuardState uint8

const (
	// Initializing is the state before the first evaluation. Protected content
	// must not render.
	Initializing GuardState = iota
	// Authenticated means the view may render.
	Authenticated
	// Redirecting means the viewer is being sent to login.
	Redirecting
)

func (s GuardState) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Authenticated:
		return "authenticated"
	case Redirecting:
		return "redirecting"
	default:
		return fmt.Sprintf("guard_state(%d)", uint8(s))
	}
}

// GuardMount tracks one mount of a protected view. It starts in
// [Initializing] and moves to a terminal state on the first [GuardMount.Resolve].
type GuardMount struct {
	portal *Portal

	mu       sync.Mutex
	state    GuardState
	decision Decision
}

// Mount starts a protected-view mount.
func (p *Portal) Mount() *GuardMount {
	return &GuardMount{portal: p}
}

// State returns the current state.
func (m *GuardMount) State() GuardState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Decision returns the decision that resolved the mount, and false while
// still initializing.
func (m *GuardMount) Decision() (Decision, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decision, m.state != Initializing
}

// Resolve evaluates the guard once. Later calls return the first result.
func (m *GuardMount) Resolve(ctx context.Context) GuardState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Initializing {
		return m.state
	}

	m.decision = m.portal.Evaluate(ctx)
	if m.decision.Allowed() {
		m.state = Authenticated
	} else {
		m.state = Redirecting
	}
	return m.state
}

// View is protected content. It receives the session as it stood right
// after the guard allowed it.
type View func(ctx context.Context, s session.Session) error

// Protect mounts, resolves, and runs view only when the mount is
// authenticated. Otherwise it returns [ErrLoginRequired] without calling view.
func (p *Portal) Protect(ctx context.Context, view View) error {
	m := p.Mount()
	if m.Resolve(ctx) != Authenticated {
		return ErrLoginRequired
	}
	if view == nil {
		return nil
	}
	return view(ctx, p.store.Snapshot())
}
