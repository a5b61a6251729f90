package goBlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goBlog/api"
	internalaudit "github.com/MrEthical07/goBlog/internal/audit"
	"github.com/MrEthical07/goBlog/session"
)

// Portal is the blog portal client: one viewer session, its persisted
// storage, the guard in front of protected views, and the remote API.
//
// A Portal is safe for concurrent use after [Builder.Build].
type Portal struct {
	config    Config
	store     *session.Store
	persister session.Persister
	client    *api.Client
	sanitizer *api.Sanitizer
	tracker   *api.Tracker
	validate  *validator.Validate
	logger    *slog.Logger
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	now       func() time.Time

	// ownedRedis is closed by Close when Build created it.
	ownedRedis redis.UniversalClient
}

// Config returns a copy of the configuration the portal was built with.
func (p *Portal) Config() Config {
	return p.config
}

// Metrics returns the portal's counters.
func (p *Portal) Metrics() *Metrics {
	return p.metrics
}

// Client returns the remote API client.
func (p *Portal) Client() *api.Client {
	return p.client
}

// Session returns a snapshot of the session state.
func (p *Portal) Session() session.Session {
	return p.store.Snapshot()
}

// Close drains pending audit events and releases a Redis client created by
// Build. It is safe to call more than once.
func (p *Portal) Close() error {
	p.audit.Close()
	if p.ownedRedis != nil {
		err := p.ownedRedis.Close()
		p.ownedRedis = nil
		if err != nil && !errors.Is(err, redis.ErrClosed) {
			return err
		}
	}
	return nil
}

func (p *Portal) emitAudit(ctx context.Context, event AuditEvent) {
	p.audit.Emit(ctx, event)
}

func (p *Portal) observeAPI(_ string, elapsed time.Duration, err error) {
	p.metrics.Observe(MetricAPILatency, elapsed)
	if err != nil {
		p.metrics.Inc(MetricAPIFailure)
	}
}

/*
====================================
BOOTSTRAP
====================================
*/

// Bootstrap loads the persisted token, user and viewer into the store. It
// runs once when the portal starts, before any guard evaluation.
//
// Records that are not valid JSON are logged and skipped. Read failures are
// returned joined; whatever could be read is still applied.
func (p *Portal) Bootstrap(ctx context.Context) error {
	var (
		from session.Session
		errs []error
	)

	read := func(key string) (string, bool) {
		v, ok, err := p.persister.Get(ctx, key)
		if err != nil {
			p.metrics.Inc(MetricStorageReadFailure)
			errs = append(errs, fmt.Errorf("read %s: %w", key, err))
			return "", false
		}
		return v, ok
	}

	if v, ok := read(session.KeyToken); ok {
		from.Token = v
	}
	if v, ok := read(session.KeyUser); ok {
		from.User = p.record(session.KeyUser, v)
	}
	if v, ok := read(session.KeyViewer); ok {
		from.Viewer = p.record(session.KeyViewer, v)
	}

	p.store.Hydrate(from)

	err := errors.Join(errs...)
	event := AuditEvent{
		EventType: EventBootstrap,
		ViewerID:  p.store.Snapshot().ViewerID(),
		Success:   err == nil,
	}
	if err != nil {
		event.Error = err.Error()
		p.logger.Warn("bootstrap: persisted storage unreadable", slog.String("error", err.Error()))
	}
	p.emitAudit(ctx, event)
	return err
}

func (p *Portal) record(key, value string) json.RawMessage {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if !json.Valid([]byte(value)) {
		p.logger.Warn("bootstrap: skipping unparseable record", slog.String("key", key))
		return nil
	}
	return json.RawMessage(value)
}

/*
====================================
LOGIN / SIGNUP / LOGOUT
====================================
*/

// Login authenticates creds against the API and, on success, stores the
// token, user and viewer and mirrors them to persisted storage.
//
// Input that fails validation and credentials the API rejects both return
// an error wrapping [ErrInvalidCredentials]. A response without viewer or
// token returns [ErrUnexpectedResponse].
func (p *Portal) Login(ctx context.Context, creds api.Credentials) error {
	creds = normalizeCredentials(creds)
	creds.Username = ""
	if err := p.validateCredentials(creds, false); err != nil {
		return p.authFailed(ctx, EventLogin, err)
	}

	resp, err := p.client.Login(ctx, creds)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			err = fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		return p.authFailed(ctx, EventLogin, err)
	}
	return p.authSucceeded(ctx, EventLogin, resp)
}

// Signup registers a viewer and signs them in the same way as [Portal.Login].
// A username is required.
func (p *Portal) Signup(ctx context.Context, creds api.Credentials) error {
	creds = normalizeCredentials(creds)
	if err := p.validateCredentials(creds, true); err != nil {
		return p.authFailed(ctx, EventSignup, err)
	}

	resp, err := p.client.Signup(ctx, creds)
	if err != nil {
		return p.authFailed(ctx, EventSignup, err)
	}
	return p.authSucceeded(ctx, EventSignup, resp)
}

// Logout drops the token, user and viewer from the store and from persisted
// storage. Logging out twice is harmless.
func (p *Portal) Logout(ctx context.Context) error {
	viewerID := p.store.Snapshot().ViewerID()

	p.store.ClearToken()
	p.store.SetUser(nil)
	p.store.SetViewer(nil)

	var errs []error
	for _, key := range []string{session.KeyToken, session.KeyUser, session.KeyViewer} {
		if err := p.persister.Remove(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	err := errors.Join(errs...)

	p.metrics.Inc(MetricLogout)
	event := AuditEvent{EventType: EventLogout, ViewerID: viewerID, Success: err == nil}
	if err != nil {
		event.Error = err.Error()
		p.logger.Error("logout: persisted session not cleared", slog.String("error", err.Error()))
	}
	p.emitAudit(ctx, event)
	return err
}

func normalizeCredentials(c api.Credentials) api.Credentials {
	c.Email = strings.TrimSpace(c.Email)
	c.Username = strings.TrimSpace(c.Username)
	return c
}

func (p *Portal) validateCredentials(c api.Credentials, signup bool) error {
	if err := p.validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, describeValidation(err))
	}
	if signup {
		if err := p.validate.Var(c.Username, "required"); err != nil {
			return fmt.Errorf("%w: username is required", ErrInvalidCredentials)
		}
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "email":
			parts = append(parts, fe.Field()+" is not a valid email address")
		case "max":
			parts = append(parts, fe.Field()+" is longer than "+fe.Param()+" characters")
		default:
			parts = append(parts, fe.Field()+" is invalid")
		}
	}
	return strings.Join(parts, ", ")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func (p *Portal) authSucceeded(ctx context.Context, eventType string, resp *api.AuthResponse) error {
	if !resp.Complete() {
		return p.authFailed(ctx, eventType, ErrUnexpectedResponse)
	}

	p.store.SetUser(resp.Viewer)
	p.store.SetToken(resp.Token)
	p.store.SetViewer(resp.Viewer)

	var errs []error
	for _, kv := range [...]struct{ key, value string }{
		{session.KeyToken, session.NormalizeToken(resp.Token)},
		{session.KeyUser, string(resp.Viewer)},
		{session.KeyViewer, string(resp.Viewer)},
	} {
		if err := p.persister.Set(ctx, kv.key, kv.value); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", kv.key, err))
		}
	}

	viewerID := p.store.Snapshot().ViewerID()
	if eventType == EventSignup {
		p.metrics.Inc(MetricSignupSuccess)
	} else {
		p.metrics.Inc(MetricLoginSuccess)
	}
	p.emitAudit(ctx, AuditEvent{EventType: eventType, ViewerID: viewerID, Success: true})

	if err := errors.Join(errs...); err != nil {
		p.logger.Error(eventType+": session not persisted",
			slog.String("viewer_id", viewerID),
			slog.String("error", err.Error()))
		return err
	}
	p.logger.Info(eventType+": viewer signed in", slog.String("viewer_id", viewerID))
	return nil
}

func (p *Portal) authFailed(ctx context.Context, eventType string, err error) error {
	if eventType == EventSignup {
		p.metrics.Inc(MetricSignupFailure)
	} else {
		p.metrics.Inc(MetricLoginFailure)
	}
	p.logger.Warn(eventType+" failed", slog.String("error", err.Error()))
	p.emitAudit(ctx, AuditEvent{EventType: eventType, Success: false, Error: err.Error()})
	return err
}

// MetricsSnapshot copies the current counters for exporters.
func (p *Portal) MetricsSnapshot() MetricsSnapshot {
	return p.metrics.Snapshot()
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (p *Portal) AuditDropped() uint64 {
	return p.audit.Dropped()
}
