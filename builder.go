package goBlog

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goBlog/api"
	internalaudit "github.com/MrEthical07/goBlog/internal/audit"
	"github.com/MrEthical07/goBlog/session"
)

// Builder assembles a [Portal].
//
// Builder instances are intended to be configured during initialization and
// used for exactly one Build.
type Builder struct {
	config     Config
	persister  session.Persister
	redis      redis.UniversalClient
	httpClient *http.Client
	logger     *slog.Logger
	auditSink  AuditSink
	now        func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithPersister sets persisted storage directly, overriding Storage.Backend.
func (b *Builder) WithPersister(p session.Persister) *Builder {
	b.persister = p
	return b
}

// WithRedis supplies the client used by the redis backend. Without it Build
// connects to Storage.RedisAddr itself and the portal closes that client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient sets the HTTP client used for API calls. APIConfig.Timeout
// is ignored when one is given.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithLogger sets the logger. slog.Default is used otherwise.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets where audit events go when Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces time.Now for guard expiry checks and audit timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the API latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns the portal. A Builder can
// build once; later calls return [ErrBuilderUsed].
func (b *Builder) Build() (*Portal, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	p := &Portal{
		config:    cfg,
		store:     session.NewStore(),
		sanitizer: api.NewSanitizer(),
		tracker:   api.NewTracker(),
		validate:  newValidator(),
		logger:    logger,
		metrics:   NewMetrics(cfg.Metrics),
		now:       now,
	}

	// -------- PERSISTED STORAGE --------
	persister, err := b.buildPersister(p)
	if err != nil {
		return nil, err
	}
	p.persister = persister

	// -------- API CLIENT --------
	client, err := api.NewClient(api.ClientConfig{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.Timeout,
		UserAgent:         cfg.API.UserAgent,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
		HTTPClient:        b.httpClient,
		Tokens:            p.store,
		Logger:            logger,
		Observer:          p.observeAPI,
	})
	if err != nil {
		if p.ownedRedis != nil {
			_ = p.ownedRedis.Close()
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	p.client = client

	// -------- AUDIT --------
	p.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, now)

	b.built = true
	return p, nil
}

func (b *Builder) buildPersister(p *Portal) (session.Persister, error) {
	if b.persister != nil {
		return b.persister, nil
	}

	cfg := b.config.Storage
	switch cfg.Backend {
	case StorageFile:
		fp, err := session.NewFilePersister(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return fp, nil
	case StorageRedis:
		client := b.redis
		if client == nil {
			client = redis.NewClient(&redis.Options{
				Addr: cfg.RedisAddr,
				DB:   cfg.RedisDB,
			})
			p.ownedRedis = client
		}
		return session.NewRedisPersister(client, cfg.RedisPrefix, cfg.RedisTTL), nil
	default:
		return session.NewMemoryPersister(), nil
	}
}
