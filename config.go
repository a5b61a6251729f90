package goBlog

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the full portal configuration. Build a value with
// [DefaultConfig], override fields, and hand it to [Builder.WithConfig].
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	API     APIConfig
	Storage StorageConfig
	Guard   GuardConfig
	Content ContentConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig configures the remote blog API client.
type APIConfig struct {
	BaseURL           string
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageBackend selects the persisted-storage implementation.
type StorageBackend string

const (
	// StorageMemory keeps persisted keys in process memory.
	StorageMemory StorageBackend = "memory"
	// StorageFile keeps persisted keys in a JSON file.
	StorageFile StorageBackend = "file"
	// StorageRedis keeps persisted keys in Redis.
	StorageRedis StorageBackend = "redis"
)

// StorageConfig configures persisted storage. The Redis fields are read by
// callers that build the client; the portal itself only needs the prefix
// and TTL.
type StorageConfig struct {
	Backend     StorageBackend
	FilePath    string
	RedisAddr   string
	RedisDB     int
	RedisPrefix string
	RedisTTL    time.Duration
}

/*
====================================
GUARD CONFIG
====================================
*/

// GuardConfig configures the session guard.
type GuardConfig struct {
	// Expired decides what happens to a structurally valid but expired token.
	Expired ExpiredPolicy
	// Leeway extends every token's expiry when comparing with the clock.
	Leeway time.Duration
	// FetchViewerOnReconcile loads viewer details after a persisted token is
	// adopted and the store has no viewer yet.
	FetchViewerOnReconcile bool
	// LoginPath is where the HTTP middleware redirects.
	LoginPath string
}

/*
====================================
CONTENT CONFIG
====================================
*/

// ContentConfig controls how blog HTML is prepared for display.
type ContentConfig struct {
	Sanitize     bool
	PreviewWords int
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults: the public API, in-memory
// storage, and a guard that redirects on expired tokens.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:           "https://nodejs.backend.techozon.com/api",
			Timeout:           10 * time.Second,
			UserAgent:         "goBlog",
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Storage: StorageConfig{
			Backend:     StorageMemory,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "blogportal:",
		},
		Guard: GuardConfig{
			Expired:                ExpiredRedirect,
			FetchViewerOnReconcile: true,
			LoginPath:              "/auth",
		},
		Content: ContentConfig{
			Sanitize:     true,
			PreviewWords: 20,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate reports the first invalid field. Every error wraps
// [ErrInvalidConfig].
func (c *Config) Validate() error {
	// API
	u, err := url.Parse(strings.TrimSpace(c.API.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("API BaseURL %q is not an absolute URL", c.API.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid("API BaseURL scheme must be http or https")
	}
	if c.API.Timeout <= 0 {
		return invalid("API Timeout must be > 0")
	}
	if c.API.RequestsPerSecond < 0 {
		return invalid("API RequestsPerSecond must be >= 0")
	}
	if c.API.Burst < 0 {
		return invalid("API Burst must be >= 0")
	}

	// Storage
	switch c.Storage.Backend {
	case StorageMemory:
	case StorageFile:
		if strings.TrimSpace(c.Storage.FilePath) == "" {
			return invalid("Storage FilePath is required for the file backend")
		}
	case StorageRedis:
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			return invalid("Storage RedisAddr is required for the redis backend")
		}
		if c.Storage.RedisDB < 0 {
			return invalid("Storage RedisDB must be >= 0")
		}
	default:
		return invalid("Storage Backend %q is not one of memory, file, redis", c.Storage.Backend)
	}
	if c.Storage.RedisTTL < 0 {
		return invalid("Storage RedisTTL must be >= 0")
	}

	// Guard
	switch c.Guard.Expired {
	case ExpiredRedirect, ExpiredAllow:
	default:
		return invalid("Guard Expired policy %d is unknown", c.Guard.Expired)
	}
	if c.Guard.Leeway < 0 {
		return invalid("Guard Leeway must be >= 0")
	}
	if c.Guard.Leeway > 5*time.Minute {
		return invalid("Guard Leeway must be <= 5m")
	}
	if !strings.HasPrefix(c.Guard.LoginPath, "/") {
		return invalid("Guard LoginPath must start with /")
	}

	// Content
	if c.Content.PreviewWords <= 0 {
		return invalid("Content PreviewWords must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return invalid("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// ConfigWarning is a non-fatal configuration finding from [Config.Lint].
type ConfigWarning struct {
	Code    string
	Message string
}

// ConfigWarnings is the result of [Config.Lint].
type ConfigWarnings []ConfigWarning

// Codes returns the warning codes in order.
func (ws ConfigWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports settings that are valid but likely unintended.
func (c *Config) Lint() ConfigWarnings {
	var ws ConfigWarnings
	if c.Guard.Expired == ExpiredAllow {
		ws = append(ws, ConfigWarning{
			Code:    "expired_tokens_allowed",
			Message: "Guard allows expired tokens; protected views render with dead credentials",
		})
	}
	if c.Guard.Leeway > time.Minute {
		ws = append(ws, ConfigWarning{
			Code:    "leeway_large",
			Message: "Guard Leeway above 1m delays redirects for expired tokens",
		})
	}
	if strings.HasPrefix(strings.TrimSpace(c.API.BaseURL), "http://") {
		ws = append(ws, ConfigWarning{
			Code:    "api_plaintext",
			Message: "API BaseURL uses http; bearer tokens travel unencrypted",
		})
	}
	if !c.Content.Sanitize {
		ws = append(ws, ConfigWarning{
			Code:    "content_unsanitized",
			Message: "Content sanitizing is off; blog HTML is passed through as received",
		})
	}
	if c.API.RequestsPerSecond == 0 {
		ws = append(ws, ConfigWarning{
			Code:    "api_unlimited",
			Message: "API RequestsPerSecond is 0; outgoing requests are not rate limited",
		})
	}
	return ws
}
