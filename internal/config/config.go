// Package config provides Viper-based configuration management for blogportal
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	goBlog "github.com/MrEthical07/goBlog"
)

// EnvPrefix prefixes every environment override, e.g. BLOGPORTAL_API_BASE_URL.
const EnvPrefix = "BLOGPORTAL"

// Config represents the complete blogportal configuration
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Storage StorageConfig `mapstructure:"storage"`
	Guard   GuardConfig   `mapstructure:"guard"`
	Content ContentConfig `mapstructure:"content"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Logging LoggingConfig `mapstructure:"logging"`
	Output  OutputConfig  `mapstructure:"output"`
}

// APIConfig contains remote API settings
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// StorageConfig selects where the session is persisted between runs
type StorageConfig struct {
	Backend     string        `mapstructure:"backend"`
	FilePath    string        `mapstructure:"file_path"`
	RedisAddr   string        `mapstructure:"redis_addr"`
	RedisDB     int           `mapstructure:"redis_db"`
	RedisPrefix string        `mapstructure:"redis_prefix"`
	RedisTTL    time.Duration `mapstructure:"redis_ttl"`
}

// GuardConfig contains session guard settings
type GuardConfig struct {
	Expired     string        `mapstructure:"expired"`
	Leeway      time.Duration `mapstructure:"leeway"`
	FetchViewer bool          `mapstructure:"fetch_viewer"`
	LoginPath   string        `mapstructure:"login_path"`
}

// ContentConfig contains blog rendering settings
type ContentConfig struct {
	Sanitize     bool `mapstructure:"sanitize"`
	PreviewWords int  `mapstructure:"preview_words"`
}

// AuditConfig contains audit trail settings
type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OutputConfig contains output formatting settings
type OutputConfig struct {
	Colors bool `mapstructure:"colors"`
}

// Options controls where Load looks for configuration.
type Options struct {
	// ConfigFile overrides the .blogportal.yaml search.
	ConfigFile string
	// EnvFile is loaded into the environment before env overrides are read.
	// A missing file is ignored. Defaults to ".env".
	EnvFile string
}

// Load reads configuration from file and environment variables
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	v := viper.New()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(".blogportal")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/blogportal")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// setDefaults seeds viper from the library defaults so env overrides work
// for every key, not only the ones present in a config file.
func setDefaults(v *viper.Viper) {
	d := goBlog.DefaultConfig()

	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.user_agent", "blogportal")
	v.SetDefault("api.requests_per_second", d.API.RequestsPerSecond)
	v.SetDefault("api.burst", d.API.Burst)

	v.SetDefault("storage.backend", string(goBlog.StorageFile))
	v.SetDefault("storage.file_path", DefaultSessionPath())
	v.SetDefault("storage.redis_addr", d.Storage.RedisAddr)
	v.SetDefault("storage.redis_db", d.Storage.RedisDB)
	v.SetDefault("storage.redis_prefix", d.Storage.RedisPrefix)
	v.SetDefault("storage.redis_ttl", d.Storage.RedisTTL)

	v.SetDefault("guard.expired", d.Guard.Expired.String())
	v.SetDefault("guard.leeway", d.Guard.Leeway)
	v.SetDefault("guard.fetch_viewer", d.Guard.FetchViewerOnReconcile)
	v.SetDefault("guard.login_path", d.Guard.LoginPath)

	v.SetDefault("content.sanitize", d.Content.Sanitize)
	v.SetDefault("content.preview_words", d.Content.PreviewWords)

	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.buffer_size", d.Audit.BufferSize)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("output.colors", true)
}

// DefaultSessionPath is where the file backend keeps the session.
func DefaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", ".blogportal-session.json")
	}
	return filepath.Join(dir, "blogportal", "session.json")
}

// validate checks the CLI-only settings; portal settings are checked by
// goBlog.Config.Validate in Portal.
func validate(cfg *Config) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", cfg.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s (must be text or json)", cfg.Logging.Format)
	}

	return nil
}

// Portal maps the file and environment settings onto a validated
// goBlog.Config.
func (c *Config) Portal() (goBlog.Config, error) {
	expired, err := goBlog.ParseExpiredPolicy(c.Guard.Expired)
	if err != nil {
		return goBlog.Config{}, err
	}

	pc := goBlog.DefaultConfig()
	pc.API = goBlog.APIConfig{
		BaseURL:           c.API.BaseURL,
		Timeout:           c.API.Timeout,
		UserAgent:         c.API.UserAgent,
		RequestsPerSecond: c.API.RequestsPerSecond,
		Burst:             c.API.Burst,
	}
	pc.Storage = goBlog.StorageConfig{
		Backend:     goBlog.StorageBackend(strings.ToLower(c.Storage.Backend)),
		FilePath:    c.Storage.FilePath,
		RedisAddr:   c.Storage.RedisAddr,
		RedisDB:     c.Storage.RedisDB,
		RedisPrefix: c.Storage.RedisPrefix,
		RedisTTL:    c.Storage.RedisTTL,
	}
	pc.Guard = goBlog.GuardConfig{
		Expired:                expired,
		Leeway:                 c.Guard.Leeway,
		FetchViewerOnReconcile: c.Guard.FetchViewer,
		LoginPath:              c.Guard.LoginPath,
	}
	pc.Content = goBlog.ContentConfig{
		Sanitize:     c.Content.Sanitize,
		PreviewWords: c.Content.PreviewWords,
	}
	pc.Audit.Enabled = c.Audit.Enabled
	pc.Audit.BufferSize = c.Audit.BufferSize

	if err := pc.Validate(); err != nil {
		return goBlog.Config{}, err
	}
	return pc, nil
}
