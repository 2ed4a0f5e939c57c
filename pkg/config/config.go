// Package config loads the ecogest configuration file.
//
// Configuration is a TOML file with one table per component:
//
//	[backend]
//	url = "https://xyz.supabase.co"
//	api_key = "..."
//	timeout = "10s"
//
//	[cache]
//	ttl = "5m"
//	strategy = "stale-while-revalidate"
//
//	[store]
//	max_entries = 100
//	default_ttl = "5m"
//
//	[retry]
//	max_retries = 3
//	initial_delay = "100ms"
//	max_delay = "2s"
//	multiplier = 2.0
//
//	[server]
//	addr = ":8080"
//	rate_limit_backoff = "30s"
//	redis_url = "redis://localhost:6379/0"
//
// Every key is optional; missing keys keep the values from [Default].
// ECOGEST_BACKEND_URL and ECOGEST_BACKEND_KEY override the backend table,
// ECOGEST_REDIS_URL overrides server.redis_url.
package config

import (
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/Benxalil/EcoGest-07-sub004/pkg/errors"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/reqcache"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/retry"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/ttlstore"
)

// Environment variables read by Load.
const (
	EnvConfig     = "ECOGEST_CONFIG"
	EnvBackendURL = "ECOGEST_BACKEND_URL"
	EnvBackendKey = "ECOGEST_BACKEND_KEY"
	EnvRedisURL   = "ECOGEST_REDIS_URL"
)

// Duration is a time.Duration written as a string ("5m", "100ms") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid duration %q", text)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete configuration.
type Config struct {
	Backend Backend `toml:"backend"`
	Cache   Cache   `toml:"cache"`
	Store   Store   `toml:"store"`
	Retry   Retry   `toml:"retry"`
	Server  Server  `toml:"server"`
}

// Backend configures the managed backend client.
type Backend struct {
	URL     string   `toml:"url"`
	APIKey  string   `toml:"api_key"`
	Timeout Duration `toml:"timeout"`
}

// Cache configures the request cache.
type Cache struct {
	TTL      Duration `toml:"ttl"`
	Strategy string   `toml:"strategy"`
}

// Store configures the short-lived TTL store.
type Store struct {
	MaxEntries int      `toml:"max_entries"`
	DefaultTTL Duration `toml:"default_ttl"`
}

// Retry configures backoff for backend calls.
type Retry struct {
	MaxRetries   int      `toml:"max_retries"`
	InitialDelay Duration `toml:"initial_delay"`
	MaxDelay     Duration `toml:"max_delay"`
	Multiplier   float64  `toml:"multiplier"`
}

// Server configures the read-through gateway.
type Server struct {
	Addr             string   `toml:"addr"`
	RateLimitBackoff Duration `toml:"rate_limit_backoff"`
	RedisURL         string   `toml:"redis_url"` // Shares rate-limit markers between replicas; empty keeps them in memory
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend: Backend{Timeout: Duration{10 * time.Second}},
		Cache: Cache{
			TTL:      Duration{reqcache.DefaultTTL},
			Strategy: reqcache.StaleWhileRevalidate.String(),
		},
		Store: Store{
			MaxEntries: ttlstore.DefaultMaxEntries,
			DefaultTTL: Duration{ttlstore.DefaultTTL},
		},
		Retry: Retry{
			MaxRetries:   retry.DefaultMaxRetries,
			InitialDelay: Duration{retry.DefaultInitialDelay},
			MaxDelay:     Duration{retry.DefaultMaxDelay},
			Multiplier:   retry.DefaultBackoffMultiplier,
		},
		Server: Server{
			Addr:             ":8080",
			RateLimitBackoff: Duration{30 * time.Second},
		},
	}
}

// DefaultPath returns the per-user config file path
// ($XDG_CONFIG_HOME/ecogest/config.toml or the OS equivalent).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ecogest", "config.toml"), nil
}

// Load reads the configuration.
//
// The file is path if non-empty, else $ECOGEST_CONFIG, else [DefaultPath].
// A file named explicitly must exist; a missing default file means defaults.
// Environment overrides are applied last and the result is validated.
func Load(path string) (Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	explicit := true
	if path == "" {
		path = getenv(EnvConfig)
	}
	if path == "" {
		explicit = false
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}

	if path != "" {
		_, statErr := os.Stat(path)
		if explicit || !os.IsNotExist(statErr) {
			if err := cfg.decodeFile(path); err != nil {
				return cfg, err
			}
			log.Debug("loaded config", "path", path)
		}
	}

	cfg.applyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return errors.New(errors.ErrCodeInvalidConfig, "unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Parse decodes TOML from r over the defaults without reading the
// environment.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, errors.New(errors.ErrCodeInvalidConfig, "unknown key %s", undecoded[0])
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvBackendURL); v != "" {
		c.Backend.URL = v
	}
	if v := getenv(EnvBackendKey); v != "" {
		c.Backend.APIKey = v
	}
	if v := getenv(EnvRedisURL); v != "" {
		c.Server.RedisURL = v
	}
}

// Validate checks every value. The backend URL may be empty; commands that
// need the backend check for it themselves.
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.New(errors.ErrCodeInvalidConfig, format, args...)
	}

	if c.Backend.URL != "" {
		if err := errors.ValidateURL(c.Backend.URL); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "backend.url")
		}
	}
	if c.Backend.Timeout.Duration <= 0 {
		return invalid("backend.timeout must be positive")
	}
	if c.Cache.TTL.Duration <= 0 {
		return invalid("cache.ttl must be positive")
	}
	if _, err := reqcache.ParseStrategy(c.Cache.Strategy); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "cache.strategy")
	}
	if c.Store.MaxEntries <= 0 {
		return invalid("store.max_entries must be positive")
	}
	if c.Store.DefaultTTL.Duration <= 0 {
		return invalid("store.default_ttl must be positive")
	}
	if c.Retry.MaxRetries < 0 {
		return invalid("retry.max_retries cannot be negative")
	}
	if c.Retry.InitialDelay.Duration <= 0 || c.Retry.MaxDelay.Duration <= 0 {
		return invalid("retry delays must be positive")
	}
	if c.Retry.InitialDelay.Duration > c.Retry.MaxDelay.Duration {
		return invalid("retry.initial_delay (%s) exceeds retry.max_delay (%s)", c.Retry.InitialDelay, c.Retry.MaxDelay)
	}
	if c.Retry.Multiplier < 1 {
		return invalid("retry.multiplier must be at least 1")
	}
	if c.Server.Addr == "" {
		return invalid("server.addr cannot be empty")
	}
	if c.Server.RateLimitBackoff.Duration <= 0 {
		return invalid("server.rate_limit_backoff must be positive")
	}
	if u := c.Server.RedisURL; u != "" && !strings.HasPrefix(u, "redis://") && !strings.HasPrefix(u, "rediss://") {
		return invalid("server.redis_url must use the redis or rediss scheme")
	}
	return nil
}

// Redacted returns a copy safe to print, with the API key and the Redis
// password masked.
func (c Config) Redacted() Config {
	if k := c.Backend.APIKey; k != "" {
		if len(k) > 4 {
			c.Backend.APIKey = k[:4] + strings.Repeat("*", 8)
		} else {
			c.Backend.APIKey = strings.Repeat("*", 8)
		}
	}
	if u, err := url.Parse(c.Server.RedisURL); err == nil && c.Server.RedisURL != "" {
		c.Server.RedisURL = u.Redacted()
	}
	return c
}

// Encode writes c as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// RetryOptions converts the retry table, logging through logger.
func (c Config) RetryOptions(logger *log.Logger) retry.Options {
	maxRetries := c.Retry.MaxRetries
	if maxRetries == 0 {
		maxRetries = -1
	}
	return retry.Options{
		MaxRetries:        maxRetries,
		InitialDelay:      c.Retry.InitialDelay.Duration,
		MaxDelay:          c.Retry.MaxDelay.Duration,
		BackoffMultiplier: c.Retry.Multiplier,
		Logger:            logger,
	}
}

// CacheOptions converts the cache table. The strategy must have passed
// Validate.
func (c Config) CacheOptions(logger *log.Logger) reqcache.Options {
	strategy, _ := reqcache.ParseStrategy(c.Cache.Strategy)
	return reqcache.Options{
		DefaultTTL:      c.Cache.TTL.Duration,
		DefaultStrategy: strategy,
		Logger:          logger,
	}
}

// StoreConfig converts the store table.
func (c Config) StoreConfig(logger *log.Logger) ttlstore.Config {
	return ttlstore.Config{
		MaxEntries: c.Store.MaxEntries,
		DefaultTTL: c.Store.DefaultTTL.Duration,
		Logger:     logger,
	}
}
