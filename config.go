package jwtgate

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/jwtgate/jwt"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "JWTGATE_"

// Store backends understood by the CLI and examples.
const (
	StoreBackendMemory   = "memory"
	StoreBackendRedis    = "redis"
	StoreBackendPostgres = "postgres"

	// StoreBackendCustom is reported for stores injected with WithStore that
	// are none of the built-in adapters. It is not a valid Store.Backend.
	StoreBackendCustom = "custom"
)

// Config is the complete engine configuration.
type Config struct {
	JWT     JWTConfig     `yaml:"jwt"`
	Refresh RefreshConfig `yaml:"refresh"`
	Gate    GateConfig    `yaml:"gate"`
	Store   StoreConfig   `yaml:"store"`
	Audit   AuditConfig   `yaml:"audit"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// JWTConfig configures token signing and lifetimes.
//
// Negative TTLs are accepted and produce already-expired tokens.
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	Issuer     string        `yaml:"issuer"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
}

// RefreshConfig toggles the refresh lifecycle.
type RefreshConfig struct {
	Enabled        bool `yaml:"enabled"`
	Rotation       bool `yaml:"rotation"`
	ReuseDetection bool `yaml:"reuse_detection"`
}

// GateConfig configures the HTTP auth gate.
type GateConfig struct {
	Header         string   `yaml:"header"`
	ProtectedPaths []string `yaml:"protected_paths"`
	ExcludedPaths  []string `yaml:"excluded_paths"`
}

// StoreConfig selects and configures the refresh store backend.
type StoreConfig struct {
	Backend       string        `yaml:"backend"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisPrefix   string        `yaml:"redis_prefix"`
	PostgresDSN   string        `yaml:"postgres_dsn"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// MetricsConfig controls in-process metrics collection.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// DefaultConfig returns the baseline configuration. Secret and issuer are
// left empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Refresh: RefreshConfig{
			Enabled:        true,
			Rotation:       true,
			ReuseDetection: true,
		},
		Gate: GateConfig{
			Header:         "Authorization",
			ProtectedPaths: []string{"/api/*"},
		},
		Store: StoreConfig{
			Backend:     StoreBackendMemory,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "jwtgate",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// Validate reports the first configuration rule that is violated.
func (c *Config) Validate() error {
	// JWT
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("JWT Secret is required")
	}
	if len(c.JWT.Secret) < jwt.MinSecretLength {
		return fmt.Errorf("JWT Secret must be at least %d bytes", jwt.MinSecretLength)
	}
	if strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("JWT Issuer is required")
	}
	if c.JWT.AccessTTL == 0 {
		return errors.New("JWT AccessTTL must be non-zero")
	}
	if c.JWT.RefreshTTL == 0 {
		return errors.New("JWT RefreshTTL must be non-zero")
	}

	// Gate
	if strings.TrimSpace(c.Gate.Header) == "" {
		return errors.New("Gate Header must not be empty")
	}
	for _, p := range c.Gate.ProtectedPaths {
		if strings.TrimSpace(p) == "" {
			return errors.New("Gate ProtectedPaths must not contain empty patterns")
		}
	}
	for _, p := range c.Gate.ExcludedPaths {
		if strings.TrimSpace(p) == "" {
			return errors.New("Gate ExcludedPaths must not contain empty patterns")
		}
	}

	// Store
	switch c.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("Store RedisAddr is required for the redis backend")
		}
	case StoreBackendPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("Store PostgresDSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unsupported Store Backend %q", c.Store.Backend)
	}
	if c.Store.SweepInterval < 0 {
		return errors.New("Store SweepInterval must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

// LoadConfig reads a YAML file on top of DefaultConfig. Keys absent from the
// file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from JWTGATE_* variables found by lookup. A nil
// lookup reads the process environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := envReader{lookup: lookup}

	env.str("JWT_SECRET", &c.JWT.Secret)
	env.str("JWT_ISSUER", &c.JWT.Issuer)
	env.duration("JWT_ACCESS_TTL", &c.JWT.AccessTTL)
	env.duration("JWT_REFRESH_TTL", &c.JWT.RefreshTTL)
	env.boolean("REFRESH_ENABLED", &c.Refresh.Enabled)
	env.boolean("REFRESH_ROTATION", &c.Refresh.Rotation)
	env.boolean("REFRESH_REUSE_DETECTION", &c.Refresh.ReuseDetection)
	env.str("GATE_HEADER", &c.Gate.Header)
	env.list("GATE_PROTECTED_PATHS", &c.Gate.ProtectedPaths)
	env.list("GATE_EXCLUDED_PATHS", &c.Gate.ExcludedPaths)
	env.str("STORE_BACKEND", &c.Store.Backend)
	env.str("STORE_REDIS_ADDR", &c.Store.RedisAddr)
	env.str("STORE_REDIS_PASSWORD", &c.Store.RedisPassword)
	env.integer("STORE_REDIS_DB", &c.Store.RedisDB)
	env.str("STORE_REDIS_PREFIX", &c.Store.RedisPrefix)
	env.str("STORE_POSTGRES_DSN", &c.Store.PostgresDSN)
	env.duration("STORE_SWEEP_INTERVAL", &c.Store.SweepInterval)
	env.boolean("AUDIT_ENABLED", &c.Audit.Enabled)
	env.boolean("METRICS_ENABLED", &c.Metrics.Enabled)

	return errors.Join(env.errs...)
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) list(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (e *envReader) boolean(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		return
	}
	*dst = b
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		return
	}
	*dst = n
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		return
	}
	*dst = d
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Gate.ProtectedPaths = append([]string(nil), cfg.Gate.ProtectedPaths...)
	out.Gate.ExcludedPaths = append([]string(nil), cfg.Gate.ExcludedPaths...)
	return out
}
