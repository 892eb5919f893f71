package jwtgate

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/jwtgate/internal/audit"
	"github.com/MrEthical07/jwtgate/internal/flows"
	"github.com/MrEthical07/jwtgate/jwt"
	"github.com/MrEthical07/jwtgate/store"
)

// Builder assembles an Engine. A Builder produces at most one Engine.
type Builder struct {
	config Config
	store  store.Store
	logger *slog.Logger
	now    func() time.Time

	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the refresh token store. Without it Build uses a
// MemoryStore.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source of the codec, the default memory store
// and audit timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	codec, err := jwt.NewCodec(jwt.Config{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Now:        now,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	st := b.store
	if st == nil {
		st = store.NewMemoryStore(store.WithMemoryClock(now))
	}

	// The codec holds the only copy of the signing key.
	secretLen := len(cfg.JWT.Secret)
	cfg.JWT.Secret = ""

	engine := &Engine{
		config:    cfg,
		secretLen: secretLen,
		codec:     codec,
		store:     st,
		logger:    logger,
		now:       now,
	}
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.audit = audit.NewDispatcher(
		auditDispatcherConfig(cfg.Audit, func() { engine.metrics.Inc(MetricAuditDropped) }),
		b.auditSink,
	)
	engine.flows = flows.New(flows.Deps{
		Issue: flows.IssueDeps{Codec: codec, Store: st},
		Refresh: flows.RefreshDeps{
			Enabled:        cfg.Refresh.Enabled,
			Rotate:         cfg.Refresh.Rotation,
			ReuseDetection: cfg.Refresh.ReuseDetection,
			Codec:          codec,
			Store:          st,
			Warn:           logger.Warn,
		},
		Validate: flows.ValidateDeps{Codec: codec},
		Logout:   flows.LogoutDeps{Codec: codec, Store: st},
	})

	b.built = true

	return engine, nil
}
