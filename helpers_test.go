package jwtgate

import (
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/jwtgate/store"
)

const testSecret = "0123456789abcdef0123456789abcdef-engine-test"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = testSecret
	cfg.JWT.Issuer = "jwtgate-test"
	return cfg
}

type engineOptions struct {
	cfg   Config
	store store.Store
	sink  AuditSink
}

func newTestEngine(t testing.TB, clock *fakeClock, opts engineOptions) *Engine {
	t.Helper()

	cfg := opts.cfg
	if cfg.JWT.Secret == "" {
		cfg = testConfig()
	}
	b := New().WithConfig(cfg).WithClock(clock.Now)
	if opts.store != nil {
		b.WithStore(opts.store)
	}
	if opts.sink != nil {
		b.WithAuditSink(opts.sink)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
