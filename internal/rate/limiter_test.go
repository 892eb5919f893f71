package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr, rdb
}

func TestLimiterBlocksAfterMaxAttempts(t *testing.T) {
	l, _, _ := newTestLimiter(t, Config{MaxAttempts: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Fail(ctx, "alice", ""); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if err := l.Check(ctx, "alice", ""); err != nil {
			t.Fatalf("check after %d failures: %v", i+1, err)
		}
	}
	if err := l.Fail(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on third failure, got %v", err)
	}
	if err := l.Check(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.Check(ctx, "bob", ""); err != nil {
		t.Fatalf("other users must not be limited: %v", err)
	}

	n, err := l.Attempts(ctx, "alice")
	if err != nil || n != 3 {
		t.Fatalf("expected 3 attempts, got %d %v", n, err)
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	l, mr, _ := newTestLimiter(t, Config{MaxAttempts: 1, Cooldown: time.Minute})
	ctx := context.Background()

	_ = l.Fail(ctx, "alice", "")
	if err := l.Check(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limited, got %v", err)
	}
	mr.FastForward(time.Minute + time.Second)
	if err := l.Check(ctx, "alice", ""); err != nil {
		t.Fatalf("expected window reset, got %v", err)
	}
}

func TestLimiterIPThrottleAndReset(t *testing.T) {
	l, mr, _ := newTestLimiter(t, Config{Prefix: "svc", EnableIPThrottle: true, MaxAttempts: 2, Cooldown: time.Minute})
	ctx := context.Background()

	_ = l.Fail(ctx, "alice", "10.0.0.1")
	_ = l.Fail(ctx, "bob", "10.0.0.1")
	if err := l.Check(ctx, "carol", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP limit, got %v", err)
	}
	if !mr.Exists("svc:ali:10.0.0.1") || !mr.Exists("svc:al:alice") {
		t.Fatal("expected prefixed keys")
	}

	if err := l.Reset(ctx, "bob", "10.0.0.1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.Check(ctx, "carol", "10.0.0.1"); err != nil {
		t.Fatalf("expected IP counter cleared, got %v", err)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	l, _, rdb := newTestLimiter(t, Config{MaxAttempts: 1, Cooldown: time.Minute})
	_ = rdb.Close()

	if err := l.Fail(context.Background(), "alice", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
