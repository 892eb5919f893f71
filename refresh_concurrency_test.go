package jwtgate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrEthical07/jwtgate/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	clock := newFakeClock()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	backends := map[string]store.Store{
		"memory": store.NewMemoryStore(store.WithMemoryClock(clock.Now)),
		"redis":  store.NewRedisStore(rdb, "race", store.WithRedisClock(clock.Now)),
	}

	for name, st := range backends {
		t.Run(name, func(t *testing.T) {
			engine := newTestEngine(t, clock, engineOptions{store: st})

			pair, err := engine.IssueTokens(context.Background(), "alice", nil)
			if err != nil {
				t.Fatalf("issue failed: %v", err)
			}

			const n = 16
			var wg sync.WaitGroup
			wg.Add(n)

			results := make(chan error, n)
			for i := 0; i < n; i++ {
				go func() {
					defer wg.Done()
					_, err := engine.Refresh(context.Background(), pair.RefreshToken)
					results <- err
				}()
			}
			wg.Wait()
			close(results)

			success := 0
			fail := 0
			for err := range results {
				if err == nil {
					success++
					continue
				}
				if errors.Is(err, ErrReuseDetected) {
					fail++
					continue
				}
				t.Fatalf("unexpected refresh error: %v", err)
			}

			if success != 1 {
				t.Fatalf("expected exactly one refresh success, got %d", success)
			}
			if fail != n-1 {
				t.Fatalf("expected %d refresh failures, got %d", n-1, fail)
			}
		})
	}
}
