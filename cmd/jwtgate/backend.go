package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/jwtgate"
	"github.com/MrEthical07/jwtgate/internal/rate"
	"github.com/MrEthical07/jwtgate/store"
	"github.com/redis/go-redis/v9"
)

// backend owns the connections opened for the configured store and the
// optional login limiter.
type backend struct {
	store   store.Store
	limiter *rate.Limiter
	closers []func() error
}

func openBackend(ctx context.Context, cfg appConfig, logger *slog.Logger) (*backend, error) {
	b := &backend{}

	var client redis.UniversalClient
	redisClient := func() (redis.UniversalClient, error) {
		if client != nil {
			return client, nil
		}
		c := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Store.RedisAddr},
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		if err := c.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("%w: redis ping: %v", store.ErrUnavailable, err)
		}
		b.closers = append(b.closers, c.Close)
		client = c
		return c, nil
	}

	switch cfg.Store.Backend {
	case jwtgate.StoreBackendRedis:
		c, err := redisClient()
		if err != nil {
			return nil, err
		}
		b.store = store.NewRedisStore(c, cfg.Store.RedisPrefix)
	case jwtgate.StoreBackendPostgres:
		db, err := store.OpenPostgres(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		b.store = store.NewPostgresStore(db)
	default:
		b.store = store.NewMemoryStore()
	}

	if cfg.Server.LoginLimit.Enabled {
		c, err := redisClient()
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("login limiter: %w", err)
		}
		b.limiter = rate.New(c, rate.Config{
			Prefix:           cfg.Store.RedisPrefix,
			EnableIPThrottle: cfg.Server.LoginLimit.PerIP,
			MaxAttempts:      cfg.Server.LoginLimit.MaxAttempts,
			Cooldown:         cfg.Server.LoginLimit.Cooldown,
		})
	}

	logger.Info("jwtgate: store opened", "backend", cfg.Store.Backend, "login_limit", b.limiter != nil)
	return b, nil
}

// Close releases connections in reverse order of opening.
func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// runSweeper purges expired records every interval until ctx is done. Stores
// that expire records on their own are left alone.
func runSweeper(ctx context.Context, s store.Store, interval time.Duration, logger *slog.Logger) {
	sweeper, ok := s.(store.Sweeper)
	if !ok || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweeper.PurgeExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("jwtgate: sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("jwtgate: swept expired refresh tokens", "count", n)
			}
		}
	}
}
