package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps every backend failure. Missing records are never
// reported as errors.
var ErrUnavailable = errors.New("refresh store unavailable")

// Record is the persisted state of one refresh token.
type Record struct {
	JTI       string
	Subject   string
	ExpiresAt time.Time
}

// Store is the refresh token registry used by the rotation flow.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Save inserts or overwrites the record for jti.
	Save(ctx context.Context, jti, subject string, expiresAt time.Time) error
	// IsActive reports whether jti is present and not yet expired.
	IsActive(ctx context.Context, jti string) (bool, error)
	// SubjectFor returns the subject recorded for jti.
	SubjectFor(ctx context.Context, jti string) (string, bool, error)
	// Revoke removes jti. Revoking an unknown jti is not an error.
	Revoke(ctx context.Context, jti string) error
	// RevokeAllForSubject removes every record owned by subject.
	RevokeAllForSubject(ctx context.Context, subject string) error
	// RevokeIfActive atomically removes jti and reports whether it was active
	// at the moment of removal. Among concurrent callers for the same jti at
	// most one observes true.
	RevokeIfActive(ctx context.Context, jti string) (bool, error)
}

// Sweeper is implemented by stores that keep expired records until purged.
type Sweeper interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Pinger is implemented by networked stores for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

var (
	_ Store   = (*MemoryStore)(nil)
	_ Store   = (*RedisStore)(nil)
	_ Store   = (*PostgresStore)(nil)
	_ Sweeper = (*MemoryStore)(nil)
	_ Sweeper = (*PostgresStore)(nil)
	_ Pinger  = (*RedisStore)(nil)
	_ Pinger  = (*PostgresStore)(nil)
)
