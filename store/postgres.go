package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore keeps refresh records in the refresh_tokens table.
type PostgresStore struct {
	db  DBTX
	now func() time.Time
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresClock overrides the clock used to judge expiry.
func WithPostgresClock(now func() time.Time) PostgresOption {
	return func(s *PostgresStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPostgresStore binds a PostgresStore to db. The schema must already
// exist; see Migrate.
func NewPostgresStore(db DBTX, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenPostgres opens dsn with the pgx driver, verifies the connection and
// applies migrations.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Save upserts the row for jti.
func (s *PostgresStore) Save(ctx context.Context, jti, subject string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (jti, subject, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO UPDATE SET subject = EXCLUDED.subject, expires_at = EXCLUDED.expires_at
	`
	if _, err := s.db.ExecContext(ctx, query, jti, subject, expiresAt.UTC()); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsActive reports whether a row for jti exists with expires_at in the future.
func (s *PostgresStore) IsActive(ctx context.Context, jti string) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE jti = $1 AND expires_at > $2)
	`
	var active bool
	if err := s.db.QueryRowContext(ctx, query, jti, s.now().UTC()).Scan(&active); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return active, nil
}

// SubjectFor returns the subject recorded for jti.
func (s *PostgresStore) SubjectFor(ctx context.Context, jti string) (string, bool, error) {
	query := `
		SELECT subject FROM refresh_tokens WHERE jti = $1
	`
	var subject string
	if err := s.db.QueryRowContext(ctx, query, jti).Scan(&subject); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return subject, true, nil
}

// Revoke deletes the row for jti. Unknown jtis are ignored.
func (s *PostgresStore) Revoke(ctx context.Context, jti string) error {
	query := `
		DELETE FROM refresh_tokens WHERE jti = $1
	`
	if _, err := s.db.ExecContext(ctx, query, jti); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeAllForSubject deletes every row of subject.
func (s *PostgresStore) RevokeAllForSubject(ctx context.Context, subject string) error {
	query := `
		DELETE FROM refresh_tokens WHERE subject = $1
	`
	if _, err := s.db.ExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeIfActive deletes the row only while it is unexpired; the row lock
// taken by DELETE lets a single concurrent caller see one affected row.
func (s *PostgresStore) RevokeIfActive(ctx context.Context, jti string) (bool, error) {
	query := `
		DELETE FROM refresh_tokens WHERE jti = $1 AND expires_at > $2
	`
	res, err := s.db.ExecContext(ctx, query, jti, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if n == 1 {
		return true, nil
	}
	// Expired rows are removed too, like the other adapters do.
	if err := s.Revoke(ctx, jti); err != nil {
		return false, err
	}
	return false, nil
}

// PurgeExpired deletes rows whose expiry has passed.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int, error) {
	query := `
		DELETE FROM refresh_tokens WHERE expires_at <= $1
	`
	res, err := s.db.ExecContext(ctx, query, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(n), nil
}

// Ping runs a trivial query and returns its round-trip latency.
func (s *PostgresStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}
