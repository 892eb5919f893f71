package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
)

func newPostgresWithMock(t *testing.T, now func() time.Time) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db, WithPostgresClock(now)), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresSaveUpserts(t *testing.T) {
	c := newClock()
	s, mock := newPostgresWithMock(t, c.Now)
	exp := c.Now().Add(time.Hour)

	q := `(?s)^INSERT\s+INTO\s+refresh_tokens\s+\(jti,\s*subject,\s*expires_at\)\s+VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s+ON\s+CONFLICT\s+\(jti\)\s+DO\s+UPDATE.*$`
	mock.ExpectExec(q).
		WithArgs("jti-1", "alice", exp.UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.Save(context.Background(), "jti-1", "alice", exp); err != nil {
		t.Fatalf("save: %v", err)
	}
	expectationsMet(t, mock)
}

func TestPostgresSaveError(t *testing.T) {
	c := newClock()
	s, mock := newPostgresWithMock(t, c.Now)

	mock.ExpectExec(`INSERT\s+INTO\s+refresh_tokens`).
		WillReturnError(errors.New("db down"))

	err := s.Save(context.Background(), "jti-1", "alice", c.Now())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPostgresIsActive(t *testing.T) {
	c := newClock()
	s, mock := newPostgresWithMock(t, c.Now)

	q := `(?s)^SELECT\s+EXISTS\s+\(SELECT\s+1\s+FROM\s+refresh_tokens\s+WHERE\s+jti\s*=\s*\$1\s+AND\s+expires_at\s*>\s*\$2\)\s*$`
	mock.ExpectQuery(q).
		WithArgs("jti-1", c.Now().UTC()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(q).
		WithArgs("jti-2", c.Now().UTC()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	if active, err := s.IsActive(context.Background(), "jti-1"); err != nil || !active {
		t.Fatalf("expected active, got %v %v", active, err)
	}
	if active, err := s.IsActive(context.Background(), "jti-2"); err != nil || active {
		t.Fatalf("expected inactive, got %v %v", active, err)
	}
	expectationsMet(t, mock)
}

func TestPostgresSubjectFor(t *testing.T) {
	c := newClock()
	s, mock := newPostgresWithMock(t, c.Now)

	q := `(?s)^SELECT\s+subject\s+FROM\s+refresh_tokens\s+WHERE\s+jti\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows([]string{"subject"}).AddRow("alice"))
	mock.ExpectQuery(q).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(q).
		WithArgs("boom").
		WillReturnError(errors.New("conn reset"))

	ctx := context.Background()
	if subject, ok, err := s.SubjectFor(ctx, "jti-1"); err != nil || !ok || subject != "alice" {
		t.Fatalf("unexpected lookup %q %v %v", subject, ok, err)
	}
	if _, ok, err := s.SubjectFor(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing row must not error, got %v %v", ok, err)
	}
	if _, _, err := s.SubjectFor(ctx, "boom"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestPostgresRevokeAndRevokeAll(t *testing.T) {
	c := newClock()
	s, mock := newPostgresWithMock(t, c.Now)

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+jti\s*=\s*\$1\s*$`).
		WithArgs("jti-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+subject\s*=\s*\$1\s*$`).
		WithArgs("alice").
		WillReturnResult(sqlmock.NewResult(0, 3))

	ctx := context.Background()
	if err := s.Revoke(ctx, "jti-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := s.RevokeAllForSubject(ctx, "alice"); err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	expectationsMet(t, mock)
}

func TestPostgresRevokeIfActive(t *testing.T) {
	c := newClock()
	s, mock := newPostgresWithMock(t, c.Now)
	cas := `(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+jti\s*=\s*\$1\s+AND\s+expires_at\s*>\s*\$2\s*$`

	mock.ExpectExec(cas).
		WithArgs("jti-1", c.Now().UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(cas).
		WithArgs("jti-1", c.Now().UTC()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+jti\s*=\s*\$1\s*$`).
		WithArgs("jti-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	if won, err := s.RevokeIfActive(ctx, "jti-1"); err != nil || !won {
		t.Fatalf("first call should win, got %v %v", won, err)
	}
	if won, err := s.RevokeIfActive(ctx, "jti-1"); err != nil || won {
		t.Fatalf("second call must lose, got %v %v", won, err)
	}
	expectationsMet(t, mock)
}

func TestPostgresRevokeIfActiveError(t *testing.T) {
	c := newClock()
	s, mock := newPostgresWithMock(t, c.Now)

	mock.ExpectExec(`DELETE\s+FROM\s+refresh_tokens`).
		WillReturnError(errors.New("deadlock"))

	if _, err := s.RevokeIfActive(context.Background(), "jti-1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPostgresPurgeExpired(t *testing.T) {
	c := newClock()
	s, mock := newPostgresWithMock(t, c.Now)

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+expires_at\s*<=\s*\$1\s*$`).
		WithArgs(c.Now().UTC()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := s.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 purged rows, got %d", n)
	}
	expectationsMet(t, mock)
}

func TestPostgresPing(t *testing.T) {
	c := newClock()
	s, mock := newPostgresWithMock(t, c.Now)

	mock.ExpectQuery(`^SELECT 1$`).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	if _, err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}

	mock.ExpectQuery(`^SELECT 1$`).WillReturnError(errors.New("conn refused"))
	if _, err := s.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestMigrateRunsEmbeddedMigrations(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	orig := gooseUp
	defer func() { gooseUp = orig }()

	var dir string
	gooseUp = func(ctx context.Context, db *sql.DB, d string, opts ...goose.OptionsFunc) error {
		dir = d
		entries, err := migrationsFS.ReadDir(d)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return errors.New("no migrations embedded")
		}
		return nil
	}

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if dir != "migrations" {
		t.Fatalf("unexpected migrations dir %q", dir)
	}
}

func TestMigrateWrapsError(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	orig := gooseUp
	defer func() { gooseUp = orig }()
	gooseUp = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}

	if err := Migrate(context.Background(), db); err == nil {
		t.Fatal("expected migration error")
	}
}
