package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps refresh records in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]Record
	bySubject map[string]map[string]struct{}
	now       func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the clock used to judge expiry.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		records:   make(map[string]Record),
		bySubject: make(map[string]map[string]struct{}),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Save upserts the record for jti, moving it to subject's index if the
// subject changed.
func (m *MemoryStore) Save(_ context.Context, jti, subject string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.records[jti]; ok && prev.Subject != subject {
		m.unindexLocked(prev.Subject, jti)
	}
	m.records[jti] = Record{JTI: jti, Subject: subject, ExpiresAt: expiresAt}
	set, ok := m.bySubject[subject]
	if !ok {
		set = make(map[string]struct{})
		m.bySubject[subject] = set
	}
	set[jti] = struct{}{}
	return nil
}

// IsActive reports whether jti is stored and not yet expired.
func (m *MemoryStore) IsActive(_ context.Context, jti string) (bool, error) {
	m.mu.RLock()
	rec, ok := m.records[jti]
	m.mu.RUnlock()
	return ok && m.now().Before(rec.ExpiresAt), nil
}

// SubjectFor returns the subject recorded for jti, expired or not.
func (m *MemoryStore) SubjectFor(_ context.Context, jti string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[jti]
	if !ok {
		return "", false, nil
	}
	return rec.Subject, true, nil
}

// Revoke deletes the record for jti. Unknown jtis are ignored.
func (m *MemoryStore) Revoke(_ context.Context, jti string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(jti)
	return nil
}

// RevokeAllForSubject deletes every record of subject.
func (m *MemoryStore) RevokeAllForSubject(_ context.Context, subject string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for jti := range m.bySubject[subject] {
		delete(m.records, jti)
	}
	delete(m.bySubject, subject)
	return nil
}

// RevokeIfActive deletes jti under the store lock and reports whether it
// was active.
func (m *MemoryStore) RevokeIfActive(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.deleteLocked(jti)
	return ok && m.now().Before(rec.ExpiresAt), nil
}

// PurgeExpired drops every record whose expiry has passed.
func (m *MemoryStore) PurgeExpired(_ context.Context) (int, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for jti, rec := range m.records {
		if now.Before(rec.ExpiresAt) {
			continue
		}
		m.deleteLocked(jti)
		purged++
	}
	return purged, nil
}

// Len returns the number of stored records, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryStore) deleteLocked(jti string) (Record, bool) {
	rec, ok := m.records[jti]
	if !ok {
		return Record{}, false
	}
	delete(m.records, jti)
	m.unindexLocked(rec.Subject, jti)
	return rec, true
}

func (m *MemoryStore) unindexLocked(subject, jti string) {
	set := m.bySubject[subject]
	delete(set, jti)
	if len(set) == 0 {
		delete(m.bySubject, subject)
	}
}
