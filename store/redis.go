package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "jwtgate"

const saveScript = `
local token_key = KEYS[1]
local subject_key = KEYS[2]
local jti = ARGV[1]
local subject = ARGV[2]
local exp_ms = tonumber(ARGV[3])
local now_ms = tonumber(ARGV[4])
local subject_prefix = ARGV[5]

local previous = redis.call("HGET", token_key, "sub")
if previous and previous ~= subject then
  redis.call("SREM", subject_prefix .. previous, jti)
end

local remaining = exp_ms - now_ms
if remaining <= 0 then
  redis.call("DEL", token_key)
  return 0
end

redis.call("HSET", token_key, "sub", subject, "exp", exp_ms)
redis.call("PEXPIRE", token_key, remaining)
redis.call("SADD", subject_key, jti)

local current = redis.call("PTTL", subject_key)
if current < remaining then
  redis.call("PEXPIRE", subject_key, remaining)
end
return 1
`

var saveLua = redis.NewScript(saveScript)

const revokeScript = `
local subject = redis.call("HGET", KEYS[1], "sub")
local deleted = redis.call("DEL", KEYS[1])
if subject then
  redis.call("SREM", ARGV[2] .. subject, ARGV[1])
end
return deleted
`

var revokeLua = redis.NewScript(revokeScript)

const revokeIfActiveScript = `
local fields = redis.call("HMGET", KEYS[1], "sub", "exp")
local subject = fields[1]
local exp_ms = tonumber(fields[2])
if not subject then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[2] .. subject, ARGV[1])
if exp_ms and exp_ms > tonumber(ARGV[3]) then
  return 1
end
return 0
`

var revokeIfActiveLua = redis.NewScript(revokeIfActiveScript)

const revokeAllScript = `
local subject_key = KEYS[1]
local subject = ARGV[1]
local token_prefix = ARGV[2]
local members = redis.call("SMEMBERS", subject_key)
local removed = 0
for _, jti in ipairs(members) do
  local token_key = token_prefix .. jti
  if redis.call("HGET", token_key, "sub") == subject then
    removed = removed + redis.call("DEL", token_key)
  end
end
redis.call("DEL", subject_key)
return removed
`

var revokeAllLua = redis.NewScript(revokeAllScript)

// RedisStore keeps refresh records in Redis.
//
// Each jti is a hash at <prefix>:rt:<jti> with fields sub and exp (unix ms)
// and a key TTL matching exp. Records saved already expired are not written.
// Each subject has a set of its jtis at <prefix>:sub:<subject>, used by
// RevokeAllForSubject.
//
// The scripts derive some keys from stored values (the previous subject on
// Save, the subject set on Revoke, every record on RevokeAllForSubject), so
// not all keys they touch are declared. Run it against a single node, or
// against Redis Cluster with a hash-tagged prefix such as "{jwtgate}" that
// puts every key in one slot.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisClock overrides the clock used to judge expiry.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRedisStore returns a RedisStore using client. An empty prefix defaults
// to "jwtgate".
func NewRedisStore(client redis.UniversalClient, prefix string, opts ...RedisOption) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	s := &RedisStore{redis: client, prefix: prefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) tokenPrefix() string { return s.prefix + ":rt:" }

func (s *RedisStore) subjectPrefix() string { return s.prefix + ":sub:" }

func (s *RedisStore) tokenKey(jti string) string { return s.tokenPrefix() + jti }

func (s *RedisStore) subjectKey(subject string) string { return s.subjectPrefix() + subject }

// Save upserts the record for jti and indexes it under subject.
func (s *RedisStore) Save(ctx context.Context, jti, subject string, expiresAt time.Time) error {
	err := saveLua.Run(ctx, s.redis,
		[]string{s.tokenKey(jti), s.subjectKey(subject)},
		jti,
		subject,
		expiresAt.UnixMilli(),
		s.now().UnixMilli(),
		s.subjectPrefix(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsActive reports whether jti is stored and not yet expired.
func (s *RedisStore) IsActive(ctx context.Context, jti string) (bool, error) {
	raw, err := s.redis.HGet(ctx, s.tokenKey(jti), "exp").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	expMs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("%w: corrupt expiry for %s: %v", ErrUnavailable, jti, err)
	}
	return expMs > s.now().UnixMilli(), nil
}

// SubjectFor returns the subject recorded for jti.
func (s *RedisStore) SubjectFor(ctx context.Context, jti string) (string, bool, error) {
	subject, err := s.redis.HGet(ctx, s.tokenKey(jti), "sub").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return subject, true, nil
}

// Revoke deletes the record for jti. Unknown jtis are ignored.
func (s *RedisStore) Revoke(ctx context.Context, jti string) error {
	err := revokeLua.Run(ctx, s.redis, []string{s.tokenKey(jti)}, jti, s.subjectPrefix()).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeAllForSubject deletes every record indexed under subject.
func (s *RedisStore) RevokeAllForSubject(ctx context.Context, subject string) error {
	err := revokeAllLua.Run(ctx, s.redis, []string{s.subjectKey(subject)}, subject, s.tokenPrefix()).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeIfActive deletes jti in one script and reports whether it was
// active. Of concurrent callers at most one gets true.
func (s *RedisStore) RevokeIfActive(ctx context.Context, jti string) (bool, error) {
	n, err := revokeIfActiveLua.Run(ctx, s.redis,
		[]string{s.tokenKey(jti)},
		jti,
		s.subjectPrefix(),
		s.now().UnixMilli(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

// Ping checks Redis availability and returns the round-trip latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}
