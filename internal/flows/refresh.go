package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/jwtgate/jwt"
	"github.com/MrEthical07/jwtgate/store"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDisabled
	RefreshFailureExpired
	RefreshFailureInvalid
	RefreshFailureWrongType
	RefreshFailureReuse
	RefreshFailureStore
	RefreshFailureIssue
)

// RefreshResult carries either the rotated token pair or failure metadata.
type RefreshResult struct {
	Failure              RefreshFailureKind
	Err                  error
	Subject              string
	JTI                  string
	NewJTI               string
	AccessToken          string
	RefreshToken         string
	AccessTokenExpiresAt time.Time
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Enabled        bool
	Rotate         bool
	ReuseDetection bool
	Codec          TokenCodec
	Store          store.Store
	Warn           func(string, ...any)
}

// RunRefresh redeems refreshToken for a new pair.
//
// Steps run in order and each may end the flow: feature gate, decode,
// type check, reuse detection and rotation, issuance, registration of the
// new refresh jti.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	if !deps.Enabled {
		return RefreshResult{Failure: RefreshFailureDisabled}
	}

	claims, err := deps.Codec.DecodeStrict(refreshToken)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return RefreshResult{Failure: RefreshFailureExpired, Err: err}
		}
		return RefreshResult{Failure: RefreshFailureInvalid, Err: err}
	}
	if claims.Type != jwt.TypeRefresh {
		return RefreshResult{
			Failure: RefreshFailureWrongType,
			Err:     errors.New("token is not a refresh token"),
			Subject: claims.Subject,
		}
	}
	if claims.ID == "" {
		return RefreshResult{
			Failure: RefreshFailureInvalid,
			Err:     errors.New("refresh token has no jti"),
			Subject: claims.Subject,
		}
	}

	subject, jti := claims.Subject, claims.ID
	fail := func(kind RefreshFailureKind, err error) RefreshResult {
		return RefreshResult{Failure: kind, Err: err, Subject: subject, JTI: jti}
	}

	switch {
	case deps.ReuseDetection && deps.Rotate:
		active, err := deps.Store.RevokeIfActive(ctx, jti)
		if err != nil {
			return fail(RefreshFailureStore, err)
		}
		if !active {
			revokeAll(ctx, subject, deps)
			return fail(RefreshFailureReuse, errors.New("refresh token already redeemed or revoked"))
		}
	case deps.ReuseDetection:
		active, err := deps.Store.IsActive(ctx, jti)
		if err != nil {
			return fail(RefreshFailureStore, err)
		}
		if !active {
			revokeAll(ctx, subject, deps)
			return fail(RefreshFailureReuse, errors.New("refresh token is not active"))
		}
	case deps.Rotate:
		if err := deps.Store.Revoke(ctx, jti); err != nil {
			return fail(RefreshFailureStore, err)
		}
	}

	pair, failure, err := issuePair(ctx, subject, claims.Roles, deps.Codec, deps.Store)
	if err != nil {
		if failure == pairFailureStore {
			return fail(RefreshFailureStore, err)
		}
		return fail(RefreshFailureIssue, err)
	}

	return RefreshResult{
		Subject:              subject,
		JTI:                  jti,
		NewJTI:               pair.jti,
		AccessToken:          pair.access,
		RefreshToken:         pair.refresh,
		AccessTokenExpiresAt: pair.accessExpiresAt,
	}
}

func revokeAll(ctx context.Context, subject string, deps RefreshDeps) {
	if err := deps.Store.RevokeAllForSubject(ctx, subject); err != nil && deps.Warn != nil {
		deps.Warn("jwtgate: revoke-all after refresh reuse failed", "subject", subject, "error", err)
	}
}
