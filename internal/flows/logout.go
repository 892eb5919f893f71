package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/jwtgate/jwt"
	"github.com/MrEthical07/jwtgate/store"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Codec TokenCodec
	Store store.Store
}

// LogoutResult reports which refresh record a logout targeted.
type LogoutResult struct {
	Subject string
	JTI     string
	Err     error
}

// ErrNotRefreshToken is returned when logout is given a token of another type.
var ErrNotRefreshToken = errors.New("token is not a refresh token")

// RunLogout revokes the refresh record behind refreshToken. Expired refresh
// tokens are rejected by the decoder; their records are inactive anyway.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	claims, err := deps.Codec.DecodeStrict(refreshToken)
	if err != nil {
		return LogoutResult{Err: err}
	}
	if claims.Type != jwt.TypeRefresh || claims.ID == "" {
		return LogoutResult{Subject: claims.Subject, Err: ErrNotRefreshToken}
	}
	return LogoutResult{
		Subject: claims.Subject,
		JTI:     claims.ID,
		Err:     deps.Store.Revoke(ctx, claims.ID),
	}
}

// RunLogoutAll revokes every refresh record owned by subject.
func RunLogoutAll(ctx context.Context, subject string, deps LogoutDeps) error {
	if subject == "" {
		return errors.New("subject is required")
	}
	return deps.Store.RevokeAllForSubject(ctx, subject)
}
