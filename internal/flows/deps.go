package flows

import (
	"time"

	"github.com/MrEthical07/jwtgate/jwt"
)

// TokenCodec is the subset of jwt.Codec the flows depend on.
type TokenCodec interface {
	DecodeStrict(token string) (*jwt.Claims, error)
	IssueAccessTokenWithExpiry(subject string, roles []string) (string, time.Time, error)
	IssueRefreshToken(subject string, roles ...string) (string, error)
}

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	Issue    IssueDeps
	Refresh  RefreshDeps
	Validate ValidateDeps
	Logout   LogoutDeps
}
