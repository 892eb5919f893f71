package flows

import (
	"errors"

	"github.com/MrEthical07/jwtgate/jwt"
)

// ValidateFailureKind classifies access token validation failures.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureExpired
	ValidateFailureInvalid
	ValidateFailureWrongType
)

// ValidateResult returns either claims or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.Claims
}

// ValidateDeps captures access token validation dependencies.
type ValidateDeps struct {
	Codec TokenCodec
}

// RunValidate verifies an access token. Validation is stateless; the store is
// never consulted.
func RunValidate(token string, deps ValidateDeps) ValidateResult {
	claims, err := deps.Codec.DecodeStrict(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return ValidateResult{Failure: ValidateFailureExpired, Err: err}
		}
		return ValidateResult{Failure: ValidateFailureInvalid, Err: err}
	}
	if claims.Type != jwt.TypeAccess {
		return ValidateResult{Failure: ValidateFailureWrongType, Err: errors.New("token is not an access token"), Claims: claims}
	}
	return ValidateResult{Claims: claims}
}
