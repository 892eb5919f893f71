package jwt

import "errors"

var (
	// ErrMissingSecret is returned by NewCodec when no signing secret is configured.
	ErrMissingSecret = errors.New("jwt secret is required")
	// ErrSecretTooShort is returned by NewCodec when the secret is below MinSecretLength bytes.
	ErrSecretTooShort = errors.New("jwt secret must be at least 32 bytes (256 bits) for HS256")
	// ErrMissingIssuer is returned by NewCodec when no issuer is configured.
	ErrMissingIssuer = errors.New("jwt issuer is required")

	// ErrExpiredToken reports a correctly signed token whose exp is not after now.
	ErrExpiredToken = errors.New("token expired")
	// ErrInvalidSignature reports a signature mismatch or an unexpected signing algorithm.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrIssuerMismatch reports an iss claim that differs from the configured issuer.
	ErrIssuerMismatch = errors.New("invalid token issuer")
	// ErrMalformedToken reports any other structural or claim failure.
	ErrMalformedToken = errors.New("malformed token")
)
