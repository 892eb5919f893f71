// Package jwt issues and verifies the HS256-signed access and refresh tokens
// used by jwtgate.
//
// # Architecture boundaries
//
// This package owns the token wire format: claim layout, signing, parsing and
// the classification of verification failures into [ErrExpiredToken],
// [ErrInvalidSignature], [ErrIssuerMismatch] and [ErrMalformedToken].
//
// # What this package must NOT do
//
//   - Persist refresh tokens or consult a store.
//   - Implement rotation or reuse detection.
//   - Expose or mutate the signing secret after [NewCodec].
package jwt
