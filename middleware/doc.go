// Package middleware exposes the HTTP auth gate built on top of a token
// Verifier, usually a jwtgate.Engine or a jwt.Codec.
//
// # Gate
//
// [Gate] reads the bearer token from the configured header, asks the verifier
// whether it is valid and stores the raw token in the request context
// ([TokenFromContext]). Paths are selected with glob patterns where '*'
// matches any run of characters, slashes included.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the Verifier).
//   - Access the refresh store.
//   - Make authorization decisions beyond pass/reject.
package middleware
