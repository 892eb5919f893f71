package jwtgate

import (
	"errors"
	"net/http"
)

// ErrorKind is the stable machine-readable code of an engine failure. It is
// what HTTP clients see in the "error" field of a JSON error body.
type ErrorKind string

const (
	KindExpiredToken     ErrorKind = "EXPIRED_TOKEN"
	KindInvalidToken     ErrorKind = "INVALID_TOKEN"
	KindInvalidTokenType ErrorKind = "INVALID_TOKEN_TYPE"
	KindReuseDetected    ErrorKind = "REFRESH_REUSE_DETECTED"
	KindRefreshDisabled  ErrorKind = "REFRESH_DISABLED"
	KindInternal         ErrorKind = "INTERNAL_ERROR"
)

var (
	// ErrExpiredToken matches any *Error of kind EXPIRED_TOKEN.
	ErrExpiredToken = errors.New("token expired")
	// ErrInvalidToken matches bad signatures, malformed tokens and issuer
	// mismatches.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidTokenType matches an access token used as refresh token and
	// the reverse.
	ErrInvalidTokenType = errors.New("invalid token type")
	// ErrReuseDetected matches a redemption of an inactive refresh token.
	// Every refresh token of the subject has been revoked when it is returned.
	ErrReuseDetected = errors.New("refresh token reuse detected")
	// ErrRefreshDisabled matches refresh calls while the feature is off.
	ErrRefreshDisabled = errors.New("refresh disabled")
	// ErrInternal matches store and issuance failures.
	ErrInternal = errors.New("internal error")
	// ErrEngineNotReady is returned by methods of a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

var kindSentinels = map[ErrorKind]error{
	KindExpiredToken:     ErrExpiredToken,
	KindInvalidToken:     ErrInvalidToken,
	KindInvalidTokenType: ErrInvalidTokenType,
	KindReuseDetected:    ErrReuseDetected,
	KindRefreshDisabled:  ErrRefreshDisabled,
	KindInternal:         ErrInternal,
}

var kindMessages = map[ErrorKind]string{
	KindExpiredToken:     "Token has expired",
	KindInvalidToken:     "Invalid token",
	KindInvalidTokenType: "Invalid token type",
	KindReuseDetected:    "Refresh token reuse detected; all sessions revoked",
	KindRefreshDisabled:  "Refresh tokens are disabled",
	KindInternal:         "Internal server error",
}

// Error is the typed failure returned by Engine operations.
//
// Error() and Message only ever carry the fixed human text of the kind. The
// underlying cause is reachable through Cause for logging and is never meant
// for clients.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func newError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Message: kindMessages[kind], cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.Kind) + ": " + e.Message
}

// Unwrap returns the sentinel of the kind so errors.Is works against the
// package-level Err values.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return kindSentinels[e.Kind]
}

// Cause returns the internal error that produced e, if any.
func (e *Error) Cause() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// HTTPStatus returns the status code for kind.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindExpiredToken, KindInvalidToken, KindInvalidTokenType, KindReuseDetected:
		return http.StatusUnauthorized
	case KindRefreshDisabled:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// KindOf extracts the kind of err. Errors that are not *Error map to
// INTERNAL_ERROR; nil maps to "".
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus returns the HTTP status for err, 200 for nil.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return KindOf(err).HTTPStatus()
}
