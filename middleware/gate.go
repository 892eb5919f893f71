package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

const (
	bearerPrefix = "Bearer "
	// InvalidTokenBody is the response body sent for a token that fails
	// verification.
	InvalidTokenBody = "Invalid JWT token"
)

// Verifier reports whether a raw bearer token is valid.
type Verifier interface {
	IsValid(token string) bool
}

// Config selects the requests the gate guards.
type Config struct {
	// Header carries the bearer token. Empty means "Authorization".
	Header string
	// ProtectedPaths lists the guarded path globs. Empty guards every path.
	ProtectedPaths []string
	// ExcludedPaths are let through even when they are protected.
	ExcludedPaths []string
	Logger        *slog.Logger
}

type tokenContextKey struct{}

// TokenFromContext returns the raw token accepted by Gate.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(string)
	return token, ok && token != ""
}

// WithToken returns a copy of ctx carrying token, as Gate does.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// Gate returns middleware that rejects guarded requests without a valid
// bearer token.
//
// A missing header or one without the "Bearer " scheme yields 401 with an
// empty body. A token the verifier rejects yields 401 with body
// InvalidTokenBody.
func Gate(verifier Verifier, cfg Config) func(http.Handler) http.Handler {
	header := cfg.Header
	if header == "" {
		header = "Authorization"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	protected := NewPathMatcher(cfg.ProtectedPaths)
	excluded := NewPathMatcher(cfg.ExcludedPaths)

	guarded := func(path string) bool {
		if _, ok := excluded.Match(path); ok {
			return false
		}
		if protected.Len() == 0 {
			return true
		}
		_, ok := protected.Match(path)
		return ok
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if !guarded(path) {
				logger.Debug("jwtgate: path not guarded", "path", path)
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r.Header.Get(header))
			if !ok {
				logger.Warn("jwtgate: missing bearer token", "path", path)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			if verifier == nil || !verifier.IsValid(token) {
				logger.Warn("jwtgate: invalid or expired token", "path", path)
				http.Error(w, InvalidTokenBody, http.StatusUnauthorized)
				return
			}

			logger.Debug("jwtgate: request authorized", "path", path)
			next.ServeHTTP(w, r.WithContext(WithToken(r.Context(), token)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	if !strings.HasPrefix(value, bearerPrefix) {
		return "", false
	}

	return value[len(bearerPrefix):], true
}
