package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/jwtgate"
	"github.com/MrEthical07/jwtgate/internal/rate"
	"github.com/MrEthical07/jwtgate/jwt"
	"github.com/MrEthical07/jwtgate/middleware"
)

// Engine is the subset of *jwtgate.Engine the handlers use.
type Engine interface {
	IssueTokens(ctx context.Context, subject string, roles []string) (*jwtgate.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*jwtgate.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, subject string) error
	IsValid(token string) bool
	ValidateAccess(token string) (*jwt.Claims, error)
	Health(ctx context.Context) jwtgate.HealthStatus
}

// LoginLimiter throttles failed logins. *rate.Limiter satisfies it.
type LoginLimiter interface {
	Check(ctx context.Context, username, ip string) error
	Fail(ctx context.Context, username, ip string) error
	Reset(ctx context.Context, username, ip string) error
}

var _ LoginLimiter = (*rate.Limiter)(nil)

// Options configures a Handler.
type Options struct {
	// Authenticator checks login credentials. nil uses DemoCredentials.
	Authenticator Authenticator
	// Limiter, when set, throttles failed logins.
	Limiter LoginLimiter
	// Header carries the bearer token. Empty means "Authorization".
	Header string
	Logger *slog.Logger
}

// Handler serves the token endpoints.
type Handler struct {
	engine  Engine
	auth    Authenticator
	limiter LoginLimiter
	header  string
	logger  *slog.Logger
}

// New returns a Handler for engine.
func New(engine Engine, opts Options) *Handler {
	h := &Handler{
		engine:  engine,
		auth:    opts.Authenticator,
		limiter: opts.Limiter,
		header:  opts.Header,
		logger:  opts.Logger,
	}
	if h.auth == nil {
		h.auth = DemoCredentials()
	}
	if h.header == "" {
		h.header = "Authorization"
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	return h
}

// Register mounts every route on mux. The routes are not gated; wrap mux
// with middleware.Gate to enforce the configured protected paths. The /api
// handlers verify the token they read either way.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.login)
	mux.HandleFunc("POST /auth/refresh", h.refresh)
	mux.HandleFunc("POST /auth/logout", h.logout)
	mux.HandleFunc("GET /healthz", h.health)

	mux.HandleFunc("POST /api/logout-all", h.logoutAll)
	mux.HandleFunc("GET /api/verify", h.verify)
	mux.HandleFunc("GET /api/me", h.me)
	mux.HandleFunc("GET /api/is-admin", h.isAdmin)
	mux.HandleFunc("GET /api/has-role", h.hasRole)
}

// ServeHTTP serves the routes from a private mux.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	h.Register(mux)
	mux.ServeHTTP(w, r)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse is the body of a successful login or refresh.
type TokenResponse struct {
	AccessToken                string `json:"accessToken"`
	RefreshToken               string `json:"refreshToken"`
	AccessTokenExpiresAtMillis int64  `json:"accessTokenExpiresAtMillis"`
}

// ErrorResponse is the body of a failed engine call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MeResponse describes the caller's access token.
type MeResponse struct {
	Subject   string   `json:"subject"`
	Roles     []string `json:"roles"`
	Issuer    string   `json:"issuer"`
	IssuedAt  int64    `json:"issuedAt"`
	ExpiresAt int64    `json:"expiresAt"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ctx := withRequestContext(r)
	ip := clientIP(r)

	if h.limiter != nil {
		if err := h.limiter.Check(ctx, body.Username, ip); err != nil {
			h.limited(w, body.Username, err)
			return
		}
	}

	subject, roles, ok := h.auth.Authenticate(ctx, body.Username, body.Password)
	if !ok {
		if h.limiter != nil {
			if err := h.limiter.Fail(ctx, body.Username, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
				h.logger.Warn("jwtgate: login limiter failed", "error", err)
			}
		}
		h.logger.Info("jwtgate: login rejected", "username", body.Username)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if h.limiter != nil {
		if err := h.limiter.Reset(ctx, body.Username, ip); err != nil {
			h.logger.Warn("jwtgate: login limiter reset failed", "error", err)
		}
	}

	pair, err := h.engine.IssueTokens(ctx, subject, roles)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(pair))
}

func (h *Handler) limited(w http.ResponseWriter, username string, err error) {
	if errors.Is(err, rate.ErrRateLimited) {
		h.logger.Warn("jwtgate: login rate limited", "username", username)
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}
	h.logger.Error("jwtgate: login limiter unavailable", "error", err)
	writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
		Error:   "SERVICE_UNAVAILABLE",
		Message: "Login temporarily unavailable",
	})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.RefreshToken) == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	pair, err := h.engine.Refresh(withRequestContext(r), body.RefreshToken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(pair))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.RefreshToken) == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := h.engine.Logout(withRequestContext(r), body.RefreshToken); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	claims, err := h.engine.ValidateAccess(h.token(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.engine.LogoutAll(withRequestContext(r), claims.Subject); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.IsValid(h.token(r)))
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims, err := h.engine.ValidateAccess(h.token(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := MeResponse{
		Subject: claims.Subject,
		Roles:   claims.Roles,
		Issuer:  claims.Issuer,
	}
	if resp.Roles == nil {
		resp.Roles = []string{}
	}
	if claims.IssuedAt != nil {
		resp.IssuedAt = claims.IssuedAt.Unix()
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Unix()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) isAdmin(w http.ResponseWriter, r *http.Request) {
	claims, err := h.engine.ValidateAccess(h.token(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claims.HasRole("ADMIN"))
}

func (h *Handler) hasRole(w http.ResponseWriter, r *http.Request) {
	claims, err := h.engine.ValidateAccess(h.token(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claims.HasAnyRole(rolesParam(r)...))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	status := h.engine.Health(r.Context())
	code := http.StatusOK
	if !status.StoreAvailable {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"storeAvailable":     status.StoreAvailable,
		"storeLatencyMicros": status.StoreLatency.Microseconds(),
	})
}

// token prefers the token the gate put in the context and falls back to the
// raw header.
func (h *Handler) token(r *http.Request) string {
	if tok, ok := middleware.TokenFromContext(r.Context()); ok {
		return tok
	}
	return jwt.StripBearer(r.Header.Get(h.header))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := jwtgate.KindOf(err)
	message := "Internal server error"
	var typed *jwtgate.Error
	if errors.As(err, &typed) {
		message = typed.Message
	}
	if kind == jwtgate.KindInternal {
		h.logger.Error("jwtgate: request failed", "error", err)
	}
	writeJSON(w, kind.HTTPStatus(), ErrorResponse{Error: string(kind), Message: message})
}

func rolesParam(r *http.Request) []string {
	var roles []string
	for _, v := range r.URL.Query()["roles"] {
		for _, role := range strings.Split(v, ",") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}
	}
	return roles
}

func tokenResponse(p *jwtgate.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:                p.AccessToken,
		RefreshToken:               p.RefreshToken,
		AccessTokenExpiresAtMillis: p.AccessTokenExpiresAtMillis(),
	}
}

func withRequestContext(r *http.Request) context.Context {
	return jwtgate.WithClientIP(r.Context(), clientIP(r))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
