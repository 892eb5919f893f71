package jwtgate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/jwtgate/internal/audit"
	"github.com/MrEthical07/jwtgate/internal/flows"
	"github.com/MrEthical07/jwtgate/jwt"
	"github.com/MrEthical07/jwtgate/store"
)

// ErrSubjectRequired is returned when a token pair is requested for an empty
// subject, or logout-all is called without one.
var ErrSubjectRequired = errors.New("subject is required")

// TokenPair is the result of a login or a successful rotation.
type TokenPair struct {
	AccessToken          string
	RefreshToken         string
	AccessTokenExpiresAt time.Time
}

// AccessTokenExpiresAtMillis returns the access token expiry as Unix
// milliseconds.
func (p *TokenPair) AccessTokenExpiresAtMillis() int64 {
	if p == nil {
		return 0
	}
	return p.AccessTokenExpiresAt.UnixMilli()
}

// Engine is the token lifecycle facade: issuance, refresh rotation with
// reuse detection, validation and revocation.
//
// Engine is safe for concurrent use. Its configuration is fixed at Build.
type Engine struct {
	config    Config
	secretLen int
	codec     *jwt.Codec
	store     store.Store
	flows     flows.Service
	audit     *audit.Dispatcher
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// Close drains pending audit events. The store is owned by the caller and is
// left open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events discarded so far.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}
	return e.metrics.Snapshot()
}

// Codec exposes the engine's token codec.
func (e *Engine) Codec() *jwt.Codec { return e.codec }

// Store exposes the engine's refresh token store.
func (e *Engine) Store() store.Store { return e.store }

// Config returns a copy of the configuration the engine was built with.
// JWT.Secret is always empty.
func (e *Engine) Config() Config { return cloneConfig(e.config) }

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.codec != nil && e.flows.Initialized()
}

// IssueTokens mints an access/refresh pair for an already authenticated
// subject and registers the refresh token as active.
func (e *Engine) IssueTokens(ctx context.Context, subject string, roles []string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Issue(ctx, subject, roles)
	switch res.Failure {
	case flows.IssueFailureNone:
	case flows.IssueFailureInput:
		return nil, ErrSubjectRequired
	default:
		e.metricInc(MetricIssueFailure)
		if res.Failure == flows.IssueFailureStore {
			e.metricInc(MetricStoreFailure)
		}
		e.logger.Error("jwtgate: token issue failed", "subject", subject, "error", res.Err)
		err := newError(KindInternal, res.Err)
		e.emitAudit(ctx, auditEventIssueFailure, false, subject, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventTokenIssued, true, subject, res.JTI, nil, nil)
	return &TokenPair{
		AccessToken:          res.AccessToken,
		RefreshToken:         res.RefreshToken,
		AccessTokenExpiresAt: res.AccessTokenExpiresAt,
	}, nil
}

// Refresh redeems a refresh token for a new pair.
//
// With reuse detection enabled, redeeming a token that is no longer active
// revokes every refresh token of its subject and fails with
// ErrReuseDetected. Of several concurrent redemptions of one token under
// rotation, exactly one succeeds.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Refresh(ctx, refreshToken)
	if res.Failure == flows.RefreshFailureNone {
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, res.Subject, res.NewJTI, nil, func() map[string]string {
			return map[string]string{"previous_jti": res.JTI}
		})
		return &TokenPair{
			AccessToken:          res.AccessToken,
			RefreshToken:         res.RefreshToken,
			AccessTokenExpiresAt: res.AccessTokenExpiresAt,
		}, nil
	}

	e.metricInc(MetricRefreshFailure)

	var (
		kind   ErrorKind
		reason string
	)
	switch res.Failure {
	case flows.RefreshFailureDisabled:
		e.metricInc(MetricRefreshDisabled)
		kind, reason = KindRefreshDisabled, "disabled"
	case flows.RefreshFailureExpired:
		e.metricInc(MetricRefreshExpired)
		kind, reason = KindExpiredToken, "expired"
	case flows.RefreshFailureInvalid:
		e.metricInc(MetricRefreshInvalid)
		kind, reason = KindInvalidToken, "invalid"
	case flows.RefreshFailureWrongType:
		e.metricInc(MetricRefreshWrongType)
		kind, reason = KindInvalidTokenType, "wrong_type"
	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		e.logger.Warn("jwtgate: refresh token reuse detected", "subject", res.Subject, "jti", res.JTI)
		err := newError(KindReuseDetected, res.Err)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, res.Subject, res.JTI, err, nil)
		return nil, err
	case flows.RefreshFailureStore:
		e.metricInc(MetricStoreFailure)
		kind, reason = KindInternal, "store"
	default:
		kind, reason = KindInternal, "issue"
	}

	if kind == KindInternal {
		e.logger.Error("jwtgate: refresh failed", "subject", res.Subject, "jti", res.JTI, "error", res.Err)
	} else {
		e.logger.Debug("jwtgate: refresh rejected", "reason", reason, "error", res.Err)
	}
	err := newError(kind, res.Err)
	e.emitAudit(ctx, auditEventRefreshFailure, false, res.Subject, res.JTI, err, reasonMetadata(reason))
	return nil, err
}

// IsValid reports whether token is a verifiable token of either type. It is
// the check the HTTP gate performs.
func (e *Engine) IsValid(token string) bool {
	if !e.ready() {
		return false
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}
	ok := e.codec.IsValid(token)
	if !start.IsZero() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	if ok {
		e.metricInc(MetricValidateSuccess)
	} else {
		e.metricInc(MetricValidateFailure)
	}
	return ok
}

// ValidateAccess verifies an access token and returns its claims. Refresh
// tokens are rejected with ErrInvalidTokenType. The store is not consulted.
func (e *Engine) ValidateAccess(token string) (*jwt.Claims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Validate(token)
	switch res.Failure {
	case flows.ValidateFailureNone:
		e.metricInc(MetricValidateSuccess)
		return res.Claims, nil
	case flows.ValidateFailureExpired:
		e.metricInc(MetricValidateFailure)
		return nil, newError(KindExpiredToken, res.Err)
	case flows.ValidateFailureWrongType:
		e.metricInc(MetricValidateFailure)
		return nil, newError(KindInvalidTokenType, res.Err)
	default:
		e.metricInc(MetricValidateFailure)
		return nil, newError(KindInvalidToken, res.Err)
	}
}

// Logout revokes the refresh token. Revoking an unknown or already revoked
// token succeeds.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	res := e.flows.Logout(ctx, refreshToken)
	if res.Err == nil {
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, true, res.Subject, res.JTI, nil, nil)
		return nil
	}

	var err *Error
	switch {
	case errors.Is(res.Err, jwt.ErrExpiredToken):
		err = newError(KindExpiredToken, res.Err)
	case errors.Is(res.Err, flows.ErrNotRefreshToken):
		err = newError(KindInvalidTokenType, res.Err)
	case errors.Is(res.Err, jwt.ErrInvalidSignature),
		errors.Is(res.Err, jwt.ErrIssuerMismatch),
		errors.Is(res.Err, jwt.ErrMalformedToken):
		err = newError(KindInvalidToken, res.Err)
	default:
		e.metricInc(MetricStoreFailure)
		e.logger.Error("jwtgate: logout failed", "subject", res.Subject, "jti", res.JTI, "error", res.Err)
		err = newError(KindInternal, res.Err)
	}
	e.emitAudit(ctx, auditEventLogout, false, res.Subject, res.JTI, err, nil)
	return err
}

// LogoutAll revokes every refresh token issued to subject. Access tokens
// already issued stay valid until they expire.
func (e *Engine) LogoutAll(ctx context.Context, subject string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if subject == "" {
		return ErrSubjectRequired
	}

	if err := e.flows.LogoutAll(ctx, subject); err != nil {
		e.metricInc(MetricStoreFailure)
		e.logger.Error("jwtgate: logout-all failed", "subject", subject, "error", err)
		typed := newError(KindInternal, err)
		e.emitAudit(ctx, auditEventLogoutAll, false, subject, "", typed, nil)
		return typed
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, subject, "", nil, nil)
	return nil
}
