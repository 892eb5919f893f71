package jwtgate

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/jwtgate/jwt"
	"github.com/MrEthical07/jwtgate/store"
)

// RefreshTokenInfo is the introspection view of a refresh token. It never
// includes the token itself.
type RefreshTokenInfo struct {
	JTI       string
	Subject   string
	Roles     []string
	ExpiresAt time.Time
	// Active reports whether the store still holds a live record for JTI.
	Active bool
}

// HealthStatus is an on-demand store health result. Stores without a
// network dependency always report available.
type HealthStatus struct {
	StoreAvailable bool
	StoreLatency   time.Duration
}

// SecurityReport summarizes the security-relevant configuration.
type SecurityReport struct {
	SigningAlgorithm             string
	Issuer                       string
	SecretLength                 int
	AccessTTL                    time.Duration
	RefreshTTL                   time.Duration
	RefreshEnabled               bool
	RefreshRotationEnabled       bool
	RefreshReuseDetectionEnabled bool
	StoreBackend                 string
	ProtectedPaths               []string
	ExcludedPaths                []string
	AuditEnabled                 bool
}

// InspectRefreshToken verifies refreshToken and reports whether its record
// is still active. It does not change any state.
func (e *Engine) InspectRefreshToken(ctx context.Context, refreshToken string) (*RefreshTokenInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	claims, err := e.codec.DecodeStrict(refreshToken)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return nil, newError(KindExpiredToken, err)
		}
		return nil, newError(KindInvalidToken, err)
	}
	if claims.Type != jwt.TypeRefresh || claims.ID == "" {
		return nil, newError(KindInvalidTokenType, nil)
	}

	info := &RefreshTokenInfo{
		JTI:     claims.ID,
		Subject: claims.Subject,
		Roles:   append([]string(nil), claims.Roles...),
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}

	subject, found, err := e.store.SubjectFor(ctx, claims.ID)
	if err != nil {
		e.metricInc(MetricStoreFailure)
		return nil, newError(KindInternal, err)
	}
	if !found || subject != claims.Subject {
		return info, nil
	}
	active, err := e.store.IsActive(ctx, claims.ID)
	if err != nil {
		e.metricInc(MetricStoreFailure)
		return nil, newError(KindInternal, err)
	}
	info.Active = active
	return info, nil
}

func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.store == nil {
		return HealthStatus{}
	}

	pinger, ok := e.store.(store.Pinger)
	if !ok {
		return HealthStatus{StoreAvailable: true}
	}
	latency, err := pinger.Ping(ctx)
	if err != nil {
		e.logger.Warn("jwtgate: store ping failed", "error", err)
	}
	return HealthStatus{
		StoreAvailable: err == nil,
		StoreLatency:   latency,
	}
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		SigningAlgorithm:             "HS256",
		Issuer:                       e.config.JWT.Issuer,
		SecretLength:                 e.secretLen,
		AccessTTL:                    e.codec.AccessTTL(),
		RefreshTTL:                   e.codec.RefreshTTL(),
		RefreshEnabled:               e.config.Refresh.Enabled,
		RefreshRotationEnabled:       e.config.Refresh.Rotation,
		RefreshReuseDetectionEnabled: e.config.Refresh.ReuseDetection,
		StoreBackend:                 storeBackendName(e.store),
		ProtectedPaths:               append([]string(nil), e.config.Gate.ProtectedPaths...),
		ExcludedPaths:                append([]string(nil), e.config.Gate.ExcludedPaths...),
		AuditEnabled:                 e.config.Audit.Enabled,
	}
}

// storeBackendName names the store the engine actually runs on, which may
// differ from Store.Backend when WithStore injected one.
func storeBackendName(s store.Store) string {
	switch s.(type) {
	case *store.MemoryStore:
		return StoreBackendMemory
	case *store.RedisStore:
		return StoreBackendRedis
	case *store.PostgresStore:
		return StoreBackendPostgres
	default:
		return StoreBackendCustom
	}
}
