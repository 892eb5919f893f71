package jwt

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the smallest accepted HS256 secret, in bytes.
const MinSecretLength = 32

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	bearerPrefix      = "Bearer "
)

// Config configures a Codec. It is copied by NewCodec and never read again.
type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now overrides the clock used for iat/exp and for verification.
	Now func() time.Time
	// Logger receives verification diagnostics from IsValid. nil discards them.
	Logger *slog.Logger
}

// Codec signs and verifies tokens with a single immutable HS256 secret.
//
// A Codec is safe for concurrent use. Rotating the secret means building a
// new Codec; there is no way to swap the key of an existing one.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	log        *slog.Logger
}

// NewCodec validates cfg and returns a ready Codec. It fails when the secret
// is absent or shorter than MinSecretLength bytes, or when no issuer is set.
func NewCodec(cfg Config) (*Codec, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, ErrMissingSecret
	}
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, ErrMissingIssuer
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &Codec{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
		log:        cfg.Logger,
	}, nil
}

// Issuer returns the configured iss value.
func (c *Codec) Issuer() string { return c.issuer }

// AccessTTL returns the lifetime applied to access tokens.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the lifetime applied to refresh tokens.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccessToken mints an access token for subject carrying roles.
func (c *Codec) IssueAccessToken(subject string, roles []string) (string, error) {
	token, _, err := c.IssueAccessTokenWithExpiry(subject, roles)
	return token, err
}

// IssueAccessTokenWithExpiry mints an access token and also returns the exp
// value written into it.
func (c *Codec) IssueAccessTokenWithExpiry(subject string, roles []string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("subject is required")
	}
	now := c.now()
	claims := Claims{
		Roles: cloneRoles(roles),
		Type:  TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
	}

	token, err := c.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

// IssueRefreshToken mints a refresh token with a fresh random jti. Roles are
// optional; when present they are carried forward on rotation.
//
// The token is not persisted; registering its jti with a store is the
// caller's responsibility.
func (c *Codec) IssueRefreshToken(subject string, roles ...string) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	now := c.now()
	claims := Claims{
		Roles: cloneRoles(roles),
		Type:  TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
		},
	}
	return c.sign(claims)
}

// DecodeAndVerify verifies signature and expiry, then checks the issuer, and
// returns the full claim set. An optional "Bearer " prefix is ignored.
func (c *Codec) DecodeAndVerify(token string) (*Claims, error) {
	claims, err := c.parse(token, false)
	if err != nil {
		return nil, err
	}
	if claims.Issuer != c.issuer {
		return nil, fmt.Errorf("%w: got %q", ErrIssuerMismatch, claims.Issuer)
	}
	return claims, nil
}

// DecodeStrict behaves like DecodeAndVerify but makes the issuer a parser
// requirement, so mismatches are rejected while parsing.
func (c *Codec) DecodeStrict(token string) (*Claims, error) {
	return c.parse(token, true)
}

// IsValid reports whether token verifies. Every failure collapses to false.
func (c *Codec) IsValid(token string) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}
	claims, err := c.DecodeStrict(token)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			c.log.Warn("jwtgate: token expired", "error", err)
		} else {
			c.log.Warn("jwtgate: invalid token", "error", err)
		}
		return false
	}
	c.log.Debug("jwtgate: token valid", "subject", claims.Subject)
	return true
}

// IsAccessToken reports whether token verifies and is an access token.
func (c *Codec) IsAccessToken(token string) bool {
	claims, err := c.DecodeStrict(token)
	return err == nil && claims.Type == TypeAccess
}

// IsRefreshToken reports whether token verifies and is a refresh token.
func (c *Codec) IsRefreshToken(token string) bool {
	claims, err := c.DecodeStrict(token)
	return err == nil && claims.Type == TypeRefresh
}

func (c *Codec) sign(claims Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (c *Codec) parse(token string, requireIssuer bool) (*Claims, error) {
	token = StripBearer(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if requireIssuer {
		options = append(options, jwt.WithIssuer(c.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid {
		return nil, ErrMalformedToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformedToken)
	}
	if claims.Type != TypeAccess && claims.Type != TypeRefresh {
		return nil, fmt.Errorf("%w: unknown token type %q", ErrMalformedToken, claims.Type)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpiredToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %v", ErrIssuerMismatch, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

// StripBearer removes a leading "Bearer " scheme and surrounding whitespace.
func StripBearer(token string) string {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(token, bearerPrefix) {
		token = strings.TrimSpace(token[len(bearerPrefix):])
	}
	return token
}

func cloneRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	out := make([]string, len(roles))
	copy(out, roles)
	return out
}
