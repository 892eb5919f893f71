package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef0123456789abc"

func newTestCodec(t *testing.T, mutate func(*Config)) *Codec {
	t.Helper()
	cfg := Config{
		Secret:     testSecret,
		Issuer:     "svc-a",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewCodec(cfg)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

func TestNewCodecRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"missing secret", Config{Issuer: "svc"}, ErrMissingSecret},
		{"blank secret", Config{Secret: "   ", Issuer: "svc"}, ErrMissingSecret},
		{"short secret", Config{Secret: strings.Repeat("k", MinSecretLength-1), Issuer: "svc"}, ErrSecretTooShort},
		{"missing issuer", Config{Secret: testSecret}, ErrMissingIssuer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewCodec(tc.cfg); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNewCodecDefaults(t *testing.T) {
	c, err := NewCodec(Config{Secret: strings.Repeat("k", MinSecretLength), Issuer: "svc"})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	if c.AccessTTL() != 15*time.Minute {
		t.Fatalf("unexpected access ttl %v", c.AccessTTL())
	}
	if c.RefreshTTL() != 7*24*time.Hour {
		t.Fatalf("unexpected refresh ttl %v", c.RefreshTTL())
	}
	if c.Issuer() != "svc" {
		t.Fatalf("unexpected issuer %q", c.Issuer())
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	c := newTestCodec(t, nil)

	token, exp, err := c.IssueAccessTokenWithExpiry("alice", []string{"ADMIN", "USER"})
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	claims, err := c.DecodeAndVerify(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.Subject != "alice" || claims.Issuer != "svc-a" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Type != TypeAccess {
		t.Fatalf("expected access type, got %q", claims.Type)
	}
	if !claims.HasRole("ADMIN") || !claims.HasAnyRole("nope", "USER") || claims.HasRole("ROOT") {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
	if claims.ID != "" {
		t.Fatalf("access tokens carry no jti, got %q", claims.ID)
	}
	if !claims.ExpiresAt.Time.Equal(exp) {
		t.Fatalf("returned expiry %v does not match token exp %v", exp, claims.ExpiresAt.Time)
	}
	if !c.IsValid(token) || !c.IsAccessToken(token) || c.IsRefreshToken(token) {
		t.Fatal("access token predicates disagree")
	}
}

func TestBearerPrefixIsAccepted(t *testing.T) {
	c := newTestCodec(t, nil)
	token, err := c.IssueAccessToken("alice", nil)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if _, err := c.DecodeAndVerify("Bearer " + token); err != nil {
		t.Fatalf("expected bearer prefix to be stripped: %v", err)
	}
}

func TestRefreshTokensCarryUniqueJTI(t *testing.T) {
	c := newTestCodec(t, nil)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		token, err := c.IssueRefreshToken("alice", "USER")
		if err != nil {
			t.Fatalf("issue refresh: %v", err)
		}
		claims, err := c.DecodeStrict(token)
		if err != nil {
			t.Fatalf("decode refresh: %v", err)
		}
		if claims.Type != TypeRefresh {
			t.Fatalf("expected refresh type, got %q", claims.Type)
		}
		if claims.ID == "" {
			t.Fatal("refresh token missing jti")
		}
		if _, dup := seen[claims.ID]; dup {
			t.Fatalf("duplicate jti %s", claims.ID)
		}
		seen[claims.ID] = struct{}{}
		if !c.IsRefreshToken(token) || c.IsAccessToken(token) {
			t.Fatal("refresh token predicates disagree")
		}
	}
}

func TestExpiryBoundaryIsExclusive(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	now := t0
	c := newTestCodec(t, func(cfg *Config) {
		cfg.Now = func() time.Time { return now }
	})

	token, err := c.IssueAccessToken("alice", nil)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	now = t0.Add(time.Minute - time.Second)
	if !c.IsValid(token) {
		t.Fatal("token should be valid one second before exp")
	}

	now = t0.Add(time.Minute)
	if c.IsValid(token) {
		t.Fatal("token must be invalid at exp")
	}
	if _, err := c.DecodeAndVerify(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestNegativeTTLProducesExpiredTokens(t *testing.T) {
	c := newTestCodec(t, func(cfg *Config) {
		cfg.AccessTTL = -1000 * time.Millisecond
	})
	token, err := c.IssueAccessToken("alice", []string{"USER"})
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if c.IsValid(token) {
		t.Fatal("token with negative ttl must not be valid")
	}
}

func TestForeignSecretIsRejected(t *testing.T) {
	issuer := newTestCodec(t, func(cfg *Config) { cfg.Secret = strings.Repeat("x", 48) })
	verifier := newTestCodec(t, nil)

	token, err := issuer.IssueAccessToken("alice", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if verifier.IsValid(token) {
		t.Fatal("token signed with another secret must be rejected")
	}
	if _, err := verifier.DecodeAndVerify(token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestIssuerMismatch(t *testing.T) {
	other := newTestCodec(t, func(cfg *Config) { cfg.Issuer = "svc-b" })
	c := newTestCodec(t, nil)

	token, err := other.IssueRefreshToken("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := c.DecodeAndVerify(token); !errors.Is(err, ErrIssuerMismatch) {
		t.Fatalf("DecodeAndVerify: expected ErrIssuerMismatch, got %v", err)
	}
	if _, err := c.DecodeStrict(token); !errors.Is(err, ErrIssuerMismatch) {
		t.Fatalf("DecodeStrict: expected ErrIssuerMismatch, got %v", err)
	}
}

func TestRejectsOtherAlgorithms(t *testing.T) {
	c := newTestCodec(t, nil)

	claims := Claims{
		Type: TypeAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "svc-a",
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	hs512, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}
	if c.IsValid(hs512) {
		t.Fatal("HS512 token must be rejected")
	}

	none, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if c.IsValid(none) {
		t.Fatal("unsigned token must be rejected")
	}
}

func TestRejectsTokensWithoutExpiryOrType(t *testing.T) {
	c := newTestCodec(t, nil)
	sign := func(claims Claims) string {
		t.Helper()
		s, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	noExp := sign(Claims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{Subject: "alice", Issuer: "svc-a"}})
	if _, err := c.DecodeStrict(noExp); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("missing exp: expected ErrMalformedToken, got %v", err)
	}

	noType := sign(Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "svc-a",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	if _, err := c.DecodeStrict(noType); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("missing type: expected ErrMalformedToken, got %v", err)
	}
}

func TestMalformedInputs(t *testing.T) {
	c := newTestCodec(t, nil)
	for _, in := range []string{"", "   ", "Bearer ", "not.a.jwt", "a.b", "....", "Bearer garbage"} {
		if c.IsValid(in) {
			t.Fatalf("expected %q to be invalid", in)
		}
		if _, err := c.DecodeAndVerify(in); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("expected ErrMalformedToken for %q, got %v", in, err)
		}
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	c := newTestCodec(t, nil)
	if _, err := c.IssueAccessToken("", nil); err == nil {
		t.Fatal("expected empty subject to be rejected")
	}
	if _, err := c.IssueRefreshToken(""); err == nil {
		t.Fatal("expected empty subject to be rejected")
	}
}

func TestIssuedRolesAreCopied(t *testing.T) {
	c := newTestCodec(t, nil)
	roles := []string{"USER"}
	token, err := c.IssueAccessToken("alice", roles)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	roles[0] = "ADMIN"
	claims, err := c.DecodeStrict(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.HasRole("ADMIN") {
		t.Fatal("roles must be captured at issue time")
	}
}
