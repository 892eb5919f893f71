package jwtgate

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestErrorKindsAndStatus(t *testing.T) {
	cases := []struct {
		kind     ErrorKind
		sentinel error
		status   int
	}{
		{KindExpiredToken, ErrExpiredToken, http.StatusUnauthorized},
		{KindInvalidToken, ErrInvalidToken, http.StatusUnauthorized},
		{KindInvalidTokenType, ErrInvalidTokenType, http.StatusUnauthorized},
		{KindReuseDetected, ErrReuseDetected, http.StatusUnauthorized},
		{KindRefreshDisabled, ErrRefreshDisabled, http.StatusBadRequest},
		{KindInternal, ErrInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		err := error(newError(tc.kind, errors.New("secret detail")))
		if !errors.Is(err, tc.sentinel) {
			t.Fatalf("%s: errors.Is failed", tc.kind)
		}
		if HTTPStatus(err) != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.kind, tc.status, HTTPStatus(err))
		}
		if KindOf(fmt.Errorf("wrapped: %w", err)) != tc.kind {
			t.Fatalf("%s: kind lost through wrapping", tc.kind)
		}
		if strings.Contains(err.Error(), "secret detail") {
			t.Fatalf("%s: cause leaked into message %q", tc.kind, err.Error())
		}
	}
}

func TestKindOfForeignErrors(t *testing.T) {
	if KindOf(nil) != "" {
		t.Fatal("nil must have no kind")
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatal("foreign errors map to internal")
	}
	if HTTPStatus(nil) != http.StatusOK {
		t.Fatal("nil maps to 200")
	}
}
