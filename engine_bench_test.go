package jwtgate

import (
	"context"
	"testing"
)

func BenchmarkIssueTokens(b *testing.B) {
	engine := newTestEngine(b, newFakeClock(), engineOptions{})
	ctx := context.Background()
	roles := []string{"USER"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.IssueTokens(ctx, "bench", roles); err != nil {
			b.Fatalf("IssueTokens: %v", err)
		}
	}
}

func BenchmarkIsValid(b *testing.B) {
	engine := newTestEngine(b, newFakeClock(), engineOptions{})
	pair, err := engine.IssueTokens(context.Background(), "bench", []string{"USER"})
	if err != nil {
		b.Fatalf("IssueTokens: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !engine.IsValid(pair.AccessToken) {
			b.Fatal("expected valid token")
		}
	}
}

func BenchmarkValidateAccess(b *testing.B) {
	engine := newTestEngine(b, newFakeClock(), engineOptions{})
	pair, err := engine.IssueTokens(context.Background(), "bench", []string{"USER"})
	if err != nil {
		b.Fatalf("IssueTokens: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.ValidateAccess(pair.AccessToken); err != nil {
			b.Fatalf("ValidateAccess: %v", err)
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	engine := newTestEngine(b, newFakeClock(), engineOptions{})
	ctx := context.Background()
	pair, err := engine.IssueTokens(ctx, "bench", []string{"USER"})
	if err != nil {
		b.Fatalf("IssueTokens: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pair, err = engine.Refresh(ctx, pair.RefreshToken)
		if err != nil {
			b.Fatalf("Refresh: %v", err)
		}
	}
}
