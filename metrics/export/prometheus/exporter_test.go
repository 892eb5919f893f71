package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/jwtgate"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot jwtgate.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() jwtgate.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }

func emptySnapshot() jwtgate.MetricsSnapshot {
	return jwtgate.MetricsSnapshot{
		Counters:      map[jwtgate.MetricID]uint64{},
		Histograms:    map[jwtgate.MetricID][]uint64{},
		HistogramSums: map[jwtgate.MetricID]time.Duration{},
	}
}

func TestCollectOnlyAuditDroppedWhenMetricsDisabled(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{snapshot: emptySnapshot(), dropped: 3})

	if n := testutil.CollectAndCount(c); n != 1 {
		t.Fatalf("expected only the audit drop counter, got %d metrics", n)
	}

	expected := `
# HELP jwtgate_audit_dropped_total Audit events dropped because the dispatcher buffer was full.
# TYPE jwtgate_audit_dropped_total counter
jwtgate_audit_dropped_total 3
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "jwtgate_audit_dropped_total"); err != nil {
		t.Fatalf("unexpected audit drop output: %v", err)
	}
}

func TestCollectCountersAndHistogram(t *testing.T) {
	snap := emptySnapshot()
	snap.Counters[jwtgate.MetricTokenIssued] = 7
	snap.Counters[jwtgate.MetricRefreshReuseDetected] = 2
	snap.Histograms[jwtgate.MetricValidateLatency] = []uint64{1, 2, 0, 0, 0, 0, 0, 1}
	snap.HistogramSums[jwtgate.MetricValidateLatency] = 1500 * time.Millisecond

	c := NewCollectorFromSource(fakeSource{snapshot: snap})

	expected := `
# HELP jwtgate_token_issued_total Token pairs issued at login.
# TYPE jwtgate_token_issued_total counter
jwtgate_token_issued_total 7
# HELP jwtgate_refresh_reuse_detected_total Refresh token reuses that revoked a subject.
# TYPE jwtgate_refresh_reuse_detected_total counter
jwtgate_refresh_reuse_detected_total 2
# HELP jwtgate_validate_latency_seconds Token validation latency.
# TYPE jwtgate_validate_latency_seconds histogram
jwtgate_validate_latency_seconds_bucket{le="0.005"} 1
jwtgate_validate_latency_seconds_bucket{le="0.01"} 3
jwtgate_validate_latency_seconds_bucket{le="0.025"} 3
jwtgate_validate_latency_seconds_bucket{le="0.05"} 3
jwtgate_validate_latency_seconds_bucket{le="0.1"} 3
jwtgate_validate_latency_seconds_bucket{le="0.25"} 3
jwtgate_validate_latency_seconds_bucket{le="0.5"} 3
jwtgate_validate_latency_seconds_bucket{le="+Inf"} 4
jwtgate_validate_latency_seconds_sum 1.5
jwtgate_validate_latency_seconds_count 4
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"jwtgate_token_issued_total",
		"jwtgate_refresh_reuse_detected_total",
		"jwtgate_validate_latency_seconds",
	)
	if err != nil {
		t.Fatalf("unexpected collector output: %v", err)
	}
}

func TestCollectorWithEngine(t *testing.T) {
	engine, err := jwtgate.New().
		WithConfig(engineConfig()).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	pair, err := engine.IssueTokens(t.Context(), "alice", []string{"USER"})
	if err != nil {
		t.Fatalf("IssueTokens: %v", err)
	}
	if !engine.IsValid(pair.AccessToken) {
		t.Fatal("expected issued access token to be valid")
	}

	c := NewCollector(engine)
	expected := `
# HELP jwtgate_token_issued_total Token pairs issued at login.
# TYPE jwtgate_token_issued_total counter
jwtgate_token_issued_total 1
# HELP jwtgate_validate_success_total Tokens that passed validation.
# TYPE jwtgate_validate_success_total counter
jwtgate_validate_success_total 1
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"jwtgate_token_issued_total", "jwtgate_validate_success_total"); err != nil {
		t.Fatalf("unexpected engine metrics: %v", err)
	}
}

func TestHandlerServesExpositionFormat(t *testing.T) {
	snap := emptySnapshot()
	snap.Counters[jwtgate.MetricLogoutAll] = 4
	c := NewCollectorFromSource(fakeSource{snapshot: snap, dropped: 1})

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, want := range []string{"jwtgate_logout_all_total 4", "jwtgate_audit_dropped_total 1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "jwtgate_validate_latency_seconds") {
		t.Fatalf("histogram must be absent when not in snapshot, got:\n%s", out)
	}
}

func engineConfig() jwtgate.Config {
	cfg := jwtgate.DefaultConfig()
	cfg.JWT.Secret = "0123456789abcdef0123456789abcdef"
	cfg.JWT.Issuer = "jwtgate-test"
	return cfg
}
