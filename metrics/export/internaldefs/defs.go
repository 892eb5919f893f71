package internaldefs

import (
	"strconv"
	"strings"

	"github.com/MrEthical07/jwtgate"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   jwtgate.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   jwtgate.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported from the dispatcher's own drop count rather
// than from the snapshot, so it is reported even with metrics disabled.
const (
	AuditDroppedName = "jwtgate_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

var CounterDefs = []CounterDef{
	{ID: jwtgate.MetricTokenIssued, Name: "jwtgate_token_issued_total", Help: "Token pairs issued at login."},
	{ID: jwtgate.MetricIssueFailure, Name: "jwtgate_issue_failure_total", Help: "Token pair issuance failures."},
	{ID: jwtgate.MetricRefreshSuccess, Name: "jwtgate_refresh_success_total", Help: "Successful refresh operations."},
	{ID: jwtgate.MetricRefreshFailure, Name: "jwtgate_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: jwtgate.MetricRefreshReuseDetected, Name: "jwtgate_refresh_reuse_detected_total", Help: "Refresh token reuses that revoked a subject."},
	{ID: jwtgate.MetricRefreshExpired, Name: "jwtgate_refresh_expired_total", Help: "Refresh attempts with an expired token."},
	{ID: jwtgate.MetricRefreshInvalid, Name: "jwtgate_refresh_invalid_total", Help: "Refresh attempts with an unverifiable token."},
	{ID: jwtgate.MetricRefreshWrongType, Name: "jwtgate_refresh_wrong_type_total", Help: "Refresh attempts with an access token."},
	{ID: jwtgate.MetricRefreshDisabled, Name: "jwtgate_refresh_disabled_total", Help: "Refresh attempts while refresh is disabled."},
	{ID: jwtgate.MetricStoreFailure, Name: "jwtgate_store_failure_total", Help: "Refresh token store errors."},
	{ID: jwtgate.MetricLogout, Name: "jwtgate_logout_total", Help: "Single-token logout operations."},
	{ID: jwtgate.MetricLogoutAll, Name: "jwtgate_logout_all_total", Help: "Logout-all operations."},
	{ID: jwtgate.MetricValidateSuccess, Name: "jwtgate_validate_success_total", Help: "Tokens that passed validation."},
	{ID: jwtgate.MetricValidateFailure, Name: "jwtgate_validate_failure_total", Help: "Tokens that failed validation."},
}

var HistogramDefs = []HistogramDef{
	{ID: jwtgate.MetricValidateLatency, Name: "jwtgate_validate_latency_seconds", Help: "Token validation latency."},
}

// BucketCount is the number of histogram buckets including +Inf.
const BucketCount = len(jwtgate.HistogramBounds) + 1

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, len(jwtgate.HistogramBounds))
	for i, b := range jwtgate.HistogramBounds {
		out[i] = b.Seconds()
	}
	return out
}

// BoundSuffixes returns instrument-safe labels for each bucket, "0_005" for
// 5ms and "inf" for the last one.
func BoundSuffixes() []string {
	out := make([]string, 0, BucketCount)
	for _, b := range UpperBounds() {
		out = append(out, strings.ReplaceAll(strconv.FormatFloat(b, 'f', -1, 64), ".", "_"))
	}
	return append(out, "inf")
}

// NormalizeBuckets copies raw into a fixed-size array, zero filling or
// truncating as needed.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := range raw {
		running += raw[i]
		out[i] = running
	}
	return out
}
