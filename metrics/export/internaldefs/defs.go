package internaldefs

import (
	goBlog "github.com/MrEthical07/goBlog"
)

// CounterDef names one portal counter for exporters.
type CounterDef struct {
	ID   goBlog.MetricID
	Name string
	Help string
}

// HistogramDef names one portal histogram for exporters.
type HistogramDef struct {
	ID   goBlog.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: goBlog.MetricGuardAllow, Name: "blogportal_guard_allow_total", Help: "Guard evaluations allowed with the store token."},
	{ID: goBlog.MetricGuardReconcile, Name: "blogportal_guard_reconcile_total", Help: "Guard evaluations that adopted the persisted token and allowed."},
	{ID: goBlog.MetricGuardRedirect, Name: "blogportal_guard_redirect_total", Help: "Guard evaluations that redirected to login."},
	{ID: goBlog.MetricGuardExpiredAllowed, Name: "blogportal_guard_expired_allowed_total", Help: "Expired tokens allowed by the expired-token policy."},
	{ID: goBlog.MetricTokenDecodeFailure, Name: "blogportal_token_decode_failure_total", Help: "Tokens that could not be decoded."},
	{ID: goBlog.MetricStorageReadFailure, Name: "blogportal_storage_read_failure_total", Help: "Failed persisted-storage reads."},
	{ID: goBlog.MetricViewerFetchFailure, Name: "blogportal_viewer_fetch_failure_total", Help: "Failed viewer lookups after reconciliation."},
	{ID: goBlog.MetricLoginSuccess, Name: "blogportal_login_success_total", Help: "Successful logins."},
	{ID: goBlog.MetricLoginFailure, Name: "blogportal_login_failure_total", Help: "Rejected or failed logins."},
	{ID: goBlog.MetricSignupSuccess, Name: "blogportal_signup_success_total", Help: "Successful signups."},
	{ID: goBlog.MetricSignupFailure, Name: "blogportal_signup_failure_total", Help: "Rejected or failed signups."},
	{ID: goBlog.MetricLogout, Name: "blogportal_logout_total", Help: "Logouts."},
	{ID: goBlog.MetricAPIFailure, Name: "blogportal_api_failure_total", Help: "Failed remote API calls."},
	{ID: goBlog.MetricStaleResponseDiscarded, Name: "blogportal_stale_response_discarded_total", Help: "View responses discarded because a newer load started."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goBlog.MetricAPILatency, Name: "blogportal_api_latency_seconds", Help: "Remote API round-trip latency."},
}

// AuditDroppedName is the counter of audit events dropped on backpressure.
const AuditDroppedName = "blogportal_audit_dropped_total"

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// HistogramBucketLabels are the "le" label values of each bucket, +Inf
// included, for exporters that report buckets as labelled series.
var HistogramBucketLabels = []string{"0.05", "0.1", "0.25", "0.5", "1", "2.5", "5", "+Inf"}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
