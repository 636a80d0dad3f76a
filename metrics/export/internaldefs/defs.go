package internaldefs

import (
	browsersession "github.com/edemocracy/browsersession"
)

// CounterDef defines a public type used by browsersession APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   browsersession.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by browsersession APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   browsersession.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session manager.
var CounterDefs = []CounterDef{
	{ID: browsersession.MetricSessionStarted, Name: "browsersession_session_started_total", Help: "Requests that began with a fresh session."},
	{ID: browsersession.MetricSessionLoaded, Name: "browsersession_session_loaded_total", Help: "Sessions restored from a valid cookie."},
	{ID: browsersession.MetricSessionSaved, Name: "browsersession_session_saved_total", Help: "Responses that issued a session cookie."},
	{ID: browsersession.MetricSessionDeleted, Name: "browsersession_session_deleted_total", Help: "Responses that deleted the session cookie."},
	{ID: browsersession.MetricSessionSaveFailed, Name: "browsersession_session_save_failed_total", Help: "Session writes that failed to encode or persist."},
	{ID: browsersession.MetricTokenMalformed, Name: "browsersession_token_malformed_total", Help: "Cookies rejected as structurally malformed."},
	{ID: browsersession.MetricTokenSignatureInvalid, Name: "browsersession_token_signature_invalid_total", Help: "Cookies rejected for signature mismatch."},
	{ID: browsersession.MetricTokenExpired, Name: "browsersession_token_expired_total", Help: "Cookies rejected as expired."},
	{ID: browsersession.MetricStoreHit, Name: "browsersession_store_hit_total", Help: "Store lookups that found a record."},
	{ID: browsersession.MetricStoreMiss, Name: "browsersession_store_miss_total", Help: "Store lookups with no matching record."},
	{ID: browsersession.MetricStoreError, Name: "browsersession_store_error_total", Help: "Store operations that failed."},
}

// HistogramDefs is an exported constant or variable used by the session manager.
var HistogramDefs = []HistogramDef{
	{ID: browsersession.MetricDecodeLatency, Name: "browsersession_decode_latency_seconds", Help: "Cookie decode latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the session manager.
var HistogramBounds = []string{
	"0.00005",
	"0.0001",
	"0.00025",
	"0.0005",
	"0.001",
	"0.005",
	"0.025",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the session manager.
var HistogramBoundSuffix = []string{
	"0_00005",
	"0_0001",
	"0_00025",
	"0_0005",
	"0_001",
	"0_005",
	"0_025",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
