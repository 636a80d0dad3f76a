// Package prometheus provides Prometheus collectors for browsersession metrics.
//
// [NewPrometheusExporter] accepts a [browsersession.Manager] and exposes an
// [http.Handler] that renders all counters and histograms in Prometheus text
// exposition format. Counter names are prefixed browsersession_*_total; the
// single histogram is browsersession_decode_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate manager state.
package prometheus
