// Package browsersession provides signed, tamper-evident browser sessions for
// net/http applications: a cookie carries either the session mapping itself or
// a reference into a Redis store, and either way the payload is authenticated
// with a key derived from a server-side secret.
//
// The package is designed for concurrent server workloads: Manager methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// browsersession is the public surface. It exposes [Manager], [Builder],
// [Config], and value types (MetricsSnapshot, AuditEvent). Token signing lives
// in token/, the session model and store in session/, and the request wrapper
// in middleware/.
//
// # What this package must NOT do
//
//   - Surface a decode failure to the application. A malformed, tampered, or
//     expired cookie downgrades to an empty session; the failure is visible
//     only through metrics and audit events.
//   - Trust any cookie content before its signature verifies.
//   - Import any sub-package that re-imports browsersession (no import cycles).
//
// # Performance contract
//
// LoadSession is the hot path. In cookie-embedded mode it must complete
// without network round-trips; store mode is allowed one Redis round-trip per
// call.
package browsersession
