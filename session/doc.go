// Package session holds the session data model and the optional server-side
// store.
//
// A [Session] is a string-keyed mapping with three state bits (new,
// accessed, modified) that the HTTP layer reads to decide whether to
// emit a Set-Cookie header and a Vary: Cookie header. The reserved key
// "_permanent" marks a session whose cookie outlives the browser tab.
//
// [Store] persists session mappings in Redis keyed by an opaque ID, for
// deployments that keep only a signed reference in the cookie.
//
// # Architecture boundaries
//
// This package owns session state and persistence. It does NOT sign tokens,
// parse cookies, or decide cookie attributes; those belong to the token
// package and the Manager.
//
// # What this package must NOT do
//
//   - Mark a session accessed or modified on internal bookkeeping reads.
//   - Hand callers a reference into the live values map (copies only).
//   - Import browsersession, token, or middleware (no upward imports).
package session
