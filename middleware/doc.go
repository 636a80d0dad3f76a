// Package middleware exposes the HTTP adapter that gives every request a
// session without the handler touching cookies.
//
// [Handle] loads the session before the wrapped handler runs, injects it into
// the request context for [SessionFromContext], and saves it back before the
// first byte of the response is written, so the Set-Cookie header always
// lands ahead of the header flush.
//
// # Architecture boundaries
//
// This package translates HTTP request/response mechanics into Manager calls.
// It does NOT sign tokens or talk to the store; all decisions are delegated
// to Manager.LoadSession and Manager.SaveSession.
//
// # What this package must NOT do
//
//   - Decode or encode session cookies directly (delegates to Manager).
//   - Write session state after the response headers have been flushed.
//   - Swallow handler panics.
package middleware
