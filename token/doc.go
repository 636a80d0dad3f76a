// Package token implements the signed session-token codecs: a timed, URL-safe
// serializer for cookie payloads and a JWS-format alternative with the same
// contract.
//
// # Token format
//
// The default [Serializer] produces tokens of the form
//
//	[.]payload "." timestamp "." signature
//
// where payload is URL-safe unpadded base64 of canonical JSON (zlib-deflated
// when that is smaller, marked by the leading dot), timestamp is URL-safe
// base64 of the big-endian issue time in Unix seconds, and signature is a
// keyed MAC over everything before the final dot. The signing key is derived
// from the secret and salt; the secret itself never signs directly.
//
// # Failure taxonomy
//
// Decode failures map onto exactly three sentinel errors: [ErrMalformed],
// [ErrInvalidSignature], and [ErrExpired]. [Kind] classifies any decode
// error into one of them. Callers must treat every kind as "no session
// present"; none of them is fatal.
//
// # Architecture boundaries
//
// This package owns signing, verification, and payload serialization. It does
// NOT read cookies, set response headers, or talk to any store; those
// responsibilities belong to the Manager.
//
// # What this package must NOT do
//
//   - Trust any part of a token before the signature verifies (no partial trust).
//   - Compare signatures with anything but a constant-time comparison.
//   - Import browsersession, session, or middleware (no upward imports).
package token
