package token

import "errors"

var (
	// ErrMalformed is returned when a token cannot be split or parsed into its
	// constituent parts.
	ErrMalformed = errors.New("token malformed")
	// ErrInvalidSignature is returned when the recomputed signature does not
	// match the one embedded in the token.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrExpired is returned when the signature verifies but the embedded
	// timestamp is older than the allowed maximum age.
	ErrExpired = errors.New("token expired")
	// ErrTokenTooLarge is returned by Encode when the resulting token exceeds
	// the configured size limit. This is a caller error, never downgraded.
	ErrTokenTooLarge = errors.New("token exceeds size limit")
)

// FailureKind classifies a decode failure. Every error returned by
// [Codec.Decode] maps to exactly one kind.
type FailureKind int

const (
	// KindNone means the error is nil or did not come from a decode.
	KindNone FailureKind = iota
	// KindMalformed groups structural parse failures.
	KindMalformed
	// KindInvalidSignature groups signature and timestamp-trust failures.
	KindInvalidSignature
	// KindExpired groups valid-but-too-old tokens.
	KindExpired
)

// Kind maps a decode error onto its [FailureKind]. It forces callers through
// the complete failure taxonomy instead of string matching.
func Kind(err error) FailureKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrExpired):
		return KindExpired
	case errors.Is(err, ErrInvalidSignature):
		return KindInvalidSignature
	case errors.Is(err, ErrMalformed):
		return KindMalformed
	default:
		return KindMalformed
	}
}
