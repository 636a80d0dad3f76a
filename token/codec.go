package token

import "time"

// Codec is the reversible, authenticated transformation between a session
// mapping and an opaque cookie-safe string. Implementations must be safe for
// concurrent use and must return errors classifiable by [Kind].
type Codec interface {
	// Encode serializes values into a signed token. Failures are caller
	// errors (unserializable payload, size limit) and must be surfaced.
	Encode(values map[string]any) (string, error)

	// Decode verifies and deserializes a token. maxAge bounds the accepted
	// token age; maxAge <= 0 disables the age check.
	Decode(raw string, maxAge time.Duration) (map[string]any, error)
}
