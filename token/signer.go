package token

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// Digest selects the hash function used for key derivation and signing.
//
// Digest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Digest string

const (
	// DigestSHA1 is accepted for interoperability with legacy tokens only.
	DigestSHA1 Digest = "sha1"
	// DigestSHA256 is the default digest.
	DigestSHA256 Digest = "sha256"
	// DigestSHA512 is an exported constant or variable used by the session codec.
	DigestSHA512 Digest = "sha512"
)

// KeyDerivation selects how the signing key is derived from the secret and salt.
//
// KeyDerivation instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type KeyDerivation string

const (
	// DeriveHMAC derives the key as MAC(secret, salt). Default.
	DeriveHMAC KeyDerivation = "hmac"
	// DeriveConcat derives the key as digest(salt || secret).
	DeriveConcat KeyDerivation = "concat"
	// DerivePBKDF2 derives the key with PBKDF2 over the salt.
	DerivePBKDF2 KeyDerivation = "pbkdf2"
)

const defaultPBKDF2Iterations = 10_000

// Signer computes and verifies keyed signatures over token bytes using a key
// derived from a secret and a purpose salt.
//
// Signer instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Signer struct {
	key    []byte
	digest func() hash.Hash
}

// NewSigner derives the signing key and returns a [Signer].
//
// NewSigner may return an error when input validation, dependency calls, or security checks fail.
// NewSigner does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewSigner(secretKey []byte, salt string, digest Digest, derivation KeyDerivation, pbkdf2Iterations int) (*Signer, error) {
	if len(secretKey) == 0 {
		return nil, errors.New("secret key required")
	}

	digestFn, err := digestFunc(digest)
	if err != nil {
		return nil, err
	}

	key, err := deriveKey(secretKey, salt, digestFn, derivation, pbkdf2Iterations)
	if err != nil {
		return nil, err
	}

	return &Signer{key: key, digest: digestFn}, nil
}

// Sign returns the signature over value.
//
// Sign may return an error when input validation, dependency calls, or security checks fail.
// Sign does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Signer) Sign(value []byte) []byte {
	mac := hmac.New(s.digest, s.key)
	mac.Write(value)
	return mac.Sum(nil)
}

// Verify reports whether sig is a valid signature over value. The comparison
// is constant-time.
//
// Verify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Signer) Verify(value, sig []byte) bool {
	return hmac.Equal(s.Sign(value), sig)
}

// SignatureSize returns the signature length in bytes for the configured digest.
func (s *Signer) SignatureSize() int {
	return s.digest().Size()
}

func digestFunc(digest Digest) (func() hash.Hash, error) {
	switch digest {
	case "", DigestSHA256:
		return sha256.New, nil
	case DigestSHA1:
		return sha1.New, nil
	case DigestSHA512:
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported digest")
	}
}

func deriveKey(secretKey []byte, salt string, digestFn func() hash.Hash, derivation KeyDerivation, pbkdf2Iterations int) ([]byte, error) {
	switch derivation {
	case "", DeriveHMAC:
		mac := hmac.New(digestFn, secretKey)
		mac.Write([]byte(salt))
		return mac.Sum(nil), nil
	case DeriveConcat:
		h := digestFn()
		h.Write([]byte(salt))
		h.Write(secretKey)
		return h.Sum(nil), nil
	case DerivePBKDF2:
		if pbkdf2Iterations <= 0 {
			pbkdf2Iterations = defaultPBKDF2Iterations
		}
		return pbkdf2.Key(secretKey, []byte(salt), pbkdf2Iterations, digestFn().Size(), digestFn), nil
	default:
		return nil, errors.New("unsupported key derivation")
	}
}
