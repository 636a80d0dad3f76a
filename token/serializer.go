package token

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	defaultMaxClockSkew = 30 * time.Second

	// Decompressed payloads are capped at this many bytes so a tiny
	// deflate bomb cannot balloon memory during decode.
	maxDecompressedBytes = 1 << 20

	compressionMarker = '.'
	partSeparator     = "."
)

// b64 rejects non-canonical encodings (non-zero trailing padding bits), so a
// token has exactly one byte representation.
var b64 = base64.RawURLEncoding.Strict()

// Config carries the knobs for a [Serializer]. The zero value is not usable;
// SecretKey is required and everything else receives a safe default.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// SecretKey is the signing secret. Required.
	SecretKey []byte
	// Salt namespaces the derived key so the same secret can sign unrelated
	// token families. Defaults to "cookie-session".
	Salt string
	// Digest selects the hash for derivation and signing. Default SHA-256.
	Digest Digest
	// KeyDerivation selects how the signing key is derived. Default hmac.
	KeyDerivation KeyDerivation
	// PBKDF2Iterations applies when KeyDerivation is pbkdf2.
	PBKDF2Iterations int
	// Compression enables zlib-deflating payloads when that shrinks them.
	Compression bool
	// MaxTokenBytes caps the encoded token size. Zero disables the cap.
	MaxTokenBytes int
	// MaxClockSkew is how far in the future a token timestamp may sit before
	// it stops being trusted. Defaults to 30s.
	MaxClockSkew time.Duration
	// Clock supplies the current time. Defaults to time.Now. Tests inject a
	// fixed clock here.
	Clock func() time.Time
}

// Serializer is the timed, URL-safe session-token codec. It implements
// [Codec].
//
// Serializer instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Serializer struct {
	signer        *Signer
	compression   bool
	maxTokenBytes int
	maxClockSkew  time.Duration
	clock         func() time.Time
}

// NewSerializer validates cfg, derives the signing key and returns a
// [Serializer].
//
// NewSerializer may return an error when input validation, dependency calls, or security checks fail.
func NewSerializer(cfg Config) (*Serializer, error) {
	salt := cfg.Salt
	if salt == "" {
		salt = "cookie-session"
	}

	signer, err := NewSigner(cfg.SecretKey, salt, cfg.Digest, cfg.KeyDerivation, cfg.PBKDF2Iterations)
	if err != nil {
		return nil, err
	}

	skew := cfg.MaxClockSkew
	if skew <= 0 {
		skew = defaultMaxClockSkew
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Serializer{
		signer:        signer,
		compression:   cfg.Compression,
		maxTokenBytes: cfg.MaxTokenBytes,
		maxClockSkew:  skew,
		clock:         clock,
	}, nil
}

// Encode serializes values into a signed, timestamped, cookie-safe token.
// Identical values encoded at the same instant produce identical tokens.
//
// Encode may return an error when input validation, dependency calls, or security checks fail.
// Encode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Serializer) Encode(values map[string]any) (string, error) {
	payload, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode session payload: %w", err)
	}

	compressed := false
	if s.compression {
		if deflated, ok := deflate(payload); ok {
			payload = deflated
			compressed = true
		}
	}

	var b strings.Builder
	if compressed {
		b.WriteByte(compressionMarker)
	}
	b.WriteString(b64.EncodeToString(payload))
	b.WriteString(partSeparator)
	b.WriteString(b64.EncodeToString(encodeTimestamp(s.clock().Unix())))

	signed := b.String()
	sig := s.signer.Sign([]byte(signed))

	token := signed + partSeparator + b64.EncodeToString(sig)
	if s.maxTokenBytes > 0 && len(token) > s.maxTokenBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTokenTooLarge, len(token))
	}
	return token, nil
}

// Decode verifies raw and returns the embedded mapping. The signature is
// checked before any other part of the token is interpreted. maxAge <= 0
// disables the age check.
//
// Decode may return an error when input validation, dependency calls, or security checks fail.
// Decode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Serializer) Decode(raw string, maxAge time.Duration) (map[string]any, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformed)
	}
	if s.maxTokenBytes > 0 && len(raw) > s.maxTokenBytes {
		return nil, fmt.Errorf("%w: oversized token", ErrMalformed)
	}

	sigAt := strings.LastIndexByte(raw, '.')
	if sigAt <= 0 {
		return nil, fmt.Errorf("%w: missing signature", ErrMalformed)
	}
	signed, sigB64 := raw[:sigAt], raw[sigAt+1:]

	sig, err := b64.DecodeString(sigB64)
	if err != nil {
		return nil, fmt.Errorf("%w: signature not base64", ErrMalformed)
	}
	if !s.signer.Verify([]byte(signed), sig) {
		return nil, ErrInvalidSignature
	}

	// Only now is the signed portion trusted enough to parse.
	tsAt := strings.LastIndexByte(signed, '.')
	if tsAt <= 0 {
		return nil, fmt.Errorf("%w: missing timestamp", ErrMalformed)
	}
	body, tsB64 := signed[:tsAt], signed[tsAt+1:]

	tsBytes, err := b64.DecodeString(tsB64)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp not base64", ErrMalformed)
	}
	issued, err := decodeTimestamp(tsBytes)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if issued.After(now.Add(s.maxClockSkew)) {
		return nil, fmt.Errorf("%w: timestamp in the future", ErrInvalidSignature)
	}
	if maxAge > 0 && now.Sub(issued) > maxAge {
		return nil, fmt.Errorf("%w: issued %s ago", ErrExpired, now.Sub(issued).Truncate(time.Second))
	}

	compressed := false
	if body[0] == compressionMarker {
		compressed = true
		body = body[1:]
	}
	payload, err := b64.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: payload not base64", ErrMalformed)
	}
	if compressed {
		payload, err = inflate(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: payload not valid zlib", ErrMalformed)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("%w: payload not a JSON object", ErrMalformed)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing payload data", ErrMalformed)
	}
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}

// encodeTimestamp renders a Unix-seconds value as minimal big-endian bytes,
// leading zero bytes trimmed.
func encodeTimestamp(unix int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(unix))
	i := 0
	for i < 7 && buf[i] == 0 {
		i++
	}
	return buf[i:]
}

func decodeTimestamp(b []byte) (time.Time, error) {
	if len(b) == 0 || len(b) > 8 {
		return time.Time{}, fmt.Errorf("%w: bad timestamp width", ErrMalformed)
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	if v > 1<<62 {
		return time.Time{}, fmt.Errorf("%w: timestamp out of range", ErrMalformed)
	}
	return time.Unix(int64(v), 0), nil
}

// deflate returns the zlib-compressed form of p and whether it is actually
// smaller than the input.
func deflate(p []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(p); err != nil {
		w.Close()
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	if buf.Len() >= len(p) {
		return nil, false
	}
	return buf.Bytes(), true
}

func inflate(p []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(p))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxDecompressedBytes+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxDecompressedBytes {
		return nil, fmt.Errorf("decompressed payload too large")
	}
	return out, nil
}
