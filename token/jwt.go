package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTCodec is the JWS-format implementation of [Codec]. It carries the same
// contract as [Serializer] (signed mapping in, classified failure taxonomy
// out) for deployments that need tokens other tooling can inspect.
//
// JWTCodec instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTCodec struct {
	key          []byte
	issuer       string
	maxClockSkew time.Duration
	clock        func() time.Time
}

type sessionClaims struct {
	Data map[string]any `json:"d,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTCodec returns a [JWTCodec] signing with HS256. issuer is optional and
// is stamped into (and required back from) the registered claims when set.
//
// NewJWTCodec may return an error when input validation, dependency calls, or security checks fail.
func NewJWTCodec(secretKey []byte, issuer string, maxClockSkew time.Duration, clock func() time.Time) (*JWTCodec, error) {
	if len(secretKey) == 0 {
		return nil, errors.New("secret key required")
	}
	if maxClockSkew <= 0 {
		maxClockSkew = defaultMaxClockSkew
	}
	if clock == nil {
		clock = time.Now
	}
	return &JWTCodec{key: secretKey, issuer: issuer, maxClockSkew: maxClockSkew, clock: clock}, nil
}

// Encode serializes values into a signed JWS token.
//
// Encode may return an error when input validation, dependency calls, or security checks fail.
// Encode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *JWTCodec) Encode(values map[string]any) (string, error) {
	now := c.clock()
	claims := sessionClaims{
		Data: values,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   c.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// Decode verifies raw and returns the embedded mapping. maxAge <= 0 disables
// the age check; the skew allowance covers iat values slightly in the future.
//
// Decode may return an error when input validation, dependency calls, or security checks fail.
// Decode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *JWTCodec) Decode(raw string, maxAge time.Duration) (map[string]any, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.clock),
		jwt.WithLeeway(c.maxClockSkew),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	}, opts...)
	if err != nil {
		return nil, classifyJWTError(err)
	}

	if maxAge > 0 {
		if claims.IssuedAt == nil {
			return nil, fmt.Errorf("%w: missing issue time", ErrMalformed)
		}
		if c.clock().Sub(claims.IssuedAt.Time) > maxAge {
			return nil, fmt.Errorf("%w: issued too long ago", ErrExpired)
		}
	}

	if claims.Data == nil {
		return map[string]any{}, nil
	}
	return claims.Data, nil
}

// classifyJWTError folds the jwt library's error surface onto the package's
// three-kind taxonomy.
func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued), errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
