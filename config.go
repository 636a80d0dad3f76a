package browsersession

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/edemocracy/browsersession/token"
)

// Config defines a public type used by browsersession APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Cookie  CookieConfig
	Token   TokenConfig
	Session SessionConfig
	Store   StoreConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig defines a public type used by browsersession APIs.
//
// CookieConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CookieConfig struct {
	Name       string
	Path       string
	Domain     string // explicit domain; overrides ServerName detection
	ServerName string // host[:port] used to detect the cookie domain
	Secure     bool
	HTTPOnly   bool
	SameSite   http.SameSite
	MaxBytes   int // reject Set-Cookie values larger than this; 0 disables
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenFormat selects the wire format of the session token.
//
// TokenFormat instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenFormat string

const (
	// FormatSigned is the compact payload.timestamp.signature format. Default.
	FormatSigned TokenFormat = "signed"
	// FormatJWT carries the same mapping as a JWS token.
	FormatJWT TokenFormat = "jwt"
)

// TokenConfig defines a public type used by browsersession APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	SecretKey        []byte
	Salt             string
	Digest           token.Digest
	KeyDerivation    token.KeyDerivation
	PBKDF2Iterations int
	Compression      bool
	MaxClockSkew     time.Duration
	Format           TokenFormat
	Issuer           string // stamped into JWT tokens; ignored for signed format
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by browsersession APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	// PermanentLifetime bounds the age of permanent sessions and the Max-Age
	// of their cookies.
	PermanentLifetime time.Duration
	// RefreshEachRequest re-issues the cookie of a permanent session on every
	// response so the lifetime slides with activity.
	RefreshEachRequest bool
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig defines a public type used by browsersession APIs.
//
// StoreConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StoreConfig struct {
	// Enabled switches the cookie payload from the session mapping to a
	// signed store reference, with the mapping held in Redis.
	Enabled           bool
	RedisPrefix       string
	SlidingExpiration bool
	JitterEnabled     bool
	JitterRange       time.Duration
}

// AuditConfig defines a public type used by browsersession APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by browsersession APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Cookie: CookieConfig{
			Name:     "session",
			Path:     "/",
			Secure:   true,
			HTTPOnly: true,
			SameSite: http.SameSiteLaxMode,
			MaxBytes: 4093,
		},
		Token: TokenConfig{
			Salt:          "cookie-session",
			Digest:        token.DigestSHA256,
			KeyDerivation: token.DeriveHMAC,
			MaxClockSkew:  30 * time.Second,
			Format:        FormatSigned,
		},
		Session: SessionConfig{
			PermanentLifetime:  time.Hour,
			RefreshEachRequest: false,
		},
		Store: StoreConfig{
			Enabled:           false,
			RedisPrefix:       "bs",
			SlidingExpiration: true,
			JitterEnabled:     true,
			JitterRange:       30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.SecretKey = cloneBytes(cfg.Token.SecretKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Cookie
	if c.Cookie.Name == "" {
		return errors.New("Cookie Name must not be empty")
	}
	if strings.ContainsAny(c.Cookie.Name, " \t\r\n;,=") {
		return errors.New("Cookie Name contains invalid characters")
	}
	if c.Cookie.Path == "" {
		return errors.New("Cookie Path must not be empty")
	}
	if c.Cookie.MaxBytes < 0 {
		return errors.New("Cookie MaxBytes must be >= 0")
	}

	// Token
	if len(c.Token.SecretKey) == 0 {
		return ErrSecretKeyRequired
	}
	if c.Token.Format != FormatSigned && c.Token.Format != FormatJWT {
		return errors.New("Token Format must be 'signed' or 'jwt'")
	}
	if c.Token.MaxClockSkew < 0 {
		return errors.New("Token MaxClockSkew must be >= 0")
	}
	if c.Token.PBKDF2Iterations < 0 {
		return errors.New("Token PBKDF2Iterations must be >= 0")
	}

	// Session
	if c.Session.PermanentLifetime <= 0 {
		return errors.New("Session PermanentLifetime must be > 0")
	}

	// Store
	if c.Store.Enabled {
		if c.Store.RedisPrefix == "" {
			return errors.New("Store RedisPrefix must not be empty when the store is enabled")
		}
		if c.Store.JitterRange < 0 {
			return errors.New("Store JitterRange must be >= 0")
		}
		if c.Store.JitterRange > time.Duration((math.MaxInt64-1)/2) {
			return errors.New("Store JitterRange is too large")
		}
		if c.Store.JitterEnabled && c.Store.JitterRange <= 0 {
			return errors.New("Store JitterRange must be > 0 when JitterEnabled is true")
		}
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	return nil
}
