package browsersession

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/edemocracy/browsersession/token"
)

/*
====================================
CONFIG LINT
====================================
*/

// LintSeverity defines a public type used by browsersession APIs.
type LintSeverity int

const (
	// LintLow is an exported constant or variable used by the session manager.
	LintLow LintSeverity = iota
	// LintMedium is an exported constant or variable used by the session manager.
	LintMedium
	// LintHigh is an exported constant or variable used by the session manager.
	LintHigh
)

// String renders the severity for logs and error messages.
func (s LintSeverity) String() string {
	switch s {
	case LintLow:
		return "LOW"
	case LintMedium:
		return "MEDIUM"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning defines a public type used by browsersession APIs.
//
// LintWarning instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings defines a public type used by browsersession APIs.
type LintWarnings []LintWarning

// Codes returns the warning codes in emission order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above the given severity.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError may return an error when input validation, dependency calls, or security checks fail.
// It converts warnings at or above the given severity into a single error,
// suitable for refusing to boot on a dangerous configuration.
func (ws LintWarnings) AsError(min LintSeverity) error {
	flagged := ws.BySeverity(min)
	if len(flagged) == 0 {
		return nil
	}
	return fmt.Errorf("config lint: %s", strings.Join(flagged.Codes(), ", "))
}

// Lint reports deployment concerns that Validate deliberately accepts.
// Validate rejects configurations that cannot work; Lint flags configurations
// that work but weaken the security posture.
//
// Lint does not mutate shared global state; any synchronization it needs is handled internally or documented on the type.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings

	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if !c.Cookie.Secure {
		add("secure_disabled", LintHigh,
			"cookie is sent over plain HTTP; the signed token can be captured in transit")
	}
	if !c.Cookie.HTTPOnly {
		add("httponly_disabled", LintHigh,
			"cookie is readable from JavaScript; XSS can exfiltrate the session")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode {
		add("samesite_none", LintMedium,
			"cookie is attached to cross-site requests; CSRF protection falls on the application")
	}
	if n := len(c.Token.SecretKey); n > 0 && n < 32 {
		add("secret_key_short", LintHigh,
			fmt.Sprintf("secret key is %d bytes; use at least 32", n))
	}
	if c.Token.Digest == token.DigestSHA1 {
		add("digest_sha1", LintMedium,
			"sha1 is accepted for legacy interoperability only; prefer sha256")
	}
	if c.Token.KeyDerivation == token.DeriveConcat {
		add("derivation_concat", LintLow,
			"concat derivation exists for legacy token compatibility; prefer hmac")
	}
	if c.Token.MaxClockSkew > 2*time.Minute {
		add("clock_skew_large", LintMedium,
			fmt.Sprintf("clock skew tolerance of %s widens the replay window for future-dated tokens", c.Token.MaxClockSkew))
	}
	if c.Token.Format == FormatJWT && c.Token.Issuer == "" {
		add("jwt_without_issuer", LintMedium,
			"JWT tokens without an issuer claim are accepted from any issuer sharing the key")
	}
	if c.Session.PermanentLifetime > 31*24*time.Hour {
		add("permanent_lifetime_long", LintLow,
			fmt.Sprintf("permanent sessions live %s; a stolen cookie stays valid that long", c.Session.PermanentLifetime))
	}
	if c.Store.Enabled && !c.Store.JitterEnabled {
		add("store_jitter_disabled", LintLow,
			"sessions created together expire together; jitter spreads the eviction load")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintLow,
			"tamper and expiry events are counted but not attributable without audit events")
	}

	return ws
}
