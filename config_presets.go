package browsersession

import (
	"net/http"
	"time"

	"github.com/edemocracy/browsersession/token"
)

/*
====================================
CONFIG PRESETS
====================================
*/

// DefaultConfig returns the hardened baseline configuration. Callers set
// Token.SecretKey and adjust fields before passing it to Builder.WithConfig.
//
// DefaultConfig does not mutate shared global state; any synchronization it needs is handled internally or documented on the type.
func DefaultConfig() Config {
	return defaultConfig()
}

// HighSecurityConfig returns a preset tuned for sensitive applications:
// strict same-site enforcement, a tighter clock skew window, short permanent
// sessions re-issued on every request, and auditing enabled.
//
// HighSecurityConfig does not mutate shared global state; any synchronization it needs is handled internally or documented on the type.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.Cookie.SameSite = http.SameSiteStrictMode
	cfg.Token.Digest = token.DigestSHA512
	cfg.Token.MaxClockSkew = 10 * time.Second
	cfg.Session.PermanentLifetime = 30 * time.Minute
	cfg.Session.RefreshEachRequest = true
	cfg.Audit.Enabled = true
	return cfg
}

// DevelopmentConfig returns a preset for local work over plain HTTP. It
// disables the Secure cookie attribute and enables metrics so counters are
// visible while iterating. Never ship this preset.
//
// DevelopmentConfig does not mutate shared global state; any synchronization it needs is handled internally or documented on the type.
func DevelopmentConfig() Config {
	cfg := defaultConfig()
	cfg.Cookie.Secure = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}
