package browsersession

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/edemocracy/browsersession/session"
)

// cookieDomain resolves the Domain attribute. An explicit Domain wins;
// otherwise it is detected from ServerName: the port is stripped, dotless
// hosts (localhost) and IPs get no subdomain prefix, and a registrable name
// served at the root path is widened with a leading dot so subdomains share
// the session.
func cookieDomain(cfg CookieConfig) string {
	if cfg.Domain != "" {
		return cfg.Domain
	}
	host := cfg.ServerName
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if !strings.Contains(host, ".") {
		// Browsers reject Domain attributes without a dot.
		return ""
	}
	if net.ParseIP(host) != nil {
		return host
	}
	if cfg.Path == "/" {
		return "." + host
	}
	return host
}

// expirationTime returns the cookie Expires value: the permanent lifetime
// from now for permanent sessions, zero (a browser-session cookie) otherwise.
func (m *Manager) expirationTime(sess *session.Session) time.Time {
	if sess.Permanent() {
		return m.clock().Add(m.config.Session.PermanentLifetime)
	}
	return time.Time{}
}

// shouldSetCookie reports whether this response needs a Set-Cookie header:
// always after a modification, and on every request for permanent sessions
// when RefreshEachRequest keeps their lifetime sliding.
func (m *Manager) shouldSetCookie(sess *session.Session) bool {
	return sess.Modified() || (m.config.Session.RefreshEachRequest && sess.Permanent())
}

func (m *Manager) setCookie(w http.ResponseWriter, value string, expires time.Time) {
	cookie := &http.Cookie{
		Name:     m.config.Cookie.Name,
		Value:    value,
		Path:     m.config.Cookie.Path,
		Domain:   cookieDomain(m.config.Cookie),
		Secure:   m.config.Cookie.Secure,
		HttpOnly: m.config.Cookie.HTTPOnly,
		SameSite: m.config.Cookie.SameSite,
	}
	if !expires.IsZero() {
		cookie.Expires = expires
		cookie.MaxAge = int(expires.Sub(m.clock()) / time.Second)
	}
	http.SetCookie(w, cookie)
}

func (m *Manager) deleteCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.Cookie.Name,
		Value:    "",
		Path:     m.config.Cookie.Path,
		Domain:   cookieDomain(m.config.Cookie),
		Secure:   m.config.Cookie.Secure,
		HttpOnly: m.config.Cookie.HTTPOnly,
		SameSite: m.config.Cookie.SameSite,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}
