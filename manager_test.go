package browsersession

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/edemocracy/browsersession/session"
)

var testStart = time.Unix(1_700_000_000, 0)

func newTestManager(t *testing.T, mutate func(*Config), opts ...func(*Builder)) *Manager {
	t.Helper()
	cfg := defaultConfig()
	cfg.Token.SecretKey = []byte("a-very-secret-test-key")
	cfg.Cookie.Secure = false
	if mutate != nil {
		mutate(&cfg)
	}

	b := New().WithConfig(cfg).WithClock(func() time.Time { return testStart })
	for _, opt := range opts {
		opt(b)
	}
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func setCookieHeader(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d Set-Cookie headers, want 1", len(cookies))
	}
	return cookies[0]
}

func TestManagerRoundTrip(t *testing.T) {
	m := newTestManager(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	sess := m.LoadSession(req)
	if !sess.IsNew() {
		t.Fatalf("first request did not start a fresh session")
	}
	sess.Set("user_id", 42)
	if err := m.SaveSession(rec, req, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	cookie := setCookieHeader(t, rec)
	if cookie.Name != "session" {
		t.Fatalf("cookie name = %q", cookie.Name)
	}
	if !cookie.HttpOnly {
		t.Fatalf("cookie not HttpOnly")
	}
	if !cookie.Expires.IsZero() || cookie.MaxAge != 0 {
		t.Fatalf("non-permanent session produced a persistent cookie")
	}
	if got := rec.Header().Get("Vary"); got != "Cookie" {
		t.Fatalf("Vary = %q, want Cookie", got)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookie)
	sess2 := m.LoadSession(req2)
	if sess2.IsNew() {
		t.Fatalf("restored session marked new")
	}
	v, ok := sess2.Get("user_id")
	if !ok {
		t.Fatalf("restored session missing user_id")
	}
	if v != json.Number("42") {
		t.Fatalf("user_id = %v (%T)", v, v)
	}
}

func TestManagerUntouchedSessionEmitsNothing(t *testing.T) {
	m := newTestManager(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	sess := m.LoadSession(req)
	if err := m.SaveSession(rec, req, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if got := rec.Header().Get("Set-Cookie"); got != "" {
		t.Fatalf("untouched session set a cookie: %q", got)
	}
	if got := rec.Header().Get("Vary"); got != "" {
		t.Fatalf("untouched session set Vary: %q", got)
	}
}

func TestManagerReadOnlyAccessSetsVaryOnly(t *testing.T) {
	m := newTestManager(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	sess := m.LoadSession(req)
	sess.Get("anything")
	if err := m.SaveSession(rec, req, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if got := rec.Header().Get("Vary"); got != "Cookie" {
		t.Fatalf("Vary = %q, want Cookie", got)
	}
	if got := rec.Header().Get("Set-Cookie"); got != "" {
		t.Fatalf("read-only access set a cookie: %q", got)
	}
}

func TestManagerTamperedCookieDowngrades(t *testing.T) {
	sink := NewChannelSink(16)
	m := newTestManager(t, func(c *Config) {
		c.Audit.Enabled = true
		c.Metrics.Enabled = true
	}, func(b *Builder) { b.WithAuditSink(sink) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sess := m.LoadSession(req)
	sess.Set("user_id", 42)
	if err := m.SaveSession(rec, req, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	cookie := setCookieHeader(t, rec)

	// Flip a payload character.
	mutated := []byte(cookie.Value)
	mutated[0] ^= 0x02
	cookie.Value = string(mutated)

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookie)
	sess2 := m.LoadSession(req2)
	if !sess2.IsNew() || !sess2.Empty() {
		t.Fatalf("tampered cookie did not downgrade to a fresh session")
	}

	snap := m.MetricsSnapshot()
	if snap.Counters[MetricTokenSignatureInvalid]+snap.Counters[MetricTokenMalformed] == 0 {
		t.Fatalf("tamper not counted: %v", snap.Counters)
	}

	m.Close()
	found := false
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == EventTokenTampered || ev.EventType == EventTokenMalformed {
				found = true
			}
			continue
		default:
		}
		break
	}
	if !found {
		t.Fatalf("no tamper audit event emitted")
	}
}

func TestManagerExpiredCookieDowngrades(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.Metrics.Enabled = true })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sess := m.LoadSession(req)
	sess.Set("user_id", 42)
	if err := m.SaveSession(rec, req, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	cookie := setCookieHeader(t, rec)

	later := newTestManager(t,
		func(c *Config) { c.Metrics.Enabled = true },
		func(b *Builder) { b.WithClock(func() time.Time { return testStart.Add(2 * time.Hour) }) },
	)

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookie)
	sess2 := later.LoadSession(req2)
	if !sess2.IsNew() {
		t.Fatalf("expired cookie did not downgrade")
	}
	if later.MetricsSnapshot().Counters[MetricTokenExpired] != 1 {
		t.Fatalf("expiry not counted")
	}
}

func TestManagerDeleteCookieOnEmptiedSession(t *testing.T) {
	m := newTestManager(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sess := m.LoadSession(req)
	sess.Set("user_id", 42)
	if err := m.SaveSession(rec, req, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	cookie := setCookieHeader(t, rec)

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookie)
	rec2 := httptest.NewRecorder()
	sess2 := m.LoadSession(req2)
	sess2.Clear()
	if err := m.SaveSession(rec2, req2, sess2); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	deleted := setCookieHeader(t, rec2)
	if deleted.Value != "" || deleted.MaxAge >= 0 {
		t.Fatalf("emptied session did not delete its cookie: %+v", deleted)
	}
	if got := rec2.Header().Get("Vary"); got != "" {
		t.Fatalf("deletion response carries Vary: %q", got)
	}
}

func TestManagerDestroySession(t *testing.T) {
	m := newTestManager(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sess := session.FromValues(map[string]any{"user_id": 42})
	if err := m.DestroySession(rec, req, sess); err != nil {
		t.Fatalf("DestroySession: %v", err)
	}
	if !sess.Empty() {
		t.Fatalf("DestroySession left values behind")
	}
	deleted := setCookieHeader(t, rec)
	if deleted.Value != "" || deleted.MaxAge >= 0 {
		t.Fatalf("DestroySession did not delete the cookie: %+v", deleted)
	}
	if got := rec.Header().Get("Vary"); got != "Cookie" {
		t.Fatalf("Vary = %q, want Cookie", got)
	}
}

func TestManagerPermanentSessionCookieLifetime(t *testing.T) {
	m := newTestManager(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sess := m.LoadSession(req)
	sess.SetPermanent(true)
	sess.Set("user_id", 42)
	if err := m.SaveSession(rec, req, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	cookie := setCookieHeader(t, rec)
	if cookie.MaxAge != 3600 {
		t.Fatalf("permanent cookie MaxAge = %d, want 3600", cookie.MaxAge)
	}
	want := testStart.Add(time.Hour)
	if !cookie.Expires.Equal(want) {
		t.Fatalf("permanent cookie Expires = %v, want %v", cookie.Expires, want)
	}
}

func TestManagerRefreshEachRequest(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.Session.RefreshEachRequest = true })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sess := m.LoadSession(req)
	sess.SetPermanent(true)
	if err := m.SaveSession(rec, req, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	cookie := setCookieHeader(t, rec)

	// No modification this time, but the permanent cookie is re-issued.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookie)
	rec2 := httptest.NewRecorder()
	sess2 := m.LoadSession(req2)
	if err := m.SaveSession(rec2, req2, sess2); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	setCookieHeader(t, rec2)

	// Non-permanent sessions are not refreshed.
	rec3 := httptest.NewRecorder()
	req3 := httptest.NewRequest(http.MethodGet, "/", nil)
	sess3 := m.LoadSession(req3)
	if err := m.SaveSession(rec3, req3, sess3); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if got := rec3.Header().Get("Set-Cookie"); got != "" {
		t.Fatalf("non-permanent session refreshed: %q", got)
	}
}

func TestManagerOversizeSessionRejected(t *testing.T) {
	m := newTestManager(t, func(c *Config) {
		c.Cookie.MaxBytes = 256
		c.Metrics.Enabled = true
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sess := m.LoadSession(req)
	sess.Set("blob", strings.Repeat("x", 1024))
	err := m.SaveSession(rec, req, sess)
	if !errors.Is(err, ErrCookieTooLarge) {
		t.Fatalf("SaveSession = %v, want ErrCookieTooLarge", err)
	}
	if got := rec.Header().Get("Set-Cookie"); got != "" {
		t.Fatalf("oversize session still set a cookie")
	}
	if m.MetricsSnapshot().Counters[MetricSessionSaveFailed] != 1 {
		t.Fatalf("oversize rejection not counted as a save failure")
	}
}

func TestManagerSaveFailureIsObservable(t *testing.T) {
	sink := NewChannelSink(16)
	m := newTestManager(t, func(c *Config) {
		c.Audit.Enabled = true
		c.Metrics.Enabled = true
	}, func(b *Builder) { b.WithAuditSink(sink) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sess := m.LoadSession(req)
	// Channels have no JSON representation, so the encode must fail.
	sess.Set("bad", make(chan int))

	err := m.SaveSession(rec, req, sess)
	if !errors.Is(err, ErrSessionSaveFailed) {
		t.Fatalf("SaveSession = %v, want ErrSessionSaveFailed", err)
	}
	if got := rec.Header().Get("Set-Cookie"); got != "" {
		t.Fatalf("failed save still set a cookie: %q", got)
	}
	if m.MetricsSnapshot().Counters[MetricSessionSaveFailed] != 1 {
		t.Fatalf("save failure not counted: %v", m.MetricsSnapshot().Counters)
	}

	m.Close()
	found := false
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == EventSessionSaveFailed && ev.Error != "" {
				found = true
			}
			continue
		default:
		}
		break
	}
	if !found {
		t.Fatalf("no save-failure audit event emitted")
	}
}

func TestManagerJWTFormat(t *testing.T) {
	m := newTestManager(t, func(c *Config) {
		c.Token.Format = FormatJWT
		c.Token.Issuer = "browsersession-test"
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sess := m.LoadSession(req)
	sess.Set("name", "alice")
	if err := m.SaveSession(rec, req, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	cookie := setCookieHeader(t, rec)
	if strings.Count(cookie.Value, ".") != 2 || !strings.HasPrefix(cookie.Value, "eyJ") {
		t.Fatalf("cookie is not a JWS token: %q", cookie.Value)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookie)
	sess2 := m.LoadSession(req2)
	if v, _ := sess2.Get("name"); v != "alice" {
		t.Fatalf("JWT round trip lost data: %v", v)
	}
}

func TestManagerStoreMode(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	m := newTestManager(t, func(c *Config) {
		c.Store.Enabled = true
		c.Store.JitterEnabled = false
		c.Metrics.Enabled = true
	}, func(b *Builder) { b.WithRedis(client) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sess := m.LoadSession(req)
	sess.Set("user_id", 42)
	if err := m.SaveSession(rec, req, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	cookie := setCookieHeader(t, rec)

	// The cookie must carry only the signed reference, never the data.
	if strings.Contains(cookie.Value, "user_id") {
		t.Fatalf("store-mode cookie leaked session data")
	}
	if len(mr.Keys()) != 1 {
		t.Fatalf("store holds %d keys, want 1", len(mr.Keys()))
	}

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookie)
	sess2 := m.LoadSession(req2)
	if sess2.IsNew() {
		t.Fatalf("store-backed session not restored")
	}
	if _, ok := sess2.Get("user_id"); !ok {
		t.Fatalf("store-backed session missing data")
	}
	if m.MetricsSnapshot().Counters[MetricStoreHit] != 1 {
		t.Fatalf("store hit not counted")
	}

	// Destroy removes the record and the cookie.
	rec3 := httptest.NewRecorder()
	if err := m.DestroySession(rec3, req2, sess2); err != nil {
		t.Fatalf("DestroySession: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("store record survived destroy")
	}

	// The old cookie reference now misses.
	req4 := httptest.NewRequest(http.MethodGet, "/", nil)
	req4.AddCookie(cookie)
	sess4 := m.LoadSession(req4)
	if !sess4.IsNew() {
		t.Fatalf("stale store reference restored a session")
	}
	if m.MetricsSnapshot().Counters[MetricStoreMiss] == 0 {
		t.Fatalf("store miss not counted")
	}
}

func TestBuilderStoreModeRequiresRedis(t *testing.T) {
	cfg := defaultConfig()
	cfg.Token.SecretKey = []byte("k")
	cfg.Store.Enabled = true
	if _, err := New().WithConfig(cfg).Build(); !errors.Is(err, ErrRedisRequired) {
		t.Fatalf("Build = %v, want ErrRedisRequired", err)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithSecretKey([]byte("k"))
	if _, err := b.Build(); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Fatalf("second Build = %v, want ErrBuilderUsed", err)
	}
}

func TestBuilderRequiresSecret(t *testing.T) {
	if _, err := New().Build(); !errors.Is(err, ErrSecretKeyRequired) {
		t.Fatalf("Build = %v, want ErrSecretKeyRequired", err)
	}
}
