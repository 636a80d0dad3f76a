package browsersession

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newBenchmarkManager(b *testing.B, mutate func(*Config), opts ...func(*Builder)) *Manager {
	b.Helper()
	cfg := defaultConfig()
	cfg.Token.SecretKey = []byte("a-very-secret-test-key")
	cfg.Cookie.Secure = false
	if mutate != nil {
		mutate(&cfg)
	}

	builder := New().WithConfig(cfg).WithClock(time.Now)
	for _, opt := range opts {
		opt(builder)
	}
	m, err := builder.Build()
	if err != nil {
		b.Fatalf("Build: %v", err)
	}
	b.Cleanup(m.Close)
	return m
}

func seedBenchmarkCookie(b *testing.B, m *Manager) *http.Cookie {
	b.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	sess := m.LoadSession(req)
	sess.Set("user_id", "u-1")
	sess.Set("role", "member")
	if err := m.SaveSession(rec, req, sess); err != nil {
		b.Fatalf("SaveSession: %v", err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		b.Fatalf("got %d Set-Cookie headers, want 1", len(cookies))
	}
	return cookies[0]
}

func BenchmarkLoadSessionCookie(b *testing.B) {
	m := newBenchmarkManager(b, nil)
	cookie := seedBenchmarkCookie(b, m)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sess := m.LoadSession(req)
		if sess.IsNew() {
			b.Fatalf("cookie did not restore the session")
		}
	}
}

func BenchmarkLoadSessionJWT(b *testing.B) {
	m := newBenchmarkManager(b, func(c *Config) {
		c.Token.Format = FormatJWT
		c.Token.Issuer = "bench"
	})
	cookie := seedBenchmarkCookie(b, m)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sess := m.LoadSession(req)
		if sess.IsNew() {
			b.Fatalf("cookie did not restore the session")
		}
	}
}

func BenchmarkLoadSessionStore(b *testing.B) {
	mr := miniredis.RunT(b)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b.Cleanup(func() { _ = client.Close() })

	m := newBenchmarkManager(b, func(c *Config) {
		c.Store.Enabled = true
	}, func(bd *Builder) { bd.WithRedis(client) })
	cookie := seedBenchmarkCookie(b, m)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sess := m.LoadSession(req)
		if sess.IsNew() {
			b.Fatalf("store did not restore the session")
		}
	}
}

func BenchmarkSaveSession(b *testing.B) {
	m := newBenchmarkManager(b, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		sess := m.LoadSession(req)
		sess.Set("user_id", "u-1")
		if err := m.SaveSession(rec, req, sess); err != nil {
			b.Fatalf("SaveSession: %v", err)
		}
	}
}
