package middleware

import (
	"context"
	"net"
	"net/http"

	browsersession "github.com/edemocracy/browsersession"
	"github.com/edemocracy/browsersession/session"
)

type sessionContextKey struct{}

// SessionFromContext returns the request's session injected by [Handle].
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*session.Session)
	return sess, ok
}

// Handle wraps next so every request carries a session. The session is loaded
// before next runs and saved the moment the response starts, which keeps
// Set-Cookie ahead of the header flush even for handlers that stream.
func Handle(manager *browsersession.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			ctx := browsersession.WithClientIP(r.Context(), remoteIP(r))
			r = r.WithContext(ctx)

			sess := manager.LoadSession(r)
			r = r.WithContext(context.WithValue(r.Context(), sessionContextKey{}, sess))

			sw := &sessionWriter{
				ResponseWriter: w,
				manager:        manager,
				request:        r,
				session:        sess,
			}
			next.ServeHTTP(sw, r)
			// Handlers that never write still need their session persisted.
			sw.save()
		})
	}
}

// sessionWriter saves the session exactly once, just before the first header
// or body byte goes out.
type sessionWriter struct {
	http.ResponseWriter
	manager *browsersession.Manager
	request *http.Request
	session *session.Session
	saved   bool
}

func (sw *sessionWriter) save() {
	if sw.saved {
		return
	}
	sw.saved = true
	// A save failure must not break the response; the handler's output is
	// already committed. The Manager records the failure through its own
	// metrics and audit events.
	_ = sw.manager.SaveSession(sw.ResponseWriter, sw.request, sw.session)
}

// WriteHeader persists the session before the status line is committed.
func (sw *sessionWriter) WriteHeader(statusCode int) {
	sw.save()
	sw.ResponseWriter.WriteHeader(statusCode)
}

// Write persists the session before the first body byte when the handler
// skipped WriteHeader.
func (sw *sessionWriter) Write(p []byte) (int, error) {
	sw.save()
	return sw.ResponseWriter.Write(p)
}

// Flush persists the session before streaming handlers force the headers out.
func (sw *sessionWriter) Flush() {
	sw.save()
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
