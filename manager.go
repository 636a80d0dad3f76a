package browsersession

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/edemocracy/browsersession/session"
	"github.com/edemocracy/browsersession/token"
)

// Manager defines a public type used by browsersession APIs.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config  Config
	codec   token.Codec
	store   *session.Store
	audit   *auditDispatcher
	metrics *Metrics
	clock   func() time.Time
}

// LoadSession restores the session for r. It never fails: a missing cookie
// yields a fresh session, and a malformed, tampered, or expired cookie is
// recorded through metrics and audit events and then downgraded to a fresh
// session as well.
//
// LoadSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) LoadSession(r *http.Request) *session.Session {
	cookie, err := r.Cookie(m.config.Cookie.Name)
	if err != nil || cookie.Value == "" {
		m.metrics.Inc(MetricSessionStarted)
		return session.New()
	}

	start := time.Now()
	values, err := m.codec.Decode(cookie.Value, m.config.Session.PermanentLifetime)
	m.metrics.Observe(MetricDecodeLatency, time.Since(start))
	if err != nil {
		m.noteDecodeFailure(r.Context(), err)
		m.metrics.Inc(MetricSessionStarted)
		return session.New()
	}

	if m.store != nil {
		return m.loadFromStore(r.Context(), values)
	}

	m.metrics.Inc(MetricSessionLoaded)
	return session.FromValues(values)
}

// loadFromStore resolves a verified store reference. The cookie payload in
// store mode is {"sid": "..."}; anything else counts as a miss.
func (m *Manager) loadFromStore(ctx context.Context, values map[string]any) *session.Session {
	sid, _ := values["sid"].(string)
	if sid == "" {
		m.noteStoreMiss(ctx, sid)
		return session.New()
	}

	data, err := m.store.Get(ctx, sid)
	switch {
	case err == nil:
		m.metrics.Inc(MetricStoreHit)
		m.metrics.Inc(MetricSessionLoaded)
		return session.FromStored(sid, data)
	case errors.Is(err, session.ErrNotFound):
		m.noteStoreMiss(ctx, sid)
		return session.New()
	default:
		m.metrics.Inc(MetricStoreError)
		m.metrics.Inc(MetricSessionStarted)
		m.emit(ctx, AuditEvent{
			EventType: EventStoreError,
			SessionID: sid,
			Error:     err.Error(),
		})
		return session.New()
	}
}

// SaveSession writes the session state for this response: a Vary: Cookie
// header when the session was read, a Set-Cookie when it changed, and a
// deletion cookie when a restored session was emptied. Sessions that were
// never touched produce no headers at all.
//
// SaveSession may return an error when input validation, dependency calls, or security checks fail.
// SaveSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) SaveSession(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	if sess == nil {
		return nil
	}

	if sess.Empty() {
		// An emptied session deletes its cookie, even when the session was
		// started fresh: the browser may still hold a cookie that failed to
		// decode. An untouched empty session is invisible, and neither case
		// adds a Vary header.
		if sess.Modified() {
			return m.deleteSession(w, r, sess)
		}
		return nil
	}

	if sess.Accessed() {
		w.Header().Add("Vary", "Cookie")
	}

	if !m.shouldSetCookie(sess) {
		return nil
	}

	payload := sess.Values()
	if m.store != nil {
		id := sess.StoreID()
		if id == "" {
			id = session.NewID()
			sess.BindStoreID(id)
		}
		if err := m.store.Save(r.Context(), id, payload); err != nil {
			m.metrics.Inc(MetricStoreError)
			m.emit(r.Context(), AuditEvent{
				EventType: EventStoreError,
				SessionID: id,
				Error:     err.Error(),
			})
			return m.noteSaveFailure(r.Context(), id, fmt.Errorf("%w: %v", ErrSessionSaveFailed, err))
		}
		payload = map[string]any{"sid": id}
	}

	value, err := m.codec.Encode(payload)
	if err != nil {
		if errors.Is(err, token.ErrTokenTooLarge) {
			return m.noteSaveFailure(r.Context(), sess.StoreID(), fmt.Errorf("%w: %v", ErrCookieTooLarge, err))
		}
		return m.noteSaveFailure(r.Context(), sess.StoreID(), fmt.Errorf("%w: %v", ErrSessionSaveFailed, err))
	}
	if m.config.Cookie.MaxBytes > 0 && len(value) > m.config.Cookie.MaxBytes {
		return m.noteSaveFailure(r.Context(), sess.StoreID(), fmt.Errorf("%w: %d bytes", ErrCookieTooLarge, len(value)))
	}

	m.setCookie(w, value, m.expirationTime(sess))
	m.metrics.Inc(MetricSessionSaved)
	m.emit(r.Context(), AuditEvent{
		EventType: EventSessionSaved,
		SessionID: sess.StoreID(),
	})
	return nil
}

// DestroySession clears the session and removes its cookie and store record.
//
// DestroySession may return an error when input validation, dependency calls, or security checks fail.
// DestroySession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) DestroySession(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	if sess == nil {
		return nil
	}
	sess.Clear()
	w.Header().Add("Vary", "Cookie")
	return m.deleteSession(w, r, sess)
}

func (m *Manager) deleteSession(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	if m.store != nil && sess.StoreID() != "" {
		if err := m.store.Delete(r.Context(), sess.StoreID()); err != nil {
			m.metrics.Inc(MetricStoreError)
			m.emit(r.Context(), AuditEvent{
				EventType: EventStoreError,
				SessionID: sess.StoreID(),
				Error:     err.Error(),
			})
			// The cookie still gets deleted; the orphaned record expires on
			// its TTL.
		}
	}
	m.deleteCookie(w)
	m.metrics.Inc(MetricSessionDeleted)
	m.emit(r.Context(), AuditEvent{
		EventType: EventSessionDeleted,
		SessionID: sess.StoreID(),
	})
	return nil
}

// noteDecodeFailure records a rejected cookie by failure kind. Rejection is
// an observation, never an application error.
func (m *Manager) noteDecodeFailure(ctx context.Context, err error) {
	var eventType string
	switch token.Kind(err) {
	case token.KindInvalidSignature:
		m.metrics.Inc(MetricTokenSignatureInvalid)
		eventType = EventTokenTampered
	case token.KindExpired:
		m.metrics.Inc(MetricTokenExpired)
		eventType = EventTokenExpired
	default:
		m.metrics.Inc(MetricTokenMalformed)
		eventType = EventTokenMalformed
	}
	m.emit(ctx, AuditEvent{
		EventType: eventType,
		Error:     err.Error(),
	})
}

// noteSaveFailure records a session write that produced no cookie. Callers
// like the middleware drop the returned error, so the failure must stay
// visible through the counter and audit event.
func (m *Manager) noteSaveFailure(ctx context.Context, sid string, err error) error {
	m.metrics.Inc(MetricSessionSaveFailed)
	m.emit(ctx, AuditEvent{
		EventType: EventSessionSaveFailed,
		SessionID: sid,
		Error:     err.Error(),
	})
	return err
}

func (m *Manager) noteStoreMiss(ctx context.Context, sid string) {
	m.metrics.Inc(MetricStoreMiss)
	m.metrics.Inc(MetricSessionStarted)
	m.emit(ctx, AuditEvent{
		EventType: EventStoreMiss,
		SessionID: sid,
	})
}

func (m *Manager) emit(ctx context.Context, event AuditEvent) {
	if m.audit == nil {
		return
	}
	event.Timestamp = m.clock()
	event.CookieName = m.config.Cookie.Name
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	m.audit.Emit(ctx, event)
}

// CookieName returns the configured session cookie name.
func (m *Manager) CookieName() string {
	return m.config.Cookie.Name
}

// PermanentLifetime returns the configured permanent-session lifetime.
func (m *Manager) PermanentLifetime() time.Duration {
	return m.config.Session.PermanentLifetime
}

// MetricsSnapshot returns a point-in-time copy of all counters and
// histograms. Exporters render from this snapshot.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	return m.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) AuditDropped() uint64 {
	return m.audit.Dropped()
}

// Close flushes and stops the audit dispatcher. The Manager must not be used
// after Close.
func (m *Manager) Close() {
	m.audit.Close()
}
