package browsersession

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Audit event types emitted by the Manager.
const (
	// EventSessionLoaded is an exported constant or variable used by the session manager.
	EventSessionLoaded = "session_loaded"
	// EventSessionSaved is an exported constant or variable used by the session manager.
	EventSessionSaved = "session_saved"
	// EventSessionDeleted is an exported constant or variable used by the session manager.
	EventSessionDeleted = "session_deleted"
	// EventSessionSaveFailed is an exported constant or variable used by the session manager.
	EventSessionSaveFailed = "session_save_failed"
	// EventTokenMalformed is an exported constant or variable used by the session manager.
	EventTokenMalformed = "token_malformed"
	// EventTokenTampered is an exported constant or variable used by the session manager.
	EventTokenTampered = "token_tampered"
	// EventTokenExpired is an exported constant or variable used by the session manager.
	EventTokenExpired = "token_expired"
	// EventStoreMiss is an exported constant or variable used by the session manager.
	EventStoreMiss = "store_miss"
	// EventStoreError is an exported constant or variable used by the session manager.
	EventStoreError = "store_error"
)

// AuditEvent defines a public type used by browsersession APIs.
//
// AuditEvent instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditEvent struct {
	Timestamp  time.Time         `json:"timestamp"`
	EventType  string            `json:"event_type"`
	CookieName string            `json:"cookie_name,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	IP         string            `json:"ip,omitempty"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AuditSink defines a public type used by browsersession APIs.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink defines a public type used by browsersession APIs.
type NoOpSink struct{}

// Emit discards the event.
func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink defines a public type used by browsersession APIs.
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink describes the newchannelsink operation and its observable behavior.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

// Emit describes the emit operation and its observable behavior.
//
// Emit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events describes the events operation and its observable behavior.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink defines a public type used by browsersession APIs.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink describes the newjsonwritersink operation and its observable behavior.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Emit describes the emit operation and its observable behavior.
//
// Emit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
