package browsersession

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAuditDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink)

	for i, et := range []string{EventSessionLoaded, EventSessionSaved, EventSessionDeleted} {
		d.Emit(context.Background(), AuditEvent{
			EventType: et,
			SessionID: string(rune('a' + i)),
		})
	}
	d.Close()

	want := []string{EventSessionLoaded, EventSessionSaved, EventSessionDeleted}
	for _, w := range want {
		select {
		case ev := <-sink.Events():
			if ev.EventType != w {
				t.Fatalf("event = %q, want %q", ev.EventType, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", w)
		}
	}
}

func TestAuditDispatcherDisabledIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, NewChannelSink(1))
	if d != nil {
		t.Fatalf("disabled audit produced a dispatcher")
	}
	// Emit and Close on the nil dispatcher are no-ops.
	d.Emit(context.Background(), AuditEvent{EventType: EventSessionSaved})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatalf("nil dispatcher reports drops")
	}
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	// A blocking sink that never consumes keeps the buffer full.
	blocked := make(chan struct{})
	sink := blockingSink{release: blocked}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 16; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: EventTokenTampered})
	}
	if d.Dropped() == 0 {
		t.Fatalf("full buffer recorded no drops")
	}
	close(blocked)
	d.Close()
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(context.Context, AuditEvent) {
	<-s.release
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp:  time.Unix(1_700_000_000, 0).UTC(),
		EventType:  EventTokenExpired,
		CookieName: "session",
		Error:      "token expired: issued 2h0m0s ago",
	})

	line := strings.TrimSpace(buf.String())
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("sink wrote invalid JSON: %v\n%s", err, line)
	}
	if decoded["event_type"] != EventTokenExpired {
		t.Fatalf("event_type = %v", decoded["event_type"])
	}
	if decoded["cookie_name"] != "session" {
		t.Fatalf("cookie_name = %v", decoded["cookie_name"])
	}
}

func TestNoOpSinkDiscards(t *testing.T) {
	NoOpSink{}.Emit(context.Background(), AuditEvent{EventType: EventSessionSaved})
}
