package janus

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-janus/janus/internal/janustest"
)

func newRESTConnection(t *testing.T, handler http.HandlerFunc) (*Connection, *janustest.RESTGateway) {
	t.Helper()
	gw := janustest.NewRESTGateway(handler)
	t.Cleanup(gw.Close)

	params := ConnectionParams{URL: gw.URL(), Capacity: 16, ServerRoot: "janus"}
	conn, err := Connect(context.Background(), params, TransportRestful, nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, gw
}

// TestRestCreateSession covers S1 over the REST transport.
func TestRestCreateSession(t *testing.T) {
	conn, _ := newRESTConnection(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		janustest.DecodeBody(r, &req)
		if req["janus"] != "create" {
			t.Errorf("expected create verb, got %+v", req)
		}
		janustest.WriteJSON(w, map[string]any{
			"janus": "success", "transaction": req["transaction"], "data": map[string]any{"id": 42},
		})
	})

	sessionID, err := conn.iface.Create(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sessionID != 42 {
		t.Fatalf("session id = %d, want 42", sessionID)
	}
}

// TestRestLongPollBatch covers S7: a single long-poll GET returning an
// array with an ack followed by an event delivers the event to the handle's
// channel from that one round trip. The ack in the batch is not dispatched:
// REST resolves acks on the issuing POST.
func TestRestLongPollBatch(t *testing.T) {
	var polled atomic.Bool
	conn, _ := newRESTConnection(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/janus"):
			var req map[string]any
			janustest.DecodeBody(r, &req)
			janustest.WriteJSON(w, map[string]any{
				"janus": "success", "transaction": req["transaction"], "data": map[string]any{"id": 42},
			})
		case r.Method == http.MethodPost:
			var req map[string]any
			janustest.DecodeBody(r, &req)
			janustest.WriteJSON(w, map[string]any{
				"janus": "success", "session_id": 42.0, "data": map[string]any{"id": 7}, "transaction": req["transaction"],
			})
		case r.Method == http.MethodGet:
			if polled.CompareAndSwap(false, true) {
				janustest.WriteJSON(w, []map[string]any{
					{"janus": "ack", "transaction": "t1"},
					{"janus": "event", "sender": 7.0, "session_id": 42.0},
				})
				return
			}
			<-r.Context().Done()
		}
	})

	sessionID, err := conn.iface.Create(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, events, err := conn.iface.Attach(context.Background(), sessionID, "janus.plugin.echotest", time.Second)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Janus != KindEvent {
			t.Fatalf("event janus = %q, want %q", ev.Janus, KindEvent)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batched event")
	}
}

// TestRestKeepAliveIsNoop covers S8: a REST-backed Session never issues
// keepalive requests, since HasKeepAlive() is false for restInterface.
func TestRestKeepAliveIsNoop(t *testing.T) {
	var keepaliveCount atomic.Int32
	conn, _ := newRESTConnection(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		janustest.DecodeBody(r, &req)
		if req["janus"] == "keepalive" {
			keepaliveCount.Add(1)
		}
		janustest.WriteJSON(w, map[string]any{
			"janus": "success", "transaction": req["transaction"], "data": map[string]any{"id": 42},
		})
	})

	session, err := conn.CreateSession(context.Background(), 20*time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	defer session.Close()

	time.Sleep(120 * time.Millisecond)
	if n := keepaliveCount.Load(); n != 0 {
		t.Fatalf("keepalive count = %d, want 0", n)
	}
}
