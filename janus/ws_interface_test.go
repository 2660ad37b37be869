package janus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-janus/janus/internal/janustest"
)

func newWSConnection(t *testing.T) (*Connection, *janustest.WSGateway) {
	t.Helper()
	gw := janustest.NewWSGateway()
	t.Cleanup(gw.Close)

	params := ConnectionParams{URL: gw.URL(), Capacity: 16, ServerRoot: "janus"}
	conn, err := Connect(context.Background(), params, TransportWebSocket, nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	gw.WaitConnected()
	return conn, gw
}

func reqTransaction(t *testing.T, req map[string]any) string {
	t.Helper()
	tx, _ := req["transaction"].(string)
	if tx == "" {
		t.Fatalf("request missing transaction: %+v", req)
	}
	return tx
}

// TestCreateSession covers S1.
func TestCreateSession(t *testing.T) {
	conn, gw := newWSConnection(t)

	done := make(chan struct{})
	var sessionID uint64
	var createErr error
	go func() {
		defer close(done)
		sessionID, createErr = conn.iface.Create(context.Background(), time.Second)
	}()

	req := <-gw.Requests
	if req["janus"] != "create" {
		t.Fatalf("expected create verb, got %+v", req)
	}
	tx := reqTransaction(t, req)
	if err := gw.Send(map[string]any{"janus": "success", "transaction": tx, "data": map[string]any{"id": 42}}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	<-done
	if createErr != nil {
		t.Fatalf("Create: %v", createErr)
	}
	if sessionID != 42 {
		t.Fatalf("session id = %d, want 42", sessionID)
	}
}

// TestAttachAndDetachedEvent covers S2.
func TestAttachAndDetachedEvent(t *testing.T) {
	conn, gw := newWSConnection(t)

	done := make(chan struct{})
	var handleID uint64
	var events <-chan *Envelope
	var attachErr error
	go func() {
		defer close(done)
		handleID, events, attachErr = conn.iface.Attach(context.Background(), 42, "janus.plugin.echotest", time.Second)
	}()

	req := <-gw.Requests
	if req["janus"] != "attach" {
		t.Fatalf("expected attach verb, got %+v", req)
	}
	tx := reqTransaction(t, req)
	if err := gw.Send(map[string]any{
		"janus": "success", "transaction": tx, "session_id": 42, "data": map[string]any{"id": 7},
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	<-done
	if attachErr != nil {
		t.Fatalf("Attach: %v", attachErr)
	}
	if handleID != 7 {
		t.Fatalf("handle id = %d, want 7", handleID)
	}

	if err := gw.Send(map[string]any{"janus": "detached", "session_id": 42, "sender": 7}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Janus != KindDetached {
			t.Fatalf("event janus = %q, want %q", ev.Janus, KindDetached)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for detached event")
	}
}

// TestSendWaitAck covers S3.
func TestSendWaitAck(t *testing.T) {
	conn, gw := newWSConnection(t)

	msg := HandleMessage{SessionID: 42, HandleID: 7, Body: json.RawMessage(`{"audio":true,"video":true}`)}
	done := make(chan struct{})
	var tx string
	var sendErr error
	go func() {
		defer close(done)
		tx, sendErr = conn.iface.SendWaitAck(context.Background(), msg, nil, time.Second)
	}()

	req := <-gw.Requests
	if req["janus"] != "message" {
		t.Fatalf("expected message verb, got %+v", req)
	}
	wantTx := reqTransaction(t, req)
	if err := gw.Send(map[string]any{"janus": "ack", "transaction": wantTx}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	<-done
	if sendErr != nil {
		t.Fatalf("SendWaitAck: %v", sendErr)
	}
	if tx != wantTx {
		t.Fatalf("tx = %q, want %q", tx, wantTx)
	}
}

// TestPluginEventWithJsep covers S4.
func TestPluginEventWithJsep(t *testing.T) {
	conn, gw := newWSConnection(t)

	_, events, err := func() (uint64, <-chan *Envelope, error) {
		done := make(chan struct{})
		var handleID uint64
		var events <-chan *Envelope
		var attachErr error
		go func() {
			defer close(done)
			handleID, events, attachErr = conn.iface.Attach(context.Background(), 42, "janus.plugin.echotest", time.Second)
		}()
		req := <-gw.Requests
		tx := reqTransaction(t, req)
		gw.Send(map[string]any{"janus": "success", "transaction": tx, "session_id": 42, "data": map[string]any{"id": 7}})
		<-done
		return handleID, events, attachErr
	}()
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if err := gw.Send(map[string]any{
		"janus": "event", "sender": 7, "session_id": 42, "transaction": "t4",
		"plugindata": map[string]any{
			"plugin": "janus.plugin.echotest",
			"data":   map[string]any{"echotest": "event", "result": "ok"},
		},
		"jsep": map[string]any{"type": "answer", "sdp": "v=0..."},
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Jsep == nil || ev.Jsep.Type != JsepAnswer {
			t.Fatalf("event jsep = %+v, want an answer", ev.Jsep)
		}
		if ev.PluginData == nil || ev.PluginData.Plugin != "janus.plugin.echotest" {
			t.Fatalf("event plugindata = %+v", ev.PluginData)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for plugin event")
	}
}

// TestPluginErrorUnwrap covers S5/P8.
func TestPluginErrorUnwrap(t *testing.T) {
	conn, gw := newWSConnection(t)

	msg := HandleMessage{SessionID: 42, HandleID: 7, Body: json.RawMessage(`{"request":"watch"}`)}
	done := make(chan struct{})
	var sendErr error
	go func() {
		defer close(done)
		sendErr = conn.iface.SendWaitResponse(context.Background(), msg, nil, time.Second, nil)
	}()

	req := <-gw.Requests
	tx := reqTransaction(t, req)
	if err := gw.Send(map[string]any{
		"janus": "success", "session_id": 42, "sender": 7, "transaction": tx,
		"plugindata": map[string]any{
			"plugin": "janus.plugin.streaming",
			"data":   map[string]any{"error_code": 456, "error": "Can't add 'rtp' stream"},
		},
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	<-done
	var pluginErr *PluginResponseError
	if sendErr == nil {
		t.Fatal("expected an error, got nil")
	}
	if !errorsAsPluginResponse(sendErr, &pluginErr) {
		t.Fatalf("error = %v, want *PluginResponseError", sendErr)
	}
	if pluginErr.ErrorCode != 456 {
		t.Fatalf("ErrorCode = %d, want 456", pluginErr.ErrorCode)
	}
}

// TestSendWaitAckTimeout covers S6/P6.
func TestSendWaitAckTimeout(t *testing.T) {
	conn, gw := newWSConnection(t)

	msg := HandleMessage{SessionID: 42, HandleID: 7, Body: json.RawMessage(`{}`)}
	start := time.Now()
	_, err := conn.iface.SendWaitAck(context.Background(), msg, nil, 100*time.Millisecond)
	elapsed := time.Since(start)

	<-gw.Requests // the request did reach the gateway; it was just never answered

	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if elapsed < 100*time.Millisecond {
		t.Fatalf("returned after %v, want at least 100ms", elapsed)
	}
	if elapsed > 150*time.Millisecond {
		t.Fatalf("returned after %v, want at most 150ms", elapsed)
	}
}

// TestErrorEnvelopeResolvesBothWaiters covers P7: an error envelope for
// transaction T must fail the pending SendWaitAck for T, and must also be
// stored in the response map under T, where a response waiter on T reads it.
func TestErrorEnvelopeResolvesBothWaiters(t *testing.T) {
	conn, gw := newWSConnection(t)

	ackDone := make(chan error, 1)
	go func() {
		msg := HandleMessage{SessionID: 42, HandleID: 7, Body: json.RawMessage(`{}`)}
		_, err := conn.iface.SendWaitAck(context.Background(), msg, nil, time.Second)
		ackDone <- err
	}()
	req := <-gw.Requests
	tx := reqTransaction(t, req)

	if err := gw.Send(map[string]any{
		"janus": "error", "transaction": tx, "error": map[string]any{"code": 458, "reason": "bad request"},
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case err := <-ackDone:
		var serverErr *ServerError
		if !errorsAsServerError(err, &serverErr) {
			t.Fatalf("ack error = %v, want *ServerError", err)
		}
		if serverErr.Code != 458 {
			t.Fatalf("code = %d, want 458", serverErr.Code)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ack waiter to resolve")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rsp, err := conn.iface.(*wsInterface).rspMap.Get(ctx, tx)
	if err != nil {
		t.Fatalf("response map Get(%q): %v", tx, err)
	}
	if rsp.Janus != KindError || rsp.Error == nil || rsp.Error.Code != 458 {
		t.Fatalf("response map entry = %+v, want the error envelope with code 458", rsp)
	}
}

func errorsAsPluginResponse(err error, target **PluginResponseError) bool {
	if e, ok := err.(*PluginResponseError); ok {
		*target = e
		return true
	}
	return false
}

func errorsAsServerError(err error, target **ServerError) bool {
	if e, ok := err.(*ServerError); ok {
		*target = e
		return true
	}
	return false
}
