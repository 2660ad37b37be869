package janus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// Handle is an immutable wrapper over (session-id, handle-id, interface).
// It has no back-reference to its owning Session; the session-id is enough
// to build every request this library needs.
type Handle struct {
	sessionID uint64
	handleID  uint64
	iface     Interface

	detached atomic.Bool
}

// SessionID returns the owning session's id.
func (h *Handle) SessionID() uint64 { return h.sessionID }

// HandleID returns the gateway-assigned handle id.
func (h *Handle) HandleID() uint64 { return h.handleID }

func (h *Handle) checkOpen() error {
	if h.detached.Load() {
		return ErrNotOpened
	}
	return nil
}

func (h *Handle) message(body []byte) HandleMessage {
	return HandleMessage{SessionID: h.sessionID, HandleID: h.handleID, Body: body}
}

// SendMessage fires a plugin message and returns without waiting for any
// acknowledgement.
func (h *Handle) SendMessage(ctx context.Context, body []byte) (string, error) {
	return h.SendMessageWithJsep(ctx, body, nil)
}

// SendMessageWithJsep is SendMessage with an establishment-protocol block.
func (h *Handle) SendMessageWithJsep(ctx context.Context, body []byte, jsep *Jsep) (string, error) {
	if err := h.checkOpen(); err != nil {
		return "", err
	}
	return h.iface.FireAndForget(ctx, h.message(body), jsep)
}

// SendWaitAck sends a plugin message and waits for its ack.
func (h *Handle) SendWaitAck(ctx context.Context, body []byte, timeout time.Duration) (string, error) {
	return h.SendWaitAckWithJsep(ctx, body, nil, timeout)
}

// SendWaitAckWithJsep is SendWaitAck with an establishment-protocol block.
func (h *Handle) SendWaitAckWithJsep(ctx context.Context, body []byte, jsep *Jsep, timeout time.Duration) (string, error) {
	if err := h.checkOpen(); err != nil {
		return "", err
	}
	return h.iface.SendWaitAck(ctx, h.message(body), jsep, timeout)
}

// SendWaitResponse sends a plugin message, waits for its response, and
// unmarshals the unwrapped plugindata.data payload into out.
func (h *Handle) SendWaitResponse(ctx context.Context, body []byte, timeout time.Duration, out any) error {
	return h.SendWaitResponseWithJsep(ctx, body, nil, timeout, out)
}

// SendWaitResponseWithJsep is SendWaitResponse with an establishment-protocol block.
func (h *Handle) SendWaitResponseWithJsep(ctx context.Context, body []byte, jsep *Jsep, timeout time.Duration, out any) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	return h.iface.SendWaitResponse(ctx, h.message(body), jsep, timeout, out)
}

// Hangup sends the hangup verb and waits for its response.
func (h *Handle) Hangup(ctx context.Context, timeout time.Duration) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	sid, hid := h.sessionID, h.handleID
	_, err := h.iface.HandleRequest(ctx, &Envelope{Janus: "hangup", SessionID: &sid, HandleID: &hid}, timeout)
	return err
}

// Detach sends the detach verb, waits for its response, and marks the
// handle unusable for any further send: Go has no move semantics to
// consume the value the way the reference implementation does, so this is
// enforced with an atomic flag every subsequent call checks.
func (h *Handle) Detach(ctx context.Context, timeout time.Duration) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	sid, hid := h.sessionID, h.handleID
	_, err := h.iface.HandleRequest(ctx, &Envelope{Janus: "detach", SessionID: &sid, HandleID: &hid}, timeout)
	h.detached.Store(true)
	return err
}

// TrickleSingle sends a single trickle ICE candidate.
func (h *Handle) TrickleSingle(ctx context.Context, candidate Candidate, timeout time.Duration) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	data, err := json.Marshal(candidate)
	if err != nil {
		return fmt.Errorf("janus: encoding trickle candidate: %w", err)
	}
	sid, hid := h.sessionID, h.handleID
	_, err = h.iface.HandleRequest(ctx, &Envelope{Janus: "trickle", SessionID: &sid, HandleID: &hid, Candidate: data}, timeout)
	return err
}

// TrickleMany sends a batch of trickle ICE candidates.
func (h *Handle) TrickleMany(ctx context.Context, candidates []Candidate, timeout time.Duration) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	sid, hid := h.sessionID, h.handleID
	_, err := h.iface.HandleRequest(ctx, &Envelope{Janus: "trickle", SessionID: &sid, HandleID: &hid, Candidates: candidates}, timeout)
	return err
}

// TrickleComplete signals end-of-candidates. It builds the {"completed":
// true} sentinel directly rather than routing through TrickleSingle,
// since that shape is not a Candidate with some fields left zero.
func (h *Handle) TrickleComplete(ctx context.Context, timeout time.Duration) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	data, err := json.Marshal(completedCandidate{Completed: true})
	if err != nil {
		return fmt.Errorf("janus: encoding trickle completion: %w", err)
	}
	sid, hid := h.sessionID, h.handleID
	_, err = h.iface.HandleRequest(ctx, &Envelope{Janus: "trickle", SessionID: &sid, HandleID: &hid, Candidate: data}, timeout)
	return err
}
