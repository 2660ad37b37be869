package janus

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for the cases that carry no further data.
var (
	// ErrNotOpened is returned when a send is attempted on a transport that
	// has not connected, has already closed, or (for a Handle) has already
	// been detached.
	ErrNotOpened = errors.New("janus: transport not opened")

	// ErrTimeout is returned by a waiting operation whose context was done
	// before the matching ack or response arrived.
	ErrTimeout = errors.New("janus: timed out waiting for response")

	// ErrIncompletePacket is returned when the transaction a caller is
	// waiting on was evicted from its rendezvous map before it resolved,
	// most often because the bounded capacity was exceeded by other
	// concurrent traffic. The REST transport also returns it, wrapped,
	// when a response body cannot be decoded as an envelope.
	ErrIncompletePacket = errors.New("janus: transaction evicted before it resolved")
)

// ServerError is returned when the gateway itself rejects a request with a
// top-level {"janus":"error"} envelope.
type ServerError struct {
	Code   uint16
	Reason string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("janus: server error %d: %s", e.Code, e.Reason)
}

// PluginResponseError is returned when a plugin's own response payload
// (success.plugindata.data) is the {"error_code","error"} failure shape,
// distinct from a ServerError.
type PluginResponseError struct {
	ErrorCode int
	Error_    string
}

func (e *PluginResponseError) Error() string {
	return fmt.Sprintf("janus: plugin error %d: %s", e.ErrorCode, e.Error_)
}

// UnexpectedResponseError is returned when an envelope does not match any
// shape the current waiter understands.
type UnexpectedResponseError struct {
	Envelope json.RawMessage
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("janus: unexpected response shape: %s", e.Envelope)
}

// InvalidRequestError is returned when a caller-supplied request is
// malformed before it is ever sent to the gateway.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("janus: invalid request: %s", e.Reason)
}
