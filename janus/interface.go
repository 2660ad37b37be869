package janus

import (
	"context"
	"encoding/json"
	"time"
)

// HandleMessage is the payload a Handle hands to its Interface for a
// plugin message: the ids to inject and the caller's opaque body.
type HandleMessage struct {
	SessionID uint64
	HandleID  uint64
	Body      json.RawMessage
}

// Interface is the transport contract both WsInterface and RestInterface
// satisfy. Handle and Session are written against this interface and never
// know which transport backs them.
type Interface interface {
	// Create issues the create verb and returns the new session id.
	Create(ctx context.Context, timeout time.Duration) (uint64, error)

	// ServerInfo issues the info verb.
	ServerInfo(ctx context.Context, timeout time.Duration) (*ServerInfo, error)

	// Attach issues the attach verb for pluginID under sessionID and
	// returns the new handle id plus the event channel for it.
	Attach(ctx context.Context, sessionID uint64, pluginID string, timeout time.Duration) (uint64, <-chan *Envelope, error)

	// KeepAlive issues the keepalive verb. On a transport with
	// HasKeepAlive() == false this is never called by Session.
	KeepAlive(ctx context.Context, sessionID uint64, timeout time.Duration) error

	// Destroy issues the destroy verb for sessionID.
	Destroy(ctx context.Context, sessionID uint64, timeout time.Duration) error

	// FireAndForget sends a plugin message and returns its transaction id
	// without waiting for any acknowledgement.
	FireAndForget(ctx context.Context, msg HandleMessage, jsep *Jsep) (string, error)

	// SendWaitAck sends a plugin message and waits for its ack.
	SendWaitAck(ctx context.Context, msg HandleMessage, jsep *Jsep, timeout time.Duration) (string, error)

	// SendWaitResponse sends a plugin message, waits for its response, and
	// unmarshals the unwrapped plugindata.data payload into out.
	SendWaitResponse(ctx context.Context, msg HandleMessage, jsep *Jsep, timeout time.Duration, out any) error

	// HandleRequest sends a pre-built handle-scoped request envelope
	// (hangup, detach, trickle, ...; Janus/SessionID/HandleID/Candidate(s)
	// already populated by the caller) and waits for its response.
	HandleRequest(ctx context.Context, env *Envelope, timeout time.Duration) (*Envelope, error)

	// HasKeepAlive reports whether Session's keepalive loop should
	// actually call KeepAlive, or sit idle (REST keeps sessions alive
	// implicitly via long-poll traffic).
	HasKeepAlive() bool

	// Close releases the interface's background goroutines and any
	// transport-level connection.
	Close() error
}

func decorate(env *Envelope, transaction, apisecret string) {
	env.Transaction = transaction
	if apisecret != "" {
		env.APISecret = apisecret
	}
}
