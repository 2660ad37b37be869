package janus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-janus/janus/internal/txgen"
	"golang.org/x/time/rate"
)

// Transport selects which wire transport a Connection uses.
type Transport int

const (
	// TransportWebSocket uses a single persistent WebSocket connection,
	// demultiplexed server-side pushes and rendezvous maps.
	TransportWebSocket Transport = iota
	// TransportRestful uses synchronous HTTP request/response plus
	// per-session long-polling for events.
	TransportRestful
)

// ConnectionParams configures a Connection. It is immutable once passed to
// Connect.
type ConnectionParams struct {
	// URL is the gateway's base URL: "ws://" or "wss://" for
	// TransportWebSocket, "http://" or "https://" for TransportRestful.
	URL string

	// Capacity sizes every bounded queue this connection owns (the
	// transaction table and the ack/response rendezvous maps). Must be
	// positive; a reasonable default is the expected concurrent request
	// count times four, to absorb generator collisions (see design notes).
	Capacity int

	// APISecret, if non-empty, is sent as "apisecret" on every request.
	APISecret string

	// ServerRoot is the gateway's root path segment, e.g. "janus".
	ServerRoot string

	// RateLimit, if non-nil, throttles every outbound request issued by
	// the interface's operations through limiter.Wait(ctx) before it is
	// written to the transport. The REST long-poll GETs are not throttled.
	// Leave nil for no throttling.
	RateLimit *rate.Limiter

	// Logger receives the log-and-continue diagnostics the design
	// mandates: demultiplexer decode/routing failures and keepalive
	// failures. Defaults to slog.Default() when nil.
	Logger *slog.Logger
}

func (p ConnectionParams) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p ConnectionParams) waitForRateLimit(ctx context.Context) error {
	if p.RateLimit == nil {
		return nil
	}
	return p.RateLimit.Wait(ctx)
}

func (p ConnectionParams) validate() error {
	if p.URL == "" {
		return fmt.Errorf("janus: ConnectionParams.URL must not be empty")
	}
	if p.Capacity <= 0 {
		return fmt.Errorf("janus: ConnectionParams.Capacity must be positive")
	}
	if p.ServerRoot == "" {
		return fmt.Errorf("janus: ConnectionParams.ServerRoot must not be empty")
	}
	return nil
}

// TransactionIDGenerator produces the correlation tokens attached to every
// outbound request. github.com/go-janus/janus/internal/txgen provides the
// two built-in strategies (Random, UUID); callers may supply their own.
type TransactionIDGenerator = txgen.Generator

// Connection holds one Interface (WebSocket or REST) and is the entry
// point for creating sessions.
type Connection struct {
	iface Interface
}

// Connect dials the gateway over the selected transport and returns a
// Connection. txGen may be nil, in which case a 12-character random
// alphanumeric generator is used.
func Connect(ctx context.Context, params ConnectionParams, transport Transport, txGen TransactionIDGenerator) (*Connection, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if txGen == nil {
		txGen = txgen.Random{}
	}

	var iface Interface
	var err error
	switch transport {
	case TransportWebSocket:
		iface, err = newWsInterface(ctx, params, txGen)
	case TransportRestful:
		iface, err = newRestInterface(params, txGen)
	default:
		return nil, fmt.Errorf("janus: unknown transport %d", transport)
	}
	if err != nil {
		return nil, err
	}
	return &Connection{iface: iface}, nil
}

// Close releases the underlying transport's background goroutines and, for
// WebSocket, the socket itself.
func (c *Connection) Close() error {
	return c.iface.Close()
}
