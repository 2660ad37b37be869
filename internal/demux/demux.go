// Package demux implements the single-inbound-stream fan-out: parse each
// raw frame, then route it to an ack waiter, a response waiter, or a
// per-handle event publisher depending on what kind of envelope it turned
// out to be. It is generic over the concrete envelope type so it carries no
// dependency on the wire format itself.
package demux

import (
	"context"
	"log/slog"
)

// Config tells a Demultiplexer how to classify and decode envelopes of
// type E. All fields except Logger are required; a nil Logger means
// slog.Default().
type Config[E any] struct {
	// Decode parses one raw frame into an envelope. A decode error causes
	// the frame to be logged and skipped; it never stops the run loop.
	Decode func(data []byte) (E, error)

	IsAck      func(e E) bool
	IsResponse func(e E) bool
	IsError    func(e E) bool
	IsEvent    func(e E) bool

	Transaction func(e E) string

	// RoutingPath derives a path from an event envelope's own
	// session/sender fields, used when the transaction table has no entry
	// for it (or the event carries no transaction at all).
	RoutingPath func(e E) (string, bool)

	Logger *slog.Logger
}

// Sink is satisfied by *waitmap.Map[string, E].
type Sink[E any] interface {
	Insert(key string, val E)
}

// Demultiplexer runs the frame-classification loop described in the
// design's Demultiplexer component.
type Demultiplexer[E any] struct {
	cfg      Config[E]
	ackSink  Sink[E]
	rspSink  Sink[E]
	lookupTx func(txID string) (string, bool)
	publish  func(path string, e E)
}

// New constructs a Demultiplexer. lookupTx resolves a transaction id to its
// registered routing path (the TransactionTable); publish delivers an
// event envelope to the Router subroute for a resolved path.
func New[E any](cfg Config[E], ackSink, rspSink Sink[E], lookupTx func(string) (string, bool), publish func(string, E)) *Demultiplexer[E] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Demultiplexer[E]{
		cfg:      cfg,
		ackSink:  ackSink,
		rspSink:  rspSink,
		lookupTx: lookupTx,
		publish:  publish,
	}
}

// Run decodes and dispatches frames from in until the channel is closed or
// ctx is done. It never returns an error: every recoverable failure is
// logged and the loop continues, matching the "log and continue" failure
// isolation the demultiplexer is required to provide.
func (d *Demultiplexer[E]) Run(ctx context.Context, in <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-in:
			if !ok {
				return
			}
			d.dispatch(frame)
		}
	}
}

func (d *Demultiplexer[E]) dispatch(frame []byte) {
	env, err := d.cfg.Decode(frame)
	if err != nil {
		d.cfg.Logger.Warn("janus: dropping malformed frame", "error", err)
		return
	}

	switch {
	case d.cfg.IsError(env):
		tx := d.cfg.Transaction(env)
		d.ackSink.Insert(tx, env)
		d.rspSink.Insert(tx, env)
	case d.cfg.IsAck(env):
		d.ackSink.Insert(d.cfg.Transaction(env), env)
	case d.cfg.IsResponse(env):
		d.rspSink.Insert(d.cfg.Transaction(env), env)
	case d.cfg.IsEvent(env):
		d.dispatchEvent(env)
	default:
		d.cfg.Logger.Warn("janus: dropping envelope of unrecognized kind")
	}
}

func (d *Demultiplexer[E]) dispatchEvent(env E) {
	if tx := d.cfg.Transaction(env); tx != "" {
		if path, ok := d.lookupTx(tx); ok {
			d.publish(path, env)
			return
		}
	}
	if path, ok := d.cfg.RoutingPath(env); ok {
		d.publish(path, env)
		return
	}
	d.cfg.Logger.Warn("janus: dropping event with no derivable routing path")
}
