package janus

import (
	"context"
	"log/slog"
	"time"
)

// hasLogger is implemented by both Interface transports so Session can log
// keepalive failures through the same *slog.Logger the transport itself
// uses, without widening the public Interface contract for it.
type hasLogger interface {
	logger() *slog.Logger
}

// Session owns a session-id and runs its keepalive goroutine. The goroutine
// is spawned unconditionally at construction; on a transport whose
// Interface.HasKeepAlive() is false it consults the flag once and returns,
// becoming a permanent no-op, so Session's shape is uniform across
// transports even though REST needs no keepalive traffic.
type Session struct {
	id    uint64
	iface Interface

	cancel context.CancelFunc
	done   chan struct{}
}

// CreateSession issues create, then starts a Session with a keepalive
// goroutine ticking every kaInterval (ignored when the interface has no
// keepalive behavior).
func (c *Connection) CreateSession(ctx context.Context, kaInterval time.Duration, timeout time.Duration) (*Session, error) {
	id, err := c.iface.Create(ctx, timeout)
	if err != nil {
		return nil, err
	}
	return newSession(c.iface, id, kaInterval, timeout), nil
}

// ServerInfo issues the info verb directly against the connection's
// interface, with no session required.
func (c *Connection) ServerInfo(ctx context.Context, timeout time.Duration) (*ServerInfo, error) {
	return c.iface.ServerInfo(ctx, timeout)
}

func newSession(iface Interface, id uint64, kaInterval, kaTimeout time.Duration) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{id: id, iface: iface, cancel: cancel, done: make(chan struct{})}
	go s.keepaliveLoop(ctx, kaInterval, kaTimeout)
	return s
}

func (s *Session) keepaliveLoop(ctx context.Context, interval, timeout time.Duration) {
	defer close(s.done)
	if !s.iface.HasKeepAlive() {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var logger *slog.Logger
	if hl, ok := s.iface.(hasLogger); ok {
		logger = hl.logger()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			kaCtx, cancel := context.WithTimeout(ctx, timeout)
			err := s.iface.KeepAlive(kaCtx, s.id, timeout)
			cancel()
			if err != nil && logger != nil {
				logger.Warn("janus: keepalive failed", "session_id", s.id, "error", err)
			}
		}
	}
}

// ID returns the gateway-assigned session id.
func (s *Session) ID() uint64 { return s.id }

// Attach issues attach for pluginID under this session and wraps the result
// in a Handle plus its typed event receiver.
func (s *Session) Attach(ctx context.Context, pluginID string, timeout time.Duration) (*Handle, <-chan *Envelope, error) {
	handleID, events, err := s.iface.Attach(ctx, s.id, pluginID, timeout)
	if err != nil {
		return nil, nil, err
	}
	return &Handle{sessionID: s.id, handleID: handleID, iface: s.iface}, events, nil
}

// Destroy issues the destroy verb for this session. It does not stop the
// keepalive goroutine; callers should call Close as well (or instead, if
// the server side no longer needs an explicit destroy).
func (s *Session) Destroy(ctx context.Context, timeout time.Duration) error {
	return s.iface.Destroy(ctx, s.id, timeout)
}

// Close cancels the session's keepalive goroutine. It does not issue
// Destroy; callers that want the gateway to discard the session must call
// Destroy explicitly.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}
