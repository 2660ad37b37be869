// Package router maps routing paths ("<server-root>", "<session-id>", or
// "<session-id>/<handle-id>") to the event channel that should receive
// traffic for that path, and derives those paths from request and response
// envelopes.
package router

import (
	"fmt"
	"strconv"
	"sync"
)

// Message is the minimal shape router needs to derive a path from a
// response envelope, kept independent of the concrete envelope type so this
// package has no dependency on the wire format.
type Message struct {
	SessionID *uint64
	Sender    *uint64
}

// Router owns {routing path -> event channel} and the root route created at
// construction. Publishing to a path with no subscriber is a silent no-op;
// channels are unbuffered-semantics-free internally (backed by an
// unbounded queue, see queue.go) so a slow subscriber never blocks a
// publisher.
type Router struct {
	rootPath string

	mu     sync.RWMutex
	routes map[string]*queue
}

// New creates a Router rooted at rootPath and returns the receive channel
// for the root route itself, which receives only what PublishRoot sends.
// Neither the REST nor the WebSocket transport publishes to the root route
// or reads from this channel.
func New(rootPath string) (*Router, <-chan any) {
	r := &Router{
		rootPath: rootPath,
		routes:   make(map[string]*queue),
	}
	q := newQueue()
	r.routes[rootPath] = q
	return r, q.out
}

// AddSubroute registers "<root>/<suffix>" and returns its receive channel.
func (r *Router) AddSubroute(suffix string) <-chan any {
	path := r.rootPath + "/" + suffix
	q := newQueue()
	r.mu.Lock()
	r.routes[path] = q
	r.mu.Unlock()
	return q.out
}

// RemoveRoute drops the subroute "<root>/<suffix>". Further publishes to it
// are no-ops.
func (r *Router) RemoveRoute(suffix string) {
	path := r.rootPath + "/" + suffix
	r.mu.Lock()
	q, ok := r.routes[path]
	delete(r.routes, path)
	r.mu.Unlock()
	if ok {
		q.close()
	}
}

// PublishRoot sends msg to the root route's subscriber, if any.
func (r *Router) PublishRoot(msg any) {
	r.publish(r.rootPath, msg)
}

// PublishSubroute sends msg to "<root>/<suffix>"'s subscriber, if any. The
// demultiplexer calls this with the bare "<session>"/"<session>/<handle>"
// path it derived from the transaction table or from PathFromResponse —
// the same suffix shape AddSubroute took when the subroute was created.
func (r *Router) PublishSubroute(suffix string, msg any) {
	r.publish(r.rootPath+"/"+suffix, msg)
}

func (r *Router) publish(path string, msg any) {
	r.mu.RLock()
	q, ok := r.routes[path]
	r.mu.RUnlock()
	if ok {
		q.push(msg)
	}
}

// PathFromRequest derives a routing path from the session_id/handle_id
// fields of an outbound request, expressed generically so callers can feed
// it either a decoded struct's ids or a raw JSON object's.
func PathFromRequest(sessionID, handleID *uint64) (string, bool) {
	if sessionID == nil {
		return "", false
	}
	if handleID != nil {
		return fmt.Sprintf("%d/%d", *sessionID, *handleID), true
	}
	return strconv.FormatUint(*sessionID, 10), true
}

// PathFromResponse derives a routing path from an inbound envelope's
// session_id/sender fields: "<session>/<sender>" if both present,
// "<session>" if only session_id is present, not derivable otherwise.
func PathFromResponse(msg Message) (string, bool) {
	if msg.SessionID == nil {
		return "", false
	}
	if msg.Sender != nil {
		return fmt.Sprintf("%d/%d", *msg.SessionID, *msg.Sender), true
	}
	return strconv.FormatUint(*msg.SessionID, 10), true
}
