// Package janustest provides a minimal fake gateway server for exercising
// the WebSocket and REST interfaces end-to-end over real transports
// (a real httptest.Server and a real gorilla/websocket connection), the way
// a request/response protocol library is naturally tested: by scripting a
// server and asserting on the client's observable behavior.
package janustest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// WSGateway is a fake Janus gateway speaking the janus-protocol WebSocket
// subprotocol. Tests drive it by reading decoded client requests off
// Requests and writing canned envelopes with Send.
type WSGateway struct {
	Server *httptest.Server

	mu       sync.Mutex
	conn     *websocket.Conn
	connOpen chan struct{}

	Requests chan map[string]any
}

// NewWSGateway starts a fake gateway accepting one WebSocket connection.
func NewWSGateway() *WSGateway {
	g := &WSGateway{
		connOpen: make(chan struct{}),
		Requests: make(chan map[string]any, 64),
	}
	upgrader := websocket.Upgrader{
		Subprotocols: []string{"janus-protocol"},
		CheckOrigin:  func(r *http.Request) bool { return true },
	}
	g.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		g.mu.Lock()
		g.conn = conn
		g.mu.Unlock()
		close(g.connOpen)

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req map[string]any
			if err := json.Unmarshal(data, &req); err != nil {
				continue
			}
			g.Requests <- req
		}
	}))
	return g
}

// URL returns the ws:// URL of the fake gateway.
func (g *WSGateway) URL() string {
	return "ws" + strings.TrimPrefix(g.Server.URL, "http")
}

// WaitConnected blocks until the first client has connected.
func (g *WSGateway) WaitConnected() {
	<-g.connOpen
}

// Send writes env to the connected client as a JSON text frame.
func (g *WSGateway) Send(env any) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn.WriteMessage(websocket.TextMessage, data)
}

// Close shuts the fake gateway down.
func (g *WSGateway) Close() {
	g.Server.Close()
}

// RESTGateway is a fake Janus gateway speaking the REST+long-poll surface
// described in the design's RestInterface component. Tests provide a
// Handler implementing the routes they care about; the DecodeBody and
// WriteJSON helpers below cover the common request/response bookkeeping.
type RESTGateway struct {
	Server  *httptest.Server
	Handler http.HandlerFunc
}

// NewRESTGateway starts a fake gateway that dispatches every request to h.
func NewRESTGateway(h http.HandlerFunc) *RESTGateway {
	g := &RESTGateway{Handler: h}
	g.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.Handler(w, r)
	}))
	return g
}

// URL returns the http:// base URL of the fake gateway.
func (g *RESTGateway) URL() string {
	return g.Server.URL
}

// Close shuts the fake gateway down.
func (g *RESTGateway) Close() {
	g.Server.Close()
}

// DecodeBody reads and JSON-decodes a request body into v.
func DecodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// WriteJSON writes v as a JSON response body with status 200.
func WriteJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
