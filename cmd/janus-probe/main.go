// janus-probe connects to a gateway, opens a session, attaches a plugin
// handle, and prints every event it receives until interrupted. It exists
// to exercise the library end-to-end against a real gateway; it is not
// part of the library's public surface.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-janus/janus/janus"
)

var (
	url        = flag.String("url", "ws://localhost:8188/janus", "gateway URL (ws:// or http://)")
	rest       = flag.Bool("rest", false, "use the REST transport instead of WebSocket")
	root       = flag.String("root", "janus", "gateway server-root path segment")
	apiSecret  = flag.String("apisecret", "", "gateway API secret, if configured")
	plugin     = flag.String("plugin", "janus.plugin.echotest", "plugin id to attach")
	capacity   = flag.Int("capacity", 64, "bounded queue capacity")
	kaInterval = flag.Duration("keepalive", 30*time.Second, "session keepalive interval")
	timeout    = flag.Duration("timeout", 10*time.Second, "per-request timeout")
)

func main() {
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	transport := janus.TransportWebSocket
	if *rest {
		transport = janus.TransportRestful
	}

	params := janus.ConnectionParams{
		URL:        *url,
		Capacity:   *capacity,
		APISecret:  *apiSecret,
		ServerRoot: *root,
		Logger:     logger,
	}

	conn, err := janus.Connect(ctx, params, transport, nil)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	info, err := conn.ServerInfo(ctx, *timeout)
	if err != nil {
		log.Fatalf("server info: %v", err)
	}
	logger.Info("connected", "server", info.Name, "version", info.VersionString)

	session, err := conn.CreateSession(ctx, *kaInterval, *timeout)
	if err != nil {
		log.Fatalf("create session: %v", err)
	}
	defer session.Close()
	logger.Info("session created", "session_id", session.ID())

	handle, events, err := session.Attach(ctx, *plugin, *timeout)
	if err != nil {
		log.Fatalf("attach: %v", err)
	}
	logger.Info("handle attached", "handle_id", handle.HandleID(), "plugin", *plugin)

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case ev, ok := <-events:
			if !ok {
				logger.Info("event stream closed")
				return
			}
			logger.Info("event received", "janus", ev.Janus, "transaction", ev.Transaction)
		}
	}
}
