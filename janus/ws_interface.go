package janus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-janus/janus/internal/demux"
	"github.com/go-janus/janus/internal/router"
	"github.com/go-janus/janus/internal/waitmap"
	"github.com/go-janus/janus/internal/wire"
	"github.com/go-janus/janus/internal/wsconn"
	"golang.org/x/sync/errgroup"
)

// wsInterface implements Interface over a single persistent WebSocket
// connection, per the design's WsInterface component.
type wsInterface struct {
	params ConnectionParams
	txGen  TransactionIDGenerator
	conn   *wsconn.Conn
	router *router.Router

	txTable *transactionTable
	ackMap  *waitmap.Map[string, *Envelope]
	rspMap  *waitmap.Map[string, *Envelope]

	group  *errgroup.Group
	cancel context.CancelFunc
}

func newWsInterface(ctx context.Context, params ConnectionParams, txGen TransactionIDGenerator) (*wsInterface, error) {
	conn, err := wsconn.Connect(ctx, nil, params.URL)
	if err != nil {
		return nil, fmt.Errorf("janus: connecting websocket interface: %w", err)
	}

	rtr, _ := router.New(params.ServerRoot) // WsInterface never publishes to the root route.
	txTable := newTransactionTable(params.Capacity)
	ackMap := waitmap.New[string, *Envelope](params.Capacity)
	rspMap := waitmap.New[string, *Envelope](params.Capacity)

	runCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)

	cfg := demux.Config[*Envelope]{
		Decode:      decodeEnvelope,
		IsAck:       func(e *Envelope) bool { return e.Janus == KindAck },
		IsResponse:  func(e *Envelope) bool { return e.Janus == KindSuccess || e.Janus == KindServerInfo },
		IsError:     func(e *Envelope) bool { return e.Janus == KindError },
		IsEvent:     func(e *Envelope) bool { return e.IsEvent() },
		Transaction: func(e *Envelope) string { return e.Transaction },
		RoutingPath: func(e *Envelope) (string, bool) {
			return router.PathFromResponse(router.Message{SessionID: e.SessionID, Sender: e.Sender})
		},
		Logger: params.logger(),
	}
	dmx := demux.New[*Envelope](cfg, ackMap, rspMap, txTable.Lookup, func(path string, e *Envelope) {
		rtr.PublishSubroute(path, e)
	})

	g.Go(func() error {
		dmx.Run(gctx, conn.Frames())
		return nil
	})

	return &wsInterface{
		params:  params,
		txGen:   txGen,
		conn:    conn,
		router:  rtr,
		txTable: txTable,
		ackMap:  ackMap,
		rspMap:  rspMap,
		group:   g,
		cancel:  cancel,
	}, nil
}

// sendAndWait decorates env, registers it under path, transmits it, and
// suspends on waitOn for its resolution.
func (w *wsInterface) sendAndWait(ctx context.Context, env *Envelope, path string, waitOn *waitmap.Map[string, *Envelope], timeout time.Duration) (string, *Envelope, error) {
	tx, err := w.transmit(ctx, env, path)
	if err != nil {
		return "", nil, err
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, timeout)
	defer waitCancel()
	resp, err := waitOn.Get(waitCtx, tx)
	w.txTable.Delete(tx)
	if err != nil {
		if errors.Is(err, waitmap.ErrEvicted) {
			return tx, nil, ErrIncompletePacket
		}
		return tx, nil, fmt.Errorf("%w", ErrTimeout)
	}
	if resp == nil {
		return tx, nil, ErrIncompletePacket
	}
	if resp.Janus == KindError && resp.Error != nil {
		return tx, resp, &ServerError{Code: resp.Error.Code, Reason: resp.Error.Reason}
	}
	return tx, resp, nil
}

// transmit decorates and sends env without waiting for any reply.
func (w *wsInterface) transmit(ctx context.Context, env *Envelope, path string) (string, error) {
	tx := w.txGen.Generate()
	decorate(env, tx, w.params.APISecret)
	w.txTable.Register(tx, path)

	data, err := encodeEnvelope(env)
	if err != nil {
		return "", fmt.Errorf("janus: encoding request: %w", err)
	}
	if err := w.params.waitForRateLimit(ctx); err != nil {
		return "", err
	}
	if err := w.conn.Send(ctx, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotOpened, err)
	}
	return tx, nil
}

func (w *wsInterface) Create(ctx context.Context, timeout time.Duration) (uint64, error) {
	_, resp, err := w.sendAndWait(ctx, &Envelope{Janus: "create"}, w.params.ServerRoot, w.rspMap, timeout)
	if err != nil {
		return 0, err
	}
	if resp.Data == nil {
		return 0, &UnexpectedResponseError{Envelope: mustRemarshal(resp)}
	}
	return resp.Data.ID, nil
}

func (w *wsInterface) ServerInfo(ctx context.Context, timeout time.Duration) (*ServerInfo, error) {
	_, resp, err := w.sendAndWait(ctx, &Envelope{Janus: "info"}, w.params.ServerRoot, w.rspMap, timeout)
	if err != nil {
		return nil, err
	}
	var info ServerInfo
	if err := json.Unmarshal(resp.raw, &info); err != nil {
		return nil, fmt.Errorf("janus: decoding server info: %w", err)
	}
	return &info, nil
}

func (w *wsInterface) Attach(ctx context.Context, sessionID uint64, pluginID string, timeout time.Duration) (uint64, <-chan *Envelope, error) {
	sid := sessionID
	path := strconv.FormatUint(sessionID, 10)
	_, resp, err := w.sendAndWait(ctx, &Envelope{Janus: "attach", SessionID: &sid, Plugin: pluginID}, path, w.rspMap, timeout)
	if err != nil {
		return 0, nil, err
	}
	if resp.Data == nil {
		return 0, nil, &UnexpectedResponseError{Envelope: mustRemarshal(resp)}
	}
	handleID := resp.Data.ID
	events := w.router.AddSubroute(fmt.Sprintf("%d/%d", sessionID, handleID))
	return handleID, typedEventChannel(events), nil
}

func (w *wsInterface) KeepAlive(ctx context.Context, sessionID uint64, timeout time.Duration) error {
	sid := sessionID
	_, _, err := w.sendAndWait(ctx, &Envelope{Janus: "keepalive", SessionID: &sid}, strconv.FormatUint(sessionID, 10), w.ackMap, timeout)
	return err
}

func (w *wsInterface) Destroy(ctx context.Context, sessionID uint64, timeout time.Duration) error {
	sid := sessionID
	_, _, err := w.sendAndWait(ctx, &Envelope{Janus: "destroy", SessionID: &sid}, strconv.FormatUint(sessionID, 10), w.rspMap, timeout)
	return err
}

func (w *wsInterface) messageEnvelope(msg HandleMessage, jsep *Jsep) (*Envelope, string, error) {
	if err := wire.CheckNoCaseSmuggledKeys(msg.Body); err != nil {
		return nil, "", &InvalidRequestError{Reason: err.Error()}
	}
	sid, hid := msg.SessionID, msg.HandleID
	env := &Envelope{Janus: "message", SessionID: &sid, HandleID: &hid, Body: msg.Body, Jsep: jsep}
	path := fmt.Sprintf("%d/%d", msg.SessionID, msg.HandleID)
	return env, path, nil
}

func (w *wsInterface) FireAndForget(ctx context.Context, msg HandleMessage, jsep *Jsep) (string, error) {
	env, path, err := w.messageEnvelope(msg, jsep)
	if err != nil {
		return "", err
	}
	return w.transmit(ctx, env, path)
}

func (w *wsInterface) SendWaitAck(ctx context.Context, msg HandleMessage, jsep *Jsep, timeout time.Duration) (string, error) {
	env, path, err := w.messageEnvelope(msg, jsep)
	if err != nil {
		return "", err
	}
	tx, _, err := w.sendAndWait(ctx, env, path, w.ackMap, timeout)
	return tx, err
}

func (w *wsInterface) SendWaitResponse(ctx context.Context, msg HandleMessage, jsep *Jsep, timeout time.Duration, out any) error {
	env, path, err := w.messageEnvelope(msg, jsep)
	if err != nil {
		return err
	}
	_, resp, err := w.sendAndWait(ctx, env, path, w.rspMap, timeout)
	if err != nil {
		return err
	}
	return unwrapPluginResponse(resp, out)
}

func (w *wsInterface) HandleRequest(ctx context.Context, env *Envelope, timeout time.Duration) (*Envelope, error) {
	if env.SessionID == nil || env.HandleID == nil {
		return nil, &InvalidRequestError{Reason: "handle request missing session_id or handle_id"}
	}
	path := fmt.Sprintf("%d/%d", *env.SessionID, *env.HandleID)
	_, resp, err := w.sendAndWait(ctx, env, path, w.rspMap, timeout)
	return resp, err
}

func (w *wsInterface) HasKeepAlive() bool { return true }

func (w *wsInterface) logger() *slog.Logger { return w.params.logger() }

func (w *wsInterface) Close() error {
	w.cancel()
	err := w.conn.Close()
	w.group.Wait()
	return err
}

// typedEventChannel adapts a Router subroute's untyped channel into a
// *Envelope channel for the public Attach API.
func typedEventChannel(in <-chan any) <-chan *Envelope {
	out := make(chan *Envelope)
	go func() {
		defer close(out)
		for v := range in {
			if env, ok := v.(*Envelope); ok {
				out <- env
			}
		}
	}()
	return out
}
