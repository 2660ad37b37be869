package janus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-janus/janus/internal/router"
	"github.com/go-janus/janus/internal/wire"
	"github.com/yosida95/uritemplate/v3"
)

// restLongPollSize is the reference implementation's page-size constant for
// the event long-poll, carried forward unchanged.
const restLongPollSize = 5

var (
	tmplRoot    = uritemplate.MustNew("{+base}")
	tmplInfo    = uritemplate.MustNew("{+base}/info")
	tmplSession = uritemplate.MustNew("{+base}/{session}")
	tmplHandle  = uritemplate.MustNew("{+base}/{session}/{handle}")
	tmplPoll    = uritemplate.MustNew("{+base}/{session}{?maxev}")
)

// restInterface implements Interface over synchronous HTTP request/response
// plus one long-poll goroutine per session that has at least one attached
// handle, per the design's RestInterface component.
type restInterface struct {
	params ConnectionParams
	txGen  TransactionIDGenerator
	client *http.Client
	base   string
	router *router.Router

	mu      sync.Mutex
	pollers map[uint64]context.CancelFunc // sessionID -> cancel for its long-poll goroutine

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newRestInterface(params ConnectionParams, txGen TransactionIDGenerator) (*restInterface, error) {
	rtr, _ := router.New(params.ServerRoot)
	runCtx, cancel := context.WithCancel(context.Background())
	return &restInterface{
		params:  params,
		txGen:   txGen,
		client:  &http.Client{},
		base:    strings.TrimRight(params.URL, "/") + "/" + params.ServerRoot,
		router:  rtr,
		pollers: make(map[uint64]context.CancelFunc),
		runCtx:  runCtx,
		cancel:  cancel,
	}, nil
}

func (r *restInterface) expand(t *uritemplate.Template, vars uritemplate.Values) string {
	u, err := t.Expand(vars)
	if err != nil {
		// Only caller error (unbound variable) can reach here; every call
		// site below supplies exactly the variables its template declares.
		panic(fmt.Sprintf("janus: uritemplate expand: %v", err))
	}
	return u
}

func (r *restInterface) vars(extra uritemplate.Values) uritemplate.Values {
	v := uritemplate.Values{"base": uritemplate.String(r.base)}
	for k, val := range extra {
		v[k] = val
	}
	return v
}

// roundtrip decorates env (when non-nil), sends it to url with method, and
// decodes the single response envelope. Used for every request of this
// transport except the long-poll GET and FireAndForget.
func (r *restInterface) roundtrip(ctx context.Context, method, url string, env *Envelope) (*Envelope, error) {
	if err := r.params.waitForRateLimit(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if env != nil {
		tx := r.txGen.Generate()
		decorate(env, tx, r.params.APISecret)
		data, err := encodeEnvelope(env)
		if err != nil {
			return nil, fmt.Errorf("janus: encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotOpened, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrNotOpened, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("janus: reading response: %w", err)
	}
	out, err := decodeEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompletePacket, err)
	}
	if out.Janus == KindError && out.Error != nil {
		return out, &ServerError{Code: out.Error.Code, Reason: out.Error.Reason}
	}
	return out, nil
}

func (r *restInterface) Create(ctx context.Context, timeout time.Duration) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := r.roundtrip(ctx, http.MethodPost, r.expand(tmplRoot, r.vars(nil)), &Envelope{Janus: "create"})
	if err != nil {
		return 0, err
	}
	if resp.Data == nil {
		return 0, &UnexpectedResponseError{Envelope: mustRemarshal(resp)}
	}
	return resp.Data.ID, nil
}

func (r *restInterface) ServerInfo(ctx context.Context, timeout time.Duration) (*ServerInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := r.roundtrip(ctx, http.MethodGet, r.expand(tmplInfo, r.vars(nil)), nil)
	if err != nil {
		return nil, err
	}
	var info ServerInfo
	if err := json.Unmarshal(resp.raw, &info); err != nil {
		return nil, fmt.Errorf("janus: decoding server info: %w", err)
	}
	return &info, nil
}

func (r *restInterface) Attach(ctx context.Context, sessionID uint64, pluginID string, timeout time.Duration) (uint64, <-chan *Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	sid := sessionID
	url := r.expand(tmplSession, r.vars(uritemplate.Values{"session": uritemplate.String(strconv.FormatUint(sessionID, 10))}))
	resp, err := r.roundtrip(ctx, http.MethodPost, url, &Envelope{Janus: "attach", SessionID: &sid, Plugin: pluginID})
	if err != nil {
		return 0, nil, err
	}
	if resp.Data == nil {
		return 0, nil, &UnexpectedResponseError{Envelope: mustRemarshal(resp)}
	}
	handleID := resp.Data.ID
	events := r.router.AddSubroute(fmt.Sprintf("%d/%d", sessionID, handleID))
	r.ensurePolling(sessionID)
	return handleID, typedEventChannel(events), nil
}

// ensurePolling starts the long-poll goroutine for sessionID once, no matter
// how many handles get attached to it: events for every handle on a session
// arrive on the same per-session GET, so one goroutine serves all of them.
func (r *restInterface) ensurePolling(sessionID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pollers[sessionID]; ok {
		return
	}
	pollCtx, cancel := context.WithCancel(r.runCtx)
	r.pollers[sessionID] = cancel
	r.wg.Add(1)
	go r.pollLoop(pollCtx, sessionID)
}

func (r *restInterface) pollLoop(ctx context.Context, sessionID uint64) {
	defer r.wg.Done()
	url := r.expand(tmplPoll, r.vars(uritemplate.Values{
		"session": uritemplate.String(strconv.FormatUint(sessionID, 10)),
		"maxev":   uritemplate.String(strconv.Itoa(restLongPollSize)),
	}))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return
		}
		resp, err := r.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.params.logger().Warn("janus: rest long-poll request failed, retrying", "session_id", sessionID, "error", err)
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			r.params.logger().Warn("janus: rest long-poll read failed, retrying", "session_id", sessionID, "error", err)
			continue
		}

		var envs []*Envelope
		if err := json.Unmarshal(data, &envs); err != nil {
			r.params.logger().Warn("janus: rest long-poll decoding batch failed, dropping", "session_id", sessionID, "error", err)
			continue
		}
		for _, env := range envs {
			r.dispatch(env)
		}
	}
}

// dispatch routes a single long-poll batch member the same way the
// WebSocket demultiplexer would, minus ack/response rendezvous (REST
// resolves those synchronously on the issuing POST instead).
func (r *restInterface) dispatch(env *Envelope) {
	if !env.IsEvent() {
		return
	}
	path, ok := router.PathFromResponse(router.Message{SessionID: env.SessionID, Sender: env.Sender})
	if !ok {
		r.params.logger().Warn("janus: rest long-poll event undeliverable, no routing path", "transaction", env.Transaction)
		return
	}
	r.router.PublishSubroute(path, env)
}

func (r *restInterface) KeepAlive(ctx context.Context, sessionID uint64, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	sid := sessionID
	url := r.expand(tmplSession, r.vars(uritemplate.Values{"session": uritemplate.String(strconv.FormatUint(sessionID, 10))}))
	_, err := r.roundtrip(ctx, http.MethodPost, url, &Envelope{Janus: "keepalive", SessionID: &sid})
	return err
}

func (r *restInterface) Destroy(ctx context.Context, sessionID uint64, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	sid := sessionID
	url := r.expand(tmplSession, r.vars(uritemplate.Values{"session": uritemplate.String(strconv.FormatUint(sessionID, 10))}))
	_, err := r.roundtrip(ctx, http.MethodPost, url, &Envelope{Janus: "destroy", SessionID: &sid})

	r.mu.Lock()
	if cancel, ok := r.pollers[sessionID]; ok {
		cancel()
		delete(r.pollers, sessionID)
	}
	r.mu.Unlock()

	return err
}

func (r *restInterface) handleURL(sessionID, handleID uint64) string {
	return r.expand(tmplHandle, r.vars(uritemplate.Values{
		"session": uritemplate.String(strconv.FormatUint(sessionID, 10)),
		"handle":  uritemplate.String(strconv.FormatUint(handleID, 10)),
	}))
}

func (r *restInterface) messageEnvelope(msg HandleMessage, jsep *Jsep) (*Envelope, error) {
	if err := wire.CheckNoCaseSmuggledKeys(msg.Body); err != nil {
		return nil, &InvalidRequestError{Reason: err.Error()}
	}
	sid, hid := msg.SessionID, msg.HandleID
	return &Envelope{Janus: "message", SessionID: &sid, HandleID: &hid, Body: msg.Body, Jsep: jsep}, nil
}

// FireAndForget has no fire-and-forget shape over plain request/response
// HTTP: the POST always yields a synchronous ack or response. This still
// satisfies the contract (a transaction id is returned without the caller
// waiting on a rendezvous map) by issuing the request and discarding the
// synchronous reply's error, save for transport-level failures.
func (r *restInterface) FireAndForget(ctx context.Context, msg HandleMessage, jsep *Jsep) (string, error) {
	env, err := r.messageEnvelope(msg, jsep)
	if err != nil {
		return "", err
	}
	tx := r.txGen.Generate()
	decorate(env, tx, r.params.APISecret)
	data, err := encodeEnvelope(env)
	if err != nil {
		return "", fmt.Errorf("janus: encoding request: %w", err)
	}
	if err := r.params.waitForRateLimit(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.handleURL(msg.SessionID, msg.HandleID), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotOpened, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotOpened, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return tx, nil
}

func (r *restInterface) SendWaitAck(ctx context.Context, msg HandleMessage, jsep *Jsep, timeout time.Duration) (string, error) {
	env, err := r.messageEnvelope(msg, jsep)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := r.roundtrip(ctx, http.MethodPost, r.handleURL(msg.SessionID, msg.HandleID), env)
	if err != nil {
		return "", err
	}
	return resp.Transaction, nil
}

func (r *restInterface) SendWaitResponse(ctx context.Context, msg HandleMessage, jsep *Jsep, timeout time.Duration, out any) error {
	env, err := r.messageEnvelope(msg, jsep)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := r.roundtrip(ctx, http.MethodPost, r.handleURL(msg.SessionID, msg.HandleID), env)
	if err != nil {
		return err
	}
	return unwrapPluginResponse(resp, out)
}

func (r *restInterface) HandleRequest(ctx context.Context, env *Envelope, timeout time.Duration) (*Envelope, error) {
	if env.SessionID == nil || env.HandleID == nil {
		return nil, &InvalidRequestError{Reason: "handle request missing session_id or handle_id"}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.roundtrip(ctx, http.MethodPost, r.handleURL(*env.SessionID, *env.HandleID), env)
}

func (r *restInterface) HasKeepAlive() bool { return false }

func (r *restInterface) logger() *slog.Logger { return r.params.logger() }

func (r *restInterface) Close() error {
	r.cancel()
	r.wg.Wait()
	return nil
}
