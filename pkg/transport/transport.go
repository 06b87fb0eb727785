// transport/transport.go
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/lightforgemedia/go-arylicrpc/pkg/jsonrpc"
)

// State is the lifecycle state of the underlying connection.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ResultHook runs inside the read loop once a response is matched to its call,
// before the caller is released. A non-nil error replaces the call's result.
type ResultHook func(result json.RawMessage) error

// NotificationHandler receives server pushes in arrival order.
type NotificationHandler func(n *jsonrpc.Notification)

type callResult struct {
	result json.RawMessage
	err    error
}

type pendingCall struct {
	method   string
	onResult ResultHook
	done     chan callResult
}

type outbound struct {
	id  uint64
	req *jsonrpc.Request
}

// connection holds what belongs to one physical socket. It is replaced on redial.
type connection struct {
	ws     *websocket.Conn
	send   chan outbound
	ctx    context.Context
	cancel context.CancelFunc
}

// Transport owns a single JSON-RPC 2.0 WebSocket connection shared by all callers.
type Transport struct {
	config transportConfig
	url    string

	// Serializes handshakes so concurrent Connect calls dial once.
	dialMu sync.Mutex

	connMu sync.RWMutex
	conn   *connection
	state  State
	pumpWg sync.WaitGroup

	lifetimeCtx    context.Context
	lifetimeCancel context.CancelFunc

	seq atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]*pendingCall

	notifyMu sync.RWMutex
	notify   NotificationHandler
}

// New creates a Transport for url. No connection is made until Connect or Call.
func New(url string, opts ...Option) *Transport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		config: transportConfig{
			logger:         slog.Default(),
			dialOptions:    &websocket.DialOptions{HTTPClient: http.DefaultClient},
			dialTimeout:    defaultDialTimeout,
			requestTimeout: defaultRequestTimeout,
			writeTimeout:   defaultWriteTimeout,
			readLimit:      defaultReadLimit,
		},
		url:            url,
		state:          StateDisconnected,
		lifetimeCtx:    ctx,
		lifetimeCancel: cancel,
		pending:        make(map[uint64]*pendingCall),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewWithOptions creates a Transport from an Options struct. Zero values fall back to defaults.
func NewWithOptions(url string, opts Options) *Transport {
	return New(url, opts.apply()...)
}

// URL returns the endpoint this transport dials.
func (t *Transport) URL() string { return t.url }

// State returns the current connection state.
func (t *Transport) State() State {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.state
}

// OnNotification installs the sink for server pushes. It is called from the
// read loop, so it must not block for long.
func (t *Transport) OnNotification(h NotificationHandler) {
	t.notifyMu.Lock()
	t.notify = h
	t.notifyMu.Unlock()
}

// Connect opens the connection if it is not already open. It is idempotent and
// safe for concurrent use; only one handshake is performed at a time.
func (t *Transport) Connect(ctx context.Context) error {
	switch t.State() {
	case StateOpen:
		return nil
	case StateClosed:
		return ErrClosed
	}

	t.dialMu.Lock()
	defer t.dialMu.Unlock()

	t.connMu.Lock()
	switch t.state {
	case StateOpen:
		t.connMu.Unlock()
		return nil
	case StateClosed:
		t.connMu.Unlock()
		return ErrClosed
	}
	t.state = StateConnecting
	t.connMu.Unlock()

	t.config.logger.Debug("transport dialing", "url", t.url)
	dialCtx, cancel := context.WithTimeout(ctx, t.config.dialTimeout)
	ws, _, err := websocket.Dial(dialCtx, t.url, t.config.dialOptions)
	cancel()
	if err != nil {
		t.connMu.Lock()
		if t.state != StateClosed {
			t.state = StateFailed
		}
		t.connMu.Unlock()
		t.config.logger.Warn("transport dial failed", "url", t.url, "error", err)
		return fmt.Errorf("%w: dial %s: %w", ErrConnection, t.url, err)
	}
	ws.SetReadLimit(t.config.readLimit)

	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.state == StateClosed {
		ws.Close(websocket.StatusNormalClosure, "transport closed")
		return ErrClosed
	}
	pumpCtx, pumpCancel := context.WithCancel(t.lifetimeCtx)
	c := &connection{
		ws:     ws,
		send:   make(chan outbound),
		ctx:    pumpCtx,
		cancel: pumpCancel,
	}
	t.conn = c
	t.state = StateOpen

	t.pumpWg.Add(2)
	go t.readPump(c)
	go t.writePump(c)

	t.config.logger.Info("transport connected", "url", t.url)
	return nil
}

// Call invokes method with positional params and returns the raw result.
func (t *Transport) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	return t.Invoke(ctx, method, params, nil)
}

// Invoke is Call with an optional hook that runs in the read loop before the
// response is handed back. The hook observes results strictly before any frame
// received after the response.
func (t *Transport) Invoke(ctx context.Context, method string, params []any, onResult ResultHook) (json.RawMessage, error) {
	if err := t.Connect(ctx); err != nil {
		if errors.Is(err, ErrClosed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, method, err)
	}

	id := t.seq.Add(1)
	pc := &pendingCall{method: method, onResult: onResult, done: make(chan callResult, 1)}
	t.pendingMu.Lock()
	t.pending[id] = pc
	t.pendingMu.Unlock()
	defer t.forget(id)

	callCtx, cancel := context.WithTimeout(ctx, t.config.requestTimeout)
	defer cancel()

	c := t.current()
	if c == nil {
		return nil, fmt.Errorf("%w: %s: connection lost before send", ErrTransport, method)
	}

	t.config.logger.Debug("transport call", "id", id, "method", method)
	select {
	case c.send <- outbound{id: id, req: jsonrpc.NewRequest(id, method, params)}:
	case res := <-pc.done:
		// Failed by a disconnect before the writer picked it up.
		return res.result, res.err
	case <-c.ctx.Done():
		if t.State() == StateClosed {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("%w: %s: connection lost before send", ErrTransport, method)
	case <-callCtx.Done():
		return nil, t.deadlineErr(ctx, callCtx, method, id)
	}

	select {
	case res := <-pc.done:
		return res.result, res.err
	case <-callCtx.Done():
		return nil, t.deadlineErr(ctx, callCtx, method, id)
	}
}

func (t *Transport) deadlineErr(parent, callCtx context.Context, method string, id uint64) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return parent.Err()
	}
	t.config.logger.Warn("transport call timed out", "id", id, "method", method)
	return fmt.Errorf("%w: %s (id %d): %w", ErrTimeout, method, id, callCtx.Err())
}

func (t *Transport) current() *connection {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.conn
}

func (t *Transport) forget(id uint64) {
	t.pendingMu.Lock()
	delete(t.pending, id)
	t.pendingMu.Unlock()
}

// take removes and returns the pending call for id.
func (t *Transport) take(id uint64) *pendingCall {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	pc, ok := t.pending[id]
	if !ok {
		return nil
	}
	delete(t.pending, id)
	return pc
}

func (t *Transport) resolve(id uint64, res callResult) {
	if pc := t.take(id); pc != nil {
		pc.done <- res
	}
}

func (t *Transport) failPending(err error) {
	t.pendingMu.Lock()
	failed := t.pending
	t.pending = make(map[uint64]*pendingCall)
	t.pendingMu.Unlock()

	for id, pc := range failed {
		pc.done <- callResult{err: fmt.Errorf("%w: %s (id %d)", err, pc.method, id)}
	}
	if len(failed) > 0 {
		t.config.logger.Info("transport failed pending calls", "count", len(failed), "reason", err)
	}
}

// PendingCount reports calls still waiting for a response.
func (t *Transport) PendingCount() int {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	return len(t.pending)
}

func (t *Transport) writePump(c *connection) {
	defer t.pumpWg.Done()
	for {
		select {
		case out := <-c.send:
			if c.ctx.Err() != nil {
				t.resolve(out.id, callResult{err: fmt.Errorf("%w: %s: connection lost before send", ErrTransport, out.req.Method)})
				return
			}
			data, err := json.Marshal(out.req)
			if err != nil {
				t.resolve(out.id, callResult{err: fmt.Errorf("encode %s params: %w", out.req.Method, err)})
				continue
			}
			writeCtx, cancel := context.WithTimeout(c.ctx, t.config.writeTimeout)
			err = c.ws.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				t.config.logger.Error("transport write failed", "method", out.req.Method, "error", err)
				t.resolve(out.id, callResult{err: fmt.Errorf("%w: write %s: %w", ErrTransport, out.req.Method, err)})
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (t *Transport) readPump(c *connection) {
	defer t.pumpWg.Done()
	defer func() {
		c.cancel()
		c.ws.CloseNow()

		t.connMu.Lock()
		closed := t.state == StateClosed
		if t.conn == c {
			t.conn = nil
			if !closed {
				t.state = StateDisconnected
			}
		}
		t.connMu.Unlock()

		if closed {
			t.failPending(ErrClosed)
			return
		}
		t.failPending(fmt.Errorf("%w: connection lost", ErrTransport))
		t.config.logger.Info("transport disconnected", "url", t.url)
	}()

	for {
		typ, data, err := c.ws.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				t.config.logger.Warn("transport read failed", "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			t.config.logger.Warn("transport dropped non-text frame", "type", typ)
			continue
		}
		t.handleFrame(data)
	}
}

func (t *Transport) handleFrame(data []byte) {
	msg, err := jsonrpc.Parse(data)
	if err != nil {
		t.config.logger.Warn("transport dropped malformed frame", "error", fmt.Errorf("%w: %w", ErrProtocol, err))
		return
	}

	switch msg.Kind() {
	case jsonrpc.KindNotification:
		n, err := msg.Notification()
		if err != nil {
			t.config.logger.Warn("transport dropped notification", "error", fmt.Errorf("%w: %w", ErrProtocol, err))
			return
		}
		t.notifyMu.RLock()
		h := t.notify
		t.notifyMu.RUnlock()
		if h == nil {
			t.config.logger.Debug("transport notification without handler", "method", n.Method)
			return
		}
		h(n)

	case jsonrpc.KindResponse:
		id, ok := msg.CallID()
		if !ok {
			t.config.logger.Warn("transport dropped response", "error", fmt.Errorf("%w: unusable id %s", ErrProtocol, msg.ID))
			return
		}
		pc := t.take(id)
		if pc == nil {
			t.config.logger.Warn("transport dropped response", "error", fmt.Errorf("%w: no pending call with id %d", ErrProtocol, id))
			return
		}
		res := callResult{}
		if msg.Error != nil {
			res.err = &RemoteError{Method: pc.method, Code: msg.Error.Code, Message: msg.Error.Message, Data: msg.Error.Data}
		} else {
			res.result = msg.Result
			if pc.onResult != nil {
				if err := pc.onResult(msg.Result); err != nil {
					res = callResult{err: err}
				}
			}
		}
		t.config.logger.Debug("transport response", "id", id, "method", pc.method, "ok", res.err == nil)
		pc.done <- res
	}
}

// Close tears down the connection and fails outstanding calls with ErrClosed.
// The transport cannot be reused afterwards.
func (t *Transport) Close() error {
	t.connMu.Lock()
	if t.state == StateClosed {
		t.connMu.Unlock()
		return ErrClosed
	}
	t.state = StateClosed
	c := t.conn
	t.connMu.Unlock()

	if c != nil {
		if err := c.ws.Close(websocket.StatusNormalClosure, "client closing"); err != nil {
			t.config.logger.Debug("transport close handshake", "error", err)
		}
	}
	t.lifetimeCancel()
	t.pumpWg.Wait()
	t.failPending(ErrClosed)
	t.config.logger.Info("transport closed", "url", t.url)
	return nil
}
