// Package subscription routes server push notifications to the callbacks
// registered for them.
package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/cskr/pubsub"
	"github.com/lightforgemedia/go-arylicrpc/pkg/jsonrpc"
	"github.com/lightforgemedia/go-arylicrpc/pkg/transport"
)

const defaultQueueLength = 64

// ErrRouterClosed is returned by Subscribe after Close.
var ErrRouterClosed = errors.New("subscription: router closed")

// Callback receives the result payload of each notification for one subscription.
type Callback func(payload json.RawMessage)

// Caller is the part of the transport the router needs.
type Caller interface {
	Invoke(ctx context.Context, method string, params []any, onResult transport.ResultHook) (json.RawMessage, error)
	Call(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// Subscription identifies a live server-side subscription.
type Subscription struct {
	ID     string
	Method string
	Params []any
}

type entry struct {
	sub  *Subscription
	cb   Callback
	ch   chan interface{}
	done chan struct{}

	// Backlog between the bus and the callback. It is unbounded so a slow
	// callback never holds up the bus and with it the transport's read loop.
	qmu   sync.Mutex
	queue []json.RawMessage
	wake  chan struct{}
}

func (e *entry) push(payload json.RawMessage) int {
	e.qmu.Lock()
	e.queue = append(e.queue, payload)
	n := len(e.queue)
	e.qmu.Unlock()
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return n
}

func (e *entry) pop() (json.RawMessage, bool) {
	e.qmu.Lock()
	defer e.qmu.Unlock()
	if len(e.queue) == 0 {
		return nil, false
	}
	payload := e.queue[0]
	e.queue[0] = nil
	e.queue = e.queue[1:]
	return payload, true
}

// Router maps server-assigned subscription ids to callbacks. Each subscription
// gets its own delivery goroutine, so callbacks for one subscription run in
// arrival order while different subscriptions are not ordered relative to each other.
type Router struct {
	caller      Caller
	logger      *slog.Logger
	queueLength int

	bus *pubsub.PubSub

	// Guards bus use against Shutdown.
	busMu  sync.Mutex
	closed bool

	mu      sync.RWMutex
	entries map[string]*entry
}

// Option configures the Router.
type Option func(*Router)

// WithLogger sets a custom logging implementation.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithQueueLength sets the bus buffer per subscription. A backlog growing past
// each multiple of it is logged as a lagging callback.
func WithQueueLength(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.queueLength = n
		}
	}
}

// New creates a Router that subscribes through caller. Install Dispatch as the
// transport's notification handler.
func New(caller Caller, opts ...Option) *Router {
	r := &Router{
		caller:      caller,
		logger:      slog.Default(),
		queueLength: defaultQueueLength,
		entries:     make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.bus = pubsub.New(r.queueLength)
	return r
}

// Subscribe invokes method with params and expects the server to answer with a
// subscription id. The callback is registered before any later frame is read,
// so a notification that immediately follows the response is not lost.
func (r *Router) Subscribe(ctx context.Context, method string, params []any, cb Callback) (*Subscription, error) {
	if cb == nil {
		return nil, fmt.Errorf("subscription: nil callback for %s", method)
	}
	sub := &Subscription{Method: method, Params: params}
	_, err := r.caller.Invoke(ctx, method, params, func(result json.RawMessage) error {
		var id string
		if err := json.Unmarshal(result, &id); err != nil || id == "" {
			return fmt.Errorf("%w: %s returned %s, want a subscription id", transport.ErrProtocol, method, result)
		}
		sub.ID = id
		return r.register(sub, cb)
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("subscription added", "method", method, "id", sub.ID)
	return sub, nil
}

func (r *Router) register(sub *Subscription, cb Callback) error {
	r.busMu.Lock()
	defer r.busMu.Unlock()
	if r.closed {
		return ErrRouterClosed
	}

	e := &entry{
		sub:  sub,
		cb:   cb,
		ch:   r.bus.Sub(sub.ID),
		done: make(chan struct{}),
		wake: make(chan struct{}, 1),
	}

	r.mu.Lock()
	old := r.entries[sub.ID]
	r.entries[sub.ID] = e
	r.mu.Unlock()
	if old != nil {
		r.logger.Warn("subscription id reused, replacing callback", "id", sub.ID)
		r.retire(old)
	}

	go r.deliver(e)
	go r.run(e)
	return nil
}

// deliver moves payloads from the bus into the entry's backlog.
func (r *Router) deliver(e *entry) {
	for {
		select {
		case msg, ok := <-e.ch:
			if !ok {
				return
			}
			payload, _ := msg.(json.RawMessage)
			if n := e.push(payload); n%r.queueLength == 0 {
				r.logger.Warn("subscription callback lagging", "id", e.sub.ID, "method", e.sub.Method, "backlog", n)
			}
		case <-e.done:
			// Keep the bus unblocked until Unsub or Shutdown closes the channel.
			for range e.ch {
			}
			return
		}
	}
}

// run invokes the callback for each queued payload in arrival order.
func (r *Router) run(e *entry) {
	for {
		select {
		case <-e.wake:
		case <-e.done:
			return
		}
		for {
			payload, ok := e.pop()
			if !ok {
				break
			}
			select {
			case <-e.done:
				return
			default:
			}
			r.invoke(e, payload)
		}
	}
}

func (r *Router) invoke(e *entry, payload json.RawMessage) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("subscription callback panicked", "id", e.sub.ID, "method", e.sub.Method, "panic", p)
		}
	}()
	e.cb(payload)
}

// retire stops delivery for e. Must be called with busMu held.
func (r *Router) retire(e *entry) {
	close(e.done)
	if !r.closed {
		// Unsub blocks while the bus is delivering to this channel.
		go r.bus.Unsub(e.ch, e.sub.ID)
	}
}

// Dispatch routes one notification. Unknown subscription ids are ignored.
func (r *Router) Dispatch(n *jsonrpc.Notification) {
	if n == nil || n.Subscription == "" {
		if n != nil {
			r.logger.Debug("notification without subscription id ignored", "method", n.Method)
		}
		return
	}

	r.busMu.Lock()
	defer r.busMu.Unlock()
	if r.closed {
		return
	}
	r.mu.RLock()
	_, ok := r.entries[n.Subscription]
	r.mu.RUnlock()
	if !ok {
		r.logger.Debug("notification for unknown subscription ignored", "method", n.Method, "id", n.Subscription)
		return
	}
	r.bus.Pub(n.Result, n.Subscription)
}

// Remove drops the local entry for id without telling the server.
func (r *Router) Remove(id string) bool {
	r.busMu.Lock()
	defer r.busMu.Unlock()

	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if ok {
		r.retire(e)
	}
	return ok
}

// Unsubscribe removes the subscription locally and, for methods following the
// <namespace>_subscribe convention, cancels it on the server. The local entry
// is gone even when the remote call fails.
func (r *Router) Unsubscribe(ctx context.Context, sub *Subscription) error {
	if sub == nil {
		return nil
	}
	r.Remove(sub.ID)
	r.logger.Info("subscription removed", "method", sub.Method, "id", sub.ID)

	method, ok := unsubscribeMethod(sub.Method)
	if !ok {
		return nil
	}
	if _, err := r.caller.Call(ctx, method, sub.ID); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", sub.ID, err)
	}
	return nil
}

func unsubscribeMethod(subscribe string) (string, bool) {
	ns, ok := strings.CutSuffix(subscribe, "_subscribe")
	if !ok || ns == "" {
		return "", false
	}
	return ns + "_unsubscribe", true
}

// Len reports the number of live subscriptions.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close stops all delivery goroutines. Server-side subscriptions end with the connection.
func (r *Router) Close() {
	r.busMu.Lock()
	defer r.busMu.Unlock()
	if r.closed {
		return
	}
	r.closed = true

	r.mu.Lock()
	for id, e := range r.entries {
		close(e.done)
		delete(r.entries, id)
	}
	r.mu.Unlock()
	r.bus.Shutdown()
}

// Decode adapts a typed handler into a Callback. Payloads that do not decode
// into T are logged and skipped.
func Decode[T any](logger *slog.Logger, fn func(T)) Callback {
	if logger == nil {
		logger = slog.Default()
	}
	return func(payload json.RawMessage) {
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			logger.Warn("notification payload dropped", "error", fmt.Errorf("%w: decode %T: %v", transport.ErrProtocol, v, err))
			return
		}
		fn(v)
	}
}
