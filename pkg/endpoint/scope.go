// Package endpoint binds calls to the currently selected device.
//
// A Scope owns one method namespace (serialmedia, websocketmedia). Every call
// made through it is prefixed with the namespace and receives the active
// endpoint's target as its first parameter.
package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lightforgemedia/go-arylicrpc/pkg/subscription"
	"github.com/lightforgemedia/go-arylicrpc/pkg/throttle"
	"github.com/lightforgemedia/go-arylicrpc/pkg/transport"
)

// ErrNoRouter is returned by Subscribe on a Scope built without WithRouter.
var ErrNoRouter = errors.New("endpoint: scope has no subscription router")

// Info describes one device reachable through the service.
type Info struct {
	Name   string `json:"Name" yaml:"name"`
	Target string `json:"Target" yaml:"target"`
}

// Caller is the part of the transport a Scope needs.
type Caller interface {
	Connect(ctx context.Context) error
	Call(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// Scope carries the namespace, active endpoint and the cached endpoint list.
type Scope struct {
	namespace string
	caller    Caller
	window    time.Duration
	gate      *throttle.Gate
	router    *subscription.Router
	logger    *slog.Logger

	mu        sync.RWMutex
	active    string
	endpoints []Info
}

// Option configures the Scope.
type Option func(*Scope)

// WithLogger sets a custom logging implementation.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scope) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGate routes every targeted call through a throttle gate with the given window.
func WithGate(window time.Duration) Option {
	return func(s *Scope) {
		s.window = window
	}
}

// WithRouter enables Subscribe.
func WithRouter(r *subscription.Router) Option {
	return func(s *Scope) {
		s.router = r
	}
}

// WithActive sets the initial active endpoint.
func WithActive(target string) Option {
	return func(s *Scope) {
		s.active = target
	}
}

// New creates a Scope for namespace.
func New(namespace string, caller Caller, opts ...Option) *Scope {
	s := &Scope{
		namespace: namespace,
		caller:    caller,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.window > 0 {
		s.gate = throttle.New(s.window, func(ctx context.Context, method string, params []any) (json.RawMessage, error) {
			return s.caller.Call(ctx, method, params...)
		}, throttle.WithLogger(s.logger))
	}
	return s
}

// Namespace returns the method prefix, e.g. "serialmedia".
func (s *Scope) Namespace() string { return s.namespace }

// Method builds the fully qualified method name for verb.
func (s *Scope) Method(verb string) string {
	return s.namespace + "_" + verb
}

// Gate returns the throttle gate, or nil when calls are not throttled.
func (s *Scope) Gate() *throttle.Gate { return s.gate }

// SetActive selects the endpoint that subsequent calls target.
func (s *Scope) SetActive(target string) {
	s.mu.Lock()
	prev := s.active
	s.active = target
	s.mu.Unlock()
	if prev != target {
		s.logger.Info("active endpoint changed", "namespace", s.namespace, "from", prev, "to", target)
	}
}

// Active returns the target of the selected endpoint.
func (s *Scope) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Call invokes <namespace>_<verb> with the active target prepended to args,
// through the gate when one is configured. The target is read when the call
// is made, not when a throttled call fires.
func (s *Scope) Call(ctx context.Context, verb string, args ...any) (json.RawMessage, error) {
	return s.call(ctx, verb, s.gate != nil, args)
}

// Direct is Call without the gate. Reads and one-shot actions use it, since
// coalescing them would drop requests the caller expects to happen.
func (s *Scope) Direct(ctx context.Context, verb string, args ...any) (json.RawMessage, error) {
	return s.call(ctx, verb, false, args)
}

func (s *Scope) call(ctx context.Context, verb string, throttled bool, args []any) (json.RawMessage, error) {
	if err := s.caller.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", transport.ErrTransport, err)
	}
	params := append([]any{s.Active()}, args...)
	method := s.Method(verb)
	if throttled {
		return s.gate.Call(ctx, method, params...)
	}
	return s.caller.Call(ctx, method, params...)
}

// Subscribe opens the named stream for the active endpoint using the
// <namespace>_subscribe convention.
func (s *Scope) Subscribe(ctx context.Context, stream string, cb subscription.Callback, args ...any) (*subscription.Subscription, error) {
	if s.router == nil {
		return nil, ErrNoRouter
	}
	params := append([]any{stream, s.Active()}, args...)
	return s.router.Subscribe(ctx, s.Method("subscribe"), params, cb)
}

// Unsubscribe cancels a subscription opened through Subscribe.
func (s *Scope) Unsubscribe(ctx context.Context, sub *subscription.Subscription) error {
	if s.router == nil {
		return ErrNoRouter
	}
	return s.router.Unsubscribe(ctx, sub)
}

// RefreshEndpoints fetches the endpoint list and replaces the cached one. The
// cache is left untouched when the call fails.
func (s *Scope) RefreshEndpoints(ctx context.Context) ([]Info, error) {
	if err := s.caller.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", transport.ErrTransport, err)
	}
	list, err := transport.Decode[[]Info](s.caller.Call(ctx, s.Method("connectedEndpoints")))
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Info{}
	}
	s.mu.Lock()
	s.endpoints = list
	s.mu.Unlock()
	s.logger.Debug("endpoints refreshed", "namespace", s.namespace, "count", len(list))
	return append([]Info(nil), list...), nil
}

// Endpoints returns the list from the last successful refresh.
func (s *Scope) Endpoints() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Info(nil), s.endpoints...)
}
