// arylicrpc.go
package arylicrpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/lightforgemedia/go-arylicrpc/pkg/endpoint"
	"github.com/lightforgemedia/go-arylicrpc/pkg/serialmedia"
	"github.com/lightforgemedia/go-arylicrpc/pkg/subscription"
	"github.com/lightforgemedia/go-arylicrpc/pkg/throttle"
	"github.com/lightforgemedia/go-arylicrpc/pkg/transport"
	"github.com/lightforgemedia/go-arylicrpc/pkg/websocketmedia"
)

// Re-export core types
type (
	EndpointInfo = endpoint.Info
	Subscription = subscription.Subscription
	Callback     = subscription.Callback
	RemoteError  = transport.RemoteError
	State        = transport.State
)

// Connection states
const (
	StateDisconnected = transport.StateDisconnected
	StateConnecting   = transport.StateConnecting
	StateOpen         = transport.StateOpen
	StateClosed       = transport.StateClosed
	StateFailed       = transport.StateFailed
)

// Re-export error types
var (
	ErrConnection = transport.ErrConnection
	ErrTransport  = transport.ErrTransport
	ErrProtocol   = transport.ErrProtocol
	ErrTimeout    = transport.ErrTimeout
	ErrClosed     = transport.ErrClosed
	ErrSuperseded = throttle.ErrSuperseded
)

// Options configures a Session.
type Options struct {
	Logger         *slog.Logger
	DialOptions    *websocket.DialOptions
	RequestTimeout time.Duration
	// PlaybackWindow throttles the websocketmedia surface.
	PlaybackWindow time.Duration
	// SettingsWindow throttles the serialmedia surface.
	SettingsWindow time.Duration
	// ActiveEndpoint is the initial target for both surfaces.
	ActiveEndpoint string
}

// DefaultOptions returns an Options struct populated with library defaults.
func DefaultOptions() Options {
	return Options{
		Logger:         slog.Default(),
		RequestTimeout: transport.DefaultOptions().RequestTimeout,
		PlaybackWindow: throttle.PlaybackWindow,
		SettingsWindow: throttle.SettingsWindow,
	}
}

// Session is the single context object for talking to one bridge: it owns the
// transport, the subscription router and one endpoint scope per surface.
type Session struct {
	logger    *slog.Logger
	transport *transport.Transport
	router    *subscription.Router

	SerialMedia    *serialmedia.API
	WebsocketMedia *websocketmedia.API
}

// New builds a Session for url. No connection is made until Connect or the first call.
func New(url string, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PlaybackWindow <= 0 {
		opts.PlaybackWindow = throttle.PlaybackWindow
	}
	if opts.SettingsWindow <= 0 {
		opts.SettingsWindow = throttle.SettingsWindow
	}

	tr := transport.NewWithOptions(url, transport.Options{
		Logger:         opts.Logger,
		DialOptions:    opts.DialOptions,
		RequestTimeout: opts.RequestTimeout,
	})
	router := subscription.New(tr, subscription.WithLogger(opts.Logger))
	tr.OnNotification(router.Dispatch)

	serial := endpoint.New(serialmedia.Namespace, tr,
		endpoint.WithLogger(opts.Logger),
		endpoint.WithGate(opts.SettingsWindow),
		endpoint.WithRouter(router),
		endpoint.WithActive(opts.ActiveEndpoint),
	)
	ws := endpoint.New(websocketmedia.Namespace, tr,
		endpoint.WithLogger(opts.Logger),
		endpoint.WithGate(opts.PlaybackWindow),
		endpoint.WithRouter(router),
		endpoint.WithActive(opts.ActiveEndpoint),
	)

	return &Session{
		logger:         opts.Logger,
		transport:      tr,
		router:         router,
		SerialMedia:    serialmedia.New(serial, opts.Logger),
		WebsocketMedia: websocketmedia.New(ws, opts.Logger),
	}
}

// Connect opens the connection. Safe to call repeatedly.
func (s *Session) Connect(ctx context.Context) error {
	return s.transport.Connect(ctx)
}

// State reports the connection state.
func (s *Session) State() State {
	return s.transport.State()
}

// Call sends a raw JSON-RPC call without target injection or throttling.
func (s *Session) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	return s.transport.Call(ctx, method, params...)
}

// AddSubscription subscribes with a fully qualified method and explicit params.
func (s *Session) AddSubscription(ctx context.Context, method string, params []any, cb Callback) (*Subscription, error) {
	return s.router.Subscribe(ctx, method, params, cb)
}

// Unsubscribe cancels a subscription locally and on the server.
func (s *Session) Unsubscribe(ctx context.Context, sub *Subscription) error {
	return s.router.Unsubscribe(ctx, sub)
}

// RefreshEndpoints reloads the serialmedia endpoint list.
func (s *Session) RefreshEndpoints(ctx context.Context) ([]EndpointInfo, error) {
	return s.SerialMedia.Scope().RefreshEndpoints(ctx)
}

// Endpoints returns the endpoint list from the last refresh.
func (s *Session) Endpoints() []EndpointInfo {
	return s.SerialMedia.Scope().Endpoints()
}

// SetActiveEndpoint retargets both surfaces.
func (s *Session) SetActiveEndpoint(target string) {
	s.SerialMedia.Scope().SetActive(target)
	s.WebsocketMedia.Scope().SetActive(target)
}

// ActiveEndpoint returns the serialmedia surface's active target.
func (s *Session) ActiveEndpoint() string {
	return s.SerialMedia.Scope().Active()
}

// Close flushes throttled calls, stops subscription delivery and closes the connection.
func (s *Session) Close() error {
	if g := s.SerialMedia.Scope().Gate(); g != nil {
		g.Flush()
	}
	if g := s.WebsocketMedia.Scope().Gate(); g != nil {
		g.Flush()
	}
	s.router.Close()
	return s.transport.Close()
}
