package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultDialTimeout    = 10 * time.Second
	defaultWriteTimeout   = 5 * time.Second
	defaultReadLimit      = 1 << 20
)

type transportConfig struct {
	logger         *slog.Logger
	dialOptions    *websocket.DialOptions
	dialTimeout    time.Duration
	requestTimeout time.Duration
	writeTimeout   time.Duration
	readLimit      int64
}

// Options contains configuration values for NewWithOptions.
type Options struct {
	Logger         *slog.Logger
	DialOptions    *websocket.DialOptions
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64
}

// DefaultOptions returns an Options struct populated with library defaults.
func DefaultOptions() Options {
	return Options{
		Logger:         slog.Default(),
		DialOptions:    &websocket.DialOptions{HTTPClient: http.DefaultClient},
		DialTimeout:    defaultDialTimeout,
		RequestTimeout: defaultRequestTimeout,
		WriteTimeout:   defaultWriteTimeout,
		ReadLimit:      defaultReadLimit,
	}
}

// Option configures the Transport.
type Option func(*Transport)

// WithLogger sets a custom logging implementation.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.config.logger = logger
		}
	}
}

// WithDialOptions sets custom websocket.DialOptions.
func WithDialOptions(opts *websocket.DialOptions) Option {
	return func(t *Transport) {
		if opts != nil {
			t.config.dialOptions = opts
		}
	}
}

// WithDialTimeout bounds the WebSocket handshake.
func WithDialTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		if timeout > 0 {
			t.config.dialTimeout = timeout
		}
	}
}

// WithRequestTimeout sets how long a call waits for its response.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		if timeout > 0 {
			t.config.requestTimeout = timeout
		}
	}
}

// WithWriteTimeout bounds a single frame write.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		if timeout > 0 {
			t.config.writeTimeout = timeout
		}
	}
}

// WithReadLimit sets the maximum inbound frame size in bytes.
func WithReadLimit(limit int64) Option {
	return func(t *Transport) {
		if limit > 0 {
			t.config.readLimit = limit
		}
	}
}

func (o Options) apply() []Option {
	return []Option{
		WithLogger(o.Logger),
		WithDialOptions(o.DialOptions),
		WithDialTimeout(o.DialTimeout),
		WithRequestTimeout(o.RequestTimeout),
		WithWriteTimeout(o.WriteTimeout),
		WithReadLimit(o.ReadLimit),
	}
}
