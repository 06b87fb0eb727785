// Package bridge republishes device notifications onto a message bus so other
// services can follow a device without holding their own WebSocket.
package bridge

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/lightforgemedia/go-arylicrpc/pkg/subscription"
)

const defaultPrefix = "arylic"

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Bridge forwards subscription payloads to <prefix>.<target>.<stream>.
type Bridge struct {
	pub    Publisher
	prefix string
	logger *slog.Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

// Option configures the Bridge.
type Option func(*Bridge)

// WithLogger sets a custom logging implementation.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithSubjectPrefix sets the first subject token. Defaults to "arylic".
func WithSubjectPrefix(prefix string) Option {
	return func(b *Bridge) {
		if prefix != "" {
			b.prefix = token(prefix)
		}
	}
}

func New(pub Publisher, opts ...Option) *Bridge {
	b := &Bridge{pub: pub, prefix: defaultPrefix, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subject returns the subject payloads for target and stream are published on.
func (b *Bridge) Subject(target, stream string) string {
	return b.prefix + "." + token(target) + "." + token(stream)
}

// Forward returns a subscription callback publishing each payload verbatim.
func (b *Bridge) Forward(target, stream string) subscription.Callback {
	subject := b.Subject(target, stream)
	return func(payload json.RawMessage) {
		if err := b.pub.Publish(subject, payload); err != nil {
			b.failed.Add(1)
			b.logger.Warn("bridge publish failed", "subject", subject, "error", err)
			return
		}
		b.published.Add(1)
		b.logger.Debug("bridge published", "subject", subject, "bytes", len(payload))
	}
}

// Stats reports how many payloads were published and how many failed.
func (b *Bridge) Stats() (published, failed uint64) {
	return b.published.Load(), b.failed.Load()
}

// token makes s usable as a single subject token: separators and wildcards
// become underscores.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
