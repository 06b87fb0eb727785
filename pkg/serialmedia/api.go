// Package serialmedia exposes the serialmedia_* device controls as explicit
// command functions. Every setter returns the value the device confirmed.
package serialmedia

import (
	"context"
	"log/slog"

	"github.com/lightforgemedia/go-arylicrpc/pkg/endpoint"
	"github.com/lightforgemedia/go-arylicrpc/pkg/transport"
)

// Namespace is the method prefix served by the device bridge.
const Namespace = "serialmedia"

// API issues serialmedia calls against the scope's active endpoint.
type API struct {
	scope  *endpoint.Scope
	logger *slog.Logger
}

// New wraps scope, which should be created for Namespace.
func New(scope *endpoint.Scope, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{scope: scope, logger: logger}
}

// Scope returns the underlying endpoint scope.
func (a *API) Scope() *endpoint.Scope { return a.scope }

// Only value writes go through the scope's gate. Reads, toggles and actions
// are sent immediately.

func get[T any](ctx context.Context, a *API, verb string) (T, error) {
	return transport.Decode[T](a.scope.Direct(ctx, verb))
}

func set[T any](ctx context.Context, a *API, verb string, v T) (T, error) {
	return transport.Decode[T](a.scope.Call(ctx, verb, v))
}

func request(ctx context.Context, a *API, verb string) error {
	_, err := a.scope.Direct(ctx, verb)
	return err
}
