// Package websocketmedia covers devices reached through their own HTTP/WebSocket
// API rather than the serial bridge. Calls on this surface are throttled with
// throttle.PlaybackWindow.
package websocketmedia

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lightforgemedia/go-arylicrpc/pkg/endpoint"
	"github.com/lightforgemedia/go-arylicrpc/pkg/subscription"
	"github.com/lightforgemedia/go-arylicrpc/pkg/transport"
)

// Namespace is the method prefix for this surface.
const Namespace = "websocketmedia"

// StreamStatus is the stream name for playback status pushes.
const StreamStatus = "statusChanges"

// Status is a snapshot of the player.
type Status struct {
	Input    string `json:"Input" yaml:"input"`
	Source   string `json:"Source" yaml:"source"`
	State    string `json:"State" yaml:"state"`
	Index    int    `json:"Index" yaml:"index"`
	Mode     string `json:"Mode" yaml:"mode"`
	Elapsed  int    `json:"Elapsed" yaml:"elapsed"`
	Duration int    `json:"Duration" yaml:"duration"`
	Title    string `json:"Title" yaml:"title"`
	Artist   string `json:"Artist" yaml:"artist"`
	Album    string `json:"Album" yaml:"album"`
	Image    string `json:"Image" yaml:"image"`
	Volume   int    `json:"Volume" yaml:"volume"`
}

// API issues websocketmedia calls against the scope's active endpoint.
type API struct {
	scope  *endpoint.Scope
	logger *slog.Logger
}

func New(scope *endpoint.Scope, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{scope: scope, logger: logger}
}

func (a *API) Scope() *endpoint.Scope { return a.scope }

func (a *API) GetStatus(ctx context.Context) (Status, error) {
	return transport.Decode[Status](a.scope.Call(ctx, "getStatus"))
}

func (a *API) PlayPause(ctx context.Context) error {
	_, err := a.scope.Call(ctx, "requestPlayPause")
	return err
}

func (a *API) Next(ctx context.Context) error {
	_, err := a.scope.Call(ctx, "requestNext")
	return err
}

func (a *API) Previous(ctx context.Context) error {
	_, err := a.scope.Call(ctx, "requestPrevious")
	return err
}

// SetVolume sets the player volume in percent.
func (a *API) SetVolume(ctx context.Context, percent int) (int, error) {
	if percent < 0 || percent > 100 {
		return 0, fmt.Errorf("websocketmedia: volume %d out of range [0,100]", percent)
	}
	return transport.Decode[int](a.scope.Call(ctx, "setVolume", percent))
}

// SubscribeStatus calls fn with every status push for the active endpoint.
func (a *API) SubscribeStatus(ctx context.Context, fn func(Status)) (*subscription.Subscription, error) {
	return a.scope.Subscribe(ctx, StreamStatus, subscription.Decode(a.logger, fn))
}

func (a *API) Unsubscribe(ctx context.Context, sub *subscription.Subscription) error {
	return a.scope.Unsubscribe(ctx, sub)
}
