package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/lightforgemedia/go-arylicrpc"
	"github.com/lightforgemedia/go-arylicrpc/pkg/config"
	"github.com/lightforgemedia/go-arylicrpc/pkg/endpoint"
	"github.com/lightforgemedia/go-arylicrpc/pkg/filewatcher"
	"github.com/lightforgemedia/go-arylicrpc/pkg/serialmedia"
	"github.com/lightforgemedia/go-arylicrpc/pkg/subscription"
	"github.com/lightforgemedia/go-arylicrpc/pkg/websocketmedia"
	"github.com/spf13/cobra"
)

// errConnectionLost ends long-running commands once the bridge goes away.
var errConnectionLost = errors.New("connection to bridge lost")

// stream maps a CLI stream name to the surface and stream it subscribes to.
type stream struct {
	namespace string
	name      string
}

var streams = map[string]stream{
	"metadata": {serialmedia.Namespace, serialmedia.StreamMetadata},
	"volume":   {serialmedia.Namespace, serialmedia.StreamVolume},
	"mute":     {serialmedia.Namespace, serialmedia.StreamMute},
	"status":   {websocketmedia.Namespace, websocketmedia.StreamStatus},
}

func streamNames() []string {
	names := make([]string, 0, len(streams))
	for n := range streams {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (a *app) scopeFor(s stream) *endpoint.Scope {
	if s.namespace == websocketmedia.Namespace {
		return a.session.WebsocketMedia.Scope()
	}
	return a.session.SerialMedia.Scope()
}

func newWatchCmd(a *app) *cobra.Command {
	var noReload bool
	cmd := &cobra.Command{
		Use:   "watch <stream>",
		Short: "Print notifications from a stream of the active endpoint",
		Long: `watch subscribes to a notification stream and prints every payload until
interrupted. When the config file's active_endpoint changes (for example via
"arylicctl use"), the subscription moves to the new endpoint.`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: streamNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireEndpoint(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := &streamWatcher{app: a, stream: streams[args[0]]}
			if err := w.subscribe(ctx); err != nil {
				return err
			}
			defer w.unsubscribe()

			if !noReload {
				fw, err := filewatcher.WatchConfig(a.configPath(), func(cfg *config.Config) {
					w.retarget(ctx, cfg.ActiveEndpoint)
				}, filewatcher.WithLogger(a.logger))
				if err != nil {
					a.logger.Warn("Config reload disabled", "error", err)
				} else {
					defer fw.Stop()
				}
			}
			return waitConnected(ctx, a.session)
		},
	}
	cmd.Flags().BoolVar(&noReload, "no-reload", false, "ignore config file changes")
	return cmd
}

// streamWatcher keeps one subscription alive across endpoint changes.
type streamWatcher struct {
	app    *app
	stream stream

	mu  sync.Mutex
	sub *subscription.Subscription
}

func (w *streamWatcher) print(payload json.RawMessage) {
	if err := w.app.printer.printRaw(payload); err != nil {
		w.app.logger.Warn("Failed to print notification", "error", err)
	}
}

func (w *streamWatcher) subscribe(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	scope := w.app.scopeFor(w.stream)
	sub, err := scope.Subscribe(ctx, w.stream.name, w.print)
	if err != nil {
		return fmt.Errorf("subscribe %s on %s: %w", w.stream.name, scope.Active(), err)
	}
	w.sub = sub
	w.app.logger.Info("Watching", "stream", w.stream.name, "target", scope.Active(), "subscription", sub.ID)
	return nil
}

func (w *streamWatcher) unsubscribe() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.app.scopeFor(w.stream).Unsubscribe(ctx, w.sub); err != nil {
		w.app.logger.Debug("Unsubscribe failed", "subscription", w.sub.ID, "error", err)
	}
	w.sub = nil
}

func (w *streamWatcher) retarget(ctx context.Context, target string) {
	if target == "" || target == w.app.session.ActiveEndpoint() {
		return
	}
	w.unsubscribe()
	w.app.session.SetActiveEndpoint(target)
	if err := w.subscribe(ctx); err != nil {
		w.app.logger.Error("Resubscribe failed", "target", target, "error", err)
	}
}

// waitConnected blocks until ctx ends or the session leaves the open state.
func waitConnected(ctx context.Context, s *arylicrpc.Session) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.State() != arylicrpc.StateOpen {
				return errConnectionLost
			}
		}
	}
}
