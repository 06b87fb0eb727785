// Package devicesim serves a fleet of simulated devices over the same
// JSON-RPC WebSocket API as the real bridge. It backs the end-to-end tests
// and the `arylicctl simulate` command.
package devicesim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/lightforgemedia/go-arylicrpc/pkg/endpoint"
	"github.com/lightforgemedia/go-arylicrpc/pkg/serialmedia"
	"github.com/lightforgemedia/go-arylicrpc/pkg/websocketmedia"
)

// ErrEndpointNotFound is what the bridge answers for an unknown target.
var ErrEndpointNotFound = errors.New("endpoint not found")

const watcherBuffer = 16

// Simulator holds device state and the RPC server exposing it.
type Simulator struct {
	logger *slog.Logger
	server *rpc.Server

	mu      sync.RWMutex
	devices map[string]*Device

	watchMu  sync.Mutex
	watchers map[string]map[chan any]struct{}
}

// Option configures the Simulator.
type Option func(*Simulator)

// WithLogger sets a custom logging implementation.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDevice adds a device at construction time.
func WithDevice(d *Device) Option {
	return func(s *Simulator) {
		s.devices[d.Target] = d
	}
}

// New creates a Simulator and registers the serialmedia and websocketmedia services.
func New(opts ...Option) (*Simulator, error) {
	s := &Simulator{
		logger:   slog.Default(),
		server:   rpc.NewServer(),
		devices:  make(map[string]*Device),
		watchers: make(map[string]map[chan any]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.server.RegisterName(serialmedia.Namespace, &serialMediaService{sim: s}); err != nil {
		return nil, fmt.Errorf("register %s: %w", serialmedia.Namespace, err)
	}
	if err := s.server.RegisterName(websocketmedia.Namespace, &websocketMediaService{sim: s}); err != nil {
		return nil, fmt.Errorf("register %s: %w", websocketmedia.Namespace, err)
	}
	return s, nil
}

// Handler serves the JSON-RPC WebSocket endpoint.
func (s *Simulator) Handler() http.Handler {
	return s.server.WebsocketHandler([]string{"*"})
}

// Stop closes all connections and subscriptions.
func (s *Simulator) Stop() {
	s.server.Stop()
}

// AddDevice registers or replaces d.
func (s *Simulator) AddDevice(d *Device) {
	s.mu.Lock()
	s.devices[d.Target] = d
	s.mu.Unlock()
	s.logger.Info("simulated device added", "name", d.Name, "target", d.Target)
}

// RemoveDevice drops target from the fleet.
func (s *Simulator) RemoveDevice(target string) {
	s.mu.Lock()
	delete(s.devices, target)
	s.mu.Unlock()
}

// Snapshot returns a copy of the device state.
func (s *Simulator) Snapshot(target string) (Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[target]
	if !ok {
		return Device{}, false
	}
	return *d, true
}

// Endpoints lists the fleet sorted by target.
func (s *Simulator) Endpoints() []endpoint.Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]endpoint.Info, 0, len(s.devices))
	for _, d := range s.devices {
		list = append(list, endpoint.Info{Name: d.Name, Target: d.Target})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Target < list[j].Target })
	return list
}

// PushMetadata changes the track on target and notifies metadata subscribers.
func (s *Simulator) PushMetadata(target string, m serialmedia.Metadata) error {
	if _, err := write(s, target, func(d *Device) serialmedia.Metadata {
		d.Metadata = m
		return m
	}); err != nil {
		return err
	}
	s.publish(serialmedia.StreamMetadata, target, m)
	return nil
}

// PushStatus replaces the player status on target and notifies status subscribers.
func (s *Simulator) PushStatus(target string, st websocketmedia.Status) error {
	if _, err := write(s, target, func(d *Device) websocketmedia.Status {
		d.Status = st
		return st
	}); err != nil {
		return err
	}
	s.publish(websocketmedia.StreamStatus, target, st)
	return nil
}

// Watchers reports how many subscriptions are open for stream on target.
func (s *Simulator) Watchers(stream, target string) int {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	return len(s.watchers[stream+"/"+target])
}

func read[T any](s *Simulator, target string, fn func(*Device) T) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[target]
	if !ok {
		var zero T
		return zero, ErrEndpointNotFound
	}
	return fn(d), nil
}

func write[T any](s *Simulator, target string, fn func(*Device) T) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[target]
	if !ok {
		var zero T
		return zero, ErrEndpointNotFound
	}
	return fn(d), nil
}

func (s *Simulator) watch(stream, target string) chan any {
	ch := make(chan any, watcherBuffer)
	key := stream + "/" + target
	s.watchMu.Lock()
	if s.watchers[key] == nil {
		s.watchers[key] = make(map[chan any]struct{})
	}
	s.watchers[key][ch] = struct{}{}
	s.watchMu.Unlock()
	return ch
}

func (s *Simulator) unwatch(stream, target string, ch chan any) {
	key := stream + "/" + target
	s.watchMu.Lock()
	delete(s.watchers[key], ch)
	if len(s.watchers[key]) == 0 {
		delete(s.watchers, key)
	}
	s.watchMu.Unlock()
}

func (s *Simulator) publish(stream, target string, v any) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for ch := range s.watchers[stream+"/"+target] {
		select {
		case ch <- v:
		default:
			s.logger.Warn("simulated subscriber lagging, dropping update", "stream", stream, "target", target)
		}
	}
}

// subscribe wires a go-ethereum subscription to the watcher registry. initial,
// when non-nil, is sent before any change.
func (s *Simulator) subscribe(ctx context.Context, stream, target string, initial any) (*rpc.Subscription, error) {
	if _, ok := s.Snapshot(target); !ok {
		return nil, ErrEndpointNotFound
	}
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return nil, rpc.ErrNotificationsUnsupported
	}

	ch := s.watch(stream, target)
	sub := notifier.CreateSubscription()
	s.logger.Debug("simulated subscription opened", "stream", stream, "target", target, "id", sub.ID)

	go func() {
		defer s.unwatch(stream, target, ch)
		if initial != nil {
			notifier.Notify(sub.ID, initial)
		}
		for {
			select {
			case v := <-ch:
				if err := notifier.Notify(sub.ID, v); err != nil {
					s.logger.Debug("simulated notify failed", "id", sub.ID, "error", err)
				}
			case <-sub.Err():
				s.logger.Debug("simulated subscription closed", "stream", stream, "target", target, "id", sub.ID)
				return
			}
		}
	}()
	return sub, nil
}
