// Package throttle coalesces bursts of calls to the same remote method.
//
// A Gate keeps one slot per method name. The first call opens a window; calls
// arriving inside the window replace the pending arguments, and when the window
// closes exactly one call goes out with the latest arguments. At most one call
// per method is in flight at a time.
package throttle

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	// PlaybackWindow applies to playback transport controls.
	PlaybackWindow = 15 * time.Millisecond
	// SettingsWindow applies to device setting writes such as volume and EQ.
	SettingsWindow = 200 * time.Millisecond
)

// ErrSuperseded is returned to a caller whose arguments were replaced by a
// newer call to the same method before the window closed.
var ErrSuperseded = errors.New("throttle: superseded by a newer call")

// CallFunc performs the underlying remote call.
type CallFunc func(ctx context.Context, method string, params []any) (json.RawMessage, error)

type result struct {
	value json.RawMessage
	err   error
}

type invocation struct {
	ctx    context.Context
	params []any
	done   chan result
}

type slot struct {
	method  string
	timer   *time.Timer
	pending *invocation
}

// Gate throttles calls per method name.
type Gate struct {
	window time.Duration
	call   CallFunc
	logger *slog.Logger

	mu    sync.Mutex
	slots map[string]*slot
}

// Option configures the Gate.
type Option func(*Gate)

// WithLogger sets a custom logging implementation.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates a Gate with the given window. A non-positive window falls back
// to SettingsWindow.
func New(window time.Duration, call CallFunc, opts ...Option) *Gate {
	if window <= 0 {
		window = SettingsWindow
	}
	g := &Gate{
		window: window,
		call:   call,
		logger: slog.Default(),
		slots:  make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Window returns the coalescing window.
func (g *Gate) Window() time.Duration { return g.window }

// Call schedules method with params. It blocks until the coalesced call for
// this window completes, or returns ErrSuperseded as soon as a newer call
// replaces it.
func (g *Gate) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	inv := &invocation{ctx: ctx, params: params, done: make(chan result, 1)}

	g.mu.Lock()
	s, ok := g.slots[method]
	if !ok {
		s = &slot{method: method}
		g.slots[method] = s
	}
	if prev := s.pending; prev != nil {
		prev.done <- result{err: ErrSuperseded}
	}
	s.pending = inv
	if s.timer == nil {
		s.timer = time.AfterFunc(g.window, func() { g.fire(s) })
	}
	g.mu.Unlock()

	select {
	case res := <-inv.done:
		return res.value, res.err
	case <-ctx.Done():
		g.mu.Lock()
		if s.pending == inv {
			s.pending = nil
		}
		g.mu.Unlock()
		// fire may have taken inv just before the withdrawal.
		select {
		case res := <-inv.done:
			return res.value, res.err
		default:
		}
		return nil, ctx.Err()
	}
}

// fire sends the pending invocation. The slot stays occupied until the call
// returns; calls arriving meanwhile open the next window only after that.
func (g *Gate) fire(s *slot) {
	g.mu.Lock()
	inv := s.pending
	s.pending = nil
	g.mu.Unlock()

	if inv != nil {
		g.logger.Debug("throttle firing", "method", s.method, "window", g.window)
		value, err := g.call(inv.ctx, s.method, inv.params)
		inv.done <- result{value: value, err: err}
	}

	g.mu.Lock()
	s.timer = nil
	if s.pending != nil {
		s.timer = time.AfterFunc(g.window, func() { g.fire(s) })
	}
	g.mu.Unlock()
}

// Flush fires every scheduled call immediately and waits for them.
func (g *Gate) Flush() {
	g.mu.Lock()
	var due []*slot
	for _, s := range g.slots {
		if s.timer != nil && s.timer.Stop() {
			due = append(due, s)
		}
	}
	g.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range due {
		wg.Add(1)
		go func(s *slot) {
			defer wg.Done()
			g.fire(s)
		}(s)
	}
	wg.Wait()
}
