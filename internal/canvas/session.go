// Package canvas runs one goroutine per open canvas. The goroutine owns the
// canvas' layout.Engine: commands reach it over a channel, a ticker drives
// Frame, and engine notifications fan out to subscribers.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/onnwee/nodelayout/internal/errorreporting"
	"github.com/onnwee/nodelayout/internal/force"
	"github.com/onnwee/nodelayout/internal/geometry"
	"github.com/onnwee/nodelayout/internal/hierarchy"
	"github.com/onnwee/nodelayout/internal/layout"
	"github.com/onnwee/nodelayout/internal/metrics"
	"github.com/onnwee/nodelayout/internal/store"
	"github.com/onnwee/nodelayout/internal/tracing"
)

// ErrClosed is returned for commands sent to a session that has stopped.
var ErrClosed = errors.New("canvas session closed")

// Command runs on the session goroutine with exclusive access to the engine.
type Command func(e *layout.Engine) error

type request struct {
	ctx  context.Context
	name string
	fn   Command
	done chan error
}

// Session is an open canvas.
type Session struct {
	id     string
	engine *layout.Engine
	store  store.Store
	opts   Options
	logger *slog.Logger
	onExit func(*Session)

	requests  chan request
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	discard   atomic.Bool
	err       error

	mu      sync.Mutex
	subs    map[chan Event]struct{}
	stopped bool

	lastUsed atomic.Int64
	nodes    atomic.Int64
	bodies   atomic.Int64
	running  atomic.Bool

	// owned by the session goroutine
	savedVersion  uint64
	savedSettings store.Settings
}

func newSession(id string, rec *store.Record, st store.Store, opts Options, logger *slog.Logger, onExit func(*Session)) (*Session, error) {
	s := &Session{
		id:       id,
		onExit:   onExit,
		store:    st,
		opts:     opts,
		logger:   logger,
		requests: make(chan request),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		subs:     make(map[chan Event]struct{}),
	}
	s.engine = layout.New(opts.Layout,
		layout.WithLogger(logger),
		layout.WithObserver(layout.ObserverFuncs{
			PositionsChanged:       s.positionsChanged,
			ReparentResult:         s.reparentResult,
			ReparentRejected:       s.reparentRejected,
			SimulationStateChanged: s.simulationChanged,
		}),
	)

	if rec != nil {
		if err := s.engine.Restore(rec.Snapshot); err != nil {
			return nil, fmt.Errorf("canvas %q: %w", id, err)
		}
		if rec.Settings != nil {
			if err := s.engine.SetForceParams(rec.Settings.Params); err != nil {
				return nil, fmt.Errorf("canvas %q: %w", id, err)
			}
			if err := s.engine.SetMode(rec.Settings.Mode); err != nil {
				return nil, fmt.Errorf("canvas %q: %w", id, err)
			}
		}
		if opts.AssumeMeasured {
			if err := s.engine.AssumeMeasured(); err != nil {
				return nil, fmt.Errorf("canvas %q: %w", id, err)
			}
		}
	}
	s.savedVersion = s.engine.Version()
	s.savedSettings = s.settings()
	s.touch()
	s.publishStats()

	go s.run()
	return s, nil
}

// ID returns the canvas id.
func (s *Session) ID() string { return s.id }

// Done is closed once the session goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Do runs fn on the session goroutine and returns its error. A request that
// has been accepted always runs to completion; ctx only bounds the wait for
// the goroutine to pick it up.
func (s *Session) Do(ctx context.Context, name string, fn Command) (err error) {
	ctx, span := tracing.StartCanvasSpan(ctx, name, s.id)
	defer func() { tracing.End(span, err) }()

	s.touch()
	req := request{ctx: ctx, name: name, fn: fn, done: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.done
}

// Subscribe registers for engine events. The channel is closed when the
// session stops, when cancel is called, or when the subscriber falls more
// than SubscriberBuffer events behind.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, s.opts.SubscriberBuffer)
	s.touch()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
			s.touch()
		})
	}
	return ch, cancel
}

// Subscribers returns the number of live subscriptions.
func (s *Session) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Idle reports whether the session has had no commands or subscribers for
// longer than timeout.
func (s *Session) Idle(now time.Time, timeout time.Duration) bool {
	if timeout <= 0 || s.Subscribers() > 0 {
		return false
	}
	return now.Sub(time.Unix(0, s.lastUsed.Load())) > timeout
}

// Close stops the session after saving pending changes. It returns the error
// of the final save.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.quit) })
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// discardAndClose stops the session without saving.
func (s *Session) discardAndClose(ctx context.Context) error {
	s.discard.Store(true)
	return s.Close(ctx)
}

func (s *Session) touch() { s.lastUsed.Store(time.Now().UnixNano()) }

func (s *Session) run() {
	defer func() {
		s.closeSubscribers()
		close(s.done)
		if s.onExit != nil {
			s.onExit(s)
		}
	}()

	frames := time.NewTicker(s.opts.FrameInterval)
	defer frames.Stop()
	var autosave <-chan time.Time
	if s.opts.AutosaveInterval > 0 {
		t := time.NewTicker(s.opts.AutosaveInterval)
		defer t.Stop()
		autosave = t.C
	}

	for {
		select {
		case req := <-s.requests:
			panicked, err := s.exec(req)
			req.done <- err
			if panicked {
				return
			}
		case now := <-frames.C:
			if panicked, _ := s.guard("frame", func() error { return s.frame(now) }); panicked {
				return
			}
		case <-autosave:
			if err := s.save(); err != nil {
				s.logger.Warn("autosave failed", "error", err)
				errorreporting.AddBreadcrumb(s.id, "store", "autosave failed", map[string]any{"error": err.Error()})
			}
		case <-s.quit:
			if !s.discard.Load() {
				s.err = s.save()
			}
			return
		}
	}
}

func (s *Session) exec(req request) (bool, error) {
	if err := req.ctx.Err(); err != nil {
		return false, err
	}
	start := time.Now()
	panicked, err := s.guard(req.name, func() error { return req.fn(s.engine) })
	metrics.SessionCommandDuration.WithLabelValues(req.name).Observe(time.Since(start).Seconds())
	return panicked, err
}

func (s *Session) frame(now time.Time) error {
	if !s.engine.Running() && !s.engine.Settling() && s.engine.PendingSizes() == 0 {
		return nil
	}
	return s.engine.Frame(now)
}

// guard runs fn and turns a panic into an error. The engine is not trusted
// after a panic, so the caller stops the session without saving.
func (s *Session) guard(name string, fn func() error) (panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			s.logger.Error("panic in canvas session", "command", name, "panic", r, "stack", string(stack))
			errorreporting.CapturePanic(s.id, r, stack)
			metrics.SessionPanicsTotal.Inc()
			err = fmt.Errorf("%w: %s panicked: %v", ErrClosed, name, r)
			panicked = true
		}
		s.publishStats()
	}()
	return false, fn()
}

func (s *Session) publishStats() {
	s.nodes.Store(int64(s.engine.Len()))
	s.bodies.Store(int64(s.engine.Bodies()))
	s.running.Store(s.engine.Running())
}

func (s *Session) settings() store.Settings {
	return store.Settings{Mode: s.engine.Mode(), Params: s.engine.ForceParams()}
}

// save writes the snapshot when the canvas changed since the last save.
func (s *Session) save() error {
	version, settings := s.engine.Version(), s.settings()
	if version == s.savedVersion && settings == s.savedSettings {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.StoreTimeout)
	defer cancel()
	rec := store.Record{
		Canvas:    s.id,
		Snapshot:  s.engine.Snapshot(),
		Settings:  &settings,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save canvas %q: %w", s.id, err)
	}
	s.savedVersion, s.savedSettings = version, settings
	s.logger.Debug("canvas saved", "version", version, "nodes", len(rec.Snapshot.Nodes))
	return nil
}

func (s *Session) broadcast(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
			// slow consumer; it reconnects and reloads the snapshot
			delete(s.subs, ch)
			close(ch)
		}
	}
}

func (s *Session) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for ch := range s.subs {
		close(ch)
	}
	clear(s.subs)
}

func (s *Session) positionsChanged(p map[hierarchy.NodeID]geometry.Point) {
	s.broadcast(Event{Type: EventPositions, Version: s.engine.Version(), Positions: maps.Clone(p)})
}

func (s *Session) reparentResult(child, oldParent, newParent hierarchy.NodeID) {
	errorreporting.AddBreadcrumb(s.id, "reparent", "accepted", map[string]any{
		"child": string(child), "old_parent": string(oldParent), "new_parent": string(newParent),
	})
	s.broadcast(Event{
		Type:     EventReparent,
		Version:  s.engine.Version(),
		Reparent: &Reparent{Child: child, OldParent: oldParent, NewParent: newParent},
	})
}

func (s *Session) reparentRejected(child, parent hierarchy.NodeID, reason error) {
	errorreporting.AddBreadcrumb(s.id, "reparent", "rejected", map[string]any{
		"child": string(child), "parent": string(parent), "reason": reason.Error(),
	})
	s.broadcast(Event{
		Type:     EventReparentRejected,
		Version:  s.engine.Version(),
		Reparent: &Reparent{Child: child, NewParent: parent, Reason: reason.Error()},
	})
}

func (s *Session) simulationChanged(mode force.Mode, running bool) {
	s.running.Store(running)
	errorreporting.AddBreadcrumb(s.id, "simulation", mode.String(), map[string]any{"running": running})
	s.broadcast(Event{
		Type:       EventSimulation,
		Version:    s.engine.Version(),
		Simulation: &Simulation{Mode: mode, Running: running},
	})
}
