package canvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/nodelayout/internal/layout"
	"github.com/onnwee/nodelayout/internal/logger"
	"github.com/onnwee/nodelayout/internal/metrics"
	"github.com/onnwee/nodelayout/internal/store"
)

// ErrLimit is returned by Open when MaxCanvases sessions are already open.
var ErrLimit = errors.New("too many open canvases")

// Options configures the sessions opened by a Manager.
type Options struct {
	Layout           layout.Config
	FrameInterval    time.Duration
	AutosaveInterval time.Duration
	IdleTimeout      time.Duration
	StoreTimeout     time.Duration
	// MaxCanvases of zero means no limit.
	MaxCanvases      int
	SubscriberBuffer int
	// AssumeMeasured builds collision bodies from stored sizes when a canvas
	// is loaded, for deployments without a renderer reporting sizes.
	AssumeMeasured bool
}

func (o Options) normalized() Options {
	if o.FrameInterval <= 0 {
		o.FrameInterval = time.Second / 60
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.SubscriberBuffer <= 0 {
		o.SubscriberBuffer = 64
	}
	return o
}

// Manager opens canvas sessions on demand and closes them when idle.
type Manager struct {
	store  store.Store
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager returns a manager persisting to st.
func NewManager(st store.Store, opts Options, l *slog.Logger) *Manager {
	if l == nil {
		l = logger.WithComponent("canvas")
	}
	return &Manager{
		store:    st,
		opts:     opts.normalized(),
		logger:   l,
		sessions: make(map[string]*Session),
	}
}

// Open returns the session of canvas id, loading it from the store or
// starting an empty canvas when nothing is stored.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	if s, err := m.lookup(id); s != nil || err != nil {
		return s, err
	}

	var rec *store.Record
	loaded, err := m.store.Load(ctx, id)
	switch {
	case err == nil:
		rec = &loaded
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, fmt.Errorf("open canvas %q: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	if m.opts.MaxCanvases > 0 && len(m.sessions) >= m.opts.MaxCanvases {
		return nil, ErrLimit
	}
	s, err := newSession(id, rec, m.store, m.opts, m.logger.With("canvas_id", id), m.forget)
	if err != nil {
		return nil, err
	}
	m.sessions[id] = s
	metrics.CanvasSessionsActive.Set(float64(len(m.sessions)))
	m.logger.Info("canvas opened", "canvas_id", id, "restored", rec != nil)
	return s, nil
}

func (m *Manager) lookup(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	if m.opts.MaxCanvases > 0 && len(m.sessions) >= m.opts.MaxCanvases {
		return nil, ErrLimit
	}
	return nil, nil
}

// Lookup returns the session of id if it is open.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// IDs returns the open canvas ids in ascending order.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Delete closes the session of id without saving and removes the stored
// snapshot. Deleting a canvas that exists in neither place wraps
// store.ErrNotFound.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, open := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if open {
		if err := s.discardAndClose(ctx); err != nil {
			return err
		}
	}
	err := m.store.Delete(ctx, id)
	if open && errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// Run closes idle sessions until ctx ends.
func (m *Manager) Run(ctx context.Context) {
	if m.opts.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(max(m.opts.IdleTimeout/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.CloseIdle(ctx, now)
		}
	}
}

// CloseIdle saves and closes every session idle at now. It returns the
// number of sessions closed.
func (m *Manager) CloseIdle(ctx context.Context, now time.Time) int {
	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.Idle(now, m.opts.IdleTimeout) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	metrics.CanvasSessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, s := range idle {
		if err := s.Close(ctx); err != nil {
			m.logger.Warn("closing idle canvas", "canvas_id", s.ID(), "error", err)
			continue
		}
		m.logger.Info("idle canvas closed", "canvas_id", s.ID())
	}
	return len(idle)
}

// Stats implements metrics.StatsSource.
func (m *Manager) Stats(ctx context.Context) (metrics.SessionStats, error) {
	if err := ctx.Err(); err != nil {
		return metrics.SessionStats{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := metrics.SessionStats{Sessions: len(m.sessions)}
	for _, s := range m.sessions {
		stats.Nodes += int(s.nodes.Load())
		stats.Bodies += int(s.bodies.Load())
		if s.running.Load() {
			stats.RunningSimulations++
		}
	}
	return stats, nil
}

// Close saves and closes every session. Open fails afterwards.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	clear(m.sessions)
	m.mu.Unlock()
	metrics.CanvasSessionsActive.Set(0)

	var errs []error
	for _, s := range sessions {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("canvas %q: %w", s.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// forget drops a session that stopped on its own after a panic.
func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[s.ID()]; ok && cur == s {
		delete(m.sessions, s.ID())
		metrics.CanvasSessionsActive.Set(float64(len(m.sessions)))
	}
}
