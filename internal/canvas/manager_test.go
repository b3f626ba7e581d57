package canvas

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/onnwee/nodelayout/internal/force"
	"github.com/onnwee/nodelayout/internal/geometry"
	"github.com/onnwee/nodelayout/internal/hierarchy"
	"github.com/onnwee/nodelayout/internal/layout"
	"github.com/onnwee/nodelayout/internal/store"
)

func testManager(t *testing.T, st store.Store, mutate func(*Options)) *Manager {
	t.Helper()
	opts := Options{
		Layout:        layout.DefaultConfig(),
		FrameInterval: 5 * time.Millisecond,
		StoreTimeout:  time.Second,
	}
	if mutate != nil {
		mutate(&opts)
	}
	m := NewManager(st, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func storedRecord() store.Record {
	params := force.DefaultParams()
	params.LinkDistance = 240
	return store.Record{
		Canvas: "stored",
		Snapshot: hierarchy.Snapshot{
			Nodes: []hierarchy.NodeRecord{
				{ID: "root", X: 0, Y: 0, Width: 100, Height: 40},
				{ID: "leaf", X: 200, Y: 0, Width: 100, Height: 40, Parent: "root"},
			},
			Hierarchy:  []hierarchy.Edge{{Parent: "root", Child: "leaf"}},
			References: []hierarchy.Reference{},
		},
		Settings: &store.Settings{Mode: force.ModeManual, Params: params},
	}
}

func TestOpenEmptyCanvasSavesOnClose(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := testManager(t, st, nil)

	s, err := m.Open(ctx, "fresh")
	if err != nil {
		t.Fatal(err)
	}
	again, err := m.Open(ctx, "fresh")
	if err != nil || again != s {
		t.Fatalf("second Open returned a different session: %v", err)
	}

	var id hierarchy.NodeID
	err = s.Do(ctx, "create", func(e *layout.Engine) error {
		var err error
		id, err = e.ReportCreate(geometry.Point{X: 10, Y: 20}, "")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := st.Load(ctx, "fresh"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("saved before close: %v", err)
	}
	if err := m.Close(ctx); err != nil {
		t.Fatal(err)
	}
	rec, err := st.Load(ctx, "fresh")
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Snapshot.Nodes) != 1 || rec.Snapshot.Nodes[0].ID != id {
		t.Errorf("saved snapshot %+v", rec.Snapshot)
	}
	if rec.Settings == nil || rec.Settings.Mode != force.ModeOff {
		t.Errorf("settings %+v", rec.Settings)
	}
	if _, err := m.Open(ctx, "fresh"); !errors.Is(err, ErrClosed) {
		t.Errorf("Open after Close = %v", err)
	}
}

func TestOpenRestoresStoredCanvas(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	if err := st.Save(ctx, storedRecord()); err != nil {
		t.Fatal(err)
	}
	m := testManager(t, st, func(o *Options) { o.AssumeMeasured = true })

	s, err := m.Open(ctx, "stored")
	if err != nil {
		t.Fatal(err)
	}
	err = s.Do(ctx, "inspect", func(e *layout.Engine) error {
		if e.Len() != 2 || e.Bodies() != 2 {
			t.Errorf("nodes %d bodies %d", e.Len(), e.Bodies())
		}
		if e.Mode() != force.ModeManual || e.ForceParams().LinkDistance != 240 {
			t.Errorf("settings not applied: %v %+v", e.Mode(), e.ForceParams())
		}
		if n, _ := e.Node("leaf"); n.Parent != "root" {
			t.Errorf("leaf parent %q", n.Parent)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	stats, err := m.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Sessions != 1 || stats.Nodes != 2 || stats.Bodies != 2 {
		t.Errorf("stats %+v", stats)
	}
}

func TestOpenLimit(t *testing.T) {
	ctx := context.Background()
	m := testManager(t, store.NewMemory(), func(o *Options) { o.MaxCanvases = 1 })

	if _, err := m.Open(ctx, "one"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Open(ctx, "two"); !errors.Is(err, ErrLimit) {
		t.Fatalf("Open(two) = %v, want ErrLimit", err)
	}
	if _, err := m.Open(ctx, "one"); err != nil {
		t.Fatalf("reopening an open canvas counts against the limit: %v", err)
	}
}

func TestCloseIdle(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := testManager(t, st, func(o *Options) { o.IdleTimeout = time.Minute })

	busy, err := m.Open(ctx, "busy")
	if err != nil {
		t.Fatal(err)
	}
	_, cancel := busy.Subscribe()
	defer cancel()

	quiet, err := m.Open(ctx, "quiet")
	if err != nil {
		t.Fatal(err)
	}
	if err := quiet.Do(ctx, "create", func(e *layout.Engine) error {
		_, err := e.ReportCreate(geometry.Point{}, "")
		return err
	}); err != nil {
		t.Fatal(err)
	}

	if n := m.CloseIdle(ctx, time.Now()); n != 0 {
		t.Fatalf("closed %d fresh sessions", n)
	}
	if n := m.CloseIdle(ctx, time.Now().Add(2*time.Minute)); n != 1 {
		t.Fatalf("closed %d sessions, want 1", n)
	}
	if _, ok := m.Lookup("quiet"); ok {
		t.Error("idle session still open")
	}
	if _, ok := m.Lookup("busy"); !ok {
		t.Error("subscribed session closed")
	}
	if _, err := st.Load(ctx, "quiet"); err != nil {
		t.Errorf("idle session not saved: %v", err)
	}
	if ids := m.IDs(); len(ids) != 1 || ids[0] != "busy" {
		t.Errorf("IDs = %v", ids)
	}
}

func TestDeleteDiscardsSession(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	if err := st.Save(ctx, storedRecord()); err != nil {
		t.Fatal(err)
	}
	m := testManager(t, st, nil)

	s, err := m.Open(ctx, "stored")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Do(ctx, "delete", func(e *layout.Engine) error { return e.ReportDelete("leaf") }); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, "stored"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Load(ctx, "stored"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("snapshot survived delete: %v", err)
	}
	if err := s.Do(ctx, "noop", func(*layout.Engine) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("Do on deleted session = %v", err)
	}
	if err := m.Delete(ctx, "stored"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Delete = %v", err)
	}
}

func TestStatsHonoursContext(t *testing.T) {
	m := testManager(t, store.NewMemory(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Stats(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Stats = %v", err)
	}
}
