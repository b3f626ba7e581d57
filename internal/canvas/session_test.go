package canvas

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/nodelayout/internal/geometry"
	"github.com/onnwee/nodelayout/internal/hierarchy"
	"github.com/onnwee/nodelayout/internal/layout"
	"github.com/onnwee/nodelayout/internal/store"
)

func nextEvent(t *testing.T, ch <-chan Event, want EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("subscription closed while waiting for %s", want)
			}
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", want)
		}
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	ctx := context.Background()
	m := testManager(t, store.NewMemory(), nil)
	s, err := m.Open(ctx, "events")
	if err != nil {
		t.Fatal(err)
	}
	events, cancel := s.Subscribe()
	defer cancel()

	var a, b hierarchy.NodeID
	err = s.Do(ctx, "create", func(e *layout.Engine) error {
		var err error
		if a, err = e.ReportCreate(geometry.Point{X: 0, Y: 0}, ""); err != nil {
			return err
		}
		b, err = e.ReportCreate(geometry.Point{X: 300, Y: 0}, a)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	ev := nextEvent(t, events, EventPositions)
	if _, ok := ev.Positions[a]; !ok {
		t.Errorf("first positions event %+v lacks %s", ev.Positions, a)
	}

	// a under its own child closes a cycle
	err = s.Do(ctx, "connect", func(e *layout.Engine) error { return e.ReportConnect(b, a, true) })
	if !errors.Is(err, hierarchy.ErrCircularReference) {
		t.Fatalf("connect = %v", err)
	}
	ev = nextEvent(t, events, EventReparentRejected)
	if ev.Reparent == nil || ev.Reparent.Child != a || ev.Reparent.NewParent != b || ev.Reparent.Reason == "" {
		t.Errorf("rejection %+v", ev.Reparent)
	}
}

func TestSubscriptionEndsWithSession(t *testing.T) {
	ctx := context.Background()
	m := testManager(t, store.NewMemory(), nil)
	s, err := m.Open(ctx, "ending")
	if err != nil {
		t.Fatal(err)
	}
	events, cancel := s.Subscribe()
	defer cancel()
	if s.Subscribers() != 1 {
		t.Fatalf("subscribers = %d", s.Subscribers())
	}

	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("unexpected event after close")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}

	late, _ := s.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscription to a stopped session is open")
	}
}

func TestCancelSubscription(t *testing.T) {
	m := testManager(t, store.NewMemory(), nil)
	s, err := m.Open(context.Background(), "cancel")
	if err != nil {
		t.Fatal(err)
	}
	events, cancel := s.Subscribe()
	cancel()
	cancel()
	if _, ok := <-events; ok {
		t.Error("channel open after cancel")
	}
	if s.Subscribers() != 0 {
		t.Errorf("subscribers = %d", s.Subscribers())
	}
}

func TestPanicClosesSession(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := testManager(t, st, nil)
	s, err := m.Open(ctx, "fragile")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Do(ctx, "create", func(e *layout.Engine) error {
		_, err := e.ReportCreate(geometry.Point{}, "")
		return err
	}); err != nil {
		t.Fatal(err)
	}

	err = s.Do(ctx, "boom", func(*layout.Engine) error { panic("boom") })
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("Do(panic) = %v, want ErrClosed", err)
	}
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session still running after panic")
	}

	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := m.Lookup("fragile"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("manager kept the failed session")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := st.Load(ctx, "fragile"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("state after a panic was saved: %v", err)
	}

	fresh, err := m.Open(ctx, "fragile")
	if err != nil {
		t.Fatal(err)
	}
	if fresh == s {
		t.Error("Open returned the failed session")
	}
}

func TestAutosave(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := testManager(t, st, func(o *Options) { o.AutosaveInterval = 10 * time.Millisecond })
	s, err := m.Open(ctx, "autosave")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Do(ctx, "create", func(e *layout.Engine) error {
		_, err := e.ReportCreate(geometry.Point{X: 5, Y: 5}, "")
		return err
	}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, err := st.Load(ctx, "autosave")
		if err == nil {
			if len(rec.Snapshot.Nodes) != 1 {
				t.Errorf("autosaved %d nodes", len(rec.Snapshot.Nodes))
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("no autosave: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDoHonoursCancelledContext(t *testing.T) {
	m := testManager(t, store.NewMemory(), nil)
	s, err := m.Open(context.Background(), "ctx")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err = s.Do(ctx, "late", func(*layout.Engine) error { ran = true; return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do = %v", err)
	}
	if ran {
		t.Error("command ran with a cancelled context")
	}
}

func TestFrameAppliesReportedSizes(t *testing.T) {
	ctx := context.Background()
	m := testManager(t, store.NewMemory(), nil)
	s, err := m.Open(ctx, "sizes")
	if err != nil {
		t.Fatal(err)
	}
	var id hierarchy.NodeID
	if err := s.Do(ctx, "create", func(e *layout.Engine) error {
		var err error
		id, err = e.ReportCreate(geometry.Point{}, "")
		if err != nil {
			return err
		}
		return e.ReportObservedSize(id, 120, 60, time.Now())
	}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		var bodies int
		if err := s.Do(ctx, "bodies", func(e *layout.Engine) error { bodies = e.Bodies(); return nil }); err != nil {
			t.Fatal(err)
		}
		if bodies == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("size report never applied by the frame loop")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
