package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	stats SessionStats
	err   error
	calls int
}

func (f *fakeSource) Stats(context.Context) (SessionStats, error) {
	f.calls++
	return f.stats, f.err
}

func TestCollectorCollect(t *testing.T) {
	src := &fakeSource{stats: SessionStats{Sessions: 2, Nodes: 40, Bodies: 31, RunningSimulations: 1}}
	c := NewCollector(src, time.Minute)
	c.Collect(context.Background())

	if got := testutil.ToFloat64(CanvasSessionsActive); got != 2 {
		t.Errorf("sessions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(CanvasNodesTotal); got != 40 {
		t.Errorf("nodes = %v, want 40", got)
	}
	if got := testutil.ToFloat64(CanvasBodiesTotal); got != 31 {
		t.Errorf("bodies = %v, want 31", got)
	}
	if got := testutil.ToFloat64(SimulationsRunning); got != 1 {
		t.Errorf("running = %v, want 1", got)
	}
}

func TestCollectorMarksStaleOnError(t *testing.T) {
	before := testutil.ToFloat64(MetricsCollectionErrors.WithLabelValues("sessions"))
	c := NewCollector(&fakeSource{err: errors.New("boom")}, time.Minute)
	c.Collect(context.Background())

	if got := testutil.ToFloat64(CanvasNodesTotal); got != -1 {
		t.Errorf("nodes = %v, want -1", got)
	}
	if got := testutil.ToFloat64(MetricsCollectionErrors.WithLabelValues("sessions")); got != before+1 {
		t.Errorf("errors = %v, want %v", got, before+1)
	}
}

func TestCollectorStartStops(t *testing.T) {
	src := &fakeSource{}
	c := NewCollector(src, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		c.Start(context.Background())
		close(done)
	}()
	time.Sleep(35 * time.Millisecond)
	c.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}

func TestCollectorContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCollector(&fakeSource{}, time.Hour)

	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector ignored context cancellation")
	}
}
