package metrics

import (
	"context"
	"log/slog"
	"time"
)

// SessionStats is a point-in-time summary of the open canvases.
type SessionStats struct {
	Sessions           int
	Nodes              int
	Bodies             int
	RunningSimulations int
}

// StatsSource reports session statistics. The canvas manager implements it.
type StatsSource interface {
	Stats(ctx context.Context) (SessionStats, error)
}

// Collector periodically copies session statistics into gauges.
type Collector struct {
	source   StatsSource
	interval time.Duration
	stop     chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source StatsSource, interval time.Duration) *Collector {
	return &Collector{
		source:   source,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start runs the collection loop until Stop is called or ctx ends.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect(ctx)

	for {
		select {
		case <-ticker.C:
			c.Collect(ctx)
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the metrics collector
func (c *Collector) Stop() {
	close(c.stop)
}

// Collect takes one sample.
func (c *Collector) Collect(ctx context.Context) {
	stats, err := c.source.Stats(ctx)
	if err != nil {
		slog.Warn("collecting session stats", "error", err)
		MetricsCollectionErrors.WithLabelValues("sessions").Inc()
		// Signal stale data
		CanvasNodesTotal.Set(-1)
		CanvasBodiesTotal.Set(-1)
		return
	}
	CanvasSessionsActive.Set(float64(stats.Sessions))
	CanvasNodesTotal.Set(float64(stats.Nodes))
	CanvasBodiesTotal.Set(float64(stats.Bodies))
	SimulationsRunning.Set(float64(stats.RunningSimulations))
}
