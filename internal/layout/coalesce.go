package layout

import (
	"cmp"
	"slices"
	"time"

	"github.com/onnwee/nodelayout/internal/hierarchy"
)

type sizeReport struct {
	id   hierarchy.NodeID
	w, h float64
	at   time.Time
}

// sizeCoalescer keeps the latest size report per node until it has been
// quiet for the debounce interval.
type sizeCoalescer struct {
	debounce time.Duration
	pending  map[hierarchy.NodeID]sizeReport
}

func newSizeCoalescer(debounce time.Duration) *sizeCoalescer {
	return &sizeCoalescer{debounce: debounce, pending: make(map[hierarchy.NodeID]sizeReport)}
}

// add records a report and tells whether it replaced an earlier one.
func (c *sizeCoalescer) add(id hierarchy.NodeID, w, h float64, now time.Time) bool {
	_, replaced := c.pending[id]
	c.pending[id] = sizeReport{id: id, w: w, h: h, at: now}
	return replaced
}

// due removes and returns the reports that have settled by now, in id order.
func (c *sizeCoalescer) due(now time.Time) []sizeReport {
	var out []sizeReport
	for id, r := range c.pending {
		if now.Sub(r.at) >= c.debounce {
			out = append(out, r)
			delete(c.pending, id)
		}
	}
	slices.SortFunc(out, func(a, b sizeReport) int { return cmp.Compare(a.id, b.id) })
	return out
}

func (c *sizeCoalescer) drop(id hierarchy.NodeID) { delete(c.pending, id) }

func (c *sizeCoalescer) reset() { clear(c.pending) }

func (c *sizeCoalescer) len() int { return len(c.pending) }
