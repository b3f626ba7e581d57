package layout

import (
	"github.com/onnwee/nodelayout/internal/force"
	"github.com/onnwee/nodelayout/internal/geometry"
	"github.com/onnwee/nodelayout/internal/hierarchy"
)

// Observer receives the engine's output. Callbacks run synchronously on the
// caller's goroutine and must not call back into the engine.
type Observer interface {
	// OnPositionsChanged carries the new top-left corner of every node that
	// moved.
	OnPositionsChanged(positions map[hierarchy.NodeID]geometry.Point)
	OnReparentResult(child, oldParent, newParent hierarchy.NodeID)
	OnReparentRejected(child, parent hierarchy.NodeID, reason error)
	OnSimulationStateChanged(mode force.Mode, running bool)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	PositionsChanged       func(map[hierarchy.NodeID]geometry.Point)
	ReparentResult         func(child, oldParent, newParent hierarchy.NodeID)
	ReparentRejected       func(child, parent hierarchy.NodeID, reason error)
	SimulationStateChanged func(mode force.Mode, running bool)
}

func (f ObserverFuncs) OnPositionsChanged(p map[hierarchy.NodeID]geometry.Point) {
	if f.PositionsChanged != nil {
		f.PositionsChanged(p)
	}
}

func (f ObserverFuncs) OnReparentResult(child, oldParent, newParent hierarchy.NodeID) {
	if f.ReparentResult != nil {
		f.ReparentResult(child, oldParent, newParent)
	}
}

func (f ObserverFuncs) OnReparentRejected(child, parent hierarchy.NodeID, reason error) {
	if f.ReparentRejected != nil {
		f.ReparentRejected(child, parent, reason)
	}
}

func (f ObserverFuncs) OnSimulationStateChanged(mode force.Mode, running bool) {
	if f.SimulationStateChanged != nil {
		f.SimulationStateChanged(mode, running)
	}
}

type nopObserver struct{}

func (nopObserver) OnPositionsChanged(map[hierarchy.NodeID]geometry.Point)   {}
func (nopObserver) OnReparentResult(_, _, _ hierarchy.NodeID)                {}
func (nopObserver) OnReparentRejected(_, _ hierarchy.NodeID, _ error)        {}
func (nopObserver) OnSimulationStateChanged(force.Mode, bool)                {}
