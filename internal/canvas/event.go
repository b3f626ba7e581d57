package canvas

import (
	"github.com/onnwee/nodelayout/internal/force"
	"github.com/onnwee/nodelayout/internal/geometry"
	"github.com/onnwee/nodelayout/internal/hierarchy"
)

// EventType names the engine notification an Event carries.
type EventType string

const (
	EventPositions        EventType = "positions"
	EventReparent         EventType = "reparent"
	EventReparentRejected EventType = "reparent_rejected"
	EventSimulation       EventType = "simulation"
)

// Event is one engine notification, tagged with the canvas version it was
// produced at.
type Event struct {
	Type       EventType                           `json:"type"`
	Version    uint64                              `json:"version"`
	Positions  map[hierarchy.NodeID]geometry.Point `json:"positions,omitempty"`
	Reparent   *Reparent                           `json:"reparent,omitempty"`
	Simulation *Simulation                         `json:"simulation,omitempty"`
}

// Reparent describes an accepted or refused hierarchy change.
type Reparent struct {
	Child     hierarchy.NodeID `json:"child"`
	OldParent hierarchy.NodeID `json:"oldParent,omitempty"`
	NewParent hierarchy.NodeID `json:"newParent,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// Simulation is the force layout state after a change.
type Simulation struct {
	Mode    force.Mode `json:"mode"`
	Running bool       `json:"running"`
}
