package layout

import "errors"

var (
	// ErrSimulationRunning refuses interactive edits until the force
	// simulation has cooled.
	ErrSimulationRunning = errors.New("force simulation is running")
	// ErrReentrant is returned when an observer callback calls back into the
	// engine that is notifying it.
	ErrReentrant = errors.New("layout engine called from its own observer")
)
