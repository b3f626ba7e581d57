package layout

import (
	"time"

	"github.com/onnwee/nodelayout/internal/collision"
	"github.com/onnwee/nodelayout/internal/force"
	"github.com/onnwee/nodelayout/internal/placement"
)

// Config holds everything one canvas needs.
type Config struct {
	Collision collision.Config
	Force     force.Params
	Mode      force.Mode

	Orientation   placement.Orientation
	AngularDelta  float64
	ChildDistance float64

	// SettleSteps and SettleDT bound one settle pass. SettleStepsPerFrame
	// spreads the pass over frames.
	SettleSteps         int
	SettleDT            float64
	SettleStepsPerFrame int

	// Size reports for a node are applied once SizeDebounce has passed since
	// the latest one. Changes below SizeEpsilon on both axes are dropped.
	SizeDebounce time.Duration
	SizeEpsilon  float64

	// Size of a created node until its real size is reported.
	DefaultWidth, DefaultHeight float64
}

// DefaultConfig returns the defaults used by the server and the CLI.
func DefaultConfig() Config {
	return Config{
		Collision:           collision.DefaultConfig(),
		Force:               force.DefaultParams(),
		Mode:                force.ModeOff,
		Orientation:         placement.Clockwise,
		AngularDelta:        placement.DefaultAngularDelta,
		ChildDistance:       placement.DefaultDistance,
		SettleSteps:         collision.DefaultSettleSteps,
		SettleDT:            collision.DefaultSettleDT,
		SettleStepsPerFrame: 6,
		SizeDebounce:        150 * time.Millisecond,
		SizeEpsilon:         0.5,
		DefaultWidth:        160,
		DefaultHeight:       48,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.SettleSteps <= 0 {
		c.SettleSteps = def.SettleSteps
	}
	if c.SettleDT <= 0 {
		c.SettleDT = def.SettleDT
	}
	if c.SettleStepsPerFrame <= 0 {
		c.SettleStepsPerFrame = c.SettleSteps
	}
	if c.SizeDebounce < 0 {
		c.SizeDebounce = 0
	}
	if c.SizeEpsilon < 0 {
		c.SizeEpsilon = 0
	}
	if c.DefaultWidth <= 0 {
		c.DefaultWidth = def.DefaultWidth
	}
	if c.DefaultHeight <= 0 {
		c.DefaultHeight = def.DefaultHeight
	}
	return c
}

func (c Config) planner() placement.Planner {
	p := placement.NewPlanner(c.Orientation)
	if c.AngularDelta > 0 {
		p.AngularDelta = c.AngularDelta
	}
	if c.ChildDistance > 0 {
		p.Distance = c.ChildDistance
	}
	return p
}
