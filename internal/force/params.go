package force

import (
	"fmt"
	"math"
	"strings"
)

// Mode selects when the simulation runs.
type Mode int

const (
	// ModeOff never runs the simulation.
	ModeOff Mode = iota
	// ModeManual runs one cooling pass per explicit trigger.
	ModeManual
	// ModeAuto restarts the simulation on every topology change.
	ModeAuto
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeManual:
		return "manual"
	case ModeAuto:
		return "auto"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "off", "manual" and "auto".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "none":
		return ModeOff, nil
	case "manual":
		return ModeManual, nil
	case "auto":
		return ModeAuto, nil
	default:
		return ModeOff, fmt.Errorf("unknown layout mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Params are the simulation coefficients. They are fixed for the lifetime
// of one simulation; changing them means building a new one.
type Params struct {
	// ChargeStrength scales the inverse-square repulsion between particles.
	ChargeStrength float64 `toml:"charge_strength" json:"chargeStrength"`
	Theta          float64 `toml:"theta" json:"theta"`
	LinkDistance   float64 `toml:"link_distance" json:"linkDistance"`
	// LinkStrength of zero uses 1/min(degree(source), degree(target)).
	LinkStrength      float64 `toml:"link_strength" json:"linkStrength"`
	LinkIterations    int     `toml:"link_iterations" json:"linkIterations"`
	CollideStrength   float64 `toml:"collide_strength" json:"collideStrength"`
	PositionStrength  float64 `toml:"position_strength" json:"positionStrength"`
	IncludeReferences bool    `toml:"include_references" json:"includeReferences"`
	AlphaMin          float64 `toml:"alpha_min" json:"alphaMin"`
	AlphaDecay        float64 `toml:"alpha_decay" json:"alphaDecay"`
	AlphaTarget       float64 `toml:"alpha_target" json:"alphaTarget"`
	VelocityDecay     float64 `toml:"velocity_decay" json:"velocityDecay"`
	TicksPerFrame     int     `toml:"ticks_per_frame" json:"ticksPerFrame"`
	// MaxTicks caps a single run; zero means no cap.
	MaxTicks int `toml:"max_ticks" json:"maxTicks"`
}

// DefaultParams cools from alpha 1 to 0.001 in about 300 ticks.
func DefaultParams() Params {
	return Params{
		ChargeStrength:   8000,
		Theta:            0.9,
		LinkDistance:     180,
		LinkIterations:   1,
		CollideStrength:  0.7,
		PositionStrength: 0.05,
		AlphaMin:         0.001,
		AlphaDecay:       1 - math.Pow(0.001, 1.0/300),
		VelocityDecay:    0.4,
		TicksPerFrame:    1,
		MaxTicks:         2000,
	}
}

// Normalized replaces out-of-range values with defaults.
func (p Params) Normalized() Params {
	def := DefaultParams()
	if p.ChargeStrength < 0 {
		p.ChargeStrength = 0
	}
	if p.Theta <= 0 {
		p.Theta = def.Theta
	}
	if p.LinkDistance <= 0 {
		p.LinkDistance = def.LinkDistance
	}
	if p.LinkStrength < 0 {
		p.LinkStrength = 0
	}
	if p.LinkIterations <= 0 {
		p.LinkIterations = def.LinkIterations
	}
	if p.CollideStrength < 0 || p.CollideStrength > 1 {
		p.CollideStrength = def.CollideStrength
	}
	if p.PositionStrength < 0 || p.PositionStrength > 1 {
		p.PositionStrength = def.PositionStrength
	}
	if p.AlphaMin <= 0 || p.AlphaMin >= 1 {
		p.AlphaMin = def.AlphaMin
	}
	if p.AlphaDecay <= 0 || p.AlphaDecay >= 1 {
		p.AlphaDecay = def.AlphaDecay
	}
	if p.AlphaTarget < 0 || p.AlphaTarget >= p.AlphaMin {
		p.AlphaTarget = 0
	}
	if p.VelocityDecay <= 0 || p.VelocityDecay > 1 {
		p.VelocityDecay = def.VelocityDecay
	}
	if p.TicksPerFrame <= 0 {
		p.TicksPerFrame = def.TicksPerFrame
	}
	if p.MaxTicks < 0 {
		p.MaxTicks = 0
	}
	return p
}
