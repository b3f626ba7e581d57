package force

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
)

// Preset is a named parameter set stored as TOML:
//
//	name = "spacious"
//	mode = "manual"
//
//	[params]
//	charge_strength = 12000
//	link_distance = 240
//
// Keys missing from the file keep their DefaultParams value.
type Preset struct {
	Name   string `toml:"name"`
	Mode   Mode   `toml:"mode"`
	Params Params `toml:"params"`
}

// DefaultPreset is the preset written by `layoutctl preset`.
func DefaultPreset() Preset {
	return Preset{Name: "default", Mode: ModeManual, Params: DefaultParams()}
}

// LoadPreset reads a TOML preset file.
func LoadPreset(path string) (Preset, error) {
	p := DefaultPreset()
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return Preset{}, fmt.Errorf("decode preset %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Preset{}, fmt.Errorf("preset %s: unknown keys %v", path, undecoded)
	}
	p.Params = p.Params.Normalized()
	return p, nil
}

// DecodePreset reads a TOML preset from a string.
func DecodePreset(data string) (Preset, error) {
	p := DefaultPreset()
	if _, err := toml.Decode(data, &p); err != nil {
		return Preset{}, fmt.Errorf("decode preset: %w", err)
	}
	p.Params = p.Params.Normalized()
	return p, nil
}

// WritePreset encodes p as TOML.
func WritePreset(w io.Writer, p Preset) error {
	return toml.NewEncoder(w).Encode(p)
}
