package bot

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset is one configurable strategy entry from the strategies YAML file.
// Zero-valued parameters fall back to the built-in defaults for the type.
type Preset struct {
	ID         string `yaml:"id"`
	Type       string `yaml:"type"`
	Parameters Params `yaml:"parameters"`
}

// Params carries the tunables shared across strategy families. Each family
// reads only the fields it understands.
type Params struct {
	TrendLength  int     `yaml:"trend_length"`
	Cooldown     int     `yaml:"cooldown"`
	FastPeriod   int     `yaml:"fast_period"`
	SlowPeriod   int     `yaml:"slow_period"`
	Period       int     `yaml:"period"`
	Oversold     float64 `yaml:"oversold"`
	Overbought   float64 `yaml:"overbought"`
	StepFraction float64 `yaml:"step_fraction"`
}

type presetFile struct {
	Strategies []Preset `yaml:"strategies"`
}

// DefaultPresets returns the built-in strategy catalog used when no YAML
// file is configured.
func DefaultPresets() []Preset {
	return []Preset{
		{ID: "momentum", Type: TypeMomentum, Parameters: Params{
			TrendLength: 3, Cooldown: 3, StepFraction: 0.01,
		}},
		{ID: "ma_cross", Type: TypeMACross, Parameters: Params{
			FastPeriod: 10, SlowPeriod: 30, StepFraction: 0.01,
		}},
		{ID: "rsi", Type: TypeOscillator, Parameters: Params{
			Period: 14, Oversold: 30, Overbought: 70, Cooldown: 3, StepFraction: 0.01,
		}},
	}
}

// LoadPresets reads the strategy catalog from a YAML file. An empty path
// returns the built-in defaults.
func LoadPresets(path string) ([]Preset, error) {
	if path == "" {
		return DefaultPresets(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategies config: %w", err)
	}

	var f presetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse strategies config: %w", err)
	}
	if len(f.Strategies) == 0 {
		return nil, fmt.Errorf("strategies config %s lists no strategies", path)
	}

	seen := make(map[string]bool, len(f.Strategies))
	for _, p := range f.Strategies {
		if p.ID == "" {
			return nil, fmt.Errorf("strategies config %s: entry missing id", path)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("strategies config %s: duplicate id %q", path, p.ID)
		}
		seen[p.ID] = true
		if !knownType(p.Type) {
			return nil, fmt.Errorf("strategies config %s: %s has unknown type %q", path, p.ID, p.Type)
		}
	}
	return f.Strategies, nil
}
