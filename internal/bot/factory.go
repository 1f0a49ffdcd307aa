package bot

import (
	"errors"
	"fmt"
)

// Strategy families selectable from the preset catalog.
const (
	TypeMomentum   = "momentum"
	TypeMACross    = "ma_cross"
	TypeOscillator = "oscillator"
)

// ErrUnknownStrategy reports a start request naming a preset that is not in
// the catalog.
var ErrUnknownStrategy = errors.New("unknown strategy")

func knownType(t string) bool {
	switch t {
	case TypeMomentum, TypeMACross, TypeOscillator:
		return true
	}
	return false
}

// Catalog resolves preset IDs to fresh strategy instances. Every start
// request builds a new instance so bots never share mutable state.
type Catalog struct {
	presets map[string]Preset
	order   []string
}

// NewCatalog indexes the presets by ID.
func NewCatalog(presets []Preset) *Catalog {
	c := &Catalog{presets: make(map[string]Preset, len(presets))}
	for _, p := range presets {
		c.presets[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c
}

// IDs lists the available preset IDs in catalog order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}

// Build instantiates the named preset. The trade step is derived from the
// bot's stoploss threshold so position sizes scale with the user's declared
// risk tolerance.
func (c *Catalog) Build(presetID string, stoploss float64) (Strategy, error) {
	p, ok := c.presets[presetID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, presetID)
	}

	frac := p.Parameters.StepFraction
	if frac <= 0 {
		frac = 0.01
	}
	step := stoploss * frac

	switch p.Type {
	case TypeMomentum:
		return NewMomentum(p.Parameters.TrendLength, p.Parameters.Cooldown, step), nil
	case TypeMACross:
		fast, slow := p.Parameters.FastPeriod, p.Parameters.SlowPeriod
		if fast <= 0 {
			fast = 10
		}
		if slow <= fast {
			slow = fast * 3
		}
		return NewMACross(fast, slow, step), nil
	case TypeOscillator:
		period := p.Parameters.Period
		if period <= 0 {
			period = 14
		}
		low, high := p.Parameters.Oversold, p.Parameters.Overbought
		if low <= 0 {
			low = 30
		}
		if high <= low {
			high = 70
		}
		return NewOscillator(period, low, high, p.Parameters.Cooldown, step), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, p.Type)
	}
}
