package bot

import "github.com/johnprom/rust-trading-simulator/internal/indicators"

// Oscillator is a mean-reversion strategy on RSI: buy when the oscillator
// reads oversold, sell when it reads overbought, with a cooldown between
// signals so a lingering extreme does not fire every cycle.
type Oscillator struct {
	rsiID      string
	specs      []indicators.Spec
	oversold   float64
	overbought float64
	cooldown   int
	stepQuote  float64

	cooldownLeft int
}

// NewOscillator builds the RSI strategy. Thresholds are in RSI points
// (0..100); a signal fires when the value crosses below oversold or above
// overbought.
func NewOscillator(period int, oversold, overbought float64, cooldown int, stepQuote float64) *Oscillator {
	rsiID := indicators.SpecID(indicators.KindRSI, period)
	return &Oscillator{
		rsiID:      rsiID,
		specs:      []indicators.Spec{{ID: rsiID, Kind: indicators.KindRSI, Period: period}},
		oversold:   oversold,
		overbought: overbought,
		cooldown:   cooldown,
		stepQuote:  stepQuote,
	}
}

func (o *Oscillator) Name() string { return "RSI Oscillator" }

func (o *Oscillator) IndicatorSpecs() []indicators.Spec { return o.specs }

func (o *Oscillator) Decide(ctx *Context) Decision {
	if o.cooldownLeft > 0 {
		o.cooldownLeft--
		return Hold()
	}

	rsi, ok := ctx.Indicators.Value(o.rsiID)
	if !ok {
		// Warm-up reads as absent, never as zero, so an empty snapshot
		// can't masquerade as an oversold signal.
		return Hold()
	}

	switch {
	case rsi < o.oversold:
		o.cooldownLeft = o.cooldown
		return Buy(o.stepQuote)
	case rsi > o.overbought:
		o.cooldownLeft = o.cooldown
		return Sell(o.stepQuote)
	default:
		return Hold()
	}
}
