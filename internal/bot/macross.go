package bot

import "github.com/johnprom/rust-trading-simulator/internal/indicators"

// MACross trades moving-average crossings: a buy when the fast average
// closes above the slow one, a sell when it closes below. Each crossing is
// acted on exactly once; the edge is detected against the previous cycle's
// averages, never re-read within the same cycle.
type MACross struct {
	fastID    string
	slowID    string
	specs     []indicators.Spec
	stepQuote float64

	prevFast float64
	prevSlow float64
	havePrev bool
}

// NewMACross builds the crossover strategy with the given SMA periods.
func NewMACross(fastPeriod, slowPeriod int, stepQuote float64) *MACross {
	fastID := indicators.SpecID(indicators.KindSMA, fastPeriod)
	slowID := indicators.SpecID(indicators.KindSMA, slowPeriod)
	return &MACross{
		fastID: fastID,
		slowID: slowID,
		specs: []indicators.Spec{
			{ID: fastID, Kind: indicators.KindSMA, Period: fastPeriod},
			{ID: slowID, Kind: indicators.KindSMA, Period: slowPeriod},
		},
		stepQuote: stepQuote,
	}
}

func (c *MACross) Name() string { return "MA Crossover" }

func (c *MACross) IndicatorSpecs() []indicators.Spec { return c.specs }

func (c *MACross) Decide(ctx *Context) Decision {
	fast, okFast := ctx.Indicators.Value(c.fastID)
	slow, okSlow := ctx.Indicators.Value(c.slowID)
	if !okFast || !okSlow {
		// Slow average still warming up.
		return Hold()
	}

	if !c.havePrev {
		c.prevFast, c.prevSlow, c.havePrev = fast, slow, true
		return Hold()
	}

	crossedUp := c.prevFast <= c.prevSlow && fast > slow
	crossedDown := c.prevFast >= c.prevSlow && fast < slow
	c.prevFast, c.prevSlow = fast, slow

	switch {
	case crossedUp:
		return Buy(c.stepQuote)
	case crossedDown:
		return Sell(c.stepQuote)
	default:
		return Hold()
	}
}
