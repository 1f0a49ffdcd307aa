package bot

import "github.com/johnprom/rust-trading-simulator/internal/indicators"

// momentumDefaults mirror the simulator's naive momentum preset.
const (
	momentumTrendLength  = 3
	momentumCooldown     = 3
	momentumHistoryLimit = 10
)

// Momentum chases short streaks: it buys after trendLength consecutive
// rises and sells after trendLength consecutive falls, then sits out a
// cooldown so it does not ride the same streak twice. Trade size is a fixed
// fraction of the bot's stoploss threshold.
type Momentum struct {
	trendLength int
	cooldown    int
	stepQuote   float64

	prices       []float64
	cooldownLeft int
}

// NewMomentum builds the momentum strategy. stepQuote is the quote-asset
// amount committed per trade.
func NewMomentum(trendLength, cooldown int, stepQuote float64) *Momentum {
	if trendLength <= 0 {
		trendLength = momentumTrendLength
	}
	if cooldown < 0 {
		cooldown = momentumCooldown
	}
	return &Momentum{
		trendLength: trendLength,
		cooldown:    cooldown,
		stepQuote:   stepQuote,
	}
}

func (m *Momentum) Name() string { return "Naive Momentum" }

func (m *Momentum) IndicatorSpecs() []indicators.Spec { return nil }

func (m *Momentum) Decide(ctx *Context) Decision {
	m.observe(ctx.CurrentPrice)

	if m.cooldownLeft > 0 {
		m.cooldownLeft--
		return Hold()
	}
	// Need trendLength price *changes*, so trendLength+1 samples.
	if len(m.prices) < m.trendLength+1 {
		return Hold()
	}

	recent := m.prices[len(m.prices)-(m.trendLength+1):]
	rising, falling := true, true
	for i := 1; i < len(recent); i++ {
		if recent[i] <= recent[i-1] {
			rising = false
		}
		if recent[i] >= recent[i-1] {
			falling = false
		}
	}

	switch {
	case rising:
		m.cooldownLeft = m.cooldown
		return Buy(m.stepQuote)
	case falling:
		m.cooldownLeft = m.cooldown
		return Sell(m.stepQuote)
	default:
		return Hold()
	}
}

func (m *Momentum) observe(price float64) {
	m.prices = append(m.prices, price)
	if len(m.prices) > momentumHistoryLimit {
		m.prices = m.prices[len(m.prices)-momentumHistoryLimit:]
	}
}
