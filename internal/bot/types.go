package bot

import (
	"github.com/johnprom/rust-trading-simulator/internal/indicators"
	"github.com/johnprom/rust-trading-simulator/internal/market"
)

// Action is what a strategy wants done this cycle.
type Action string

const (
	ActionHold Action = "hold"
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Decision is a strategy's output for one cycle. Amounts are always
// denominated in the quote asset ("buy $100 worth of BTC"); the scheduler
// converts to base quantity at the current price.
type Decision struct {
	Action      Action
	QuoteAmount float64
}

// Hold takes no action this cycle.
func Hold() Decision { return Decision{Action: ActionHold} }

// Buy spends quoteAmount of the quote asset on the base asset.
func Buy(quoteAmount float64) Decision {
	return Decision{Action: ActionBuy, QuoteAmount: quoteAmount}
}

// Sell liquidates quoteAmount worth of the base asset.
func Sell(quoteAmount float64) Decision {
	return Decision{Action: ActionSell, QuoteAmount: quoteAmount}
}

// Context is the immutable snapshot handed to a strategy each cycle. It is
// rebuilt every cycle; strategies must not retain it across calls.
type Context struct {
	// Recent raw samples for the base asset, oldest first.
	PriceWindow []market.PricePoint

	BaseBalance  float64
	QuoteBalance float64

	// Most recent price of base in quote terms.
	CurrentPrice float64

	BaseAsset  string
	QuoteAsset string

	// Cycles since the bot started, 0-indexed.
	Cycle uint64

	// Latest indicator values; warm-up indicators are absent.
	Indicators indicators.Snapshot
}

// Strategy is a single decision unit. Implementations own private mutable
// state that lives exactly as long as the bot instance; they see only their
// own prior decisions, never the account's transaction history. The
// scheduler is the only caller.
type Strategy interface {
	// Name is the human-readable display name.
	Name() string

	// IndicatorSpecs declares which indicators the strategy reads from the
	// context snapshot. May be nil.
	IndicatorSpecs() []indicators.Spec

	// Decide examines the context, may update internal state, and returns
	// the action for this cycle.
	Decide(ctx *Context) Decision
}
