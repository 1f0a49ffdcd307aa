package bot

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/johnprom/rust-trading-simulator/internal/events"
	"github.com/johnprom/rust-trading-simulator/internal/indicators"
	"github.com/johnprom/rust-trading-simulator/internal/ledger"
	"github.com/johnprom/rust-trading-simulator/internal/market"
)

// State is a bot's lifecycle phase. Stopped, StoplossTriggered,
// InsufficientFunds and Errored are absorbing: once entered the instance
// never runs another cycle.
type State string

const (
	StateStarting          State = "starting"
	StateRunning           State = "running"
	StateStopped           State = "stopped"
	StateStoplossTriggered State = "stoploss_triggered"
	StateInsufficientFunds State = "insufficient_funds"
	StateErrored           State = "errored"
	StateNotRunning        State = "not_running"
)

// Terminal reports whether a state is absorbing.
func (s State) Terminal() bool {
	switch s {
	case StateStopped, StateStoplossTriggered, StateInsufficientFunds, StateErrored:
		return true
	}
	return false
}

// DefaultCycleInterval matches the simulator's one-decision-per-minute pace.
const DefaultCycleInterval = 60 * time.Second

// defaultContextPoints is how much recent history a strategy sees each
// cycle: one hour of 5-second samples.
const defaultContextPoints = 720

// Instance is one live (or finished) bot. All mutable fields are guarded
// by mu; the run loop is the only writer of state transitions after start.
type Instance struct {
	UserID       string
	StrategyID   string
	StrategyName string
	BaseAsset    string
	QuoteAsset   string
	Stoploss     float64

	// Portfolio value in USD captured at start; the stoploss reference.
	InitialValueUSD float64
	StartedAt       time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	state  State
	cycles uint64
	reason string
}

// Status is a read-only view of an instance.
type Status struct {
	State           State     `json:"state"`
	StrategyID      string    `json:"strategy_id,omitempty"`
	StrategyName    string    `json:"strategy_name,omitempty"`
	BaseAsset       string    `json:"base_asset,omitempty"`
	QuoteAsset      string    `json:"quote_asset,omitempty"`
	Stoploss        float64   `json:"stoploss,omitempty"`
	InitialValueUSD float64   `json:"initial_value_usd,omitempty"`
	StartedAt       time.Time `json:"started_at,omitzero"`
	Cycles          uint64    `json:"cycles"`
	Reason          string    `json:"reason,omitempty"`
}

func (in *Instance) status() Status {
	in.mu.Lock()
	defer in.mu.Unlock()
	return Status{
		State:           in.state,
		StrategyID:      in.StrategyID,
		StrategyName:    in.StrategyName,
		BaseAsset:       in.BaseAsset,
		QuoteAsset:      in.QuoteAsset,
		Stoploss:        in.Stoploss,
		InitialValueUSD: in.InitialValueUSD,
		StartedAt:       in.StartedAt,
		Cycles:          in.cycles,
		Reason:          in.reason,
	}
}

func (in *Instance) transition(s State, reason string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state.Terminal() {
		return
	}
	in.state = s
	in.reason = reason
}

// DecisionEvent is published on the bus after every cycle, held or not.
type DecisionEvent struct {
	UserID   string  `json:"user_id"`
	Strategy string  `json:"strategy"`
	Cycle    uint64  `json:"cycle"`
	Action   Action  `json:"action"`
	Amount   float64 `json:"amount,omitempty"`
	Price    float64 `json:"price"`
}

// StateEvent is published when an instance starts or reaches a terminal
// state.
type StateEvent struct {
	UserID string `json:"user_id"`
	State  State  `json:"state"`
	Reason string `json:"reason,omitempty"`
}

// Runner owns the per-cycle mechanics shared by every bot goroutine.
type Runner struct {
	Ledger        *ledger.Ledger
	Window        *market.Window
	Bus           *events.Bus
	Interval      time.Duration
	ContextPoints int
}

func (r *Runner) interval() time.Duration {
	if r.Interval > 0 {
		return r.Interval
	}
	return DefaultCycleInterval
}

func (r *Runner) contextPoints() int {
	if r.ContextPoints > 0 {
		return r.ContextPoints
	}
	return defaultContextPoints
}

// run is the body of one bot goroutine. It owns the instance's lifecycle
// from Starting to whichever terminal state ends it; onExit fires exactly
// once after the final transition.
func (r *Runner) run(ctx context.Context, in *Instance, strat Strategy, onExit func(*Instance)) {
	defer close(in.done)
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("bot user=%s strategy=%s panicked: %v", in.UserID, in.StrategyID, rec)
			in.transition(StateErrored, "strategy panicked")
		}
		r.publishState(in)
		onExit(in)
	}()

	in.transition(StateRunning, "")
	r.publishState(in)
	log.Printf("bot started user=%s strategy=%s stoploss=%.2f initial=%.2f",
		in.UserID, in.StrategyID, in.Stoploss, in.InitialValueUSD)

	ticker := time.NewTicker(r.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			in.transition(StateStopped, "stopped by user")
			return
		case <-ticker.C:
			if !r.cycle(in, strat) {
				return
			}
		}
	}
}

// cycle executes one decision round. Returns false when the instance has
// reached a terminal state.
func (r *Runner) cycle(in *Instance, strat Strategy) bool {
	in.mu.Lock()
	cycleNum := in.cycles
	in.cycles++
	in.mu.Unlock()

	points := r.Window.Snapshot(in.BaseAsset, r.contextPoints())
	if len(points) == 0 {
		in.transition(StateErrored, "no price data for "+in.BaseAsset)
		log.Printf("bot user=%s: no price data for %s, stopping", in.UserID, in.BaseAsset)
		return false
	}
	currentPrice := points[len(points)-1].Price

	baseBal, err := r.Ledger.Balance(in.UserID, in.BaseAsset)
	if err != nil {
		in.transition(StateErrored, "account unavailable")
		return false
	}
	quoteBal, _ := r.Ledger.Balance(in.UserID, in.QuoteAsset)

	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Price
	}

	bctx := &Context{
		PriceWindow:  points,
		BaseBalance:  baseBal,
		QuoteBalance: quoteBal,
		CurrentPrice: currentPrice,
		BaseAsset:    in.BaseAsset,
		QuoteAsset:   in.QuoteAsset,
		Cycle:        cycleNum,
		Indicators:   indicators.Compute(prices, strat.IndicatorSpecs()),
	}

	decision := strat.Decide(bctx)
	r.publishDecision(in, cycleNum, decision, currentPrice)

	// The stoploss guard runs before the trade is applied: a breaching
	// portfolio never gets one last order in.
	value, err := r.Ledger.PortfolioValueUSD(in.UserID, r.priceUSD)
	if err == nil && in.InitialValueUSD-value >= in.Stoploss {
		in.transition(StateStoplossTriggered, "stoploss threshold reached")
		log.Printf("bot user=%s stoploss triggered: value=%.2f initial=%.2f threshold=%.2f",
			in.UserID, value, in.InitialValueUSD, in.Stoploss)
		return false
	}

	if decision.Action == ActionHold {
		return true
	}
	return r.apply(in, decision, currentPrice)
}

// apply converts a quote-denominated decision into a base quantity and
// routes it through the ledger. Any rejection ends the instance.
func (r *Runner) apply(in *Instance, d Decision, price float64) bool {
	if d.QuoteAmount <= 0 || price <= 0 {
		in.transition(StateErrored, "strategy produced a non-positive trade amount")
		log.Printf("bot user=%s strategy=%s: invalid decision amount %.4f", in.UserID, in.StrategyID, d.QuoteAmount)
		return false
	}
	quantity := d.QuoteAmount / price

	side := ledger.SideBuy
	if d.Action == ActionSell {
		side = ledger.SideSell
	}

	baseUSD := r.usdSnapshot(in.BaseAsset)
	quoteUSD := r.usdSnapshot(in.QuoteAsset)

	tx, err := r.Ledger.ExecuteTrade(in.UserID, in.BaseAsset, in.QuoteAsset, side, quantity, price, baseUSD, quoteUSD, in.StrategyName)
	if err != nil {
		in.transition(StateInsufficientFunds, err.Error())
		log.Printf("bot user=%s trade rejected: %v", in.UserID, err)
		return false
	}

	if r.Bus != nil {
		r.Bus.Publish(events.EventTradeExecuted, tx)
	}
	log.Printf("bot user=%s executed %s %.8f %s at %.2f %s",
		in.UserID, side, quantity, in.BaseAsset, price, in.QuoteAsset)
	return true
}

// priceUSD values an asset for the stoploss guard; USD is the unit.
func (r *Runner) priceUSD(asset string) (float64, bool) {
	if asset == ledger.USD {
		return 1, true
	}
	return r.Window.LatestPrice(asset)
}

func (r *Runner) usdSnapshot(asset string) *float64 {
	if p, ok := r.priceUSD(asset); ok {
		return &p
	}
	return nil
}

func (r *Runner) publishDecision(in *Instance, cycle uint64, d Decision, price float64) {
	if r.Bus == nil {
		return
	}
	r.Bus.Publish(events.EventBotDecision, DecisionEvent{
		UserID:   in.UserID,
		Strategy: in.StrategyName,
		Cycle:    cycle,
		Action:   d.Action,
		Amount:   d.QuoteAmount,
		Price:    price,
	})
}

func (r *Runner) publishState(in *Instance) {
	if r.Bus == nil {
		return
	}
	st := in.status()
	ev := events.EventBotStarted
	if st.State.Terminal() {
		ev = events.EventBotStopped
	}
	r.Bus.Publish(ev, StateEvent{UserID: in.UserID, State: st.State, Reason: st.Reason})
}
