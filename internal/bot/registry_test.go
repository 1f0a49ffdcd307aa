package bot

import (
	"errors"
	"testing"
	"time"

	"github.com/johnprom/rust-trading-simulator/internal/events"
	"github.com/johnprom/rust-trading-simulator/internal/indicators"
	"github.com/johnprom/rust-trading-simulator/internal/ledger"
	"github.com/johnprom/rust-trading-simulator/internal/market"
)

type stubStrategy struct {
	name string
	fn   func(*Context) Decision
}

func (s *stubStrategy) Name() string                      { return s.name }
func (s *stubStrategy) IndicatorSpecs() []indicators.Spec { return nil }
func (s *stubStrategy) Decide(ctx *Context) Decision      { return s.fn(ctx) }

func holdStrategy() Strategy {
	return &stubStrategy{name: "hold", fn: func(*Context) Decision { return Hold() }}
}

type testEnv struct {
	ledger   *ledger.Ledger
	window   *market.Window
	registry *Registry
}

func newTestEnv(t *testing.T, cash float64) *testEnv {
	t.Helper()

	l := ledger.New(nil)
	if err := l.CreateUser("u1", "user-u1", "", cash, false); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	w := market.NewWindow(64)
	now := time.Now()
	for i := 0; i < 8; i++ {
		w.Append(market.PricePoint{Timestamp: now, Asset: "BTC", Price: 100})
	}

	runner := &Runner{
		Ledger:        l,
		Window:        w,
		Bus:           events.NewBus(),
		Interval:      5 * time.Millisecond,
		ContextPoints: 16,
	}
	return &testEnv{
		ledger:   l,
		window:   w,
		registry: NewRegistry(runner, NewCatalog(DefaultPresets())),
	}
}

func waitForState(t *testing.T, g *Registry, userID string, want State) Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st := g.Status(userID); st.State == want {
			return st
		}
		time.Sleep(2 * time.Millisecond)
	}
	st := g.Status(userID)
	t.Fatalf("user %s never reached %s, last state %s (%s)", userID, want, st.State, st.Reason)
	return Status{}
}

func TestOneBotPerUser(t *testing.T) {
	env := newTestEnv(t, 10000)
	defer env.registry.StopAll()

	if _, err := env.registry.StartWith("u1", "s1", holdStrategy(), "BTC", "USD", 500); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if _, err := env.registry.StartWith("u1", "s2", holdStrategy(), "BTC", "USD", 500); !errors.Is(err, ErrBotAlreadyRunning) {
		t.Fatalf("second start err=%v, expected ErrBotAlreadyRunning", err)
	}

	// The losing start must not have disturbed the winner.
	st := env.registry.Status("u1")
	if st.StrategyID != "s1" || st.State.Terminal() {
		t.Fatalf("first bot disturbed: %+v", st)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	env := newTestEnv(t, 10000)

	if _, err := env.registry.StartWith("u1", "s1", holdStrategy(), "BTC", "USD", 500); err != nil {
		t.Fatalf("start: %v", err)
	}

	first := env.registry.Stop("u1")
	if first.State != StateStopped {
		t.Fatalf("first stop state=%s", first.State)
	}
	second := env.registry.Stop("u1")
	if second.State != StateStopped {
		t.Fatalf("second stop state=%s", second.State)
	}

	// A terminal bot frees the slot: the user may start again.
	if _, err := env.registry.StartWith("u1", "s2", holdStrategy(), "BTC", "USD", 500); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	env.registry.StopAll()
}

func TestStatusForUnknownUser(t *testing.T) {
	env := newTestEnv(t, 10000)
	if st := env.registry.Status("nobody"); st.State != StateNotRunning {
		t.Fatalf("state=%s, expected not_running", st.State)
	}
	if st := env.registry.Stop("nobody"); st.State != StateNotRunning {
		t.Fatalf("stop state=%s, expected not_running", st.State)
	}
}

func TestInvalidStoplossRejected(t *testing.T) {
	env := newTestEnv(t, 10000)
	if _, err := env.registry.StartWith("u1", "s1", holdStrategy(), "BTC", "USD", 0); !errors.Is(err, ErrInvalidStoploss) {
		t.Fatalf("err=%v, expected ErrInvalidStoploss", err)
	}
}

// A breaching portfolio must terminate before the cycle's trade is applied:
// the history may not grow on the triggering cycle.
func TestStoplossEvaluatedBeforeTrade(t *testing.T) {
	env := newTestEnv(t, 5000)

	// Hold 50 BTC at 100: portfolio is worth 10000 at start.
	if _, err := env.ledger.ExecuteTrade("u1", "BTC", "USD", ledger.SideBuy, 50, 0.01, nil, nil, ""); err != nil {
		t.Fatalf("seed position: %v", err)
	}
	env.ledger.Deposit("u1", 500) // restore cash spent acquiring the seed position
	startHistory := historyLen(t, env.ledger, "u1")

	// Buys fire only once the price has fallen, i.e. on the same cycle the
	// stoploss breaches.
	strat := &stubStrategy{name: "dip buyer", fn: func(ctx *Context) Decision {
		if ctx.CurrentPrice < 100 {
			return Buy(100)
		}
		return Hold()
	}}

	if _, err := env.registry.StartWith("u1", "s1", strat, "BTC", "USD", 500); err != nil {
		t.Fatalf("start: %v", err)
	}
	st := env.registry.Status("u1")
	if st.InitialValueUSD < 9999 || st.InitialValueUSD > 10600 {
		t.Fatalf("initial value=%v", st.InitialValueUSD)
	}

	// Drop the price enough that the loss exceeds the threshold.
	env.window.Append(market.PricePoint{Timestamp: time.Now(), Asset: "BTC", Price: 85})

	final := waitForState(t, env.registry, "u1", StateStoplossTriggered)
	if final.State != StateStoplossTriggered {
		t.Fatalf("state=%s", final.State)
	}
	if got := historyLen(t, env.ledger, "u1"); got != startHistory {
		t.Fatalf("history grew from %d to %d: trade applied after breach", startHistory, got)
	}
}

func TestInsufficientFundsIsTerminal(t *testing.T) {
	env := newTestEnv(t, 50)

	strat := &stubStrategy{name: "big spender", fn: func(*Context) Decision { return Buy(1000) }}
	if _, err := env.registry.StartWith("u1", "s1", strat, "BTC", "USD", 500); err != nil {
		t.Fatalf("start: %v", err)
	}

	st := waitForState(t, env.registry, "u1", StateInsufficientFunds)
	if st.Reason == "" {
		t.Fatal("expected a rejection reason")
	}
	if got := historyLen(t, env.ledger, "u1"); got != 0 {
		t.Fatalf("rejected trade left %d records", got)
	}
}

func TestPanicInOneBotDoesNotAffectOthers(t *testing.T) {
	env := newTestEnv(t, 10000)
	defer env.registry.StopAll()

	if err := env.ledger.CreateUser("u2", "user-u2", "", 10000, false); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	boom := &stubStrategy{name: "boom", fn: func(*Context) Decision { panic("strategy bug") }}
	if _, err := env.registry.StartWith("u1", "s1", boom, "BTC", "USD", 500); err != nil {
		t.Fatalf("start u1: %v", err)
	}
	if _, err := env.registry.StartWith("u2", "s1", holdStrategy(), "BTC", "USD", 500); err != nil {
		t.Fatalf("start u2: %v", err)
	}

	waitForState(t, env.registry, "u1", StateErrored)

	// The healthy bot is untouched by its neighbour's crash.
	time.Sleep(20 * time.Millisecond)
	if st := env.registry.Status("u2"); st.State.Terminal() {
		t.Fatalf("u2 state=%s, expected still live", st.State)
	}
}

func TestMissingPriceDataErrorsTheBot(t *testing.T) {
	env := newTestEnv(t, 10000)

	if _, err := env.registry.StartWith("u1", "s1", holdStrategy(), "ETH", "USD", 500); err != nil {
		t.Fatalf("start: %v", err)
	}
	st := waitForState(t, env.registry, "u1", StateErrored)
	if st.Reason == "" {
		t.Fatal("expected a reason naming the missing asset")
	}
}

func TestBotTradesCarryAttribution(t *testing.T) {
	env := newTestEnv(t, 10000)

	fired := false
	strat := &stubStrategy{name: "one shot", fn: func(*Context) Decision {
		if fired {
			return Hold()
		}
		fired = true
		return Buy(100)
	}}

	if _, err := env.registry.StartWith("u1", "s1", strat, "BTC", "USD", 500); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for historyLen(t, env.ledger, "u1") == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	env.registry.Stop("u1")

	snap, _ := env.ledger.Snapshot("u1")
	if len(snap.History) != 1 {
		t.Fatalf("history=%d, expected exactly 1", len(snap.History))
	}
	tx := snap.History[0]
	if tx.ExecutedByBot != "one shot" {
		t.Fatalf("attribution=%q", tx.ExecutedByBot)
	}
	if tx.BaseUSDPrice == nil || *tx.BaseUSDPrice != 100 {
		t.Fatalf("base USD snapshot=%v", tx.BaseUSDPrice)
	}
	if tx.QuoteUSDPrice == nil || *tx.QuoteUSDPrice != 1 {
		t.Fatalf("quote USD snapshot=%v", tx.QuoteUSDPrice)
	}
}

func historyLen(t *testing.T, l *ledger.Ledger, userID string) int {
	t.Helper()
	snap, err := l.Snapshot(userID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return len(snap.History)
}
