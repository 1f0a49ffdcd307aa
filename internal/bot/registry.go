package bot

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrBotAlreadyRunning reports a start request for a user who already
	// has a live instance.
	ErrBotAlreadyRunning = errors.New("bot already running for user")

	// ErrInvalidStoploss reports a non-positive stoploss threshold.
	ErrInvalidStoploss = errors.New("stoploss must be positive")
)

// Registry enforces the one-bot-per-user rule and owns every instance's
// lifecycle. The check-and-insert in TryStart is atomic under the registry
// lock, so two racing starts for the same user can never both succeed.
type Registry struct {
	runner  *Runner
	catalog *Catalog

	mu     sync.Mutex
	active map[string]*Instance
	last   map[string]*Instance
}

// NewRegistry builds an empty registry.
func NewRegistry(runner *Runner, catalog *Catalog) *Registry {
	return &Registry{
		runner:  runner,
		catalog: catalog,
		active:  make(map[string]*Instance),
		last:    make(map[string]*Instance),
	}
}

// TryStart launches a bot for the user with a preset from the catalog.
func (g *Registry) TryStart(userID, presetID, baseAsset, quoteAsset string, stoploss float64) (Status, error) {
	strat, err := g.catalog.Build(presetID, stoploss)
	if err != nil {
		return Status{}, err
	}
	return g.StartWith(userID, presetID, strat, baseAsset, quoteAsset, stoploss)
}

// StartWith launches a bot driven by an explicit strategy instance.
func (g *Registry) StartWith(userID, presetID string, strat Strategy, baseAsset, quoteAsset string, stoploss float64) (Status, error) {
	if stoploss <= 0 {
		return Status{}, ErrInvalidStoploss
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.active[userID]; exists {
		return Status{}, ErrBotAlreadyRunning
	}

	initial, err := g.runner.Ledger.PortfolioValueUSD(userID, g.runner.priceUSD)
	if err != nil {
		return Status{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	in := &Instance{
		UserID:          userID,
		StrategyID:      presetID,
		StrategyName:    strat.Name(),
		BaseAsset:       baseAsset,
		QuoteAsset:      quoteAsset,
		Stoploss:        stoploss,
		InitialValueUSD: initial,
		StartedAt:       time.Now().UTC(),
		cancel:          cancel,
		done:            make(chan struct{}),
		state:           StateStarting,
	}

	g.active[userID] = in
	g.last[userID] = in

	go g.runner.run(ctx, in, strat, g.retire)
	return in.status(), nil
}

// retire removes a finished instance from the active set. Its terminal
// status stays queryable via last.
func (g *Registry) retire(in *Instance) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[in.UserID] == in {
		delete(g.active, in.UserID)
	}
}

// Stop requests cooperative shutdown of the user's bot. Stopping an
// already-finished or never-started bot is a no-op; the call is idempotent.
func (g *Registry) Stop(userID string) Status {
	g.mu.Lock()
	in, running := g.active[userID]
	if !running {
		in = g.last[userID]
	}
	g.mu.Unlock()

	if in == nil {
		return Status{State: StateNotRunning}
	}
	if running {
		in.cancel()
		<-in.done
	}
	return in.status()
}

// Status reports the user's current or most recent instance. A user who
// never started a bot reads as not_running.
func (g *Registry) Status(userID string) Status {
	g.mu.Lock()
	in := g.last[userID]
	g.mu.Unlock()

	if in == nil {
		return Status{State: StateNotRunning}
	}
	return in.status()
}

// StopAll cancels every live instance and waits for each to finish. Used
// during process shutdown.
func (g *Registry) StopAll() {
	g.mu.Lock()
	live := make([]*Instance, 0, len(g.active))
	for _, in := range g.active {
		live = append(live, in)
	}
	g.mu.Unlock()

	for _, in := range live {
		in.cancel()
	}
	for _, in := range live {
		<-in.done
	}
}
