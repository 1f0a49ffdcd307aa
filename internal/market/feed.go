package market

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/johnprom/rust-trading-simulator/internal/events"
	"github.com/johnprom/rust-trading-simulator/pkg/coinbase"
)

// backfillGranularity is the candle bucket size requested from Coinbase
// when seeding the window; candles are interpolated down to PollInterval.
const backfillGranularity = 300

// Feed streams Coinbase prices into the window and publishes each sample
// on the event bus. The websocket supplies fresh ticks; the poll loop
// samples them onto a fixed cadence, falling back to REST when the stream
// has nothing recent.
type Feed struct {
	Client       *coinbase.Client
	Stream       *coinbase.StreamClient
	Window       *Window
	Bus          *events.Bus
	Assets       []string
	QuoteAsset   string
	PollInterval time.Duration

	mu     sync.Mutex
	latest map[string]coinbase.Tick
}

func (f *Feed) interval() time.Duration {
	if f.PollInterval > 0 {
		return f.PollInterval
	}
	return 5 * time.Second
}

func (f *Feed) productID(asset string) string {
	return asset + "-" + f.QuoteAsset
}

// Backfill seeds the window with the last 24h of candles, interpolated to
// the poll cadence. A failed asset logs and is skipped; live polling will
// still populate it, just without history.
func (f *Feed) Backfill(ctx context.Context) {
	end := time.Now().UTC()
	start := end.Add(-24 * time.Hour)

	for _, asset := range f.Assets {
		candles, err := f.Client.Candles(ctx, f.productID(asset), start, end, backfillGranularity)
		if err != nil {
			log.Printf("feed backfill %s: %v", asset, err)
			continue
		}
		points := Interpolate(asset, candles, f.interval())
		for _, p := range points {
			f.Window.Append(p)
		}
		log.Printf("feed backfill %s: %d candles -> %d points", asset, len(candles), len(points))
	}
}

// Start launches the websocket stream and the sampling loop. Returns after
// spawning; both run until the context is cancelled.
func (f *Feed) Start(ctx context.Context) {
	if f.Window == nil || f.Client == nil {
		log.Println("feed not fully configured; skipping start")
		return
	}
	f.mu.Lock()
	f.latest = make(map[string]coinbase.Tick, len(f.Assets))
	f.mu.Unlock()

	if f.Stream != nil {
		products := make([]string, len(f.Assets))
		for i, a := range f.Assets {
			products[i] = f.productID(a)
		}
		ch, stop, err := f.Stream.SubscribeTicker(ctx, products)
		if err != nil {
			log.Printf("feed: ws subscribe error: %v (continuing with REST only)", err)
		} else {
			go func() {
				defer stop()
				for tick := range ch {
					f.mu.Lock()
					f.latest[tick.ProductID] = tick
					f.mu.Unlock()
				}
			}()
		}
	}

	go f.sampleLoop(ctx)
}

// sampleLoop appends one point per asset per interval. A stalled upstream
// shows up as window staleness, never as feed failure.
func (f *Feed) sampleLoop(ctx context.Context) {
	ticker := time.NewTicker(f.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, asset := range f.Assets {
				price, ok := f.currentPrice(ctx, asset)
				if !ok {
					continue
				}
				p := PricePoint{Timestamp: time.Now().UTC(), Asset: asset, Price: price}
				f.Window.Append(p)
				if f.Bus != nil {
					f.Bus.Publish(events.EventPriceTick, p)
				}
			}
		}
	}
}

// currentPrice prefers a websocket tick newer than one interval, then REST.
func (f *Feed) currentPrice(ctx context.Context, asset string) (float64, bool) {
	f.mu.Lock()
	tick, ok := f.latest[f.productID(asset)]
	f.mu.Unlock()
	if ok && time.Since(tick.Time) < 2*f.interval() {
		return tick.Price, true
	}

	price, err := f.Client.SpotPrice(ctx, f.productID(asset))
	if err != nil {
		log.Printf("feed spot %s: %v", asset, err)
		return 0, false
	}
	return price, true
}
