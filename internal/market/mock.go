package market

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/johnprom/rust-trading-simulator/internal/events"
)

// MockFeed generates synthetic random-walk prices for local development.
type MockFeed struct {
	Window   *Window
	Bus      *events.Bus
	Assets   []string
	Interval time.Duration

	// StartPrices seeds each asset's walk; unlisted assets start at 100.
	StartPrices map[string]float64
}

func (m *MockFeed) Start(ctx context.Context) {
	if m.Window == nil {
		log.Println("mock feed: window not set")
		return
	}
	if len(m.Assets) == 0 {
		m.Assets = []string{"BTC"}
	}
	if m.Interval == 0 {
		m.Interval = time.Second
	}

	prices := make(map[string]float64, len(m.Assets))
	for _, asset := range m.Assets {
		if p, ok := m.StartPrices[asset]; ok && p > 0 {
			prices[asset] = p
		} else {
			prices[asset] = 100.0
		}
	}

	go func() {
		t := time.NewTicker(m.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				for _, asset := range m.Assets {
					// random walk, proportional step
					prices[asset] *= 1 + (rand.Float64()*2-1)*0.002
					p := PricePoint{
						Timestamp: time.Now().UTC(),
						Asset:     asset,
						Price:     prices[asset],
					}
					m.Window.Append(p)
					if m.Bus != nil {
						m.Bus.Publish(events.EventPriceTick, p)
					}
				}
			}
		}
	}()
}
