package market

import (
	"time"

	"github.com/johnprom/rust-trading-simulator/pkg/coinbase"
)

// Interpolate expands candle closes into evenly spaced samples so a
// backfilled window has the same granularity as live polling. Between two
// candles the price moves linearly; candles must be oldest first.
func Interpolate(asset string, candles []coinbase.Candle, step time.Duration) []PricePoint {
	if len(candles) == 0 || step <= 0 {
		return nil
	}

	var out []PricePoint
	for i := 0; i < len(candles)-1; i++ {
		cur, next := candles[i], candles[i+1]
		span := next.Time.Sub(cur.Time)
		if span <= 0 {
			continue
		}

		for ts := cur.Time; ts.Before(next.Time); ts = ts.Add(step) {
			frac := float64(ts.Sub(cur.Time)) / float64(span)
			price := cur.Close + (next.Close-cur.Close)*frac
			out = append(out, PricePoint{Timestamp: ts, Asset: asset, Price: price})
		}
	}

	last := candles[len(candles)-1]
	out = append(out, PricePoint{Timestamp: last.Time, Asset: asset, Price: last.Close})
	return out
}
