package indicators

import "math"

// SMASeries computes a simple moving average aligned with the input series.
// The first period-1 values are NaN (warm-up).
func SMASeries(prices []float64, period int) []float64 {
	out := nanSlice(len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}

	sum := 0.0
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMASeries computes an exponential moving average aligned with the input
// series. The first value is seeded with the SMA of the first period prices;
// everything before it is NaN. Smoothing factor k = 2/(period+1).
func EMASeries(prices []float64, period int) []float64 {
	out := nanSlice(len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}

	seed := 0.0
	for _, p := range prices[:period] {
		seed += p
	}
	out[period-1] = seed / float64(period)

	k := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(prices); i++ {
		out[i] = prices[i]*k + out[i-1]*(1.0-k)
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
