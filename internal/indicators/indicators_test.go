package indicators

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.001
}

func TestSMASeries(t *testing.T) {
	prices := []float64{100, 102, 101, 103, 105, 104, 106}
	out := SMASeries(prices, 3)

	if !math.IsNaN(out[0]) || !math.IsNaN(out[1]) {
		t.Fatal("expected NaN during warm-up")
	}
	if !almostEqual(out[2], 101.0) {
		t.Fatalf("out[2]=%v, expected 101", out[2])
	}
	if !almostEqual(out[3], 102.0) {
		t.Fatalf("out[3]=%v, expected 102", out[3])
	}
	if !almostEqual(out[4], 103.0) {
		t.Fatalf("out[4]=%v, expected 103", out[4])
	}
}

func TestSMASeriesInsufficientData(t *testing.T) {
	out := SMASeries([]float64{100, 102}, 3)
	for i, v := range out {
		if !math.IsNaN(v) {
			t.Fatalf("out[%d]=%v, expected NaN", i, v)
		}
	}
}

func TestEMASeries(t *testing.T) {
	prices := []float64{100, 102, 101, 103, 105, 104, 106}
	out := EMASeries(prices, 3)

	if !math.IsNaN(out[1]) {
		t.Fatal("expected NaN during warm-up")
	}
	// Seed is the SMA of the first three prices.
	if !almostEqual(out[2], 101.0) {
		t.Fatalf("out[2]=%v, expected 101", out[2])
	}
	// k = 2/(3+1) = 0.5: 103*0.5 + 101*0.5 = 102.
	if !almostEqual(out[3], 102.0) {
		t.Fatalf("out[3]=%v, expected 102", out[3])
	}
	if !almostEqual(out[4], 103.5) {
		t.Fatalf("out[4]=%v, expected 103.5", out[4])
	}
}

func TestRSISeriesWarmupAndRange(t *testing.T) {
	prices := []float64{
		100, 102, 104, 103, 105, 107, 106, 108, 110, 109,
		111, 113, 112, 114, 116, 115, 117, 119, 118, 120,
	}
	out := RSISeries(prices, 14)

	for i := 0; i < 14; i++ {
		if !math.IsNaN(out[i]) {
			t.Fatalf("out[%d]=%v, expected NaN warm-up", i, out[i])
		}
	}
	if math.IsNaN(out[14]) {
		t.Fatal("out[14] should be a value")
	}
	if out[14] < 0 || out[14] > 100 {
		t.Fatalf("RSI out of range: %v", out[14])
	}
	// Mostly gains: momentum should read high.
	if out[14] <= 50 {
		t.Fatalf("RSI=%v, expected > 50 for an uptrend", out[14])
	}
}

func TestRSISeriesAllLosses(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 120 - float64(i)
	}
	out := RSISeries(prices, 14)
	if out[14] >= 1.0 {
		t.Fatalf("RSI=%v, expected near 0 with no gains", out[14])
	}
}

func TestRSISeriesAllGains(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	out := RSISeries(prices, 14)
	if out[14] <= 90 {
		t.Fatalf("RSI=%v, expected very high with no losses", out[14])
	}
}

func TestComputeReportsWarmupAsAbsent(t *testing.T) {
	specs := []Spec{
		{ID: "sma_3", Kind: KindSMA, Period: 3},
		{ID: "rsi_14", Kind: KindRSI, Period: 14},
	}

	snap := Compute([]float64{100, 101, 102, 103}, specs)

	if v, ok := snap.Value("sma_3"); !ok || !almostEqual(v, 102.0) {
		t.Fatalf("sma_3=%v ok=%v, expected 102", v, ok)
	}
	if _, ok := snap.Value("rsi_14"); ok {
		t.Fatal("rsi_14 should be absent during warm-up, not zero")
	}
}

func TestComputeIsStateless(t *testing.T) {
	specs := []Spec{{ID: "sma_2", Kind: KindSMA, Period: 2}}
	prices := []float64{10, 20, 30}

	first := Compute(prices, specs)
	second := Compute(prices, specs)

	a, _ := first.Value("sma_2")
	b, _ := second.Value("sma_2")
	if a != b || !almostEqual(a, 25) {
		t.Fatalf("repeated compute diverged: %v vs %v", a, b)
	}
}
