package indicators

import (
	"fmt"
	"math"
)

// Kind identifies an indicator family.
type Kind string

const (
	KindSMA Kind = "sma"
	KindEMA Kind = "ema"
	KindRSI Kind = "rsi"
)

// Spec requests one indicator value in a snapshot.
type Spec struct {
	ID     string
	Kind   Kind
	Period int
}

// Snapshot holds the latest value per requested indicator. Indicators still
// in their warm-up period are absent, never reported as zero.
type Snapshot map[string]float64

// Value returns the latest value for an indicator id, if it is available.
func (s Snapshot) Value(id string) (float64, bool) {
	v, ok := s[id]
	return v, ok
}

// Compute evaluates the requested indicators over the supplied price series.
// It is a stateless full recomputation: correctness never depends on call
// ordering.
func Compute(prices []float64, specs []Spec) Snapshot {
	snap := make(Snapshot, len(specs))
	for _, spec := range specs {
		var series []float64
		switch spec.Kind {
		case KindSMA:
			series = SMASeries(prices, spec.Period)
		case KindEMA:
			series = EMASeries(prices, spec.Period)
		case KindRSI:
			series = RSISeries(prices, spec.Period)
		default:
			continue
		}
		if len(series) == 0 {
			continue
		}
		if v := series[len(series)-1]; !math.IsNaN(v) {
			snap[spec.ID] = v
		}
	}
	return snap
}

// SpecID builds the conventional id for a kind/period pair, e.g. "sma_20".
func SpecID(kind Kind, period int) string {
	return fmt.Sprintf("%s_%d", kind, period)
}
