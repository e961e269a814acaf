package analytics

import (
	"math"
	"sort"
)

// Summary describes a distribution of values. A zero Summary (Count == 0)
// stands for an empty input.
type Summary struct {
	Count  int
	Mean   float64
	Median float64
	Min    float64
	Max    float64
	StdDev float64
}

// Summarize computes the summary of values. Non-finite values are skipped.
//
// For an even count the median is the upper of the two middle elements,
// sorted[n/2], not their average. Dashboards already depend on that figure.
func Summarize(values []float64) Summary {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sorted = append(sorted, v)
		}
	}
	n := len(sorted)
	if n == 0 {
		return Summary{}
	}
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range sorted {
		d := v - mean
		sq += d * d
	}

	return Summary{
		Count:  n,
		Mean:   mean,
		Median: sorted[n/2],
		Min:    sorted[0],
		Max:    sorted[n-1],
		StdDev: math.Sqrt(sq / float64(n)),
	}
}

// Rounded returns the summary with every figure rounded to two decimals.
func (s Summary) Rounded() Summary {
	return Summary{
		Count:  s.Count,
		Mean:   Round2(s.Mean),
		Median: Round2(s.Median),
		Min:    Round2(s.Min),
		Max:    Round2(s.Max),
		StdDev: Round2(s.StdDev),
	}
}

// Share counts the values satisfying pred and their percentage of all values.
// The percentage is 0 for an empty input.
func Share(values []float64, pred func(float64) bool) (int, float64) {
	n := 0
	for _, v := range values {
		if pred(v) {
			n++
		}
	}
	if len(values) == 0 {
		return 0, 0
	}
	return n, Round2(float64(n) / float64(len(values)) * 100)
}

// TrendDirection classifies the movement of a rate across periods.
type TrendDirection string

const (
	TrendImproving        TrendDirection = "improving"
	TrendDeclining        TrendDirection = "declining"
	TrendStable           TrendDirection = "stable"
	TrendInsufficientData TrendDirection = "insufficient_data"
)

// trendTolerance is the change, in percentage points, below which a trend is
// reported as stable.
const trendTolerance = 1.0

// Direction compares the first and last rate of a chronological series.
func Direction(rates []float64) TrendDirection {
	if len(rates) < 2 {
		return TrendInsufficientData
	}
	delta := rates[len(rates)-1] - rates[0]
	switch {
	case delta > trendTolerance:
		return TrendImproving
	case delta < -trendTolerance:
		return TrendDeclining
	}
	return TrendStable
}
