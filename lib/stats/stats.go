package stats

import (
	"math"
	"sort"
)

// Summary holds descriptive statistics over a set of attribute values.
// Mode is nil when no single value occurs strictly more often than every
// other (the no-unique-mode case is valid, not an error).
type Summary struct {
	Count  int      `json:"count"`
	Mean   float64  `json:"mean"`
	Median float64  `json:"median"`
	Mode   *float64 `json:"mode,omitempty"`
	StdDev float64  `json:"std_dev"`
}

// Summarize computes the summary for values. An empty input yields a zero
// summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	s := Summary{
		Count:  len(values),
		Mean:   Mean(values),
		Median: Median(values),
		StdDev: StdDev(values),
	}
	if mode, ok := Mode(values); ok {
		s.Mode = &mode
	}
	return s
}

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// Mode returns the value that occurs strictly more often than every other.
// The second return is false when the input is empty or the highest
// frequency is shared by more than one value.
func Mode(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}

	counts := make(map[float64]int, len(values))
	for _, v := range values {
		counts[v]++
	}

	var mode float64
	best, ties := 0, 0
	for v, n := range counts {
		switch {
		case n > best:
			mode, best, ties = v, n, 1
		case n == best:
			ties++
		}
	}
	if ties > 1 {
		return 0, false
	}
	return mode, true
}

// StdDev computes the population standard deviation.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
