package service

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// variance is the population variance
func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.PopVariance(values, nil)
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.PopStdDev(values, nil)
}

// histogram counts values into equal-width bins over [min, max], last bin closed.
// A degenerate range is widened by 0.5 on each side.
func histogram(values []float64, bins int) []int {
	counts := make([]int, bins)
	if len(values) == 0 || bins <= 0 {
		return counts
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	width := (hi - lo) / float64(bins)
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		counts[idx]++
	}
	return counts
}

func maxInt(values []int) int {
	m := 0
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}

// timeGaps returns the absolute gaps between consecutive timestamps
func timeGaps(timestamps []int64) []float64 {
	if len(timestamps) < 2 {
		return nil
	}
	gaps := make([]float64, 0, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		gaps = append(gaps, math.Abs(float64(timestamps[i]-timestamps[i-1])))
	}
	return gaps
}
