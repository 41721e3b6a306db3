// Package indicators wraps go-talib with length guards. Every function returns a
// series aligned with its input where warm-up entries are NaN.
package indicators

import (
	"fmt"
	"math"

	"algoTrader/internal/ports"
)

// Last returns the final value of a series and whether it is a real reading.
func Last(series []float64) (float64, bool) {
	if len(series) == 0 {
		return math.NaN(), false
	}
	v := series[len(series)-1]
	return v, !math.IsNaN(v)
}

// LastTwo returns the previous and the latest value of a series. Either may be
// NaN when it falls in the warm-up window or the series is too short.
func LastTwo(series []float64) (prev, curr float64) {
	prev, curr = math.NaN(), math.NaN()
	n := len(series)
	if n >= 1 {
		curr = series[n-1]
	}
	if n >= 2 {
		prev = series[n-2]
	}
	return prev, curr
}

func checkPeriod(name string, period int) error {
	if period < 1 {
		return fmt.Errorf("%s period must be positive, got %d: %w", name, period, ports.ErrInvalidConfig)
	}
	return nil
}

func checkLength(name string, have, need int) error {
	if have < need {
		return fmt.Errorf("%s needs %d data points, have %d: %w", name, need, have, ports.ErrInsufficientData)
	}
	return nil
}

// maskWarmup replaces the first n entries of out with NaN.
func maskWarmup(out []float64, n int) []float64 {
	for i := 0; i < n && i < len(out); i++ {
		out[i] = math.NaN()
	}
	return out
}
