package indicators

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"algoTrader/internal/ports"
)

// MACDResult holds the three MACD series.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACDLookback is the index of the first bar with a valid signal line.
func MACDLookback(slow, signal int) int {
	return (slow - 1) + (signal - 1)
}

// MACD computes the moving average convergence divergence of values.
func MACD(values []float64, fast, slow, signal int) (MACDResult, error) {
	if err := checkPeriod("MACD fast", fast); err != nil {
		return MACDResult{}, err
	}
	if err := checkPeriod("MACD slow", slow); err != nil {
		return MACDResult{}, err
	}
	if err := checkPeriod("MACD signal", signal); err != nil {
		return MACDResult{}, err
	}
	if fast >= slow {
		return MACDResult{}, fmt.Errorf("MACD fast period (%d) must be below slow period (%d): %w", fast, slow, ports.ErrInvalidConfig)
	}
	lookback := MACDLookback(slow, signal)
	if err := checkLength("MACD", len(values), lookback+1); err != nil {
		return MACDResult{}, err
	}

	m, s, h := talib.Macd(values, fast, slow, signal)
	return MACDResult{
		MACD:      maskWarmup(m, lookback),
		Signal:    maskWarmup(s, lookback),
		Histogram: maskWarmup(h, lookback),
	}, nil
}
