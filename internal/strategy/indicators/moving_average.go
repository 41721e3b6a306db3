package indicators

import (
	"fmt"
	"strings"

	"github.com/markcheno/go-talib"

	"algoTrader/internal/ports"
)

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	// SimpleMovingAverage represents a simple moving average
	SimpleMovingAverage MovingAverageType = "SMA"
	// ExponentialMovingAverage represents an exponential moving average
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// ParseMovingAverageType accepts "sma" or "ema" in any case.
func ParseMovingAverageType(s string) (MovingAverageType, error) {
	switch MovingAverageType(strings.ToUpper(s)) {
	case SimpleMovingAverage:
		return SimpleMovingAverage, nil
	case ExponentialMovingAverage:
		return ExponentialMovingAverage, nil
	default:
		return "", fmt.Errorf("unsupported moving average type %q: %w", s, ports.ErrInvalidConfig)
	}
}

// SMA computes the simple moving average series.
func SMA(values []float64, period int) ([]float64, error) {
	if err := checkPeriod("SMA", period); err != nil {
		return nil, err
	}
	if err := checkLength("SMA", len(values), period); err != nil {
		return nil, err
	}
	return maskWarmup(talib.Sma(values, period), period-1), nil
}

// EMA computes the exponential moving average series, seeded with the SMA of
// the first period values.
func EMA(values []float64, period int) ([]float64, error) {
	if err := checkPeriod("EMA", period); err != nil {
		return nil, err
	}
	if err := checkLength("EMA", len(values), period); err != nil {
		return nil, err
	}
	return maskWarmup(talib.Ema(values, period), period-1), nil
}

// MovingAverage dispatches to SMA or EMA.
func MovingAverage(values []float64, period int, maType MovingAverageType) ([]float64, error) {
	switch maType {
	case SimpleMovingAverage:
		return SMA(values, period)
	case ExponentialMovingAverage:
		return EMA(values, period)
	default:
		return nil, fmt.Errorf("unsupported moving average type: %s: %w", maType, ports.ErrInvalidConfig)
	}
}
