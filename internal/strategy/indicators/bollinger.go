package indicators

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"algoTrader/internal/ports"
)

// Bands holds Bollinger band series.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// BollingerBands computes SMA-centred bands stdDev population standard
// deviations wide.
func BollingerBands(values []float64, period int, stdDev float64) (Bands, error) {
	if err := checkPeriod("Bollinger", period); err != nil {
		return Bands{}, err
	}
	if stdDev <= 0 {
		return Bands{}, fmt.Errorf("Bollinger std dev must be positive, got %f: %w", stdDev, ports.ErrInvalidConfig)
	}
	if err := checkLength("Bollinger", len(values), period); err != nil {
		return Bands{}, err
	}

	upper, middle, lower := talib.BBands(values, period, stdDev, stdDev, talib.SMA)
	return Bands{
		Upper:  maskWarmup(upper, period-1),
		Middle: maskWarmup(middle, period-1),
		Lower:  maskWarmup(lower, period-1),
	}, nil
}
