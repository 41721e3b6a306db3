package indicators

import (
	"github.com/markcheno/go-talib"
)

// RSI computes Wilder's relative strength index. The first reading is at
// index period, so at least period+1 values are needed. A window with no
// movement at all reads 0.
func RSI(values []float64, period int) ([]float64, error) {
	if err := checkPeriod("RSI", period); err != nil {
		return nil, err
	}
	if period < 2 {
		// talib returns an all-zero series below 2
		period = 2
	}
	if err := checkLength("RSI", len(values), period+1); err != nil {
		return nil, err
	}
	return maskWarmup(talib.Rsi(values, period), period), nil
}
