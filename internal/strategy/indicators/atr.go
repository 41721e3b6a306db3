package indicators

import (
	"github.com/markcheno/go-talib"

	"algoTrader/internal/domain"
)

// ATR computes the average true range of a bar series. The first reading is
// at index period.
func ATR(klines []*domain.Kline, period int) ([]float64, error) {
	if err := checkPeriod("ATR", period); err != nil {
		return nil, err
	}
	if err := checkLength("ATR", len(klines), period+1); err != nil {
		return nil, err
	}
	highs, lows, closes := domain.HighsLowsCloses(klines)
	return maskWarmup(talib.Atr(highs, lows, closes, period), period), nil
}
