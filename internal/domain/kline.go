package domain

import "time"

// Kline represents a single OHLCV bar.
type Kline struct {
	OpenTime  time.Time // Start time of the interval
	CloseTime time.Time // End time of the interval
	Symbol    string    // Trading symbol
	Interval  string    // Bar interval (e.g., "1m", "1h", "1d")
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Closes extracts the close prices of a bar series in order.
func Closes(klines []*Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Close
	}
	return out
}

// HighsLowsCloses extracts the high, low and close columns of a bar series.
func HighsLowsCloses(klines []*Kline) (highs, lows, closes []float64) {
	highs = make([]float64, len(klines))
	lows = make([]float64, len(klines))
	closes = make([]float64, len(klines))
	for i, k := range klines {
		highs[i] = k.High
		lows[i] = k.Low
		closes[i] = k.Close
	}
	return highs, lows, closes
}
