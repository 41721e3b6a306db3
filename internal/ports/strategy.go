package ports

import (
	"algoTrader/internal/domain"
)

// Strategy turns a bar series into a Signal.
// Implementations are stateless and deterministic; a series shorter than
// RequiredDataPoints yields a HOLD signal, never an error.
type Strategy interface {
	// Name identifies the strategy in signals and logs.
	Name() string
	// RequiredDataPoints returns the minimum number of klines needed for the strategy calculations.
	RequiredDataPoints() int
	// GenerateSignal evaluates the latest bar of the series.
	GenerateSignal(symbol string, klines []*domain.Kline) domain.Signal
	// ValidateParams reports a configuration error (wrapping ErrInvalidConfig).
	ValidateParams() error
}
