package strategies

import (
	"fmt"
	"math"

	"algoTrader/internal/domain"
	"algoTrader/internal/ports"
	"algoTrader/internal/strategy/indicators"
)

// BollingerConfig holds configuration for the Bollinger bands strategy
type BollingerConfig struct {
	Period int
	StdDev float64
}

// DefaultBollingerConfig returns period 20, two deviations.
func DefaultBollingerConfig() BollingerConfig {
	return BollingerConfig{Period: 20, StdDev: 2}
}

func bollingerConfigFrom(p Params) (BollingerConfig, error) {
	cfg := DefaultBollingerConfig()
	var err error
	if cfg.Period, err = p.intParam("period", cfg.Period); err != nil {
		return cfg, err
	}
	if cfg.StdDev, err = p.floatParam("std_dev", cfg.StdDev); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// BollingerStrategy trades price re-entering the bands.
type BollingerStrategy struct {
	*BaseStrategy
	config BollingerConfig
}

// NewBollingerStrategy creates a new Bollinger bands strategy instance
func NewBollingerStrategy(config BollingerConfig, log ports.Logger) (*BollingerStrategy, error) {
	s := &BollingerStrategy{BaseStrategy: NewBaseStrategy(NameBollingerBands, log), config: config}
	if err := s.ValidateParams(); err != nil {
		return nil, err
	}
	return s, nil
}

// ValidateParams requires a positive period and deviation.
func (s *BollingerStrategy) ValidateParams() error {
	if s.config.Period <= 0 {
		return fmt.Errorf("Bollinger period must be positive: %w", ports.ErrInvalidConfig)
	}
	if s.config.StdDev <= 0 {
		return fmt.Errorf("Bollinger std dev must be positive: %w", ports.ErrInvalidConfig)
	}
	return nil
}

// RequiredDataPoints returns the band period.
func (s *BollingerStrategy) RequiredDataPoints() int {
	return s.config.Period
}

// GenerateSignal emits BUY when price climbs back above the lower band and
// SELL when it falls back below the upper band.
func (s *BollingerStrategy) GenerateSignal(symbol string, klines []*domain.Kline) domain.Signal {
	if len(klines) < s.RequiredDataPoints() {
		return s.hold(symbol, klines)
	}

	closes := domain.Closes(klines)
	bands, err := indicators.BollingerBands(closes, s.config.Period, s.config.StdDev)
	if err != nil {
		return s.hold(symbol, klines)
	}
	prevLower, lower := indicators.LastTwo(bands.Lower)
	prevUpper, upper := indicators.LastTwo(bands.Upper)
	middle, _ := indicators.Last(bands.Middle)
	if math.IsNaN(prevLower) || math.IsNaN(prevUpper) || middle == 0 {
		return s.hold(symbol, klines)
	}

	prevPrice, price := indicators.LastTwo(closes)
	meta := map[string]interface{}{"bb_upper": upper, "bb_middle": middle, "bb_lower": lower}

	switch {
	case prevPrice <= prevLower && price > lower:
		distancePct := (middle - price) / middle * 100
		return s.signal(domain.SignalBuy, symbol, price, 0.6+distancePct/10, meta)
	case prevPrice >= prevUpper && price < upper:
		distancePct := (price - middle) / middle * 100
		return s.signal(domain.SignalSell, symbol, price, 0.6+distancePct/10, meta)
	default:
		return s.hold(symbol, klines)
	}
}
