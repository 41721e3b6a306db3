package strategies

import (
	"fmt"
	"math"

	"algoTrader/internal/domain"
	"algoTrader/internal/ports"
	"algoTrader/internal/strategy/indicators"
)

// RSIConfig holds configuration for the RSI strategy
type RSIConfig struct {
	Period     int
	Oversold   float64
	Overbought float64
}

// DefaultRSIConfig returns period 14 with 30/70 levels.
func DefaultRSIConfig() RSIConfig {
	return RSIConfig{Period: 14, Oversold: 30, Overbought: 70}
}

func rsiConfigFrom(p Params) (RSIConfig, error) {
	cfg := DefaultRSIConfig()
	var err error
	if cfg.Period, err = p.intParam("period", cfg.Period); err != nil {
		return cfg, err
	}
	if cfg.Oversold, err = p.floatParam("oversold", cfg.Oversold); err != nil {
		return cfg, err
	}
	if cfg.Overbought, err = p.floatParam("overbought", cfg.Overbought); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// RSIStrategy trades RSI exits from the oversold and overbought zones.
type RSIStrategy struct {
	*BaseStrategy
	config RSIConfig
}

// NewRSIStrategy creates a new RSI strategy instance
func NewRSIStrategy(config RSIConfig, log ports.Logger) (*RSIStrategy, error) {
	s := &RSIStrategy{BaseStrategy: NewBaseStrategy(NameRSI, log), config: config}
	if err := s.ValidateParams(); err != nil {
		return nil, err
	}
	return s, nil
}

// ValidateParams requires a positive period and 0 < oversold < overbought < 100.
func (s *RSIStrategy) ValidateParams() error {
	if s.config.Period <= 0 {
		return fmt.Errorf("RSI period must be positive: %w", ports.ErrInvalidConfig)
	}
	if !(0 < s.config.Oversold && s.config.Oversold < s.config.Overbought && s.config.Overbought < 100) {
		return fmt.Errorf("invalid RSI levels oversold=%v overbought=%v: %w",
			s.config.Oversold, s.config.Overbought, ports.ErrInvalidConfig)
	}
	return nil
}

// RequiredDataPoints returns period+1.
func (s *RSIStrategy) RequiredDataPoints() int {
	return s.config.Period + 1
}

// GenerateSignal emits BUY when RSI crosses up through oversold and SELL when
// it crosses down through overbought.
func (s *RSIStrategy) GenerateSignal(symbol string, klines []*domain.Kline) domain.Signal {
	if len(klines) < s.RequiredDataPoints() {
		return s.hold(symbol, klines)
	}

	rsi, err := indicators.RSI(domain.Closes(klines), s.config.Period)
	if err != nil {
		return s.hold(symbol, klines)
	}
	prev, curr := indicators.LastTwo(rsi)
	if math.IsNaN(prev) || math.IsNaN(curr) {
		return s.hold(symbol, klines)
	}

	price := lastClose(klines)
	meta := map[string]interface{}{"rsi": curr}
	oversold, overbought := s.config.Oversold, s.config.Overbought

	switch {
	case prev <= oversold && curr > oversold:
		return s.signal(domain.SignalBuy, symbol, price, math.Min(1, (oversold-prev+5)/10), meta)
	case prev >= overbought && curr < overbought:
		return s.signal(domain.SignalSell, symbol, price, math.Min(1, (prev-overbought+5)/10), meta)
	default:
		return s.hold(symbol, klines)
	}
}
