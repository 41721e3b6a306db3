package strategies

import (
	"fmt"
	"math"

	"algoTrader/internal/domain"
	"algoTrader/internal/ports"
	"algoTrader/internal/strategy/indicators"
)

// MACDConfig holds configuration for the MACD strategy
type MACDConfig struct {
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int
}

// DefaultMACDConfig returns 12/26/9.
func DefaultMACDConfig() MACDConfig {
	return MACDConfig{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9}
}

func macdConfigFrom(p Params) (MACDConfig, error) {
	cfg := DefaultMACDConfig()
	var err error
	if cfg.FastPeriod, err = p.intParam("fast_period", cfg.FastPeriod); err != nil {
		return cfg, err
	}
	if cfg.SlowPeriod, err = p.intParam("slow_period", cfg.SlowPeriod); err != nil {
		return cfg, err
	}
	if cfg.SignalPeriod, err = p.intParam("signal_period", cfg.SignalPeriod); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// MACDStrategy trades MACD and signal line crossovers.
type MACDStrategy struct {
	*BaseStrategy
	config MACDConfig
}

// NewMACDStrategy creates a new MACD strategy instance
func NewMACDStrategy(config MACDConfig, log ports.Logger) (*MACDStrategy, error) {
	s := &MACDStrategy{BaseStrategy: NewBaseStrategy(NameMACD, log), config: config}
	if err := s.ValidateParams(); err != nil {
		return nil, err
	}
	return s, nil
}

// ValidateParams requires positive periods and fast < slow.
func (s *MACDStrategy) ValidateParams() error {
	c := s.config
	if c.FastPeriod <= 0 || c.SlowPeriod <= 0 || c.SignalPeriod <= 0 {
		return fmt.Errorf("MACD periods must be positive: %w", ports.ErrInvalidConfig)
	}
	if c.FastPeriod >= c.SlowPeriod {
		return fmt.Errorf("MACD fast period (%d) must be less than slow period (%d): %w",
			c.FastPeriod, c.SlowPeriod, ports.ErrInvalidConfig)
	}
	return nil
}

// RequiredDataPoints returns slow+signal.
func (s *MACDStrategy) RequiredDataPoints() int {
	return s.config.SlowPeriod + s.config.SignalPeriod
}

// GenerateSignal emits BUY when MACD crosses above its signal line and SELL
// when it crosses below. Confidence grows with the histogram.
func (s *MACDStrategy) GenerateSignal(symbol string, klines []*domain.Kline) domain.Signal {
	if len(klines) < s.RequiredDataPoints() {
		return s.hold(symbol, klines)
	}

	res, err := indicators.MACD(domain.Closes(klines), s.config.FastPeriod, s.config.SlowPeriod, s.config.SignalPeriod)
	if err != nil {
		return s.hold(symbol, klines)
	}
	prevMACD, currMACD := indicators.LastTwo(res.MACD)
	prevSignal, currSignal := indicators.LastTwo(res.Signal)
	if math.IsNaN(prevMACD) || math.IsNaN(prevSignal) {
		return s.hold(symbol, klines)
	}

	price := lastClose(klines)
	hist := math.Abs(currMACD - currSignal)
	confidence := math.Min(1, 0.6+hist*0.1)
	meta := map[string]interface{}{"macd": currMACD, "signal": currSignal, "histogram": currMACD - currSignal}

	switch {
	case prevMACD <= prevSignal && currMACD > currSignal:
		return s.signal(domain.SignalBuy, symbol, price, confidence, meta)
	case prevMACD >= prevSignal && currMACD < currSignal:
		return s.signal(domain.SignalSell, symbol, price, confidence, meta)
	default:
		return s.hold(symbol, klines)
	}
}
