package strategies

import (
	"fmt"
	"math"

	"algoTrader/internal/domain"
	"algoTrader/internal/ports"
	"algoTrader/internal/strategy/indicators"
)

const (
	maCrossoverConfidence = 0.8
	maATRPeriod           = 14
)

// MACrossoverConfig holds configuration for the MA crossover strategy
type MACrossoverConfig struct {
	FastPeriod int                          // Fast MA period (e.g., 10)
	SlowPeriod int                          // Slow MA period (e.g., 30)
	MAType     indicators.MovingAverageType // SMA or EMA
}

// DefaultMACrossoverConfig returns fast 10, slow 30, SMA.
func DefaultMACrossoverConfig() MACrossoverConfig {
	return MACrossoverConfig{FastPeriod: 10, SlowPeriod: 30, MAType: indicators.SimpleMovingAverage}
}

func maCrossoverConfigFrom(p Params) (MACrossoverConfig, error) {
	cfg := DefaultMACrossoverConfig()
	var err error
	if cfg.FastPeriod, err = p.intParam("fast_period", cfg.FastPeriod); err != nil {
		return cfg, err
	}
	if cfg.SlowPeriod, err = p.intParam("slow_period", cfg.SlowPeriod); err != nil {
		return cfg, err
	}
	maType, err := p.stringParam("ma_type", string(cfg.MAType))
	if err != nil {
		return cfg, err
	}
	if cfg.MAType, err = indicators.ParseMovingAverageType(maType); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// MACrossover signals when the fast moving average crosses the slow one.
type MACrossover struct {
	*BaseStrategy
	config MACrossoverConfig
}

// NewMACrossover creates a new MA crossover strategy instance
func NewMACrossover(config MACrossoverConfig, log ports.Logger) (*MACrossover, error) {
	s := &MACrossover{BaseStrategy: NewBaseStrategy(NameMovingAverage, log), config: config}
	if err := s.ValidateParams(); err != nil {
		return nil, err
	}
	return s, nil
}

// ValidateParams checks periods and the MA type.
func (s *MACrossover) ValidateParams() error {
	if s.config.FastPeriod <= 0 || s.config.SlowPeriod <= 0 {
		return fmt.Errorf("MA periods must be positive: %w", ports.ErrInvalidConfig)
	}
	if s.config.FastPeriod >= s.config.SlowPeriod {
		return fmt.Errorf("fast MA period (%d) must be less than slow MA period (%d): %w",
			s.config.FastPeriod, s.config.SlowPeriod, ports.ErrInvalidConfig)
	}
	if _, err := indicators.ParseMovingAverageType(string(s.config.MAType)); err != nil {
		return err
	}
	return nil
}

// RequiredDataPoints returns the slow period.
func (s *MACrossover) RequiredDataPoints() int {
	return s.config.SlowPeriod
}

// GenerateSignal emits BUY on the first bar where fast is above slow after a
// bar where it was not, and SELL symmetrically. A bar without a reading counts
// as neither above nor below.
func (s *MACrossover) GenerateSignal(symbol string, klines []*domain.Kline) domain.Signal {
	if len(klines) < s.RequiredDataPoints() {
		return s.hold(symbol, klines)
	}

	closes := domain.Closes(klines)
	fast, err := indicators.MovingAverage(closes, s.config.FastPeriod, s.config.MAType)
	if err != nil {
		return s.hold(symbol, klines)
	}
	slow, err := indicators.MovingAverage(closes, s.config.SlowPeriod, s.config.MAType)
	if err != nil {
		return s.hold(symbol, klines)
	}

	prevFast, currFast := indicators.LastTwo(fast)
	prevSlow, currSlow := indicators.LastTwo(slow)
	prevValid := !math.IsNaN(prevFast) && !math.IsNaN(prevSlow)
	price := lastClose(klines)

	meta := map[string]interface{}{"fast_ma": currFast, "slow_ma": currSlow}
	if atr, err := indicators.ATR(klines, maATRPeriod); err == nil {
		if v, ok := indicators.Last(atr); ok {
			meta["atr"] = v
		}
	}

	wasAbove := prevValid && prevFast > prevSlow
	wasBelow := prevValid && prevFast < prevSlow

	switch {
	case !wasAbove && currFast > currSlow:
		return s.signal(domain.SignalBuy, symbol, price, maCrossoverConfidence, meta)
	case !wasBelow && currFast < currSlow:
		return s.signal(domain.SignalSell, symbol, price, maCrossoverConfidence, meta)
	default:
		return s.hold(symbol, klines)
	}
}
