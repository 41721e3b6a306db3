package strategies

import (
	"fmt"

	"github.com/spf13/cast"

	"algoTrader/internal/adapters/logger"
	"algoTrader/internal/domain"
	"algoTrader/internal/ports"
)

// Strategy names accepted by New.
const (
	NameMovingAverage  = "moving_average"
	NameRSI            = "rsi"
	NameMACD           = "macd"
	NameBollingerBands = "bollinger_bands"
)

// BaseStrategy provides common functionality for strategies
type BaseStrategy struct {
	name   string
	logger ports.Logger
}

// NewBaseStrategy creates a new base strategy instance
func NewBaseStrategy(name string, log ports.Logger) *BaseStrategy {
	return &BaseStrategy{name: name, logger: logger.OrNop(log)}
}

// Name returns the name of the strategy
func (b *BaseStrategy) Name() string {
	return b.name
}

// hold returns a HOLD signal priced at the latest close (0 for an empty series).
func (b *BaseStrategy) hold(symbol string, klines []*domain.Kline) domain.Signal {
	s := domain.NewHoldSignal(symbol, lastClose(klines))
	s.Strategy = b.name
	return s
}

func (b *BaseStrategy) signal(kind domain.SignalType, symbol string, price, confidence float64, meta map[string]interface{}) domain.Signal {
	return domain.Signal{
		Type:       kind,
		Symbol:     symbol,
		Price:      price,
		Confidence: clamp(confidence, 0, 1),
		Strategy:   b.name,
		Metadata:   meta,
	}
}

func lastClose(klines []*domain.Kline) float64 {
	if len(klines) == 0 {
		return 0
	}
	return klines[len(klines)-1].Close
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Params holds raw strategy parameters as decoded from a bots file.
type Params map[string]interface{}

func (p Params) intParam(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w: %w", key, ports.ErrInvalidConfig, err)
	}
	return n, nil
}

func (p Params) floatParam(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w: %w", key, ports.ErrInvalidConfig, err)
	}
	return f, nil
}

func (p Params) stringParam(key string, def string) (string, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("parameter %s: %w: %w", key, ports.ErrInvalidConfig, err)
	}
	return s, nil
}

// New builds a strategy by name from raw parameters. Missing parameters take
// their defaults.
func New(name string, params Params, log ports.Logger) (ports.Strategy, error) {
	switch name {
	case NameMovingAverage:
		cfg, err := maCrossoverConfigFrom(params)
		if err != nil {
			return nil, err
		}
		return NewMACrossover(cfg, log)
	case NameRSI:
		cfg, err := rsiConfigFrom(params)
		if err != nil {
			return nil, err
		}
		return NewRSIStrategy(cfg, log)
	case NameMACD:
		cfg, err := macdConfigFrom(params)
		if err != nil {
			return nil, err
		}
		return NewMACDStrategy(cfg, log)
	case NameBollingerBands:
		cfg, err := bollingerConfigFrom(params)
		if err != nil {
			return nil, err
		}
		return NewBollingerStrategy(cfg, log)
	default:
		return nil, fmt.Errorf("unknown strategy %q: %w", name, ports.ErrInvalidConfig)
	}
}
