package strategy

import (
	"context"
	"fmt"

	"algoTrader/internal/adapters/logger"
	"algoTrader/internal/domain"
	"algoTrader/internal/ports"
)

// Aggregate combines the signals produced for one symbol at one step by a
// plurality vote. BUY wins with confidence buys/N when buys outnumber sells,
// SELL likewise; ties (including no votes at all) give HOLD with confidence 0.
// Individual confidences are ignored. An empty list yields a HOLD with no
// symbol or price.
func Aggregate(signals []domain.Signal) domain.Signal {
	if len(signals) == 0 {
		return domain.NewHoldSignal("", 0)
	}

	var buys, sells int
	for _, s := range signals {
		switch s.Type {
		case domain.SignalBuy:
			buys++
		case domain.SignalSell:
			sells++
		}
	}

	n := len(signals)
	out := domain.Signal{
		Type:   domain.SignalHold,
		Symbol: signals[0].Symbol,
		Price:  signals[0].Price,
		Metadata: map[string]interface{}{
			"buy_votes":  buys,
			"sell_votes": sells,
			"hold_votes": n - buys - sells,
		},
	}
	switch {
	case buys > sells:
		out.Type = domain.SignalBuy
		out.Confidence = float64(buys) / float64(n)
	case sells > buys:
		out.Type = domain.SignalSell
		out.Confidence = float64(sells) / float64(n)
	}
	return out
}

// Ensemble runs a fixed set of strategies over the same series.
type Ensemble struct {
	strategies []ports.Strategy
	logger     ports.Logger
}

// NewEnsemble creates an ensemble; at least one strategy is required.
func NewEnsemble(strategies []ports.Strategy, log ports.Logger) (*Ensemble, error) {
	if len(strategies) == 0 {
		return nil, fmt.Errorf("ensemble needs at least one strategy: %w", ports.ErrInvalidConfig)
	}
	for i, s := range strategies {
		if s == nil {
			return nil, fmt.Errorf("strategy %d is nil: %w", i, ports.ErrInvalidConfig)
		}
		if err := s.ValidateParams(); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", s.Name(), err)
		}
	}
	return &Ensemble{strategies: strategies, logger: logger.OrNop(log)}, nil
}

// Strategies returns the member strategies.
func (e *Ensemble) Strategies() []ports.Strategy {
	return e.strategies
}

// RequiredDataPoints returns the largest lookback among the members.
func (e *Ensemble) RequiredDataPoints() int {
	maxPoints := 0
	for _, s := range e.strategies {
		if r := s.RequiredDataPoints(); r > maxPoints {
			maxPoints = r
		}
	}
	return maxPoints
}

// Evaluate runs every member on klines and returns the aggregated decision
// together with the individual signals.
func (e *Ensemble) Evaluate(ctx context.Context, symbol string, klines []*domain.Kline) (domain.Signal, []domain.Signal) {
	signals := make([]domain.Signal, 0, len(e.strategies))
	for _, s := range e.strategies {
		sig := s.GenerateSignal(symbol, klines)
		if sig.IsActionable() {
			e.logger.Debug(ctx, "Strategy signal", map[string]interface{}{
				"strategy":   s.Name(),
				"symbol":     symbol,
				"signal":     string(sig.Type),
				"confidence": sig.Confidence,
			})
		}
		signals = append(signals, sig)
	}
	return Aggregate(signals), signals
}
