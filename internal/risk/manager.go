package risk

import (
	"context"
	"fmt"
	"math"
	"strings"

	"algoTrader/internal/adapters/logger"
	"algoTrader/internal/domain"
	"algoTrader/internal/ports"
)

// cashBuffer caps a new position at this share of available cash.
const cashBuffer = 0.95

// RiskConfig holds configuration for risk management
type RiskConfig struct {
	MaxPositionSize   float64 // Max position value as a fraction of total portfolio value
	MaxPortfolioRisk  float64 // Fraction of total value that may be lost on one stop-out
	StopLossPercent   float64
	TakeProfitPercent float64
	MaxOpenPositions  int
	MaxDrawdownPct    float64 // Ceiling on |total P&L %| before new entries stop
}

// DefaultRiskConfig returns the stock limits.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		MaxPositionSize:   0.1,
		MaxPortfolioRisk:  0.02,
		StopLossPercent:   0.05,
		TakeProfitPercent: 0.10,
		MaxOpenPositions:  10,
		MaxDrawdownPct:    20,
	}
}

// Validate checks the configuration for obviously invalid values.
func (c RiskConfig) Validate() error {
	var errs []string
	if c.MaxPositionSize <= 0 || c.MaxPositionSize > 1 {
		errs = append(errs, "max position size must be in (0, 1]")
	}
	if c.MaxPortfolioRisk < 0 || c.MaxPortfolioRisk > 1 {
		errs = append(errs, "max portfolio risk must be in [0, 1]")
	}
	if c.StopLossPercent < 0 || c.StopLossPercent >= 1 {
		errs = append(errs, "stop loss percent must be in [0, 1)")
	}
	if c.TakeProfitPercent < 0 {
		errs = append(errs, "take profit percent must not be negative")
	}
	if c.MaxOpenPositions <= 0 {
		errs = append(errs, "max open positions must be positive")
	}
	if c.MaxDrawdownPct <= 0 {
		errs = append(errs, "max drawdown percent must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ports.ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// PortfolioState is the read-only view of a portfolio the manager needs.
type PortfolioState interface {
	Cash() float64
	TotalValue() float64
	TotalPNLPct() float64
	NumPositions() int
	HasPosition(symbol string) bool
}

// RiskManager implements admission control and position sizing.
type RiskManager struct {
	config RiskConfig
	logger ports.Logger
}

// NewRiskManager creates a new risk manager instance
func NewRiskManager(config RiskConfig, log ports.Logger) (*RiskManager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &RiskManager{config: config, logger: logger.OrNop(log)}, nil
}

// Config returns a copy of the active limits.
func (r *RiskManager) Config() RiskConfig {
	return r.config
}

// CanTrade decides whether signal may be executed against the portfolio.
// BUYs are rejected at the open-position limit or when the sized cost exceeds
// cash; SELLs are rejected without a matching open position. HOLD is never
// tradable.
func (r *RiskManager) CanTrade(ctx context.Context, signal domain.Signal, p PortfolioState) bool {
	fields := map[string]interface{}{"symbol": signal.Symbol, "signal": string(signal.Type)}

	switch signal.Type {
	case domain.SignalBuy:
		if p.NumPositions() >= r.config.MaxOpenPositions {
			fields["openPositions"] = p.NumPositions()
			r.logger.Debug(ctx, "Trade rejected: max open positions reached", fields)
			return false
		}
		cost := r.CalculatePositionSize(ctx, signal, p) * signal.Price
		if cost > p.Cash() {
			fields["cost"] = cost
			fields["cash"] = p.Cash()
			r.logger.Debug(ctx, "Trade rejected: insufficient cash", fields)
			return false
		}
		return true
	case domain.SignalSell:
		if !p.HasPosition(signal.Symbol) {
			r.logger.Debug(ctx, "Trade rejected: no open position to sell", fields)
			return false
		}
		return true
	default:
		return false
	}
}

// CalculatePositionSize returns the BUY quantity: the smaller of the
// fixed-fraction value and the risk-based value, capped at 95% of cash and
// divided by price. Non-BUY signals size to 0.
func (r *RiskManager) CalculatePositionSize(ctx context.Context, signal domain.Signal, p PortfolioState) float64 {
	if signal.Type != domain.SignalBuy || signal.Price <= 0 {
		return 0
	}

	total := p.TotalValue()
	fixedValue := total * r.config.MaxPositionSize

	riskAmount := total * r.config.MaxPortfolioRisk
	stopDistance := signal.Price * r.config.StopLossPercent
	riskQty := 0.0
	if stopDistance > 0 {
		riskQty = riskAmount / stopDistance
	}
	riskValue := riskQty * signal.Price

	value := math.Min(fixedValue, riskValue)
	value = math.Min(value, p.Cash()*cashBuffer)

	return math.Max(value/signal.Price, 0)
}

// CalculateStopLoss returns the stop price for a BUY; ok is false for other
// signal kinds, meaning no threshold.
func (r *RiskManager) CalculateStopLoss(signal domain.Signal) (price float64, ok bool) {
	if signal.Type != domain.SignalBuy {
		return 0, false
	}
	return signal.Price * (1 - r.config.StopLossPercent), true
}

// CalculateTakeProfit returns the profit target for a BUY; ok is false for
// other signal kinds.
func (r *RiskManager) CalculateTakeProfit(signal domain.Signal) (price float64, ok bool) {
	if signal.Type != domain.SignalBuy {
		return 0, false
	}
	return signal.Price * (1 + r.config.TakeProfitPercent), true
}

// CheckDrawdown returns false once |total P&L %| exceeds the configured ceiling.
func (r *RiskManager) CheckDrawdown(ctx context.Context, p PortfolioState) bool {
	pnlPct := p.TotalPNLPct()
	if math.Abs(pnlPct) > r.config.MaxDrawdownPct {
		r.logger.Warn(ctx, "Drawdown limit exceeded", map[string]interface{}{
			"pnlPct": pnlPct,
			"limit":  r.config.MaxDrawdownPct,
		})
		return false
	}
	return true
}
