package backtesting

import (
	"context"
	"fmt"
	"time"

	"algoTrader/internal/adapters/logger"
	"algoTrader/internal/domain"
	"algoTrader/internal/portfolio"
	"algoTrader/internal/ports"
	"algoTrader/internal/risk"
	"algoTrader/internal/strategy"
)

const (
	// DefaultWarmupBars is the number of leading bars skipped for indicator warm-up.
	DefaultWarmupBars = 50
	// DefaultPeriodsPerYear annualises the Sharpe ratio of daily bars.
	DefaultPeriodsPerYear = 252
	// cashFraction is the share of cash spent per entry without a risk manager.
	cashFraction = 0.95
)

// Config holds configuration for backtesting
type Config struct {
	InitialCapital float64
	WarmupBars     int     // 0 means DefaultWarmupBars
	PeriodsPerYear float64 // 0 means DefaultPeriodsPerYear
}

// BacktestResult holds the results of a backtest
type BacktestResult struct {
	Symbol         string
	Metrics        Metrics
	Trades         []domain.TradeRecord // Engine log: one record per entry or exit, commission folded into Value
	Ledger         []domain.TradeRecord // Portfolio history, including COMMISSION records
	EquityCurve    []domain.EquityPoint // One point per step with a usable close; bars with close <= 0 add none
	FinalPortfolio portfolio.Summary
}

// Engine replays a bar series through a strategy ensemble, an optional risk
// manager and a fresh portfolio. An Engine holds no per-run state, so one
// instance may run several backtests concurrently.
type Engine struct {
	cfg         Config
	ensemble    *strategy.Ensemble
	riskManager *risk.RiskManager
	logger      ports.Logger
}

// NewEngine creates a backtest engine. riskManager may be nil, in which case
// every entry spends 95% of cash and no stop or target is set.
func NewEngine(cfg Config, strategies []ports.Strategy, riskManager *risk.RiskManager, log ports.Logger) (*Engine, error) {
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive: %w", ports.ErrInvalidConfig)
	}
	if cfg.WarmupBars < 0 {
		return nil, fmt.Errorf("warm-up bars must not be negative: %w", ports.ErrInvalidConfig)
	}
	if cfg.WarmupBars == 0 {
		cfg.WarmupBars = DefaultWarmupBars
	}
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = DefaultPeriodsPerYear
	}
	log = logger.OrNop(log)
	ensemble, err := strategy.NewEnsemble(strategies, log)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, ensemble: ensemble, riskManager: riskManager, logger: log}, nil
}

// run holds the mutable state of one backtest.
type run struct {
	e          *Engine
	symbol     string
	commission float64
	now        time.Time
	pf         *portfolio.Portfolio
	trades     []domain.TradeRecord
	equity     []domain.EquityPoint
	fees       float64
}

// RunBacktest replays klines for symbol. The run is synchronous and
// deterministic: identical inputs give identical trades and equity.
// A series no longer than the warm-up yields an empty result.
func (e *Engine) RunBacktest(ctx context.Context, symbol string, klines []*domain.Kline, commissionRate float64) (*BacktestResult, error) {
	if commissionRate < 0 || commissionRate >= 1 {
		return nil, fmt.Errorf("commission rate %f out of range [0, 1): %w", commissionRate, ports.ErrInvalidConfig)
	}

	r := &run{e: e, symbol: symbol, commission: commissionRate}
	pf, err := portfolio.New(e.cfg.InitialCapital, portfolio.WithClock(func() time.Time { return r.now }))
	if err != nil {
		return nil, err
	}
	r.pf = pf

	for i := e.cfg.WarmupBars; i < len(klines); i++ {
		if err := r.step(ctx, klines[:i+1], i); err != nil {
			return nil, fmt.Errorf("backtest %s step %d: %w", symbol, i, err)
		}
	}
	if err := r.closeRemaining(ctx, klines); err != nil {
		return nil, fmt.Errorf("backtest %s final close: %w", symbol, err)
	}

	result := &BacktestResult{
		Symbol:         symbol,
		Trades:         r.trades,
		Ledger:         r.pf.TradeHistory(),
		EquityCurve:    r.equity,
		FinalPortfolio: r.pf.GetSummary(),
	}
	result.Metrics = computeMetrics(r.pf, r.equity, r.trades, r.fees, e.cfg.PeriodsPerYear)

	e.logger.Info(ctx, "Backtest finished", map[string]interface{}{
		"symbol":      symbol,
		"bars":        len(klines),
		"trades":      result.Metrics.TotalTrades,
		"finalValue":  result.Metrics.FinalValue,
		"returnPct":   result.Metrics.TotalReturnPct,
		"maxDrawdown": result.Metrics.MaxDrawdown,
	})
	return result, nil
}

func (r *run) step(ctx context.Context, window []*domain.Kline, index int) error {
	bar := window[len(window)-1]
	price := bar.Close
	if price <= 0 {
		r.e.logger.Warn(ctx, "Skipping bar without a usable price", map[string]interface{}{
			"symbol": r.symbol, "step": index, "close": price,
		})
		return nil
	}
	r.now = bar.OpenTime

	if r.pf.HasPosition(r.symbol) {
		if err := r.pf.UpdatePrices(ctx, map[string]float64{r.symbol: price}); err != nil {
			return err
		}
	}

	decision, _ := r.e.ensemble.Evaluate(ctx, r.symbol, window)

	switch {
	case decision.Type == domain.SignalBuy && !r.pf.HasPosition(r.symbol):
		if err := r.enter(ctx, decision, price); err != nil {
			return err
		}
	case decision.Type == domain.SignalSell && r.pf.HasPosition(r.symbol):
		if err := r.exit(ctx, price, domain.ActionSell); err != nil {
			return err
		}
	}

	if held := r.pf.GetPosition(r.symbol); held != nil {
		switch {
		case held.ShouldStopLoss():
			if err := r.exit(ctx, price, domain.ActionStopLoss); err != nil {
				return err
			}
		case held.ShouldTakeProfit():
			if err := r.exit(ctx, price, domain.ActionTakeProfit); err != nil {
				return err
			}
		}
	}

	r.equity = append(r.equity, domain.EquityPoint{
		Date:           bar.OpenTime,
		Equity:         r.pf.TotalValue(),
		Cash:           r.pf.Cash(),
		PositionsValue: r.pf.PositionsValue(),
	})
	return nil
}

func (r *run) enter(ctx context.Context, decision domain.Signal, price float64) error {
	decision.Symbol, decision.Price = r.symbol, price
	rm := r.e.riskManager

	var quantity float64
	if rm != nil {
		if !rm.CanTrade(ctx, decision, r.pf) {
			return nil
		}
		quantity = rm.CalculatePositionSize(ctx, decision, r.pf)
	} else {
		quantity = r.pf.Cash() * cashFraction / price
	}
	if quantity <= 0 {
		return nil
	}

	cost := quantity * price
	fee := cost * r.commission
	if cost+fee > r.pf.Cash() {
		r.e.logger.Debug(ctx, "Entry skipped: cost including commission exceeds cash", map[string]interface{}{
			"symbol": r.symbol, "cost": cost + fee, "cash": r.pf.Cash(),
		})
		return nil
	}

	pos := &domain.Position{
		Symbol:       r.symbol,
		Quantity:     quantity,
		EntryPrice:   price,
		CurrentPrice: price,
		Direction:    domain.Long,
		EntryTime:    r.now,
	}
	if rm != nil {
		if stop, ok := rm.CalculateStopLoss(decision); ok {
			pos.StopLoss = domain.Float64Ptr(stop)
		}
		if take, ok := rm.CalculateTakeProfit(decision); ok {
			pos.TakeProfit = domain.Float64Ptr(take)
		}
	}

	if _, err := r.pf.AddPosition(ctx, pos); err != nil {
		return err
	}
	if _, err := r.pf.ChargeCommission(ctx, r.symbol, fee); err != nil {
		return err
	}
	r.fees += fee
	r.trades = append(r.trades, domain.TradeRecord{
		Timestamp: r.now,
		Symbol:    r.symbol,
		Action:    domain.ActionBuy,
		Quantity:  quantity,
		Price:     price,
		Value:     cost + fee,
	})
	return nil
}

// exit fully closes the open position at price, net of commission.
func (r *run) exit(ctx context.Context, price float64, action domain.TradeAction) error {
	held := r.pf.GetPosition(r.symbol)
	if held == nil {
		return nil
	}
	if held.CurrentPrice != price {
		if err := r.pf.UpdatePrices(ctx, map[string]float64{r.symbol: price}); err != nil {
			return err
		}
	}

	rec, err := r.pf.ClosePosition(ctx, r.symbol, action)
	if err != nil || rec == nil {
		return err
	}
	fee := rec.Value * r.commission
	if _, err := r.pf.ChargeCommission(ctx, r.symbol, fee); err != nil {
		return err
	}
	r.fees += fee
	r.trades = append(r.trades, domain.TradeRecord{
		Timestamp: r.now,
		Symbol:    r.symbol,
		Action:    action,
		Quantity:  rec.Quantity,
		Price:     price,
		Value:     rec.Value - fee,
	})
	return nil
}

// closeRemaining liquidates any open position at the last usable close.
func (r *run) closeRemaining(ctx context.Context, klines []*domain.Kline) error {
	if !r.pf.HasPosition(r.symbol) {
		return nil
	}
	for i := len(klines) - 1; i >= 0; i-- {
		if klines[i].Close > 0 {
			r.now = klines[i].OpenTime
			return r.exit(ctx, klines[i].Close, domain.ActionClose)
		}
	}
	return nil
}
