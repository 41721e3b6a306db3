package app

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"algoTrader/internal/adapters/logger"
	"algoTrader/internal/domain"
	"algoTrader/internal/portfolio"
	"algoTrader/internal/ports"
	"algoTrader/internal/risk"
	"algoTrader/internal/strategy"
)

const (
	defaultRunInterval = time.Minute
	defaultKlineLimit  = 100
)

// BotConfig holds the per-bot trading parameters.
type BotConfig struct {
	ID             string
	Name           string
	Symbols        []string
	Interval       string        // Bar interval requested from the market data source
	KlineLimit     int           // Bars fetched per symbol; raised to cover strategy warm-up
	RunInterval    time.Duration // Pause between iterations of Run
	CommissionRate float64       // Fraction of traded value charged per fill
}

// BotDeps are the collaborators a Bot trades through.
type BotDeps struct {
	Portfolio  *portfolio.Portfolio
	Strategies []ports.Strategy
	Risk       *risk.RiskManager
	Market     ports.MarketDataSource
	Executor   ports.OrderExecutor
	Repo       ports.PortfolioRepository // Optional; records emitted signals
	Logger     ports.Logger
}

// Bot trades a set of symbols live: it polls bars, asks its strategies for a
// decision and routes admitted orders to the executor before touching its
// portfolio. A Bot is driven by a single goroutine.
type Bot struct {
	cfg       BotConfig
	portfolio *portfolio.Portfolio
	ensemble  *strategy.Ensemble
	risk      *risk.RiskManager
	market    ports.MarketDataSource
	executor  ports.OrderExecutor
	repo      ports.PortfolioRepository
	logger    ports.Logger
	now       func() time.Time
	step      int64
}

// NewBot validates the configuration and wires a bot.
func NewBot(cfg BotConfig, deps BotDeps) (*Bot, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("bot id is required: %w", ports.ErrInvalidConfig)
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("bot %s: at least one symbol is required: %w", cfg.ID, ports.ErrInvalidConfig)
	}
	if cfg.CommissionRate < 0 || cfg.CommissionRate >= 1 {
		return nil, fmt.Errorf("bot %s: commission rate %v out of range [0, 1): %w", cfg.ID, cfg.CommissionRate, ports.ErrInvalidConfig)
	}
	if deps.Portfolio == nil || deps.Risk == nil || deps.Market == nil || deps.Executor == nil {
		return nil, fmt.Errorf("bot %s: portfolio, risk manager, market data and executor are required: %w", cfg.ID, ports.ErrInvalidConfig)
	}
	if cfg.Interval == "" {
		cfg.Interval = "1h"
	}
	if cfg.RunInterval <= 0 {
		cfg.RunInterval = defaultRunInterval
	}

	log := logger.OrNop(deps.Logger)
	ensemble, err := strategy.NewEnsemble(deps.Strategies, log)
	if err != nil {
		return nil, fmt.Errorf("bot %s: %w", cfg.ID, err)
	}
	if cfg.KlineLimit <= 0 {
		cfg.KlineLimit = defaultKlineLimit
	}
	if need := ensemble.RequiredDataPoints() + 1; cfg.KlineLimit < need {
		cfg.KlineLimit = need
	}

	return &Bot{
		cfg:       cfg,
		portfolio: deps.Portfolio,
		ensemble:  ensemble,
		risk:      deps.Risk,
		market:    deps.Market,
		executor:  deps.Executor,
		repo:      deps.Repo,
		logger:    log,
		now:       time.Now,
	}, nil
}

// ID returns the bot identity.
func (b *Bot) ID() string { return b.cfg.ID }

// Portfolio returns the bot's ledger. Only read it from the bot's goroutine
// or after the bot has stopped.
func (b *Bot) Portfolio() *portfolio.Portfolio { return b.portfolio }

// Run calls RunOnce every RunInterval until ctx is canceled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info(ctx, "Bot started", map[string]interface{}{
		"botID": b.cfg.ID, "symbols": b.cfg.Symbols, "interval": b.cfg.Interval, "every": b.cfg.RunInterval.String(),
	})
	ticker := time.NewTicker(b.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := b.RunOnce(ctx); err != nil && ctx.Err() == nil {
			b.logger.Error(ctx, err, "Bot iteration failed", map[string]interface{}{"botID": b.cfg.ID, "step": b.step})
		}
		select {
		case <-ctx.Done():
			b.logger.Info(context.Background(), "Bot stopped", map[string]interface{}{
				"botID": b.cfg.ID, "steps": b.step, "totalValue": b.portfolio.TotalValue(),
			})
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce performs one iteration: protective exits first, then one decision
// per symbol. Per-symbol failures are logged and do not stop the iteration.
func (b *Bot) RunOnce(ctx context.Context) error {
	b.step++
	b.CheckPositions(ctx)

	for _, symbol := range b.cfg.Symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.processSymbol(ctx, symbol)
	}
	return nil
}

func (b *Bot) fields(symbol string) map[string]interface{} {
	return map[string]interface{}{"botID": b.cfg.ID, "symbol": symbol, "step": b.step}
}

func (b *Bot) processSymbol(ctx context.Context, symbol string) {
	defer func() {
		if r := recover(); r != nil {
			fields := b.fields(symbol)
			fields["stack"] = string(debug.Stack())
			b.logger.Error(ctx, fmt.Errorf("panic: %v", r), "Recovered from panic while processing symbol", fields)
		}
	}()

	klines, err := b.market.GetKlines(ctx, symbol, b.cfg.Interval, b.cfg.KlineLimit)
	if err != nil {
		b.logger.Warn(ctx, "Skipping symbol: failed to fetch bars", mergeFields(b.fields(symbol), "error", err.Error()))
		return
	}
	if len(klines) == 0 {
		b.logger.Warn(ctx, "Skipping symbol: no bars returned", b.fields(symbol))
		return
	}

	decision, signals := b.ensemble.Evaluate(ctx, symbol, klines)
	b.recordSignals(ctx, signals)

	decision.Symbol = symbol
	if decision.Price <= 0 {
		decision.Price = klines[len(klines)-1].Close
	}
	b.ProcessSignal(ctx, decision)
}

func (b *Bot) recordSignals(ctx context.Context, signals []domain.Signal) {
	if b.repo == nil {
		return
	}
	ts := b.now()
	for _, sig := range signals {
		rec := &ports.SignalRecord{PortfolioID: b.cfg.ID, Timestamp: ts, Signal: sig}
		if _, err := b.repo.RecordSignal(ctx, rec); err != nil {
			b.logger.Warn(ctx, "Failed to record signal", mergeFields(b.fields(sig.Symbol), "error", err.Error()))
		}
	}
}

// ProcessSignal executes an aggregated decision and reports whether an order
// was filled. HOLD never trades. The portfolio is only mutated after the
// executor confirms the fill.
func (b *Bot) ProcessSignal(ctx context.Context, signal domain.Signal) bool {
	switch signal.Type {
	case domain.SignalBuy:
		return b.buy(ctx, signal)
	case domain.SignalSell:
		if !b.risk.CanTrade(ctx, signal, b.portfolio) {
			return false
		}
		return b.exitPosition(ctx, signal.Symbol, domain.ActionSell, signal.Price)
	default:
		return false
	}
}

func (b *Bot) buy(ctx context.Context, signal domain.Signal) bool {
	fields := b.fields(signal.Symbol)
	if b.portfolio.HasPosition(signal.Symbol) {
		b.logger.Debug(ctx, "BUY ignored: position already open", fields)
		return false
	}
	if !b.risk.CheckDrawdown(ctx, b.portfolio) {
		b.logger.Warn(ctx, "BUY blocked by drawdown guard", mergeFields(fields, "pnlPct", b.portfolio.TotalPNLPct()))
		return false
	}
	if !b.risk.CanTrade(ctx, signal, b.portfolio) {
		return false
	}
	signal.Quantity = b.risk.CalculatePositionSize(ctx, signal, b.portfolio)
	if signal.Quantity <= 0 {
		b.logger.Debug(ctx, "BUY sized to zero", fields)
		return false
	}

	resp, err := b.executor.PlaceMarketOrder(ctx, signal.Symbol, domain.Buy, signal.Quantity)
	if err != nil {
		b.logger.Error(ctx, err, "BUY order failed; portfolio unchanged", fields)
		return false
	}
	price, qty := fillOf(resp, signal.Price, signal.Quantity)

	filled := signal
	filled.Price = price
	pos := &domain.Position{
		Symbol:       signal.Symbol,
		Quantity:     qty,
		EntryPrice:   price,
		CurrentPrice: price,
		Direction:    domain.Long,
		EntryTime:    b.now(),
	}
	if stop, ok := b.risk.CalculateStopLoss(filled); ok {
		pos.StopLoss = domain.Float64Ptr(stop)
	}
	if take, ok := b.risk.CalculateTakeProfit(filled); ok {
		pos.TakeProfit = domain.Float64Ptr(take)
	}

	if _, err := b.portfolio.AddPosition(ctx, pos); err != nil {
		b.logger.Error(ctx, err, "Position opened but not persisted", fields)
	}
	b.chargeCommission(ctx, signal.Symbol, qty*price)

	b.logger.Info(ctx, "Position opened", mergeFields(fields,
		"quantity", qty, "price", price, "orderID", resp.OrderID, "confidence", signal.Confidence))
	return true
}

// CheckPositions refreshes the price of every open position and closes those
// whose stop-loss or take-profit has been reached. It returns the number of
// positions closed.
func (b *Bot) CheckPositions(ctx context.Context) int {
	closed := 0
	for _, held := range b.portfolio.Positions() {
		if ctx.Err() != nil {
			return closed
		}
		fields := b.fields(held.Symbol)
		price, err := b.market.GetTickerPrice(ctx, held.Symbol)
		if err != nil || price <= 0 {
			if err != nil {
				fields["error"] = err.Error()
			}
			b.logger.Warn(ctx, "Skipping position check: no usable price", fields)
			continue
		}
		if err := b.portfolio.UpdatePrices(ctx, map[string]float64{held.Symbol: price}); err != nil {
			b.logger.Error(ctx, err, "Price refresh not persisted", fields)
		}

		current := b.portfolio.GetPosition(held.Symbol)
		switch {
		case current == nil:
		case current.ShouldStopLoss():
			if b.exitPosition(ctx, held.Symbol, domain.ActionStopLoss, price) && !b.portfolio.HasPosition(held.Symbol) {
				closed++
			}
		case current.ShouldTakeProfit():
			if b.exitPosition(ctx, held.Symbol, domain.ActionTakeProfit, price) && !b.portfolio.HasPosition(held.Symbol) {
				closed++
			}
		}
	}
	return closed
}

// exitPosition sells the whole holding and books the fill under action. A
// short fill only reduces the position by the executed quantity. It reports
// whether anything was sold.
func (b *Bot) exitPosition(ctx context.Context, symbol string, action domain.TradeAction, refPrice float64) bool {
	fields := mergeFields(b.fields(symbol), "action", string(action))
	held := b.portfolio.GetPosition(symbol)
	if held == nil {
		return false
	}

	resp, err := b.executor.PlaceMarketOrder(ctx, symbol, domain.Sell, held.Quantity)
	if err != nil {
		b.logger.Error(ctx, err, "SELL order failed; portfolio unchanged", fields)
		return false
	}
	price, qty := fillOf(resp, refPrice, held.Quantity)
	if price <= 0 {
		price = held.CurrentPrice
	}

	if err := b.portfolio.UpdatePrices(ctx, map[string]float64{symbol: price}); err != nil {
		b.logger.Error(ctx, err, "Exit price not persisted", fields)
	}

	var rec *domain.TradeRecord
	if qty < held.Quantity {
		rec, err = b.portfolio.ReducePosition(ctx, symbol, qty)
		if err != nil {
			b.logger.Error(ctx, err, "Partial exit not persisted", fields)
		}
		if rec != nil {
			b.chargeCommission(ctx, symbol, rec.Value)
		}
		b.logger.Warn(ctx, "Exit order partially filled; position reduced", mergeFields(fields,
			"requested", held.Quantity, "filled", qty, "price", price))
		return true
	}

	rec, err = b.portfolio.ClosePosition(ctx, symbol, action)
	if err != nil {
		b.logger.Error(ctx, err, "Position closed but not persisted", fields)
	}
	if rec != nil {
		b.chargeCommission(ctx, symbol, rec.Value)
	}

	b.logger.Info(ctx, "Position closed", mergeFields(fields,
		"quantity", held.Quantity, "price", price, "pnl", (price-held.EntryPrice)*held.Quantity))
	return true
}

func (b *Bot) chargeCommission(ctx context.Context, symbol string, tradedValue float64) {
	fee := tradedValue * b.cfg.CommissionRate
	if _, err := b.portfolio.ChargeCommission(ctx, symbol, fee); err != nil {
		b.logger.Error(ctx, err, "Commission not persisted", b.fields(symbol))
	}
}

// fillOf returns the executed price and quantity, falling back to the
// requested values when the venue does not report them.
func fillOf(resp *ports.OrderResponse, price, qty float64) (float64, float64) {
	if resp == nil {
		return price, qty
	}
	if resp.AvgPrice > 0 {
		price = resp.AvgPrice
	}
	if resp.ExecutedQty > 0 {
		qty = resp.ExecutedQty
	}
	return price, qty
}

func mergeFields(fields map[string]interface{}, kv ...interface{}) map[string]interface{} {
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			fields[key] = kv[i+1]
		}
	}
	return fields
}
