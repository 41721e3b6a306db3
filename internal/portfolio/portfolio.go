// Package portfolio holds the cash and position ledger shared by the backtest
// engine and the live bots.
//
// A Portfolio is not safe for concurrent use. Each owner (a backtest run or a
// single bot goroutine) mutates its own instance.
package portfolio

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"algoTrader/internal/domain"
	"algoTrader/internal/ports"
)

// EventKind classifies a ledger mutation reported to an Observer.
type EventKind int

const (
	EventTrade  EventKind = iota // A trade record was appended
	EventPrices                  // Current prices were refreshed
)

// Event describes one completed mutation.
type Event struct {
	Kind   EventKind
	Symbol string              // Affected symbol for EventTrade
	Trade  *domain.TradeRecord // Appended record for EventTrade
	// Position is a copy of the holding after the mutation; nil when the
	// mutation closed it.
	Position *domain.Position
}

// Observer is notified synchronously after every mutating call.
type Observer interface {
	OnChange(ctx context.Context, p *Portfolio, ev Event) error
}

// Option configures a Portfolio.
type Option func(*Portfolio)

// WithClock sets the time source used to stamp trade records.
func WithClock(now func() time.Time) Option {
	return func(p *Portfolio) {
		if now != nil {
			p.now = now
		}
	}
}

// WithObserver attaches a post-mutation hook.
func WithObserver(obs Observer) Option {
	return func(p *Portfolio) {
		p.observer = obs
	}
}

// Portfolio is the ledger of cash plus open positions.
type Portfolio struct {
	initialCapital decimal.Decimal
	cash           decimal.Decimal
	positions      map[string]*domain.Position
	trades         []domain.TradeRecord
	now            func() time.Time
	observer       Observer
}

// New creates an empty portfolio funded with initialCapital.
func New(initialCapital float64, opts ...Option) (*Portfolio, error) {
	if initialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive, got %f: %w", initialCapital, ports.ErrInvalidConfig)
	}
	p := &Portfolio{
		initialCapital: decimal.NewFromFloat(initialCapital),
		cash:           decimal.NewFromFloat(initialCapital),
		positions:      make(map[string]*domain.Position),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Restore rebuilds a portfolio from stored state without recording trades.
func Restore(initialCapital, cash float64, positions []*domain.Position, opts ...Option) (*Portfolio, error) {
	p, err := New(initialCapital, opts...)
	if err != nil {
		return nil, err
	}
	if cash < 0 {
		return nil, fmt.Errorf("stored cash is negative (%f): %w", cash, ports.ErrInvalidConfig)
	}
	p.cash = decimal.NewFromFloat(cash)
	for _, pos := range positions {
		if pos == nil || pos.Quantity <= 0 {
			continue
		}
		p.positions[pos.Symbol] = pos.Clone()
	}
	return p, nil
}

// AddPosition opens pos or merges it into the existing holding for the same
// symbol at the volume-weighted average entry price. Cash is debited by
// quantity*entry price and a BUY record is appended. Commission is not
// charged here.
func (p *Portfolio) AddPosition(ctx context.Context, pos *domain.Position) (*domain.TradeRecord, error) {
	if pos == nil || pos.Quantity <= 0 || pos.EntryPrice <= 0 {
		return nil, fmt.Errorf("add position: quantity and entry price must be positive: %w", ports.ErrInvalidConfig)
	}

	cost := decimal.NewFromFloat(pos.Quantity).Mul(decimal.NewFromFloat(pos.EntryPrice))

	held, ok := p.positions[pos.Symbol]
	if ok {
		oldQty := decimal.NewFromFloat(held.Quantity)
		newQty := oldQty.Add(decimal.NewFromFloat(pos.Quantity))
		weighted := oldQty.Mul(decimal.NewFromFloat(held.EntryPrice)).Add(cost)
		held.EntryPrice = weighted.Div(newQty).InexactFloat64()
		held.Quantity = newQty.InexactFloat64()
		if pos.CurrentPrice > 0 {
			held.CurrentPrice = pos.CurrentPrice
		}
		if pos.StopLoss != nil {
			held.StopLoss = domain.Float64Ptr(*pos.StopLoss)
		}
		if pos.TakeProfit != nil {
			held.TakeProfit = domain.Float64Ptr(*pos.TakeProfit)
		}
	} else {
		held = pos.Clone()
		if held.CurrentPrice <= 0 {
			held.CurrentPrice = held.EntryPrice
		}
		if held.Direction == "" {
			held.Direction = domain.Long
		}
		if held.EntryTime.IsZero() {
			held.EntryTime = p.now()
		}
		p.positions[pos.Symbol] = held
	}

	p.cash = p.cash.Sub(cost)
	rec := p.record(pos.Symbol, domain.ActionBuy, pos.Quantity, pos.EntryPrice, cost)
	return rec, p.notify(ctx, Event{Kind: EventTrade, Symbol: pos.Symbol, Trade: rec, Position: held.Clone()})
}

// RemovePosition fully closes the holding at its current price (SELL).
// It is a no-op returning a nil record when the symbol is not held.
func (p *Portfolio) RemovePosition(ctx context.Context, symbol string) (*domain.TradeRecord, error) {
	return p.ClosePosition(ctx, symbol, domain.ActionSell)
}

// ReducePosition sells quantity units at the current price. A quantity at or
// above the held amount fully closes the position (SELL); anything less
// appends SELL_PARTIAL.
func (p *Portfolio) ReducePosition(ctx context.Context, symbol string, quantity float64) (*domain.TradeRecord, error) {
	held, ok := p.positions[symbol]
	if !ok {
		return nil, nil
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("reduce position %s: quantity must be positive: %w", symbol, ports.ErrInvalidConfig)
	}
	if quantity >= held.Quantity {
		return p.ClosePosition(ctx, symbol, domain.ActionSell)
	}

	qty := decimal.NewFromFloat(quantity)
	proceeds := qty.Mul(decimal.NewFromFloat(held.CurrentPrice))
	held.Quantity = decimal.NewFromFloat(held.Quantity).Sub(qty).InexactFloat64()
	p.cash = p.cash.Add(proceeds)

	rec := p.record(symbol, domain.ActionSellPartial, quantity, held.CurrentPrice, proceeds)
	return rec, p.notify(ctx, Event{Kind: EventTrade, Symbol: symbol, Trade: rec, Position: held.Clone()})
}

// ClosePosition fully liquidates the holding at its current price, tagging the
// record with action (SELL, STOP_LOSS, TAKE_PROFIT or CLOSE). The entry is
// deleted. It is a no-op returning a nil record when the symbol is not held.
func (p *Portfolio) ClosePosition(ctx context.Context, symbol string, action domain.TradeAction) (*domain.TradeRecord, error) {
	held, ok := p.positions[symbol]
	if !ok {
		return nil, nil
	}
	if !action.IsExit() || action == domain.ActionSellPartial {
		return nil, fmt.Errorf("close position %s: %s is not a full exit action: %w", symbol, action, ports.ErrInvalidConfig)
	}

	proceeds := decimal.NewFromFloat(held.Quantity).Mul(decimal.NewFromFloat(held.CurrentPrice))
	p.cash = p.cash.Add(proceeds)
	delete(p.positions, symbol)

	rec := p.record(symbol, action, held.Quantity, held.CurrentPrice, proceeds)
	return rec, p.notify(ctx, Event{Kind: EventTrade, Symbol: symbol, Trade: rec})
}

// ChargeCommission debits a fee and appends a COMMISSION record. Amounts that
// are not positive are ignored.
func (p *Portfolio) ChargeCommission(ctx context.Context, symbol string, amount float64) (*domain.TradeRecord, error) {
	if amount <= 0 {
		return nil, nil
	}
	fee := decimal.NewFromFloat(amount)
	p.cash = p.cash.Sub(fee)
	rec := p.record(symbol, domain.ActionCommission, 0, 0, fee)
	var pos *domain.Position
	if held, ok := p.positions[symbol]; ok {
		pos = held.Clone()
	}
	return rec, p.notify(ctx, Event{Kind: EventTrade, Symbol: symbol, Trade: rec, Position: pos})
}

// UpdatePrices sets the current price on held positions found in prices.
// Symbols that are not held are ignored. Cash is unaffected.
func (p *Portfolio) UpdatePrices(ctx context.Context, prices map[string]float64) error {
	changed := false
	for symbol, price := range prices {
		if held, ok := p.positions[symbol]; ok {
			held.UpdatePrice(price)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return p.notify(ctx, Event{Kind: EventPrices})
}

func (p *Portfolio) record(symbol string, action domain.TradeAction, qty, price float64, value decimal.Decimal) *domain.TradeRecord {
	rec := domain.TradeRecord{
		Timestamp: p.now(),
		Symbol:    symbol,
		Action:    action,
		Quantity:  qty,
		Price:     price,
		Value:     value.InexactFloat64(),
	}
	p.trades = append(p.trades, rec)
	return &rec
}

func (p *Portfolio) notify(ctx context.Context, ev Event) error {
	if p.observer == nil {
		return nil
	}
	if err := p.observer.OnChange(ctx, p, ev); err != nil {
		return fmt.Errorf("portfolio observer failed: %w: %w", ports.ErrPersistFailed, err)
	}
	return nil
}

// InitialCapital returns the starting cash.
func (p *Portfolio) InitialCapital() float64 {
	return p.initialCapital.InexactFloat64()
}

// Cash returns the uninvested balance.
func (p *Portfolio) Cash() float64 {
	return p.cash.InexactFloat64()
}

// PositionsValue is the sum of quantity*current price over open positions.
func (p *Portfolio) PositionsValue() float64 {
	total := decimal.Zero
	for _, pos := range p.positions {
		total = total.Add(decimal.NewFromFloat(pos.Quantity).Mul(decimal.NewFromFloat(pos.CurrentPrice)))
	}
	return total.InexactFloat64()
}

// TotalValue is cash plus positions value.
func (p *Portfolio) TotalValue() float64 {
	return p.cash.Add(decimal.NewFromFloat(p.PositionsValue())).InexactFloat64()
}

// TotalPNL is TotalValue minus the initial capital.
func (p *Portfolio) TotalPNL() float64 {
	return p.TotalValue() - p.InitialCapital()
}

// TotalPNLPct is TotalPNL as a percentage of the initial capital.
func (p *Portfolio) TotalPNLPct() float64 {
	return p.TotalPNL() / p.InitialCapital() * 100
}

// NumPositions returns the number of open positions.
func (p *Portfolio) NumPositions() int {
	return len(p.positions)
}

// HasPosition reports whether symbol is held.
func (p *Portfolio) HasPosition(symbol string) bool {
	_, ok := p.positions[symbol]
	return ok
}

// GetPosition returns a copy of the holding for symbol, or nil.
func (p *Portfolio) GetPosition(symbol string) *domain.Position {
	if pos, ok := p.positions[symbol]; ok {
		return pos.Clone()
	}
	return nil
}

// Positions returns copies of all open positions sorted by symbol.
func (p *Portfolio) Positions() []*domain.Position {
	out := make([]*domain.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// TradeHistory returns a copy of the trade log.
func (p *Portfolio) TradeHistory() []domain.TradeRecord {
	out := make([]domain.TradeRecord, len(p.trades))
	copy(out, p.trades)
	return out
}
