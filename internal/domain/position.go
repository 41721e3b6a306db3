package domain

import "time"

// Position represents an open holding in a portfolio.
type Position struct {
	ID           int64     // Unique identifier (usually from DB, 0 in memory)
	Symbol       string    // Trading symbol (e.g., "ETHUSDT")
	Quantity     float64   // Always > 0 while the position is held
	EntryPrice   float64   // Volume-weighted average entry price
	CurrentPrice float64   // Last known market price
	Direction    Direction // LONG or SHORT
	EntryTime    time.Time // Timestamp when the position was first entered

	// Exit thresholds; nil means no threshold is set.
	StopLoss   *float64
	TakeProfit *float64
}

// Value is the marked-to-market value of the holding.
func (p *Position) Value() float64 {
	return p.Quantity * p.CurrentPrice
}

// CostBasis is what the holding cost at its average entry price.
func (p *Position) CostBasis() float64 {
	return p.Quantity * p.EntryPrice
}

// UnrealizedPNL returns the open profit or loss.
func (p *Position) UnrealizedPNL() float64 {
	if p.Direction == Short {
		return (p.EntryPrice - p.CurrentPrice) * p.Quantity
	}
	return (p.CurrentPrice - p.EntryPrice) * p.Quantity
}

// UnrealizedPNLPct returns UnrealizedPNL as a percentage of cost basis (0 when cost basis is 0).
func (p *Position) UnrealizedPNLPct() float64 {
	basis := p.CostBasis()
	if basis == 0 {
		return 0
	}
	return p.UnrealizedPNL() / basis * 100
}

// UpdatePrice sets the current market price.
func (p *Position) UpdatePrice(price float64) {
	p.CurrentPrice = price
}

// ShouldStopLoss reports whether the current price breached the stop threshold.
func (p *Position) ShouldStopLoss() bool {
	if p.StopLoss == nil {
		return false
	}
	if p.Direction == Short {
		return p.CurrentPrice >= *p.StopLoss
	}
	return p.CurrentPrice <= *p.StopLoss
}

// ShouldTakeProfit reports whether the current price reached the profit target.
func (p *Position) ShouldTakeProfit() bool {
	if p.TakeProfit == nil {
		return false
	}
	if p.Direction == Short {
		return p.CurrentPrice <= *p.TakeProfit
	}
	return p.CurrentPrice >= *p.TakeProfit
}

// Clone returns a deep copy, including the threshold pointers.
func (p *Position) Clone() *Position {
	c := *p
	if p.StopLoss != nil {
		v := *p.StopLoss
		c.StopLoss = &v
	}
	if p.TakeProfit != nil {
		v := *p.TakeProfit
		c.TakeProfit = &v
	}
	return &c
}

// Float64Ptr is a small helper for optional thresholds.
func Float64Ptr(v float64) *float64 {
	return &v
}
