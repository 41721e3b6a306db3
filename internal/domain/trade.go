package domain

import "time"

// TradeRecord is one entry in an append-only trade log.
type TradeRecord struct {
	ID        int64       // Unique identifier (usually from DB)
	Timestamp time.Time   // When the ledger mutation happened (bar time in backtests)
	Symbol    string      // Trading symbol
	Action    TradeAction // BUY, SELL, SELL_PARTIAL, STOP_LOSS, TAKE_PROFIT, CLOSE, COMMISSION
	Quantity  float64     // Units traded (0 for COMMISSION)
	Price     float64     // Fill price
	Value     float64     // Cash amount of the entry
}

// CashFlow returns the signed effect of the record on cash: negative for money
// leaving (buys, fees), positive for sale proceeds.
func (t TradeRecord) CashFlow() float64 {
	switch {
	case t.Action == ActionBuy, t.Action == ActionCommission:
		return -t.Value
	case t.Action.IsExit():
		return t.Value
	default:
		return 0
	}
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Date           time.Time
	Equity         float64
	Cash           float64
	PositionsValue float64
}
