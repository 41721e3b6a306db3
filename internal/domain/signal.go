package domain

import "fmt"

// Signal is a strategy's recommendation for one symbol at one point in time.
// Only Quantity is filled in after creation (by the risk manager).
type Signal struct {
	Type       SignalType
	Symbol     string
	Price      float64
	Quantity   float64 // 0 until sized
	Confidence float64 // 0..1
	Strategy   string  // Name of the producer; empty for aggregated signals
	Metadata   map[string]interface{}
}

// NewHoldSignal returns a HOLD signal for the symbol at price.
func NewHoldSignal(symbol string, price float64) Signal {
	return Signal{Type: SignalHold, Symbol: symbol, Price: price}
}

// IsActionable reports whether the signal asks for a BUY or a SELL.
func (s Signal) IsActionable() bool {
	return s.Type == SignalBuy || s.Type == SignalSell
}

func (s Signal) String() string {
	return fmt.Sprintf("%s %s @ $%.2f", s.Type, s.Symbol, s.Price)
}
