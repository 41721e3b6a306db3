package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// SignalType is the directional recommendation carried by a Signal.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// Direction of an open position. Only LONG is opened by the engine and the bots;
// SHORT exists so stored or externally loaded positions evaluate correctly.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// TradeAction tags an entry in a trade log.
type TradeAction string

const (
	ActionBuy         TradeAction = "BUY"
	ActionSell        TradeAction = "SELL"
	ActionSellPartial TradeAction = "SELL_PARTIAL"
	ActionStopLoss    TradeAction = "STOP_LOSS"
	ActionTakeProfit  TradeAction = "TAKE_PROFIT"
	ActionClose       TradeAction = "CLOSE"
	ActionCommission  TradeAction = "COMMISSION" // Fee debited by the caller on top of a fill
)

// IsExit reports whether the action reduces or closes a holding.
func (a TradeAction) IsExit() bool {
	switch a {
	case ActionSell, ActionSellPartial, ActionStopLoss, ActionTakeProfit, ActionClose:
		return true
	default:
		return false
	}
}
