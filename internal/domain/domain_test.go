package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPosition_StopLossAndTakeProfit(t *testing.T) {
	tests := []struct {
		name       string
		direction  Direction
		stopLoss   *float64
		takeProfit *float64
		current    float64
		wantStop   bool
		wantTake   bool
	}{
		{"long below stop", Long, Float64Ptr(95), Float64Ptr(110), 94, true, false},
		{"long above stop", Long, Float64Ptr(95), Float64Ptr(110), 96, false, false},
		{"long at stop", Long, Float64Ptr(95), nil, 95, true, false},
		{"long at target", Long, Float64Ptr(95), Float64Ptr(110), 110, false, true},
		{"short above stop", Short, Float64Ptr(105), Float64Ptr(90), 106, true, false},
		{"short below target", Short, Float64Ptr(105), Float64Ptr(90), 89, false, true},
		{"no thresholds", Long, nil, nil, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Position{
				Symbol:       "BTCUSDT",
				Quantity:     1,
				EntryPrice:   100,
				CurrentPrice: tt.current,
				Direction:    tt.direction,
				StopLoss:     tt.stopLoss,
				TakeProfit:   tt.takeProfit,
			}
			assert.Equal(t, tt.wantStop, p.ShouldStopLoss())
			assert.Equal(t, tt.wantTake, p.ShouldTakeProfit())
		})
	}
}

func TestPosition_UnrealizedPNL(t *testing.T) {
	long := &Position{Quantity: 2, EntryPrice: 100, CurrentPrice: 110, Direction: Long}
	assert.InDelta(t, 20.0, long.UnrealizedPNL(), 1e-9)
	assert.InDelta(t, 10.0, long.UnrealizedPNLPct(), 1e-9)
	assert.InDelta(t, 220.0, long.Value(), 1e-9)
	assert.InDelta(t, 200.0, long.CostBasis(), 1e-9)

	short := &Position{Quantity: 2, EntryPrice: 100, CurrentPrice: 110, Direction: Short}
	assert.InDelta(t, -20.0, short.UnrealizedPNL(), 1e-9)

	zero := &Position{Quantity: 1, EntryPrice: 0, CurrentPrice: 10, Direction: Long}
	assert.Equal(t, 0.0, zero.UnrealizedPNLPct())
}

func TestPosition_CloneIsDeep(t *testing.T) {
	p := &Position{Symbol: "ETHUSDT", Quantity: 1, StopLoss: Float64Ptr(90)}
	c := p.Clone()
	*c.StopLoss = 80
	c.Quantity = 5
	assert.Equal(t, 90.0, *p.StopLoss)
	assert.Equal(t, 1.0, p.Quantity)
	assert.Nil(t, c.TakeProfit)
}

func TestSignal_String(t *testing.T) {
	s := Signal{Type: SignalBuy, Symbol: "BTCUSDT", Price: 100}
	assert.Equal(t, "BUY BTCUSDT @ $100.00", s.String())
	assert.True(t, s.IsActionable())
	assert.False(t, NewHoldSignal("BTCUSDT", 1).IsActionable())
}

func TestTradeRecord_CashFlow(t *testing.T) {
	assert.Equal(t, -100.0, TradeRecord{Action: ActionBuy, Value: 100}.CashFlow())
	assert.Equal(t, -1.0, TradeRecord{Action: ActionCommission, Value: 1}.CashFlow())
	assert.Equal(t, 50.0, TradeRecord{Action: ActionSellPartial, Value: 50}.CashFlow())
	assert.Equal(t, 70.0, TradeRecord{Action: ActionStopLoss, Value: 70}.CashFlow())
}

func TestCloses(t *testing.T) {
	now := time.Now()
	klines := []*Kline{
		{OpenTime: now, High: 2, Low: 0.5, Close: 1},
		{OpenTime: now.Add(time.Minute), High: 3, Low: 1.5, Close: 2},
	}
	assert.Equal(t, []float64{1, 2}, Closes(klines))
	h, l, c := HighsLowsCloses(klines)
	assert.Equal(t, []float64{2, 3}, h)
	assert.Equal(t, []float64{0.5, 1.5}, l)
	assert.Equal(t, []float64{1, 2}, c)
}
