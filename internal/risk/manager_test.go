package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"algoTrader/internal/domain"
	"algoTrader/internal/portfolio"
	"algoTrader/internal/ports"
)

type fakeState struct {
	cash       float64
	total      float64
	pnlPct     float64
	open       int
	heldSymbol string
}

func (f fakeState) Cash() float64              { return f.cash }
func (f fakeState) TotalValue() float64        { return f.total }
func (f fakeState) TotalPNLPct() float64       { return f.pnlPct }
func (f fakeState) NumPositions() int          { return f.open }
func (f fakeState) HasPosition(s string) bool  { return s == f.heldSymbol }

func newManager(t *testing.T, mutate func(*RiskConfig)) *RiskManager {
	t.Helper()
	cfg := DefaultRiskConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewRiskManager(cfg, nil)
	require.NoError(t, err)
	return m
}

func buy(price float64) domain.Signal {
	return domain.Signal{Type: domain.SignalBuy, Symbol: "BTCUSDT", Price: price, Confidence: 1}
}

func TestNewRiskManager_ValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RiskConfig)
	}{
		{"zero position size", func(c *RiskConfig) { c.MaxPositionSize = 0 }},
		{"position size above one", func(c *RiskConfig) { c.MaxPositionSize = 1.5 }},
		{"negative risk", func(c *RiskConfig) { c.MaxPortfolioRisk = -0.1 }},
		{"stop loss of 100%", func(c *RiskConfig) { c.StopLossPercent = 1 }},
		{"no positions allowed", func(c *RiskConfig) { c.MaxOpenPositions = 0 }},
		{"zero drawdown ceiling", func(c *RiskConfig) { c.MaxDrawdownPct = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRiskConfig()
			tt.mutate(&cfg)
			_, err := NewRiskManager(cfg, nil)
			assert.ErrorIs(t, err, ports.ErrInvalidConfig)
		})
	}
}

func TestCalculatePositionSize_FixedFractionScenario(t *testing.T) {
	m := newManager(t, func(c *RiskConfig) { c.MaxPositionSize = 0.2 })
	p, err := portfolio.New(10000)
	require.NoError(t, err)

	qty := m.CalculatePositionSize(context.Background(), buy(100), p)

	assert.LessOrEqual(t, qty*100, 2000.0+1e-9)
	assert.LessOrEqual(t, qty, 20.0+1e-9)
	assert.InDelta(t, 20.0, qty, 1e-9)
}

func TestCalculatePositionSize(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RiskConfig)
		state  fakeState
		signal domain.Signal
		want   float64
	}{
		{
			name:   "risk based smaller than fixed",
			mutate: func(c *RiskConfig) { c.MaxPositionSize = 0.5; c.MaxPortfolioRisk = 0.01; c.StopLossPercent = 0.1 },
			state:  fakeState{cash: 10000, total: 10000},
			signal: buy(100),
			// risk 100 / stop distance 10 = 10 units = 1000 value
			want: 10,
		},
		{
			name:   "capped by cash",
			mutate: func(c *RiskConfig) { c.MaxPositionSize = 1 },
			state:  fakeState{cash: 100, total: 10000},
			signal: buy(10),
			want:   9.5,
		},
		{
			name:   "zero stop distance sizes to zero",
			mutate: func(c *RiskConfig) { c.StopLossPercent = 0 },
			state:  fakeState{cash: 10000, total: 10000},
			signal: buy(100),
			want:   0,
		},
		{
			name:   "negative cash floors at zero",
			state:  fakeState{cash: -50, total: 10000},
			signal: buy(100),
			want:   0,
		},
		{
			name:   "sell sizes to zero",
			state:  fakeState{cash: 10000, total: 10000},
			signal: domain.Signal{Type: domain.SignalSell, Symbol: "BTCUSDT", Price: 100},
			want:   0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(t, tt.mutate)
			got := m.CalculatePositionSize(context.Background(), tt.signal, tt.state)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCalculatePositionSize_NeverExceedsCashBuffer(t *testing.T) {
	m := newManager(t, func(c *RiskConfig) { c.MaxPositionSize = 1; c.MaxPortfolioRisk = 1; c.StopLossPercent = 0.01 })
	for _, cash := range []float64{1, 37.5, 999, 10000, 123456.78} {
		for _, price := range []float64{0.01, 3, 100, 65000} {
			qty := m.CalculatePositionSize(context.Background(), buy(price), fakeState{cash: cash, total: cash * 2})
			assert.LessOrEqual(t, qty*price, cash*0.95*(1+1e-12))
		}
	}
}

func TestCanTrade(t *testing.T) {
	m := newManager(t, func(c *RiskConfig) { c.MaxOpenPositions = 2 })
	ctx := context.Background()

	assert.True(t, m.CanTrade(ctx, buy(100), fakeState{cash: 10000, total: 10000, open: 1}))
	assert.False(t, m.CanTrade(ctx, buy(100), fakeState{cash: 10000, total: 10000, open: 2}), "max open positions")

	sell := domain.Signal{Type: domain.SignalSell, Symbol: "BTCUSDT", Price: 100}
	assert.False(t, m.CanTrade(ctx, sell, fakeState{cash: 10000, total: 10000}))
	assert.True(t, m.CanTrade(ctx, sell, fakeState{cash: 10000, total: 10000, heldSymbol: "BTCUSDT"}))

	hold := domain.NewHoldSignal("BTCUSDT", 100)
	assert.False(t, m.CanTrade(ctx, hold, fakeState{cash: 10000, total: 10000}))
}

func TestCanTrade_RejectsWhenCostExceedsCash(t *testing.T) {
	m := newManager(t, nil)
	// Negative cash: the sized quantity is 0 so cost is 0, still more than cash.
	assert.False(t, m.CanTrade(context.Background(), buy(100), fakeState{cash: -1, total: 10000}))
}

func TestStopLossAndTakeProfit(t *testing.T) {
	m := newManager(t, func(c *RiskConfig) { c.StopLossPercent = 0.05; c.TakeProfitPercent = 0.1 })

	stop, ok := m.CalculateStopLoss(buy(100))
	assert.True(t, ok)
	assert.InDelta(t, 95.0, stop, 1e-9)

	take, ok := m.CalculateTakeProfit(buy(100))
	assert.True(t, ok)
	assert.InDelta(t, 110.0, take, 1e-9)

	_, ok = m.CalculateStopLoss(domain.Signal{Type: domain.SignalSell, Price: 100})
	assert.False(t, ok)
	_, ok = m.CalculateTakeProfit(domain.NewHoldSignal("BTCUSDT", 100))
	assert.False(t, ok)

	position := &domain.Position{Symbol: "BTCUSDT", Quantity: 1, EntryPrice: 100, Direction: domain.Long, StopLoss: &stop}
	position.UpdatePrice(94)
	assert.True(t, position.ShouldStopLoss())
	position.UpdatePrice(96)
	assert.False(t, position.ShouldStopLoss())
}

func TestCheckDrawdown(t *testing.T) {
	m := newManager(t, func(c *RiskConfig) { c.MaxDrawdownPct = 20 })
	ctx := context.Background()

	assert.True(t, m.CheckDrawdown(ctx, fakeState{pnlPct: -19.9}))
	assert.True(t, m.CheckDrawdown(ctx, fakeState{pnlPct: 20}))
	assert.False(t, m.CheckDrawdown(ctx, fakeState{pnlPct: -20.1}))
	assert.False(t, m.CheckDrawdown(ctx, fakeState{pnlPct: 25}))
}
