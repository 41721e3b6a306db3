package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"algoTrader/internal/domain"
	"algoTrader/internal/ports"
)

type recordingObserver struct {
	events []Event
	err    error
}

func (o *recordingObserver) OnChange(_ context.Context, _ *Portfolio, ev Event) error {
	o.events = append(o.events, ev)
	return o.err
}

func newTestPortfolio(t *testing.T, opts ...Option) *Portfolio {
	t.Helper()
	p, err := New(10000, opts...)
	require.NoError(t, err)
	return p
}

func pos(symbol string, qty, price float64) *domain.Position {
	return &domain.Position{Symbol: symbol, Quantity: qty, EntryPrice: price, CurrentPrice: price, Direction: domain.Long}
}

// cashFlowBalance checks cash == initial capital + signed flows of the trade log.
func cashFlowBalance(t *testing.T, p *Portfolio) {
	t.Helper()
	flows := 0.0
	for _, tr := range p.TradeHistory() {
		flows += tr.CashFlow()
	}
	assert.InDelta(t, p.InitialCapital()+flows, p.Cash(), 1e-6)

	sum := 0.0
	for _, ps := range p.Positions() {
		sum += ps.Quantity * ps.CurrentPrice
	}
	assert.InDelta(t, p.Cash()+sum, p.TotalValue(), 1e-6)
}

func TestNew_RejectsNonPositiveCapital(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, ports.ErrInvalidConfig)
}

func TestAddPosition_DebitsCashAndRecordsBuy(t *testing.T) {
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	p := newTestPortfolio(t, WithClock(func() time.Time { return ts }))
	ctx := context.Background()

	rec, err := p.AddPosition(ctx, pos("BTCUSDT", 10, 100))
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.InDelta(t, 9000.0, p.Cash(), 1e-9)
	assert.InDelta(t, 10000.0, p.TotalValue(), 1e-9)
	assert.Equal(t, domain.ActionBuy, rec.Action)
	assert.Equal(t, ts, rec.Timestamp)
	assert.InDelta(t, 1000.0, rec.Value, 1e-9)
	assert.True(t, p.HasPosition("BTCUSDT"))
	assert.Equal(t, ts, p.GetPosition("BTCUSDT").EntryTime)
	cashFlowBalance(t, p)
}

func TestAddPosition_MergesByWeightedAverage(t *testing.T) {
	p := newTestPortfolio(t)
	ctx := context.Background()

	_, err := p.AddPosition(ctx, pos("ETHUSDT", 10, 100))
	require.NoError(t, err)
	_, err = p.AddPosition(ctx, pos("ETHUSDT", 10, 200))
	require.NoError(t, err)

	held := p.GetPosition("ETHUSDT")
	require.NotNil(t, held)
	assert.InDelta(t, 20.0, held.Quantity, 1e-9)
	assert.InDelta(t, 150.0, held.EntryPrice, 1e-9)
	assert.Equal(t, 1, p.NumPositions())
	assert.InDelta(t, 7000.0, p.Cash(), 1e-9)
	assert.Len(t, p.TradeHistory(), 2)
}

func TestAddThenRemove_RestoresCash(t *testing.T) {
	p := newTestPortfolio(t)
	ctx := context.Background()
	before := p.Cash()

	_, err := p.AddPosition(ctx, pos("BTCUSDT", 0.37, 123.45))
	require.NoError(t, err)
	rec, err := p.RemovePosition(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, domain.ActionSell, rec.Action)
	assert.Equal(t, before, p.Cash())
	assert.False(t, p.HasPosition("BTCUSDT"))
	cashFlowBalance(t, p)
}

func TestReducePosition(t *testing.T) {
	tests := []struct {
		name       string
		sell       float64
		wantAction domain.TradeAction
		wantHeld   bool
		wantQty    float64
	}{
		{"partial", 4, domain.ActionSellPartial, true, 6},
		{"exact", 10, domain.ActionSell, false, 0},
		{"more than held", 15, domain.ActionSell, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPortfolio(t)
			ctx := context.Background()
			_, err := p.AddPosition(ctx, pos("BTCUSDT", 10, 100))
			require.NoError(t, err)
			require.NoError(t, p.UpdatePrices(ctx, map[string]float64{"BTCUSDT": 110}))

			rec, err := p.ReducePosition(ctx, "BTCUSDT", tt.sell)
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, tt.wantAction, rec.Action)
			assert.Equal(t, tt.wantHeld, p.HasPosition("BTCUSDT"))
			if tt.wantHeld {
				held := p.GetPosition("BTCUSDT")
				assert.InDelta(t, tt.wantQty, held.Quantity, 1e-9)
				assert.Greater(t, held.Quantity, 0.0)
			}
			cashFlowBalance(t, p)
		})
	}
}

func TestRemovePosition_MissingSymbolIsNoop(t *testing.T) {
	p := newTestPortfolio(t)
	rec, err := p.RemovePosition(context.Background(), "XRPUSDT")
	assert.NoError(t, err)
	assert.Nil(t, rec)
	assert.Empty(t, p.TradeHistory())
	assert.Equal(t, 10000.0, p.Cash())
}

func TestClosePosition_TagsAction(t *testing.T) {
	p := newTestPortfolio(t)
	ctx := context.Background()
	_, err := p.AddPosition(ctx, pos("BTCUSDT", 1, 100))
	require.NoError(t, err)

	_, err = p.ClosePosition(ctx, "BTCUSDT", domain.ActionBuy)
	assert.ErrorIs(t, err, ports.ErrInvalidConfig)
	assert.True(t, p.HasPosition("BTCUSDT"))

	rec, err := p.ClosePosition(ctx, "BTCUSDT", domain.ActionStopLoss)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionStopLoss, rec.Action)
	assert.False(t, p.HasPosition("BTCUSDT"))
}

func TestUpdatePrices_OnlyHeldSymbols(t *testing.T) {
	p := newTestPortfolio(t)
	ctx := context.Background()
	_, err := p.AddPosition(ctx, pos("BTCUSDT", 10, 100))
	require.NoError(t, err)

	require.NoError(t, p.UpdatePrices(ctx, map[string]float64{"BTCUSDT": 120, "ETHUSDT": 5}))

	assert.InDelta(t, 9000.0, p.Cash(), 1e-9)
	assert.InDelta(t, 1200.0, p.PositionsValue(), 1e-9)
	assert.InDelta(t, 200.0, p.TotalPNL(), 1e-9)
	assert.InDelta(t, 2.0, p.TotalPNLPct(), 1e-9)
	assert.False(t, p.HasPosition("ETHUSDT"))
}

func TestChargeCommission(t *testing.T) {
	p := newTestPortfolio(t)
	ctx := context.Background()

	rec, err := p.ChargeCommission(ctx, "BTCUSDT", 0)
	assert.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = p.ChargeCommission(ctx, "BTCUSDT", 1.5)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionCommission, rec.Action)
	assert.InDelta(t, 9998.5, p.Cash(), 1e-9)
	cashFlowBalance(t, p)
}

func TestGetSummary_IsStable(t *testing.T) {
	p := newTestPortfolio(t)
	ctx := context.Background()
	_, err := p.AddPosition(ctx, pos("BTCUSDT", 2, 100))
	require.NoError(t, err)
	require.NoError(t, p.UpdatePrices(ctx, map[string]float64{"BTCUSDT": 110}))

	first := p.GetSummary()
	second := p.GetSummary()
	assert.Equal(t, first, second)

	btc := first.Positions["BTCUSDT"]
	assert.InDelta(t, 220.0, btc.Value, 1e-9)
	assert.InDelta(t, 20.0, btc.PNL, 1e-9)
	assert.InDelta(t, 10.0, btc.PNLPct, 1e-9)
	assert.Equal(t, 1, first.NumPositions)
}

func TestLedgerInvariant_RandomSequence(t *testing.T) {
	p := newTestPortfolio(t)
	ctx := context.Background()
	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}

	for i := 0; i < 60; i++ {
		symbol := symbols[i%len(symbols)]
		price := 50 + float64((i*37)%23)
		require.NoError(t, p.UpdatePrices(ctx, map[string]float64{symbol: price}))
		switch i % 4 {
		case 0, 1:
			_, err := p.AddPosition(ctx, pos(symbol, 0.5+float64(i%3), price))
			require.NoError(t, err)
		case 2:
			_, err := p.ReducePosition(ctx, symbol, 0.7)
			require.NoError(t, err)
		case 3:
			_, err := p.RemovePosition(ctx, symbol)
			require.NoError(t, err)
		}
		for _, held := range p.Positions() {
			assert.Greater(t, held.Quantity, 0.0)
		}
		cashFlowBalance(t, p)
	}
}

func TestObserver_NotifiedAfterMutation(t *testing.T) {
	obs := &recordingObserver{}
	p := newTestPortfolio(t, WithObserver(obs))
	ctx := context.Background()

	_, err := p.AddPosition(ctx, pos("BTCUSDT", 1, 100))
	require.NoError(t, err)
	require.NoError(t, p.UpdatePrices(ctx, map[string]float64{"BTCUSDT": 101}))
	require.NoError(t, p.UpdatePrices(ctx, map[string]float64{"ETHUSDT": 1})) // nothing held, no event
	_, err = p.RemovePosition(ctx, "BTCUSDT")
	require.NoError(t, err)

	require.Len(t, obs.events, 3)
	assert.Equal(t, EventTrade, obs.events[0].Kind)
	assert.NotNil(t, obs.events[0].Position)
	assert.Equal(t, EventPrices, obs.events[1].Kind)
	assert.Equal(t, domain.ActionSell, obs.events[2].Trade.Action)
	assert.Nil(t, obs.events[2].Position)
}

func TestObserver_FailureKeepsLedgerMutation(t *testing.T) {
	obs := &recordingObserver{err: errors.New("disk full")}
	p := newTestPortfolio(t, WithObserver(obs))

	_, err := p.AddPosition(context.Background(), pos("BTCUSDT", 1, 100))
	assert.ErrorIs(t, err, ports.ErrPersistFailed)
	assert.True(t, p.HasPosition("BTCUSDT"))
	assert.InDelta(t, 9900.0, p.Cash(), 1e-9)
}

func TestRestore(t *testing.T) {
	p, err := Restore(10000, 9000, []*domain.Position{pos("BTCUSDT", 10, 100), nil})
	require.NoError(t, err)
	assert.Equal(t, 9000.0, p.Cash())
	assert.Equal(t, 1, p.NumPositions())
	assert.Empty(t, p.TradeHistory())
	assert.InDelta(t, 10000.0, p.TotalValue(), 1e-9)

	_, err = Restore(10000, -1, nil)
	assert.ErrorIs(t, err, ports.ErrInvalidConfig)
}
