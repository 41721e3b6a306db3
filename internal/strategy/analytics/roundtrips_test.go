package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"algoTrader/internal/domain"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func rec(hours int, symbol string, action domain.TradeAction, qty, price float64) domain.TradeRecord {
	return domain.TradeRecord{
		Timestamp: t0.Add(time.Duration(hours) * time.Hour),
		Symbol:    symbol,
		Action:    action,
		Quantity:  qty,
		Price:     price,
		Value:     qty * price,
	}
}

func TestAnalyzeRoundTrips_Empty(t *testing.T) {
	m := AnalyzeRoundTrips(nil)
	assert.Zero(t, m.TotalTrades)
	assert.Zero(t, m.WinRate)
	assert.Empty(t, m.OpenQuantity)
}

func TestAnalyzeRoundTrips_InterleavedSymbols(t *testing.T) {
	// Positional pairing would match the BTC entry with the ETH entry here.
	trades := []domain.TradeRecord{
		rec(0, "BTCUSDT", domain.ActionBuy, 1, 100),
		rec(1, "ETHUSDT", domain.ActionBuy, 10, 20),
		rec(2, "ETHUSDT", domain.ActionSell, 10, 18),
		rec(3, "BTCUSDT", domain.ActionTakeProfit, 1, 120),
	}
	m := AnalyzeRoundTrips(trades)

	require.Len(t, m.RoundTrips, 2)
	assert.Equal(t, "ETHUSDT", m.RoundTrips[0].Symbol)
	assert.InDelta(t, -20.0, m.RoundTrips[0].PNL, 1e-9)
	assert.Equal(t, "BTCUSDT", m.RoundTrips[1].Symbol)
	assert.InDelta(t, 20.0, m.RoundTrips[1].PNL, 1e-9)
	assert.Equal(t, 3*time.Hour, m.RoundTrips[1].Holding())

	assert.Equal(t, 1, m.WinningTrades)
	assert.Equal(t, 1, m.LosingTrades)
	assert.InDelta(t, 50.0, m.WinRate, 1e-9)
	assert.InDelta(t, 1.0, m.ProfitFactor, 1e-9)
	assert.InDelta(t, 0.0, m.NetProfit, 1e-9)
	assert.Equal(t, 1, m.ExitReasons[domain.ActionTakeProfit])
	assert.Equal(t, 1, m.ExitReasons[domain.ActionSell])
	assert.Equal(t, []domain.TradeAction{domain.ActionSell, domain.ActionTakeProfit}, m.ExitActions())
}

func TestAnalyzeRoundTrips_FIFOWithPartialExits(t *testing.T) {
	trades := []domain.TradeRecord{
		rec(0, "BTCUSDT", domain.ActionBuy, 2, 100),
		rec(1, "BTCUSDT", domain.ActionBuy, 2, 110),
		rec(2, "BTCUSDT", domain.ActionSellPartial, 3, 120),
		rec(3, "BTCUSDT", domain.ActionCommission, 0, 0),
	}
	trades[3].Value = 1.5

	m := AnalyzeRoundTrips(trades)
	require.Len(t, m.RoundTrips, 2)
	assert.InDelta(t, 2.0, m.RoundTrips[0].Quantity, 1e-9)
	assert.InDelta(t, 40.0, m.RoundTrips[0].PNL, 1e-9)
	assert.InDelta(t, 1.0, m.RoundTrips[1].Quantity, 1e-9)
	assert.InDelta(t, 10.0, m.RoundTrips[1].PNL, 1e-9)
	assert.InDelta(t, 1.0, m.OpenQuantity["BTCUSDT"], 1e-9)
	assert.InDelta(t, 1.5, m.TotalCommission, 1e-9)
	assert.Equal(t, 2, m.MaxConsecutiveWins)
	assert.Zero(t, m.ProfitFactor)
}

func TestAnalyzeRoundTrips_UnmatchedExitAndOrdering(t *testing.T) {
	trades := []domain.TradeRecord{
		rec(5, "SOLUSDT", domain.ActionStopLoss, 1, 9),
		rec(0, "SOLUSDT", domain.ActionBuy, 1, 10),
		rec(6, "SOLUSDT", domain.ActionClose, 1, 9),
	}
	m := AnalyzeRoundTrips(trades)

	require.Len(t, m.RoundTrips, 1)
	assert.Equal(t, domain.ActionStopLoss, m.RoundTrips[0].ExitAction)
	assert.Equal(t, 1, m.UnmatchedExits)
	assert.Equal(t, 1, m.MaxConsecutiveLosses)
	assert.InDelta(t, -1.0, m.AverageLoss, 1e-9)
	assert.Empty(t, m.OpenQuantity)
}
