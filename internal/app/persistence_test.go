package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"algoTrader/internal/domain"
	"algoTrader/internal/ports"
)

func TestLoadPortfolio_CreatesMissingRecord(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()

	p, err := LoadPortfolio(ctx, repo, "bot-1", "Trend", 5000)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, p.Cash())

	rec, err := repo.GetPortfolio(ctx, "bot-1")
	require.NoError(t, err)
	assert.Equal(t, "Trend", rec.Name)
	assert.Equal(t, 5000.0, rec.InitialCapital)
}

func TestPersistenceObserver_WritesThrough(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	p, err := LoadPortfolio(ctx, repo, "bot-1", "Trend", 10000)
	require.NoError(t, err)

	_, err = p.AddPosition(ctx, &domain.Position{Symbol: "BTCUSDT", Quantity: 10, EntryPrice: 100, CurrentPrice: 100, Direction: domain.Long})
	require.NoError(t, err)

	rec, err := repo.GetPortfolio(ctx, "bot-1")
	require.NoError(t, err)
	assert.Equal(t, 9000.0, rec.Cash)
	positions, err := repo.ListPositions(ctx, "bot-1")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 10.0, positions[0].Quantity)

	require.NoError(t, p.UpdatePrices(ctx, map[string]float64{"BTCUSDT": 120}))
	positions, err = repo.ListPositions(ctx, "bot-1")
	require.NoError(t, err)
	assert.Equal(t, 120.0, positions[0].CurrentPrice)

	_, err = p.ClosePosition(ctx, "BTCUSDT", domain.ActionTakeProfit)
	require.NoError(t, err)
	positions, err = repo.ListPositions(ctx, "bot-1")
	require.NoError(t, err)
	assert.Empty(t, positions)

	trades, err := repo.ListTrades(ctx, "bot-1")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, domain.ActionBuy, trades[0].Action)
	assert.Equal(t, domain.ActionTakeProfit, trades[1].Action)

	snaps, err := repo.ListSnapshots(ctx, "bot-1", 0)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	last := snaps[len(snaps)-1]
	assert.InDelta(t, 10200.0, last.TotalValue, 1e-9)
	assert.Equal(t, 0, last.NumPositions)
}

func TestPersistenceObserver_FailureSurfacesAsPersistError(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	p, err := LoadPortfolio(ctx, repo, "bot-1", "Trend", 10000)
	require.NoError(t, err)

	repo.failWrites = errBoom
	_, err = p.AddPosition(ctx, &domain.Position{Symbol: "BTCUSDT", Quantity: 1, EntryPrice: 100, CurrentPrice: 100, Direction: domain.Long})
	assert.ErrorIs(t, err, ports.ErrPersistFailed)
	assert.True(t, p.HasPosition("BTCUSDT"), "ledger mutation is kept")
}

func TestLoadPortfolio_RestoresStoredState(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	first, err := LoadPortfolio(ctx, repo, "bot-1", "Trend", 10000)
	require.NoError(t, err)
	_, err = first.AddPosition(ctx, &domain.Position{Symbol: "ETHUSDT", Quantity: 2, EntryPrice: 500, CurrentPrice: 500, Direction: domain.Long})
	require.NoError(t, err)
	_, err = first.ChargeCommission(ctx, "ETHUSDT", 1)
	require.NoError(t, err)

	// The capital argument is ignored once a record exists.
	restored, err := LoadPortfolio(ctx, repo, "bot-1", "Trend", 1)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, restored.InitialCapital())
	assert.InDelta(t, 8999.0, restored.Cash(), 1e-9)
	held := restored.GetPosition("ETHUSDT")
	require.NotNil(t, held)
	assert.Equal(t, 2.0, held.Quantity)
	assert.Empty(t, restored.TradeHistory())

	// The restored ledger keeps writing through.
	_, err = restored.RemovePosition(ctx, "ETHUSDT")
	require.NoError(t, err)
	positions, err := repo.ListPositions(ctx, "bot-1")
	require.NoError(t, err)
	assert.Empty(t, positions)
}
