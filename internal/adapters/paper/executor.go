// Package paper simulates order execution against live prices.
package paper

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"algoTrader/internal/adapters/binanceclient"
	"algoTrader/internal/domain"
	"algoTrader/internal/ports"
)

// Executor fills every market order immediately at the current ticker price.
type Executor struct {
	prices   ports.MarketDataSource
	logger   ports.Logger
	slippage float64
	nextID   atomic.Int64
	now      func() time.Time
}

var _ ports.OrderExecutor = (*Executor)(nil)

// Config holds configuration for the paper executor.
type Config struct {
	Prices   ports.MarketDataSource
	Logger   ports.Logger
	Slippage float64 // Fraction applied against the trader: buys fill higher, sells lower
}

// NewExecutor creates a paper executor.
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.Prices == nil {
		return nil, fmt.Errorf("price source is required for paper executor: %w", ports.ErrInvalidConfig)
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for paper executor: %w", ports.ErrInvalidConfig)
	}
	if cfg.Slippage < 0 || cfg.Slippage >= 1 {
		return nil, fmt.Errorf("slippage %v out of range [0, 1): %w", cfg.Slippage, ports.ErrInvalidConfig)
	}
	return &Executor{prices: cfg.Prices, logger: cfg.Logger, slippage: cfg.Slippage, now: time.Now}, nil
}

// PlaceMarketOrder fills quantity at the ticker price adjusted for slippage.
func (e *Executor) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64) (*ports.OrderResponse, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("paper order for %s: non-positive quantity %v: %w", symbol, quantity, ports.ErrOrderPlacementFailed)
	}
	price, err := e.prices.GetTickerPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("paper order for %s: %w: %w", symbol, ports.ErrOrderPlacementFailed, err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("paper order for %s: no usable price: %w", symbol, ports.ErrOrderPlacementFailed)
	}

	fill := decimal.NewFromFloat(price)
	adj := decimal.NewFromFloat(e.slippage)
	switch side {
	case domain.Buy:
		fill = fill.Mul(decimal.NewFromInt(1).Add(adj))
	case domain.Sell:
		fill = fill.Mul(decimal.NewFromInt(1).Sub(adj))
	default:
		return nil, fmt.Errorf("paper order for %s: unknown side %q: %w", symbol, side, ports.ErrOrderPlacementFailed)
	}

	resp := &ports.OrderResponse{
		OrderID:       e.nextID.Add(1),
		Symbol:        symbol,
		ClientOrderID: binanceclient.NewClientOrderID(),
		AvgPrice:      fill.InexactFloat64(),
		OrigQuantity:  quantity,
		ExecutedQty:   quantity,
		Status:        "FILLED",
		Side:          string(side),
		Timestamp:     e.now(),
	}
	e.logger.Info(ctx, "Paper order filled", map[string]interface{}{
		"symbol": symbol, "side": string(side), "quantity": quantity,
		"price": resp.AvgPrice, "orderID": resp.OrderID,
	})
	return resp, nil
}
