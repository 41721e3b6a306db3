package ports

import (
	"context"
	"time"

	"algoTrader/internal/domain"
)

// OrderResponse represents the essential details returned after placing an order.
type OrderResponse struct {
	OrderID       int64     // Exchange's order ID
	Symbol        string    // Symbol for the order
	ClientOrderID string    // User-defined order ID
	AvgPrice      float64   // Average filled price (0 if not reported)
	OrigQuantity  float64   // Original quantity requested
	ExecutedQty   float64   // Quantity filled
	Status        string    // Order status (e.g., NEW, FILLED)
	Side          string    // Order side (BUY, SELL)
	Timestamp     time.Time // Time the order response was generated
}

// MarketDataSource provides historical bars and live prices.
type MarketDataSource interface {
	// GetKlines retrieves the most recent bars for the symbol, oldest first.
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error)
	// GetTickerPrice retrieves the last traded price for the symbol.
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)
}

// OrderExecutor places orders on behalf of a bot.
type OrderExecutor interface {
	// PlaceMarketOrder places a market order for quantity units.
	// An error means nothing was filled and the caller must not touch its ledger.
	PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64) (*OrderResponse, error)
}
