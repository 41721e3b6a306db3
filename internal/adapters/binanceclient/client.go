package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"algoTrader/internal/domain"
	"algoTrader/internal/ports"
)

const (
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// maxKlinesPerRequest is the exchange's page size for kline queries.
	maxKlinesPerRequest = 1500
	// defaultQuantityPrecision is the number of decimals sent for order quantities.
	defaultQuantityPrecision = 3
)

// Client is the exchange adapter: a bar source, a live price source and an
// order sink backed by the go-binance futures client.
type Client struct {
	futuresClient     *futures.Client
	logger            ports.Logger
	quantityPrecision int32
}

var (
	_ ports.MarketDataSource = (*Client)(nil)
	_ ports.OrderExecutor    = (*Client)(nil)
)

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey            string
	SecretKey         string
	UseTestnet        bool
	Logger            ports.Logger
	QuantityPrecision int32 // Decimals kept when formatting order quantities; 0 means 3
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client: %w", ports.ErrInvalidConfig)
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
	} else {
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{
		"baseURL": client.BaseURL, "testnet": cfg.UseTestnet,
	})

	precision := cfg.QuantityPrecision
	if precision <= 0 {
		precision = defaultQuantityPrecision
	}
	return &Client{futuresClient: client, logger: cfg.Logger, quantityPrecision: precision}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of recvWindow
			mappedErr = ports.ErrTimeout
		case -1022, -2014, -2015: // Bad signature or API key
			mappedErr = ports.ErrAuthenticationFailed
		case -2010, -2022, -4003: // Order rejected
			mappedErr = ports.ErrOrderPlacementFailed
		case -2019, -3005, -3041: // Margin or balance insufficient
			mappedErr = ports.ErrInsufficientFunds
		case -1001, -1007: // Internal error or backend timeout
			mappedErr = ports.ErrExchangeUnavailable
		default:
			mappedErr = ports.ErrUnknown
		}
		c.logger.Error(ctx, err, operation+" failed with API error", fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	var mappedErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		mappedErr = ports.ErrTimeout
	case errors.Is(err, context.Canceled):
		// Cancellation is a shutdown path, not a failure worth an error log.
		return fmt.Errorf("%s canceled: %w", operation, err)
	case strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"),
		strings.Contains(err.Error(), "no such host"):
		mappedErr = ports.ErrExchangeUnavailable
	default:
		mappedErr = ports.ErrUnknown
	}
	c.logger.Error(ctx, err, operation+" failed", fields)
	return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetTickerPrice retrieves the last traded price for a given symbol.
func (c *Client) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	op := "GetTickerPrice"
	tickers, err := c.futuresClient.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	if len(tickers) == 0 {
		return 0, c.handleError(ctx, fmt.Errorf("no ticker data returned for symbol %s: %w", symbol, ports.ErrNotFound), op)
	}

	price, err := strconv.ParseFloat(tickers[0].LastPrice, 64)
	if err != nil {
		return 0, c.handleError(ctx, fmt.Errorf("could not parse price '%s': %w", tickers[0].LastPrice, err), op)
	}
	return price, nil
}

// GetKlines retrieves the most recent limit bars for the symbol, oldest first.
func (c *Client) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error) {
	op := "GetKlines"
	binanceKlines, err := c.futuresClient.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	return translateKlines(binanceKlines, symbol, interval)
}

// GetKlinesRange pages through all bars between start and end.
func (c *Client) GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Kline, error) {
	op := "GetKlinesRange"
	var all []*domain.Kline
	from := start

	for {
		page, err := c.futuresClient.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(from.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(maxKlinesPerRequest).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(page) == 0 {
			break
		}
		klines, err := translateKlines(page, symbol, interval)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		all = append(all, klines...)

		from = time.UnixMilli(page[len(page)-1].CloseTime + 1)
		if from.After(end) || len(page) < maxKlinesPerRequest {
			break
		}
	}

	c.logger.Debug(ctx, op+" finished", map[string]interface{}{"symbol": symbol, "interval": interval, "bars": len(all)})
	return all, nil
}

// PlaceMarketOrder places a market order tagged with a fresh client order id.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64) (*ports.OrderResponse, error) {
	op := "PlaceMarketOrder"
	qty, err := FormatQuantity(quantity, c.quantityPrecision)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	clientOrderID := NewClientOrderID()

	order, err := c.futuresClient.NewCreateOrderService().
		Symbol(symbol).
		Side(futures.SideType(side)).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		NewClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	resp := translateOrderResponse(order)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol": symbol, "side": string(side), "quantity": qty,
		"orderID": resp.OrderID, "clientOrderID": clientOrderID, "avgPrice": resp.AvgPrice,
	})
	return resp, nil
}

// NewClientOrderID returns an exchange-safe unique client order id.
func NewClientOrderID() string {
	return "at-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// FormatQuantity truncates quantity to precision decimals without float noise.
func FormatQuantity(quantity float64, precision int32) (string, error) {
	d := decimal.NewFromFloat(quantity).Truncate(precision)
	if !d.IsPositive() {
		return "", fmt.Errorf("quantity %v rounds to zero at %d decimals: %w", quantity, precision, ports.ErrOrderPlacementFailed)
	}
	return d.String(), nil
}

// --- Translation Helpers ---

func translateOrderResponse(order *futures.CreateOrderResponse) *ports.OrderResponse {
	if order == nil {
		return nil
	}
	avgPrice, _ := strconv.ParseFloat(order.AvgPrice, 64)
	origQty, _ := strconv.ParseFloat(order.OrigQuantity, 64)
	execQty, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)

	return &ports.OrderResponse{
		OrderID:       order.OrderID,
		Symbol:        order.Symbol,
		ClientOrderID: order.ClientOrderID,
		AvgPrice:      avgPrice,
		OrigQuantity:  origQty,
		ExecutedQty:   execQty,
		Status:        string(order.Status),
		Side:          string(order.Side),
		Timestamp:     time.UnixMilli(order.UpdateTime),
	}
}

func translateKlines(bks []*futures.Kline, symbol, interval string) ([]*domain.Kline, error) {
	out := make([]*domain.Kline, 0, len(bks))
	for _, bk := range bks {
		k, err := translateBinanceKline(bk, symbol, interval)
		if err != nil {
			return nil, fmt.Errorf("failed to translate kline: %w", err)
		}
		out = append(out, k)
	}
	return out, nil
}

func translateBinanceKline(bk *futures.Kline, symbol, interval string) (*domain.Kline, error) {
	if bk == nil {
		return nil, errors.New("received nil historical kline")
	}
	values := make([]float64, 5)
	for i, raw := range []string{bk.Open, bk.High, bk.Low, bk.Close, bk.Volume} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing kline field %d '%s': %w", i, raw, err)
		}
		values[i] = v
	}

	return &domain.Kline{
		OpenTime:  time.UnixMilli(bk.OpenTime).UTC(),
		CloseTime: time.UnixMilli(bk.CloseTime).UTC(),
		Symbol:    symbol,
		Interval:  interval,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}
