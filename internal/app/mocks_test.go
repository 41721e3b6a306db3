package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"algoTrader/internal/domain"
	"algoTrader/internal/ports"
)

// mockLogger records error and warning messages.
type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, msg)
}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) errorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

// mockMarket serves fixed bars and prices per symbol.
type mockMarket struct {
	klines   map[string][]*domain.Kline
	prices   map[string]float64
	klineErr error
}

func (m *mockMarket) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
	if m.klineErr != nil {
		return nil, m.klineErr
	}
	return m.klines[symbol], nil
}

func (m *mockMarket) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	p, ok := m.prices[symbol]
	if !ok {
		return 0, ports.ErrNotFound
	}
	return p, nil
}

type placedOrder struct {
	symbol   string
	side     domain.OrderSide
	quantity float64
}

// mockExecutor records orders and fills them at fillPrice (0 lets the bot fall back to its own price).
// A fillRatio in (0, 1) reports a partial fill.
type mockExecutor struct {
	orders    []placedOrder
	fillPrice float64
	fillRatio float64
	err       error
}

func (m *mockExecutor) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64) (*ports.OrderResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.orders = append(m.orders, placedOrder{symbol: symbol, side: side, quantity: quantity})
	executed, status := quantity, "FILLED"
	if m.fillRatio > 0 && m.fillRatio < 1 {
		executed, status = quantity*m.fillRatio, "EXPIRED"
	}
	return &ports.OrderResponse{
		OrderID: int64(len(m.orders)), Symbol: symbol, AvgPrice: m.fillPrice,
		ExecutedQty: executed, Status: status, Side: string(side), Timestamp: time.Now(),
	}, nil
}

// memRepo is an in-memory ports.PortfolioRepository.
type memRepo struct {
	mu         sync.Mutex
	portfolios map[string]ports.PortfolioRecord
	positions  map[string]map[string]*domain.Position
	trades     map[string][]*domain.TradeRecord
	snapshots  map[string][]*ports.Snapshot
	signals    map[string][]*ports.SignalRecord
	failWrites error
}

func newMemRepo() *memRepo {
	return &memRepo{
		portfolios: make(map[string]ports.PortfolioRecord),
		positions:  make(map[string]map[string]*domain.Position),
		trades:     make(map[string][]*domain.TradeRecord),
		snapshots:  make(map[string][]*ports.Snapshot),
		signals:    make(map[string][]*ports.SignalRecord),
	}
}

func (r *memRepo) CreatePortfolio(ctx context.Context, rec *ports.PortfolioRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.portfolios[rec.ID]; ok {
		return ports.ErrDuplicateEntry
	}
	r.portfolios[rec.ID] = *rec
	return nil
}

func (r *memRepo) GetPortfolio(ctx context.Context, id string) (*ports.PortfolioRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.portfolios[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &rec, nil
}

func (r *memRepo) UpdatePortfolio(ctx context.Context, rec *ports.PortfolioRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites != nil {
		return r.failWrites
	}
	if _, ok := r.portfolios[rec.ID]; !ok {
		return ports.ErrNotFound
	}
	r.portfolios[rec.ID] = *rec
	return nil
}

func (r *memRepo) UpsertPosition(ctx context.Context, portfolioID string, pos *domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.positions[portfolioID] == nil {
		r.positions[portfolioID] = make(map[string]*domain.Position)
	}
	r.positions[portfolioID][pos.Symbol] = pos.Clone()
	return nil
}

func (r *memRepo) DeletePosition(ctx context.Context, portfolioID, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.positions[portfolioID], symbol)
	return nil
}

func (r *memRepo) ListPositions(ctx context.Context, portfolioID string) ([]*domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Position, 0)
	for _, p := range r.positions[portfolioID] {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (r *memRepo) RecordTrade(ctx context.Context, portfolioID string, trade *domain.TradeRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := *trade
	r.trades[portfolioID] = append(r.trades[portfolioID], &t)
	return int64(len(r.trades[portfolioID])), nil
}

func (r *memRepo) ListTrades(ctx context.Context, portfolioID string) ([]*domain.TradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.TradeRecord(nil), r.trades[portfolioID]...), nil
}

func (r *memRepo) SaveSnapshot(ctx context.Context, snap *ports.Snapshot) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := *snap
	r.snapshots[snap.PortfolioID] = append(r.snapshots[snap.PortfolioID], &s)
	return int64(len(r.snapshots[snap.PortfolioID])), nil
}

func (r *memRepo) ListSnapshots(ctx context.Context, portfolioID string, limit int) ([]*ports.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*ports.Snapshot(nil), r.snapshots[portfolioID]...), nil
}

func (r *memRepo) RecordSignal(ctx context.Context, rec *ports.SignalRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites != nil {
		return 0, r.failWrites
	}
	s := *rec
	r.signals[rec.PortfolioID] = append(r.signals[rec.PortfolioID], &s)
	return int64(len(r.signals[rec.PortfolioID])), nil
}

func (r *memRepo) ListSignals(ctx context.Context, portfolioID string, limit int) ([]*ports.SignalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*ports.SignalRecord(nil), r.signals[portfolioID]...), nil
}

func (r *memRepo) Close() error { return nil }

var errBoom = errors.New("boom")

// fixedStrategy returns the same signal type for every symbol; symbols in
// panicOn make it panic.
type fixedStrategy struct {
	kind    domain.SignalType
	panicOn map[string]bool
}

func (s *fixedStrategy) Name() string            { return "fixed" }
func (s *fixedStrategy) RequiredDataPoints() int { return 1 }
func (s *fixedStrategy) ValidateParams() error   { return nil }
func (s *fixedStrategy) GenerateSignal(symbol string, klines []*domain.Kline) domain.Signal {
	if s.panicOn[symbol] {
		panic("indicator exploded")
	}
	price := klines[len(klines)-1].Close
	if s.kind == domain.SignalHold {
		return domain.NewHoldSignal(symbol, price)
	}
	return domain.Signal{Type: s.kind, Symbol: symbol, Price: price, Confidence: 1, Strategy: s.Name()}
}

func flatKlines(symbol string, n int, price float64) []*domain.Kline {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Kline, n)
	for i := range out {
		out[i] = &domain.Kline{OpenTime: start.Add(time.Duration(i) * time.Hour), Symbol: symbol, Open: price, High: price, Low: price, Close: price}
	}
	return out
}
