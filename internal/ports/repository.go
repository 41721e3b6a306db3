package ports

import (
	"context"
	"time"

	"algoTrader/internal/domain"
)

// PortfolioRecord is the stored header row of a portfolio.
type PortfolioRecord struct {
	ID             string // Portfolio identity (usually the bot id)
	Name           string
	InitialCapital float64
	Cash           float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Snapshot is a point-in-time valuation of a portfolio.
type Snapshot struct {
	ID             int64
	PortfolioID    string
	Timestamp      time.Time
	Cash           float64
	PositionsValue float64
	TotalValue     float64
	TotalPNL       float64
	TotalPNLPct    float64
	NumPositions   int
}

// SignalRecord is a stored strategy signal.
type SignalRecord struct {
	ID          int64
	PortfolioID string
	Timestamp   time.Time
	Signal      domain.Signal
}

// PortfolioRepository persists portfolio state keyed by portfolio identity.
type PortfolioRepository interface {
	// CreatePortfolio inserts a new portfolio header; ErrDuplicateEntry if it already exists.
	CreatePortfolio(ctx context.Context, rec *PortfolioRecord) error
	// GetPortfolio returns ErrNotFound if no portfolio has the id.
	GetPortfolio(ctx context.Context, id string) (*PortfolioRecord, error)
	UpdatePortfolio(ctx context.Context, rec *PortfolioRecord) error

	UpsertPosition(ctx context.Context, portfolioID string, pos *domain.Position) error
	DeletePosition(ctx context.Context, portfolioID, symbol string) error
	ListPositions(ctx context.Context, portfolioID string) ([]*domain.Position, error)

	RecordTrade(ctx context.Context, portfolioID string, trade *domain.TradeRecord) (int64, error)
	// ListTrades returns the trade log in insertion order.
	ListTrades(ctx context.Context, portfolioID string) ([]*domain.TradeRecord, error)

	SaveSnapshot(ctx context.Context, snap *Snapshot) (int64, error)
	ListSnapshots(ctx context.Context, portfolioID string, limit int) ([]*Snapshot, error)

	RecordSignal(ctx context.Context, rec *SignalRecord) (int64, error)
	ListSignals(ctx context.Context, portfolioID string, limit int) ([]*SignalRecord, error)

	Close() error
}
