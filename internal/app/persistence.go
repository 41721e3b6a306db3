package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"algoTrader/internal/portfolio"
	"algoTrader/internal/ports"
)

// PersistenceObserver writes a portfolio through to the repository after
// every mutation: header row, affected position rows, the appended trade and
// a valuation snapshot.
type PersistenceObserver struct {
	repo        ports.PortfolioRepository
	portfolioID string
	name        string
	now         func() time.Time
}

var _ portfolio.Observer = (*PersistenceObserver)(nil)

// NewPersistenceObserver creates an observer for the portfolio stored under portfolioID.
func NewPersistenceObserver(repo ports.PortfolioRepository, portfolioID, name string) *PersistenceObserver {
	return &PersistenceObserver{repo: repo, portfolioID: portfolioID, name: name, now: time.Now}
}

// OnChange implements portfolio.Observer.
func (o *PersistenceObserver) OnChange(ctx context.Context, p *portfolio.Portfolio, ev portfolio.Event) error {
	rec := &ports.PortfolioRecord{ID: o.portfolioID, Name: o.name, InitialCapital: p.InitialCapital(), Cash: p.Cash()}
	if err := o.repo.UpdatePortfolio(ctx, rec); err != nil {
		return err
	}

	switch ev.Kind {
	case portfolio.EventTrade:
		if ev.Position != nil {
			if err := o.repo.UpsertPosition(ctx, o.portfolioID, ev.Position); err != nil {
				return err
			}
		} else if ev.Trade != nil && ev.Trade.Action.IsExit() {
			if err := o.repo.DeletePosition(ctx, o.portfolioID, ev.Symbol); err != nil {
				return err
			}
		}
		if ev.Trade != nil {
			trade := *ev.Trade
			if _, err := o.repo.RecordTrade(ctx, o.portfolioID, &trade); err != nil {
				return err
			}
		}
	case portfolio.EventPrices:
		for _, pos := range p.Positions() {
			if err := o.repo.UpsertPosition(ctx, o.portfolioID, pos); err != nil {
				return err
			}
		}
	}

	_, err := o.repo.SaveSnapshot(ctx, &ports.Snapshot{
		PortfolioID:    o.portfolioID,
		Timestamp:      o.now(),
		Cash:           p.Cash(),
		PositionsValue: p.PositionsValue(),
		TotalValue:     p.TotalValue(),
		TotalPNL:       p.TotalPNL(),
		TotalPNLPct:    p.TotalPNLPct(),
		NumPositions:   p.NumPositions(),
	})
	return err
}

// LoadPortfolio rebuilds the portfolio stored under id, creating the record
// with initialCapital when none exists. The returned portfolio writes through
// to repo. The trade log is not replayed; the restored ledger starts with the
// stored cash and open positions.
func LoadPortfolio(ctx context.Context, repo ports.PortfolioRepository, id, name string, initialCapital float64, opts ...portfolio.Option) (*portfolio.Portfolio, error) {
	opts = append(opts, portfolio.WithObserver(NewPersistenceObserver(repo, id, name)))

	rec, err := repo.GetPortfolio(ctx, id)
	if errors.Is(err, ports.ErrNotFound) {
		p, err := portfolio.New(initialCapital, opts...)
		if err != nil {
			return nil, err
		}
		rec := &ports.PortfolioRecord{ID: id, Name: name, InitialCapital: initialCapital, Cash: initialCapital}
		if err := repo.CreatePortfolio(ctx, rec); err != nil {
			return nil, fmt.Errorf("create portfolio %s: %w", id, err)
		}
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load portfolio %s: %w", id, err)
	}

	positions, err := repo.ListPositions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load positions of %s: %w", id, err)
	}
	return portfolio.Restore(rec.InitialCapital, rec.Cash, positions, opts...)
}

