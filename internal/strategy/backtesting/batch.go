package backtesting

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"algoTrader/internal/domain"
)

// Job is one independent backtest.
type Job struct {
	Symbol         string
	Klines         []*domain.Kline
	CommissionRate float64
}

// Runner is what RunBatch needs from an engine.
type Runner interface {
	RunBacktest(ctx context.Context, symbol string, klines []*domain.Kline, commissionRate float64) (*BacktestResult, error)
}

// RunBatch runs independent backtests concurrently, at most limit at a time
// (limit <= 0 means unbounded). Each job gets its own portfolio; results are
// returned in job order. The first failure cancels jobs not yet started.
func RunBatch(ctx context.Context, runner Runner, jobs []Job, limit int) ([]*BacktestResult, error) {
	results := make([]*BacktestResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := runner.RunBacktest(gctx, job.Symbol, job.Klines, job.CommissionRate)
			if err != nil {
				return fmt.Errorf("backtest %s: %w", job.Symbol, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
