package optimization

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"algoTrader/internal/adapters/logger"
	"algoTrader/internal/domain"
	"algoTrader/internal/ports"
	"algoTrader/internal/risk"
	"algoTrader/internal/strategy/analytics"
	"algoTrader/internal/strategy/backtesting"
	"algoTrader/internal/strategy/strategies"
)

// ParameterRange defines a range for a parameter to optimize. A range with
// Choices enumerates those strings and ignores the numeric bounds.
type ParameterRange struct {
	Name    string
	Min     float64
	Max     float64
	Step    float64
	IsInt   bool
	Choices []string
}

// OptimizationResult holds the results of one parameter combination
type OptimizationResult struct {
	Parameters strategies.Params
	Metrics    backtesting.Metrics
	RoundTrips *analytics.PerformanceMetrics
	Score      float64
}

// ScoreFunction ranks a finished backtest; higher is better.
type ScoreFunction func(backtesting.Metrics, *analytics.PerformanceMetrics) float64

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	Strategy        string            // Registered strategy name
	FixedParams     strategies.Params // Applied to every combination before the ranges
	ParameterRanges []ParameterRange
	Engine          backtesting.Config
	Risk            *risk.RiskConfig // nil runs without a risk manager
	Symbol          string
	CommissionRate  float64
	Concurrency     int // <= 0 means one backtest at a time
	ScoreFunction   ScoreFunction
}

// Optimizer grid-searches strategy parameters by backtesting every combination.
type Optimizer struct {
	config      OptimizerConfig
	riskManager *risk.RiskManager
	logger      ports.Logger
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig, log ports.Logger) (*Optimizer, error) {
	if config.Strategy == "" {
		return nil, fmt.Errorf("strategy name is required: %w", ports.ErrInvalidConfig)
	}
	for _, r := range config.ParameterRanges {
		if r.Name == "" {
			return nil, fmt.Errorf("parameter range without a name: %w", ports.ErrInvalidConfig)
		}
		if len(r.Choices) == 0 && (r.Step <= 0 || r.Max < r.Min) {
			return nil, fmt.Errorf("parameter %s: invalid range [%v, %v] step %v: %w", r.Name, r.Min, r.Max, r.Step, ports.ErrInvalidConfig)
		}
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}

	log = logger.OrNop(log)
	o := &Optimizer{config: config, logger: log}
	if config.Risk != nil {
		rm, err := risk.NewRiskManager(*config.Risk, log)
		if err != nil {
			return nil, err
		}
		o.riskManager = rm
	}
	return o, nil
}

// Optimize backtests every parameter combination over klines and returns the
// results sorted by descending score. Combinations the strategy rejects (for
// example a fast period not below the slow one) are skipped.
func (o *Optimizer) Optimize(ctx context.Context, klines []*domain.Kline) ([]OptimizationResult, error) {
	combinations := o.generateParameterCombinations()
	slots := make([]*OptimizationResult, len(combinations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Concurrency)
	for i, params := range combinations {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := o.evaluate(gctx, params, klines)
			if err != nil {
				return err
			}
			slots[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]OptimizationResult, 0, len(slots))
	for _, res := range slots {
		if res != nil {
			results = append(results, *res)
		}
	}
	sortResultsByScore(results)

	o.logger.Info(ctx, "Optimization finished", map[string]interface{}{
		"strategy":     o.config.Strategy,
		"symbol":       o.config.Symbol,
		"combinations": len(combinations),
		"evaluated":    len(results),
	})
	return results, nil
}

func (o *Optimizer) evaluate(ctx context.Context, params strategies.Params, klines []*domain.Kline) (*OptimizationResult, error) {
	s, err := strategies.New(o.config.Strategy, params, o.logger)
	if err != nil {
		o.logger.Debug(ctx, "Skipping parameter combination", map[string]interface{}{
			"params": params, "error": err.Error(),
		})
		return nil, nil
	}

	engine, err := backtesting.NewEngine(o.config.Engine, []ports.Strategy{s}, o.riskManager, logger.Nop())
	if err != nil {
		return nil, err
	}
	result, err := engine.RunBacktest(ctx, o.config.Symbol, klines, o.config.CommissionRate)
	if err != nil {
		return nil, err
	}

	trips := analytics.AnalyzeRoundTrips(result.Trades)
	return &OptimizationResult{
		Parameters: params,
		Metrics:    result.Metrics,
		RoundTrips: trips,
		Score:      o.config.ScoreFunction(result.Metrics, trips),
	}, nil
}

// generateParameterCombinations generates all possible parameter combinations
func (o *Optimizer) generateParameterCombinations() []strategies.Params {
	var combinations []strategies.Params
	current := make(strategies.Params)

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			combination := make(strategies.Params, len(o.config.FixedParams)+len(current))
			for k, v := range o.config.FixedParams {
				combination[k] = v
			}
			for k, v := range current {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		param := o.config.ParameterRanges[paramIndex]
		if len(param.Choices) > 0 {
			for _, choice := range param.Choices {
				current[param.Name] = choice
				generate(paramIndex + 1)
			}
			return
		}
		steps := int(math.Floor((param.Max-param.Min)/param.Step + 1e-9))
		for i := 0; i <= steps; i++ {
			value := param.Min + float64(i)*param.Step
			if param.IsInt {
				current[param.Name] = int(math.Round(value))
			} else {
				current[param.Name] = value
			}
			generate(paramIndex + 1)
		}
	}

	generate(0)
	return combinations
}

// sortResultsByScore sorts by descending score; ties keep grid order.
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// DefaultScoreFunction ranks by Sharpe ratio, breaking near-ties on total return.
func DefaultScoreFunction(m backtesting.Metrics, _ *analytics.PerformanceMetrics) float64 {
	return m.SharpeRatio + m.TotalReturnPct*1e-6
}

// ReturnScore ranks by total return percentage.
func ReturnScore(m backtesting.Metrics, _ *analytics.PerformanceMetrics) float64 {
	return m.TotalReturnPct
}

// ProfitFactorScore ranks by FIFO profit factor, favouring more round trips on ties.
func ProfitFactorScore(_ backtesting.Metrics, trips *analytics.PerformanceMetrics) float64 {
	if trips == nil {
		return 0
	}
	return trips.ProfitFactor + float64(trips.TotalTrades)*1e-6
}
