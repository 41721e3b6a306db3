package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"algoTrader/config"
	"algoTrader/internal/adapters/binanceclient"
	"algoTrader/internal/adapters/logger"
	"algoTrader/internal/domain"
	"algoTrader/internal/ports"
	"algoTrader/internal/risk"
	"algoTrader/internal/strategy/analytics"
	"algoTrader/internal/strategy/backtesting"
	"algoTrader/internal/strategy/optimization"
	"algoTrader/internal/strategy/strategies"
	"algoTrader/internal/utils"
)

var (
	symbolsFlag    = flag.String("symbols", "BTCUSDT", "Comma-separated symbols to backtest")
	csvFlag        = flag.String("csv", "", "Comma-separated bar CSV files, one per symbol; empty fetches from the exchange")
	intervalFlag   = flag.String("interval", "1h", "Bar interval when fetching from the exchange")
	daysFlag       = flag.Int("days", 90, "Days of history when fetching from the exchange")
	strategiesFlag = flag.String("strategies", "moving_average", "Comma-separated strategies, each name[:key=value;key=value]")
	noRiskFlag     = flag.Bool("no-risk", false, "Run without the risk manager (95% of cash per entry)")
	warmupFlag     = flag.Int("warmup", backtesting.DefaultWarmupBars, "Bars skipped before the first decision")
	concurrency    = flag.Int("concurrency", 4, "Backtests run at the same time")
	optimizeFlag   = flag.Bool("optimize", false, "Grid-search moving_average parameters on the first symbol instead")
	outDir         = flag.String("out", "", "Directory for trade and equity CSVs; empty disables")
)

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// 2. Load bars
	symbols, err := parseSymbols(*symbolsFlag)
	if err != nil {
		log.Fatalf("Invalid symbols: %v", err)
	}
	bars, err := loadBars(ctx, cfg, appLogger, symbols)
	if err != nil {
		log.Fatalf("Failed to load bars: %v", err)
	}

	var riskCfg *risk.RiskConfig
	if !*noRiskFlag {
		riskCfg = &cfg.Risk
	}
	engineCfg := backtesting.Config{InitialCapital: cfg.InitialCapital, WarmupBars: *warmupFlag}

	if *optimizeFlag {
		if err := optimize(ctx, appLogger, engineCfg, riskCfg, cfg.CommissionRate, symbols[0], bars[0]); err != nil {
			log.Fatalf("Optimization failed: %v", err)
		}
		return
	}

	// 3. Build engine
	strats, err := parseStrategies(*strategiesFlag, appLogger)
	if err != nil {
		log.Fatalf("Invalid strategies: %v", err)
	}
	var riskManager *risk.RiskManager
	if riskCfg != nil {
		if riskManager, err = risk.NewRiskManager(*riskCfg, appLogger); err != nil {
			log.Fatalf("Invalid risk configuration: %v", err)
		}
	}
	engine, err := backtesting.NewEngine(engineCfg, strats, riskManager, appLogger)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	// 4. Run one backtest per symbol
	jobs := make([]backtesting.Job, len(symbols))
	for i, symbol := range symbols {
		jobs[i] = backtesting.Job{Symbol: symbol, Klines: bars[i], CommissionRate: cfg.CommissionRate}
	}
	results, err := backtesting.RunBatch(ctx, engine, jobs, *concurrency)
	if err != nil {
		log.Fatalf("Backtest failed: %v", err)
	}

	for _, result := range results {
		fmt.Print(backtesting.FormatSummary(result))
		printRoundTrips(analytics.AnalyzeRoundTrips(result.Ledger))
		if *outDir != "" {
			writeOutputs(ctx, appLogger, result)
		}
	}
}

func loadBars(ctx context.Context, cfg *config.Config, appLogger ports.Logger, symbols []string) ([][]*domain.Kline, error) {
	bars := make([][]*domain.Kline, len(symbols))
	if files := splitList(*csvFlag); len(files) > 0 {
		if len(files) != len(symbols) {
			return nil, fmt.Errorf("%d csv files for %d symbols", len(files), len(symbols))
		}
		for i, file := range files {
			klines, err := utils.ReadKlinesFromCSV(file)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			bars[i] = klines
		}
		return bars, nil
	}

	client, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		return nil, err
	}
	end := time.Now()
	start := end.AddDate(0, 0, -*daysFlag)
	for i, symbol := range symbols {
		klines, err := client.GetKlinesRange(ctx, symbol, *intervalFlag, start, end)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", symbol, err)
		}
		appLogger.Info(ctx, "Fetched klines", map[string]interface{}{"symbol": symbol, "count": len(klines)})
		bars[i] = klines
	}
	return bars, nil
}

// parseStrategies builds strategies from "name[:key=value;key=value]" items.
func parseStrategies(list string, appLogger ports.Logger) ([]ports.Strategy, error) {
	var out []ports.Strategy
	for _, item := range splitList(list) {
		name, rawParams, _ := strings.Cut(item, ":")
		params := strategies.Params{}
		for _, kv := range strings.Split(rawParams, ";") {
			if kv = strings.TrimSpace(kv); kv == "" {
				continue
			}
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				return nil, fmt.Errorf("strategy %s: parameter %q is not key=value", name, kv)
			}
			params[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
		s, err := strategies.New(strings.TrimSpace(name), params, appLogger)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func optimize(ctx context.Context, appLogger ports.Logger, engineCfg backtesting.Config, riskCfg *risk.RiskConfig, commission float64, symbol string, klines []*domain.Kline) error {
	opt, err := optimization.NewOptimizer(optimization.OptimizerConfig{
		Strategy: strategies.NameMovingAverage,
		ParameterRanges: []optimization.ParameterRange{
			{Name: "fast_period", Min: 5, Max: 20, Step: 5, IsInt: true},
			{Name: "slow_period", Min: 30, Max: 60, Step: 10, IsInt: true},
			{Name: "ma_type", Choices: []string{"sma", "ema"}},
		},
		Engine:         engineCfg,
		Risk:           riskCfg,
		Symbol:         symbol,
		CommissionRate: commission,
		Concurrency:    *concurrency,
	}, appLogger)
	if err != nil {
		return err
	}
	results, err := opt.Optimize(ctx, klines)
	if err != nil {
		return err
	}

	fmt.Printf("\nTop parameter sets for %s (%d evaluated)\n", symbol, len(results))
	for i, r := range results {
		if i == 10 {
			break
		}
		fmt.Printf("%2d. %v  score=%.4f  return=%.2f%%  sharpe=%.2f  maxDD=%.2f%%  trades=%d\n",
			i+1, r.Parameters, r.Score, r.Metrics.TotalReturnPct, r.Metrics.SharpeRatio, r.Metrics.MaxDrawdown, r.Metrics.TotalTrades)
	}
	return nil
}

func printRoundTrips(pm *analytics.PerformanceMetrics) {
	fmt.Printf("Round trips:        %d (wins %d, losses %d)\n", pm.TotalTrades, pm.WinningTrades, pm.LosingTrades)
	fmt.Printf("Profit factor:      %.2f\n", pm.ProfitFactor)
	fmt.Printf("Expectancy:         %.2f\n", pm.Expectancy)
	fmt.Printf("Avg holding time:   %s\n", pm.AverageHoldingTime.Round(time.Minute))
	for _, reason := range pm.ExitActions() {
		fmt.Printf("  exits by %-12s %d\n", reason+":", pm.ExitReasons[reason])
	}
}

func writeOutputs(ctx context.Context, appLogger ports.Logger, result *backtesting.BacktestResult) {
	tradesFile := filepath.Join(*outDir, fmt.Sprintf("%s_trades.csv", result.Symbol))
	if err := utils.WriteTradesToCSV(result.Ledger, tradesFile); err != nil {
		appLogger.Error(ctx, err, "Error writing trades CSV", map[string]interface{}{"filename": tradesFile})
	}
	equityFile := filepath.Join(*outDir, fmt.Sprintf("%s_equity.csv", result.Symbol))
	if err := utils.WriteEquityCurveToCSV(result.EquityCurve, equityFile); err != nil {
		appLogger.Error(ctx, err, "Error writing equity CSV", map[string]interface{}{"filename": equityFile})
	}
	appLogger.Info(ctx, "Results saved", map[string]interface{}{"trades": tradesFile, "equity": equityFile})
}

// parseSymbols splits a comma-separated symbol list and rejects an empty one.
func parseSymbols(s string) ([]string, error) {
	symbols := splitList(s)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("at least one symbol is required: %w", ports.ErrInvalidConfig)
	}
	return symbols, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
