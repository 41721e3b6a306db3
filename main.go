package main

import (
	"context"
	"errors"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"

	"algoTrader/config"
	"algoTrader/internal/adapters/binanceclient"
	"algoTrader/internal/adapters/logger"
	"algoTrader/internal/adapters/paper"
	"algoTrader/internal/adapters/sqlite"
	"algoTrader/internal/app"
	"algoTrader/internal/ports"
	"algoTrader/internal/risk"
	"algoTrader/internal/strategy/strategies"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger, syncLogger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer syncLogger()
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error(context.Background(), err, "Application exited with error")
		syncLogger()
		os.Exit(1)
	}
	appLogger.Info(context.Background(), "Application finished gracefully.")
}

func newLogger(cfg *config.Config) (ports.Logger, func(), error) {
	if cfg.LogFormat == "json" {
		z, err := logger.NewZapLogger(cfg.LogLevel)
		if err != nil {
			return nil, nil, err
		}
		return z, func() { _ = z.Sync() }, nil
	}
	return logger.NewStdLogger(cfg.LogLevel), func() {}, nil
}

func run(cfg *config.Config, appLogger ports.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Load Bots
	bots, err := config.LoadBots(cfg.BotsFile, cfg)
	if err != nil {
		return err
	}

	// 4. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()

	// 5. Initialize Exchange Client (market data for every bot, orders for live ones)
	exchange, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		return err
	}
	if err := exchange.Ping(ctx); err != nil {
		appLogger.Warn(ctx, "Exchange ping failed; bots will retry every iteration", map[string]interface{}{"error": err.Error()})
	}
	paperExecutor, err := paper.NewExecutor(paper.Config{Prices: exchange, Logger: appLogger})
	if err != nil {
		return err
	}

	// 6. Start Bots
	manager := app.NewBotManager(appLogger, 0)
	for _, bc := range bots {
		var executor ports.OrderExecutor = exchange
		if bc.Paper {
			executor = paperExecutor
		}
		bot, err := buildBot(ctx, bc, cfg, repo, exchange, executor, appLogger)
		if err != nil {
			return errors.Join(err, manager.StopAll())
		}
		if err := manager.Start(ctx, bot); err != nil {
			return errors.Join(err, manager.StopAll())
		}
	}
	appLogger.Info(ctx, "All bots started", map[string]interface{}{"bots": manager.RunningIDs()})

	// 7. Wait for shutdown
	<-ctx.Done()
	appLogger.Info(context.Background(), "Shutdown signal received, stopping bots")
	return manager.StopAll()
}

func buildBot(
	ctx context.Context,
	bc config.BotConfig,
	cfg *config.Config,
	repo ports.PortfolioRepository,
	market ports.MarketDataSource,
	executor ports.OrderExecutor,
	appLogger ports.Logger,
) (*app.Bot, error) {
	strats := make([]ports.Strategy, 0, len(bc.Strategies))
	for _, sc := range bc.Strategies {
		s, err := strategies.New(sc.Name, sc.Params, appLogger)
		if err != nil {
			return nil, fmt.Errorf("bot %s: %w", bc.ID, err)
		}
		strats = append(strats, s)
	}

	riskManager, err := risk.NewRiskManager(bc.Risk, appLogger)
	if err != nil {
		return nil, fmt.Errorf("bot %s: %w", bc.ID, err)
	}

	pf, err := app.LoadPortfolio(ctx, repo, bc.ID, bc.Name, bc.InitialCapital)
	if err != nil {
		return nil, fmt.Errorf("bot %s: %w", bc.ID, err)
	}
	appLogger.Info(ctx, "Portfolio loaded", map[string]interface{}{
		"botID": bc.ID, "cash": pf.Cash(), "positions": pf.NumPositions(), "paper": bc.Paper,
	})

	return app.NewBot(app.BotConfig{
		ID:             bc.ID,
		Name:           bc.Name,
		Symbols:        bc.Symbols,
		Interval:       bc.Interval,
		RunInterval:    bc.RunInterval,
		CommissionRate: cfg.CommissionRate,
	}, app.BotDeps{
		Portfolio:  pf,
		Strategies: strats,
		Risk:       riskManager,
		Market:     market,
		Executor:   executor,
		Repo:       repo,
		Logger:     appLogger,
	})
}
