package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"algoTrader/config"
	"algoTrader/internal/adapters/binanceclient"
	"algoTrader/internal/adapters/logger"
	"algoTrader/internal/utils"
)

func main() {
	symbol := flag.String("symbol", "BTCUSDT", "Symbol to fetch")
	interval := flag.String("interval", "1h", "Bar interval")
	months := flag.Int("months", 3, "Months of history to fetch")
	dir := flag.String("dir", "data", "Output directory")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	end := time.Now()
	start := end.AddDate(0, -*months, 0)

	fmt.Printf("Fetching klines for %s %s from %s to %s...\n", *symbol, *interval, start.Format(time.DateOnly), end.Format(time.DateOnly))
	klines, err := binanceClient.GetKlinesRange(context.Background(), *symbol, *interval, start, end)
	if err != nil {
		appLogger.Error(context.Background(), err, "Error fetching klines")
		log.Fatalf("Error fetching klines: %v", err)
	}
	appLogger.Info(context.Background(), "Fetched klines", map[string]interface{}{"count": len(klines)})

	filename := filepath.Join(*dir, fmt.Sprintf("%s_%s_%s_to_%s.csv", *symbol, *interval, start.Format("20060102"), end.Format("20060102")))
	if err := utils.WriteKlinesToCSV(klines, filename); err != nil {
		appLogger.Error(context.Background(), err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(context.Background(), "Saved to", map[string]interface{}{"filename": filename})
}
