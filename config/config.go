package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"algoTrader/internal/adapters/logger" // Import the logger package for LogLevel
	"algoTrader/internal/risk"
)

// Config holds all process-level configuration.
type Config struct {
	// Binance API; both keys empty means paper trading
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Database
	DBPath string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string // "text" or "json"

	// Bots
	BotsFile       string
	InitialCapital float64 // Default capital of a bot that does not set its own
	CommissionRate float64
	RunInterval    time.Duration

	// Risk limits applied to bots that do not override them
	Risk risk.RiskConfig
}

// HasAPIKeys reports whether exchange credentials were configured.
func (c *Config) HasAPIKeys() bool {
	return c.APIKey != "" && c.SecretKey != ""
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety
	if (cfg.APIKey == "") != (cfg.SecretKey == "") {
		errs = append(errs, "BINANCE_API_KEY and BINANCE_API_SECRET must be set together")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/algo_trader.db")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat))
	}

	// Bots
	cfg.BotsFile = getEnv("BOTS_FILE", "bots.yaml")

	cfg.InitialCapital, err = getEnvAsFloatRequired("INITIAL_CAPITAL", 10000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid INITIAL_CAPITAL: %v", err))
	} else if cfg.InitialCapital <= 0 {
		errs = append(errs, "INITIAL_CAPITAL must be positive")
	}

	cfg.CommissionRate, err = getEnvAsFloatRequired("COMMISSION_RATE", 0.001)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid COMMISSION_RATE: %v", err))
	} else if cfg.CommissionRate < 0 || cfg.CommissionRate >= 1 {
		errs = append(errs, "COMMISSION_RATE must be in [0, 1)")
	}

	runIntervalSeconds, err := getEnvAsIntRequired("RUN_INTERVAL_SECONDS", 60)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RUN_INTERVAL_SECONDS: %v", err))
	} else if runIntervalSeconds <= 0 {
		errs = append(errs, "RUN_INTERVAL_SECONDS must be positive")
	}
	cfg.RunInterval = time.Duration(runIntervalSeconds) * time.Second

	// Risk defaults
	defaults := risk.DefaultRiskConfig()
	floats := []struct {
		key string
		dst *float64
		def float64
	}{
		{"MAX_POSITION_SIZE", &cfg.Risk.MaxPositionSize, defaults.MaxPositionSize},
		{"MAX_PORTFOLIO_RISK", &cfg.Risk.MaxPortfolioRisk, defaults.MaxPortfolioRisk},
		{"STOP_LOSS_PCT", &cfg.Risk.StopLossPercent, defaults.StopLossPercent},
		{"TAKE_PROFIT_PCT", &cfg.Risk.TakeProfitPercent, defaults.TakeProfitPercent},
		{"MAX_DRAWDOWN_PCT", &cfg.Risk.MaxDrawdownPct, defaults.MaxDrawdownPct},
	}
	for _, f := range floats {
		if *f.dst, err = getEnvAsFloatRequired(f.key, f.def); err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", f.key, err))
		}
	}
	cfg.Risk.MaxOpenPositions, err = getEnvAsIntRequired("MAX_POSITIONS", defaults.MaxOpenPositions)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_POSITIONS: %v", err))
	}
	if err := cfg.Risk.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
