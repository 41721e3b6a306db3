package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"algoTrader/internal/adapters/logger"
	"algoTrader/internal/ports"
	"algoTrader/internal/risk"
)

var configKeys = []string{
	"BINANCE_API_KEY", "BINANCE_API_SECRET", "IS_TESTNET", "DB_PATH", "LOG_LEVEL", "LOG_FORMAT",
	"BOTS_FILE", "INITIAL_CAPITAL", "COMMISSION_RATE", "MAX_POSITION_SIZE", "MAX_PORTFOLIO_RISK",
	"STOP_LOSS_PCT", "TAKE_PROFIT_PCT", "MAX_POSITIONS", "MAX_DRAWDOWN_PCT", "RUN_INTERVAL_SECONDS",
}

// clearEnv blanks every key LoadConfig reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.HasAPIKeys())
	assert.True(t, cfg.IsTestnet)
	assert.Equal(t, "./data/algo_trader.db", cfg.DBPath)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 10000.0, cfg.InitialCapital)
	assert.Equal(t, 0.001, cfg.CommissionRate)
	assert.Equal(t, time.Minute, cfg.RunInterval)
	assert.Equal(t, risk.DefaultRiskConfig(), cfg.Risk)
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BINANCE_API_KEY", "key")
	t.Setenv("BINANCE_API_SECRET", "secret")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("STOP_LOSS_PCT", "0.03")
	t.Setenv("MAX_POSITIONS", "3")
	t.Setenv("RUN_INTERVAL_SECONDS", "15")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.HasAPIKeys())
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 0.03, cfg.Risk.StopLossPercent)
	assert.Equal(t, 3, cfg.Risk.MaxOpenPositions)
	assert.Equal(t, 15*time.Second, cfg.RunInterval)
}

func TestLoadConfig_CollectsErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("BINANCE_API_KEY", "only-key")
	t.Setenv("INITIAL_CAPITAL", "lots")
	t.Setenv("COMMISSION_RATE", "2")
	t.Setenv("MAX_POSITION_SIZE", "0")

	_, err := LoadConfig()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "must be set together")
	assert.Contains(t, msg, "invalid INITIAL_CAPITAL")
	assert.Contains(t, msg, "COMMISSION_RATE must be in [0, 1)")
	assert.Contains(t, msg, "max position size")
}

func writeBotsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bots.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func defaultsForBots() *Config {
	return &Config{InitialCapital: 5000, RunInterval: time.Minute, Risk: risk.DefaultRiskConfig()}
}

func TestLoadBots(t *testing.T) {
	path := writeBotsFile(t, `
bots:
  - id: trend
    name: Trend follower
    symbols: [btcusdt, " ethusdt "]
    interval: 4h
    initial_capital: 20000
    run_interval_seconds: 30
    strategies:
      - name: moving_average
        params:
          fast_period: 5
          slow_period: 20
          ma_type: ema
      - name: rsi
    risk:
      stop_loss_pct: 0.03
      max_positions: 2
  - id: meanrev
    symbols: [SOLUSDT]
    strategies:
      - name: bollinger_bands
`)

	bots, err := LoadBots(path, defaultsForBots())
	require.NoError(t, err)
	require.Len(t, bots, 2)

	trend := bots[0]
	assert.Equal(t, "trend", trend.ID)
	assert.Equal(t, "Trend follower", trend.Name)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, trend.Symbols)
	assert.Equal(t, "4h", trend.Interval)
	assert.Equal(t, 20000.0, trend.InitialCapital)
	assert.Equal(t, 30*time.Second, trend.RunInterval)
	assert.True(t, trend.Paper, "no API keys means paper trading")
	require.Len(t, trend.Strategies, 2)
	assert.Equal(t, "moving_average", trend.Strategies[0].Name)
	assert.EqualValues(t, 5, trend.Strategies[0].Params["fast_period"])
	assert.Equal(t, "ema", trend.Strategies[0].Params["ma_type"])
	assert.Equal(t, 0.03, trend.Risk.StopLossPercent)
	assert.Equal(t, 2, trend.Risk.MaxOpenPositions)
	assert.Equal(t, risk.DefaultRiskConfig().TakeProfitPercent, trend.Risk.TakeProfitPercent)

	meanrev := bots[1]
	assert.Equal(t, "meanrev", meanrev.Name)
	assert.Equal(t, "1h", meanrev.Interval)
	assert.Equal(t, 5000.0, meanrev.InitialCapital)
	assert.Equal(t, time.Minute, meanrev.RunInterval)
	assert.Equal(t, risk.DefaultRiskConfig(), meanrev.Risk)
}

func TestLoadBots_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"no bots", "bots: []\n", "defines no bots"},
		{"missing id", "bots:\n  - symbols: [BTCUSDT]\n    strategies: [{name: rsi}]\n", "bot #1: id is required"},
		{"no symbols", "bots:\n  - id: a\n    strategies: [{name: rsi}]\n", "bot a: at least one symbol"},
		{"no strategies", "bots:\n  - id: a\n    symbols: [BTCUSDT]\n", "bot a: at least one strategy"},
		{"duplicate ids", "bots:\n  - id: a\n    symbols: [X]\n    strategies: [{name: rsi}]\n  - id: a\n    symbols: [Y]\n    strategies: [{name: rsi}]\n", "bot a: duplicate id"},
		{"bad risk", "bots:\n  - id: a\n    symbols: [X]\n    strategies: [{name: rsi}]\n    risk: {max_positions: 0}\n", "max open positions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBots(writeBotsFile(t, tt.content), defaultsForBots())
			require.Error(t, err)
			assert.ErrorIs(t, err, ports.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadBots_MissingFile(t *testing.T) {
	_, err := LoadBots(filepath.Join(t.TempDir(), "absent.yaml"), defaultsForBots())
	assert.ErrorIs(t, err, ports.ErrInvalidConfig)
}
