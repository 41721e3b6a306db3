package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"algoTrader/internal/ports"
	"algoTrader/internal/risk"
)

// StrategyConfig names a strategy and its raw parameters.
type StrategyConfig struct {
	Name   string                 `mapstructure:"name"`
	Params map[string]interface{} `mapstructure:"params"`
}

// RiskOverrides replaces individual process-level risk limits for one bot.
type RiskOverrides struct {
	MaxPositionSize   *float64 `mapstructure:"max_position_size"`
	MaxPortfolioRisk  *float64 `mapstructure:"max_portfolio_risk"`
	StopLossPercent   *float64 `mapstructure:"stop_loss_pct"`
	TakeProfitPercent *float64 `mapstructure:"take_profit_pct"`
	MaxOpenPositions  *int     `mapstructure:"max_positions"`
	MaxDrawdownPct    *float64 `mapstructure:"max_drawdown_pct"`
}

// BotConfig is one entry of the bots file after defaults have been applied.
type BotConfig struct {
	ID             string
	Name           string
	Symbols        []string
	Interval       string
	Strategies     []StrategyConfig
	InitialCapital float64
	Risk           risk.RiskConfig
	RunInterval    time.Duration
	Paper          bool
}

type botFile struct {
	Bots []rawBot `mapstructure:"bots"`
}

type rawBot struct {
	ID                 string           `mapstructure:"id"`
	Name               string           `mapstructure:"name"`
	Symbols            []string         `mapstructure:"symbols"`
	Interval           string           `mapstructure:"interval"`
	Strategies         []StrategyConfig `mapstructure:"strategies"`
	InitialCapital     float64          `mapstructure:"initial_capital"`
	Risk               RiskOverrides    `mapstructure:"risk"`
	RunIntervalSeconds int              `mapstructure:"run_interval_seconds"`
	Paper              bool             `mapstructure:"paper"`
}

// LoadBots reads the bots file at path. Values a bot leaves unset fall back
// to the process configuration in defaults.
func LoadBots(path string, defaults *Config) ([]BotConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read bots file %s: %w: %w", path, ports.ErrInvalidConfig, err)
	}

	var file botFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decode bots file %s: %w: %w", path, ports.ErrInvalidConfig, err)
	}
	if len(file.Bots) == 0 {
		return nil, fmt.Errorf("bots file %s defines no bots: %w", path, ports.ErrInvalidConfig)
	}

	var errs []string
	seen := make(map[string]bool, len(file.Bots))
	bots := make([]BotConfig, 0, len(file.Bots))
	for i, raw := range file.Bots {
		bot, problems := resolveBot(raw, defaults)
		label := bot.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		if bot.ID != "" && seen[bot.ID] {
			problems = append(problems, "duplicate id")
		}
		seen[bot.ID] = true
		for _, p := range problems {
			errs = append(errs, fmt.Sprintf("bot %s: %s", label, p))
		}
		bots = append(bots, bot)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("bots file validation failed: %w: %s", ports.ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return bots, nil
}

func resolveBot(raw rawBot, defaults *Config) (BotConfig, []string) {
	var problems []string
	bot := BotConfig{
		ID:             strings.TrimSpace(raw.ID),
		Name:           raw.Name,
		Interval:       raw.Interval,
		Strategies:     raw.Strategies,
		InitialCapital: raw.InitialCapital,
		Risk:           defaults.Risk,
		RunInterval:    defaults.RunInterval,
		Paper:          raw.Paper || !defaults.HasAPIKeys(),
	}
	if bot.Name == "" {
		bot.Name = bot.ID
	}
	if bot.Interval == "" {
		bot.Interval = "1h"
	}
	if bot.InitialCapital == 0 {
		bot.InitialCapital = defaults.InitialCapital
	}
	if raw.RunIntervalSeconds > 0 {
		bot.RunInterval = time.Duration(raw.RunIntervalSeconds) * time.Second
	}
	for _, s := range raw.Symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			bot.Symbols = append(bot.Symbols, s)
		}
	}
	applyRiskOverrides(&bot.Risk, raw.Risk)

	if bot.ID == "" {
		problems = append(problems, "id is required")
	}
	if len(bot.Symbols) == 0 {
		problems = append(problems, "at least one symbol is required")
	}
	if len(bot.Strategies) == 0 {
		problems = append(problems, "at least one strategy is required")
	}
	for i, s := range bot.Strategies {
		if strings.TrimSpace(s.Name) == "" {
			problems = append(problems, fmt.Sprintf("strategy %d has no name", i+1))
		}
	}
	if bot.InitialCapital <= 0 {
		problems = append(problems, "initial_capital must be positive")
	}
	if raw.RunIntervalSeconds < 0 {
		problems = append(problems, "run_interval_seconds must not be negative")
	}
	if err := bot.Risk.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	return bot, problems
}

func applyRiskOverrides(cfg *risk.RiskConfig, o RiskOverrides) {
	if o.MaxPositionSize != nil {
		cfg.MaxPositionSize = *o.MaxPositionSize
	}
	if o.MaxPortfolioRisk != nil {
		cfg.MaxPortfolioRisk = *o.MaxPortfolioRisk
	}
	if o.StopLossPercent != nil {
		cfg.StopLossPercent = *o.StopLossPercent
	}
	if o.TakeProfitPercent != nil {
		cfg.TakeProfitPercent = *o.TakeProfitPercent
	}
	if o.MaxOpenPositions != nil {
		cfg.MaxOpenPositions = *o.MaxOpenPositions
	}
	if o.MaxDrawdownPct != nil {
		cfg.MaxDrawdownPct = *o.MaxDrawdownPct
	}
}
