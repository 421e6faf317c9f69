// Package config loads and validates the engine's YAML configuration:
// instrument and session parameters, every domain component's thresholds,
// broker/feed connection settings, cache location, and logging.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lvnretest/engine/internal/domain/impulse"
	"github.com/lvnretest/engine/internal/domain/regime"
	"github.com/lvnretest/engine/internal/domain/retest"
	"github.com/lvnretest/engine/internal/domain/statemachine"
	"github.com/lvnretest/engine/internal/trader"
)

// Config is the root of the YAML document.
type Config struct {
	Symbol      string        `yaml:"symbol"`
	Session     SessionConfig `yaml:"session"`
	Regime      regime.Config `yaml:"regime"`
	Impulse     impulse.Config `yaml:"impulse"`
	Retest      retest.Config `yaml:"retest"`
	StateMachine StateMachineConfig `yaml:"state_machine"`
	Trader      TraderConfig  `yaml:"trader"`
	Broker      BrokerConfig  `yaml:"broker"`
	Feed        FeedConfig    `yaml:"feed"`
	Cache       CacheConfig   `yaml:"cache"`
	Logging     LoggingConfig `yaml:"logging"`
	WeightsFile string        `yaml:"weights_file"`

	Weights *WeightsDocument `yaml:"-"`
}

// SessionConfig names the instrument's trading window.
type SessionConfig struct {
	Timezone    string `yaml:"timezone"`
	StartHour   int    `yaml:"start_hour"`
	StartMinute int    `yaml:"start_minute"`
	EndHour     int    `yaml:"end_hour"`
	EndMinute   int    `yaml:"end_minute"`
}

// StateMachineConfig mirrors statemachine.Config's scalar fields; Impulse
// and Retest are threaded through from the top-level sections above.
type StateMachineConfig struct {
	BreakoutThreshold float64 `yaml:"breakout_threshold"`
	MaxHuntingBars    int     `yaml:"max_hunting_bars"`
	MaxLvnVolumeRatio float64 `yaml:"max_lvn_volume_ratio"`
}

// TraderConfig mirrors trader.Config's scalar fields.
type TraderConfig struct {
	Contracts       int     `yaml:"contracts"`
	TakeProfit      float64 `yaml:"take_profit"`
	TrailingStop    float64 `yaml:"trailing_stop"`
	StopBuffer      float64 `yaml:"stop_buffer"`
	MaxHoldBars     int     `yaml:"max_hold_bars"`
	DailyLossLimit  float64 `yaml:"daily_loss_limit"`
	MaxDailyLosses  int     `yaml:"max_daily_losses"`
	StartingBalance float64 `yaml:"starting_balance"`
	PointValue      float64 `yaml:"point_value"`
	Slippage        float64 `yaml:"slippage"`
	Commission      float64 `yaml:"commission"`
}

// BrokerConfig holds the broker executor's connection parameters.
type BrokerConfig struct {
	Provider      string        `yaml:"provider"` // "paper" or "live"
	RESTURL       string        `yaml:"rest_url"`
	WebSocketURL  string        `yaml:"websocket_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimitRPS  float64       `yaml:"rate_limit_rps"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

// FeedConfig holds the bar source's connection parameters.
type FeedConfig struct {
	Mode         string `yaml:"mode"` // "live" or "replay"
	WebSocketURL string `yaml:"websocket_url"`
	ReplayFrom   string `yaml:"replay_from"`
	ReplayTo     string `yaml:"replay_to"`
}

// CacheConfig holds the precompute cache's location and optional hot-cache.
type CacheConfig struct {
	Dir       string `yaml:"dir"`
	RedisAddr string `yaml:"redis_addr"` // not read by Load or any command; no hot cache is built from it
}

// LoggingConfig controls the logger's verbosity and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads and parses the YAML file at path, applies defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	weights, err := LoadWeights(cfg.WeightsFile)
	if err != nil {
		return nil, err
	}
	cfg.Weights = weights

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Symbol == "" {
		c.Symbol = "NQ"
	}
	if c.Session.Timezone == "" {
		c.Session.Timezone = "America/New_York"
	}
	if c.Regime.LookbackBars == 0 {
		d := regime.DefaultConfig()
		c.Regime = d
	}
	if c.Impulse.MaxImpulseBars == 0 {
		c.Impulse = impulse.DefaultConfig()
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = "./data/cache"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Broker.Provider == "" {
		c.Broker.Provider = "paper"
	}
	if c.Feed.Mode == "" {
		c.Feed.Mode = "replay"
	}
}

// Validate aggregates every configuration problem into a single error so a
// misconfigured deployment fails once with the complete list, not one
// field at a time.
func (c *Config) Validate() error {
	var errs []string

	if c.Symbol == "" {
		errs = append(errs, "symbol must not be empty")
	}
	if c.Session.StartHour < 0 || c.Session.StartHour > 23 {
		errs = append(errs, "session.start_hour must be in [0,23]")
	}
	if c.Session.EndHour < 0 || c.Session.EndHour > 23 {
		errs = append(errs, "session.end_hour must be in [0,23]")
	}
	if c.Trader.Contracts <= 0 {
		errs = append(errs, "trader.contracts must be positive")
	}
	if c.Trader.TakeProfit <= 0 {
		errs = append(errs, "trader.take_profit must be positive")
	}
	if c.Trader.MaxDailyLosses <= 0 {
		errs = append(errs, "trader.max_daily_losses must be positive")
	}
	if c.Broker.Provider != "paper" && c.Broker.Provider != "live" {
		errs = append(errs, `broker.provider must be "paper" or "live"`)
	}
	if c.Feed.Mode != "live" && c.Feed.Mode != "replay" {
		errs = append(errs, `feed.mode must be "live" or "replay"`)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Location resolves the session timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Session.Timezone)
}

// BuildTraderConfig builds a trader.Config from the parsed document.
func (c *Config) BuildTraderConfig() (trader.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return trader.Config{}, fmt.Errorf("load session timezone: %w", err)
	}
	return trader.Config{
		Contracts:       c.Trader.Contracts,
		TakeProfit:      c.Trader.TakeProfit,
		TrailingStop:    c.Trader.TrailingStop,
		StopBuffer:      c.Trader.StopBuffer,
		MaxHoldBars:     c.Trader.MaxHoldBars,
		DailyLossLimit:  c.Trader.DailyLossLimit,
		MaxDailyLosses:  c.Trader.MaxDailyLosses,
		StartingBalance: c.Trader.StartingBalance,
		PointValue:      c.Trader.PointValue,
		Slippage:        c.Trader.Slippage,
		Commission:      c.Trader.Commission,
		StartHour:       c.Session.StartHour,
		StartMinute:     c.Session.StartMinute,
		EndHour:         c.Session.EndHour,
		EndMinute:       c.Session.EndMinute,
		Location:        loc,
	}, nil
}

// BuildStateMachineConfig builds a statemachine.Config from the parsed
// document, threading through the Impulse and Retest sections.
func (c *Config) BuildStateMachineConfig() statemachine.Config {
	return statemachine.Config{
		BreakoutThreshold: c.StateMachine.BreakoutThreshold,
		MaxHuntingBars:    c.StateMachine.MaxHuntingBars,
		MaxLvnVolumeRatio: c.StateMachine.MaxLvnVolumeRatio,
		Impulse:           c.Impulse,
		Retest:            c.Retest,
	}
}
