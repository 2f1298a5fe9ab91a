package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/stocksim/logger"
	"github.com/rustyeddy/stocksim/risk"
	"github.com/rustyeddy/stocksim/strategies"
	"github.com/rustyeddy/stocksim/trace"
)

// Config represents the complete backtest configuration
type Config struct {
	Account  AccountConfig   `json:"account" yaml:"account"`
	Strategy StrategyConfig  `json:"strategy" yaml:"strategy"`
	Risk     risk.ExitPolicy `json:"risk" yaml:"risk"`
	Runner   RunnerConfig    `json:"runner" yaml:"runner"`
	Journal  JournalConfig   `json:"journal" yaml:"journal"`
	Log      logger.Config   `json:"log" yaml:"log"`
	Metrics  MetricsConfig   `json:"metrics" yaml:"metrics"`
	Trace    trace.Config    `json:"trace" yaml:"trace"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	InitialBalance float64 `json:"initial_balance" yaml:"initial_balance"`
}

// StrategyConfig selects a strategy and carries the parameters of every
// variant.
type StrategyConfig struct {
	Name              string `json:"name" yaml:"name"`
	strategies.Params `json:",inline" yaml:",inline"`
}

// RunnerConfig controls batch execution
type RunnerConfig struct {
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// Journal types
const (
	JournalNone   = "none"
	JournalCSV    = "csv"
	JournalSQLite = "sqlite"
	JournalRedis  = "redis"
)

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type   string      `json:"type" yaml:"type"`
	Dir    string      `json:"dir,omitempty" yaml:"dir,omitempty"` // csv
	DBPath string      `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	Redis  RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

type RedisConfig struct {
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
}

// MetricsConfig names the Prometheus textfile written after a run.
type MetricsConfig struct {
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty"`
}

// InitialBalance returns the account balance as a decimal.
func (c *Config) InitialBalance() decimal.Decimal {
	return decimal.NewFromFloat(c.Account.InitialBalance)
}

// LoadFromFile loads configuration from a file (YAML or JSON). Keys left
// out of the file keep their Default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", jerr)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.InitialBalance <= 0 {
		return fmt.Errorf("account.initial_balance must be positive")
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	if _, err := strategies.New(c.Strategy.Name, c.Strategy.Params); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if c.Runner.Concurrency < 0 {
		return fmt.Errorf("runner.concurrency must not be negative")
	}

	switch c.Journal.Type {
	case "", JournalNone:
	case JournalCSV:
		if c.Journal.Dir == "" {
			return fmt.Errorf("journal dir required for CSV type")
		}
	case JournalSQLite:
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case JournalRedis:
		if c.Journal.Redis.Addr == "" {
			return fmt.Errorf("journal redis.addr required for Redis type")
		}
	default:
		return fmt.Errorf("journal.type must be one of none, csv, sqlite, redis")
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			InitialBalance: 100000,
		},
		Strategy: StrategyConfig{
			Name:   strategies.SMAName,
			Params: strategies.DefaultParams(),
		},
		Runner: RunnerConfig{
			Concurrency: 4,
		},
		Journal: JournalConfig{
			Type:   JournalSQLite,
			DBPath: "./stocksim.db",
			Dir:    "./journal",
			Redis:  RedisConfig{Addr: "localhost:6379"},
		},
		Log: logger.Config{
			Level:  "info",
			Format: "console",
		},
		Trace: trace.Config{
			Service: "stocksim",
		},
	}
}

// LoadEnv loads .env files into the process environment. Without
// arguments it reads ./.env if there is one. Variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// Environment overrides read by ApplyEnv.
const (
	EnvInitialBalance = "STOCKSIM_INITIAL_BALANCE"
	EnvStrategy       = "STOCKSIM_STRATEGY"
	EnvLogLevel       = "STOCKSIM_LOG_LEVEL"
	EnvLogFormat      = "STOCKSIM_LOG_FORMAT"
	EnvJournalType    = "STOCKSIM_JOURNAL_TYPE"
	EnvJournalDir     = "STOCKSIM_JOURNAL_DIR"
	EnvDBPath         = "STOCKSIM_DB_PATH"
	EnvRedisAddr      = "STOCKSIM_REDIS_ADDR"
	EnvRedisPassword  = "STOCKSIM_REDIS_PASSWORD"
	EnvConcurrency    = "STOCKSIM_CONCURRENCY"
	EnvMetricsFile    = "STOCKSIM_METRICS_FILE"
	EnvTrace          = "STOCKSIM_TRACE"
)

// ApplyEnv overrides fields from STOCKSIM_* variables.
func (c *Config) ApplyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	str(EnvStrategy, &c.Strategy.Name)
	str(EnvLogLevel, &c.Log.Level)
	str(EnvLogFormat, &c.Log.Format)
	str(EnvJournalType, &c.Journal.Type)
	str(EnvJournalDir, &c.Journal.Dir)
	str(EnvDBPath, &c.Journal.DBPath)
	str(EnvRedisAddr, &c.Journal.Redis.Addr)
	str(EnvRedisPassword, &c.Journal.Redis.Password)
	str(EnvMetricsFile, &c.Metrics.Textfile)

	if v := os.Getenv(EnvInitialBalance); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvInitialBalance, err)
		}
		c.Account.InitialBalance = f
	}
	if v := os.Getenv(EnvConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConcurrency, err)
		}
		c.Runner.Concurrency = n
	}
	if v := os.Getenv(EnvTrace); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTrace, err)
		}
		c.Trace.Enabled = b
	}
	return nil
}
