package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/internal/logging"
	"github.com/rustyeddy/backtester/market"
)

const dateLayout = "2006-01-02"

// Config represents a complete batch run.
type Config struct {
	Data     DataConfig      `json:"data" yaml:"data"`
	Strategy StrategyConfig  `json:"strategy" yaml:"strategy"`
	Policy   backtest.Policy `json:"policy" yaml:"policy"`
	Run      RunConfig       `json:"run" yaml:"run"`
	Journal  JournalConfig   `json:"journal" yaml:"journal"`
	Log      logging.Config  `json:"log" yaml:"log"`
}

// DataConfig locates bar files: <dir>/<SYMBOL>.<format>.
type DataConfig struct {
	Dir      string   `json:"dir" yaml:"dir"`
	Format   string   `json:"format" yaml:"format"` // "csv" or "parquet"
	Symbols  []string `json:"symbols" yaml:"symbols"`
	Interval string   `json:"interval" yaml:"interval"`
	From     string   `json:"from,omitempty" yaml:"from,omitempty"`
	To       string   `json:"to,omitempty" yaml:"to,omitempty"`
}

// Path is the bar file for symbol.
func (d DataConfig) Path(symbol string) string {
	return filepath.Join(d.Dir, symbol+"."+d.Format)
}

func (d DataConfig) BarInterval() (market.Interval, error) {
	return market.ParseInterval(d.Interval)
}

// Range parses From and To. A zero bound is open.
func (d DataConfig) Range() (from, to time.Time, err error) {
	if d.From != "" {
		if from, err = time.Parse(dateLayout, d.From); err != nil {
			return from, to, fmt.Errorf("data.from: %w", err)
		}
	}
	if d.To != "" {
		if to, err = time.Parse(dateLayout, d.To); err != nil {
			return from, to, fmt.Errorf("data.to: %w", err)
		}
	}
	return from, to, nil
}

// StrategyConfig names a registered strategy and its parameter overrides.
type StrategyConfig struct {
	Name   string             `json:"name" yaml:"name"`
	Params map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
}

// RunConfig contains batch parameters
type RunConfig struct {
	Workers     int     `json:"workers" yaml:"workers"` // 0 means one per CPU
	TradingDays float64 `json:"trading_days" yaml:"trading_days"`
	MetricsOut  string  `json:"metrics_out,omitempty" yaml:"metrics_out,omitempty"`
}

// JournalConfig selects outputs; an empty path disables that output.
type JournalConfig struct {
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	CSVDir     string `json:"csv_dir,omitempty" yaml:"csv_dir,omitempty"`
	ParquetDir string `json:"parquet_dir,omitempty" yaml:"parquet_dir,omitempty"`
	OrgDir     string `json:"org_dir,omitempty" yaml:"org_dir,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML or JSON) on top of
// Default.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
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

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
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
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required")
	}
	if c.Data.Format != "csv" && c.Data.Format != "parquet" {
		return fmt.Errorf("data.format must be 'csv' or 'parquet'")
	}
	if len(c.Data.Symbols) == 0 {
		return fmt.Errorf("data.symbols must list at least one symbol")
	}
	if _, err := c.Data.BarInterval(); err != nil {
		return fmt.Errorf("data.interval: %w", err)
	}
	from, to, err := c.Data.Range()
	if err != nil {
		return err
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return fmt.Errorf("data.from must be before data.to")
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if c.Run.Workers < 0 {
		return fmt.Errorf("run.workers must not be negative")
	}
	if c.Run.TradingDays <= 0 {
		return fmt.Errorf("run.trading_days must be positive")
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Dir:      "./data",
			Format:   "csv",
			Symbols:  []string{"SPY"},
			Interval: "D1",
		},
		Strategy: StrategyConfig{
			Name: "trend-volume-macd",
		},
		Policy: backtest.DefaultPolicy(),
		Run: RunConfig{
			TradingDays: 252,
		},
		Journal: JournalConfig{
			DBPath: "./backtests.db",
		},
		Log: logging.DefaultConfig(),
	}
}

// Environment variables read by ApplyEnv.
const (
	EnvDataDir        = "BACKTEST_DATA_DIR"
	EnvSymbols        = "BACKTEST_SYMBOLS"
	EnvInterval       = "BACKTEST_INTERVAL"
	EnvStrategy       = "BACKTEST_STRATEGY"
	EnvWorkers        = "BACKTEST_WORKERS"
	EnvStartingCash   = "BACKTEST_STARTING_CASH"
	EnvCommissionRate = "BACKTEST_COMMISSION_RATE"
	EnvRiskPerTrade   = "BACKTEST_RISK_PER_TRADE"
	EnvDBPath         = "BACKTEST_DB"
	EnvLogLevel       = "BACKTEST_LOG_LEVEL"
)

// Env merges .env files with the process environment; the process wins.
// Missing files are skipped.
func Env(files ...string) (map[string]string, error) {
	env := map[string]string{}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		vals, err := godotenv.Read(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range vals {
			env[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, "BACKTEST_") {
			env[k] = v
		}
	}
	return env, nil
}

// ApplyEnv overrides fields from BACKTEST_* variables.
func (c *Config) ApplyEnv(env map[string]string) error {
	if v := env[EnvDataDir]; v != "" {
		c.Data.Dir = v
	}
	if v := env[EnvSymbols]; v != "" {
		c.Data.Symbols = SplitSymbols(v)
	}
	if v := env[EnvInterval]; v != "" {
		c.Data.Interval = v
	}
	if v := env[EnvStrategy]; v != "" {
		c.Strategy.Name = v
	}
	if v := env[EnvDBPath]; v != "" {
		c.Journal.DBPath = v
	}
	if v := env[EnvLogLevel]; v != "" {
		c.Log.Level = v
	}
	if v := env[EnvWorkers]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Run.Workers = n
	}
	for key, dst := range map[string]*float64{
		EnvStartingCash:   &c.Policy.StartingCash,
		EnvCommissionRate: &c.Policy.CommissionRate,
		EnvRiskPerTrade:   &c.Policy.RiskPerTrade,
	} {
		if v := env[key]; v != "" {
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = x
		}
	}
	return nil
}

// SplitSymbols parses a comma or space separated symbol list, upper-cased.
func SplitSymbols(s string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		out = append(out, strings.ToUpper(f))
	}
	return out
}
