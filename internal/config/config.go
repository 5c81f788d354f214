package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the backtest worker.
type Config struct {
	Storage    Storage          `yaml:"storage"`
	Worker     WorkerConfig     `yaml:"worker"`
	Alpaca     Alpaca           `yaml:"alpaca"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Screening  ScreeningConfig  `yaml:"screening"`
	Logging    Logging          `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// WorkerConfig holds the task-queue client settings.
type WorkerConfig struct {
	APIBase          string `yaml:"api_base"`
	WorkerID         string `yaml:"worker_id"`
	PollIntervalSecs int    `yaml:"poll_interval_secs"`
	APIToken         string `yaml:"api_token"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// MarketDataConfig selects and tunes the price-history source.
type MarketDataConfig struct {
	Source          string `yaml:"source"` // "parquet" or "alpaca"
	Market          string `yaml:"market"` // "us" or "cn"
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// ScreeningConfig holds parameters for the batch screening job.
type ScreeningConfig struct {
	Strategy     string   `yaml:"strategy"`
	Preset       string   `yaml:"preset"`
	DaysBack     int      `yaml:"days_back"`
	InitialCash  float64  `yaml:"initial_cash"`
	LimitSymbols int      `yaml:"limit_symbols"`
	MinTrades    int      `yaml:"min_trades"`
	MinWinRate   float64  `yaml:"min_win_rate"`
	MinReturn    *float64 `yaml:"min_return"` // nil disables the filter
	SyncAll      bool     `yaml:"sync_all"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// Default returns a Config populated with defaults matching a local
// single-worker setup.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "./data",
			SQLitePath: "./data/quantworker.db",
		},
		Worker: WorkerConfig{
			APIBase:          "http://localhost:3001/api",
			PollIntervalSecs: 5,
		},
		MarketData: MarketDataConfig{
			Source:          "parquet",
			Market:          "cn",
			RateLimitPerMin: 200,
		},
		Screening: ScreeningConfig{
			Strategy:    "hidden_dragon",
			DaysBack:    180,
			InitialCash: 1_000_000,
			MinTrades:   2,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

// ValidateWorker checks the invariants that must hold before the task worker
// can start. A missing API token is the only fatal startup condition besides
// an unparsable file.
func (c *Config) ValidateWorker() error {
	if c.Worker.APIToken == "" {
		return fmt.Errorf("worker.api_token is required (or set QUANTWORKER_API_TOKEN)")
	}
	if c.Worker.APIBase == "" {
		return fmt.Errorf("worker.api_base is required")
	}
	if c.Worker.PollIntervalSecs <= 0 {
		return fmt.Errorf("worker.poll_interval_secs must be positive, got %d", c.Worker.PollIntervalSecs)
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("QUANTWORKER_API_BASE"); v != "" {
		cfg.Worker.APIBase = v
	}
	if v := os.Getenv("QUANTWORKER_API_TOKEN"); v != "" {
		cfg.Worker.APIToken = v
	}
	if v := os.Getenv("QUANTWORKER_WORKER_ID"); v != "" {
		cfg.Worker.WorkerID = v
	}
	if v := os.Getenv("QUANTWORKER_POLL_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Worker.PollIntervalSecs = n
		}
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
