package config

import (
	"os"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "quantworker-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}
	return tmpFile.Name()
}

func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATA_DIR", "SQLITE_PATH",
		"QUANTWORKER_API_BASE", "QUANTWORKER_API_TOKEN",
		"QUANTWORKER_WORKER_ID", "QUANTWORKER_POLL_INTERVAL",
		"ALPACA_API_KEY", "ALPACA_API_SECRET",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
		"LOG_LEVEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadFull(t *testing.T) {
	clearEnvOverrides(t)

	path := writeTempConfig(t, `
storage:
  data_dir: "/tmp/quantworker/data"
  sqlite_path: "/tmp/quantworker/pool.db"
worker:
  api_base: "http://test-server:3001/api"
  worker_id: "test_worker_01"
  poll_interval_secs: 10
  api_token: "test_token_123"
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  data_url: "https://data.alpaca.markets"
market_data:
  source: "alpaca"
  market: "us"
  rate_limit_per_min: 100
screening:
  strategy: "turtle"
  preset: "turtle_selective"
  days_back: 90
  initial_cash: 500000
  min_trades: 3
  min_win_rate: 0.5
  min_return: 0.05
  sync_all: true
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.DataDir != "/tmp/quantworker/data" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Worker.APIBase != "http://test-server:3001/api" {
		t.Errorf("Worker.APIBase = %q", cfg.Worker.APIBase)
	}
	if cfg.Worker.WorkerID != "test_worker_01" {
		t.Errorf("Worker.WorkerID = %q", cfg.Worker.WorkerID)
	}
	if cfg.Worker.PollIntervalSecs != 10 {
		t.Errorf("Worker.PollIntervalSecs = %d, want 10", cfg.Worker.PollIntervalSecs)
	}
	if cfg.Worker.APIToken != "test_token_123" {
		t.Errorf("Worker.APIToken = %q", cfg.Worker.APIToken)
	}
	if cfg.MarketData.Source != "alpaca" || cfg.MarketData.Market != "us" {
		t.Errorf("MarketData = %+v", cfg.MarketData)
	}
	if cfg.Screening.Strategy != "turtle" || cfg.Screening.Preset != "turtle_selective" {
		t.Errorf("Screening strategy/preset = %q/%q", cfg.Screening.Strategy, cfg.Screening.Preset)
	}
	if cfg.Screening.MinReturn == nil || *cfg.Screening.MinReturn != 0.05 {
		t.Errorf("Screening.MinReturn = %v, want 0.05", cfg.Screening.MinReturn)
	}
	if !cfg.Screening.SyncAll {
		t.Error("Screening.SyncAll should be true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnvOverrides(t)

	cfg, err := Load(writeTempConfig(t, "worker:\n  api_token: \"tok\"\n"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Worker.PollIntervalSecs != 5 {
		t.Errorf("default PollIntervalSecs = %d, want 5", cfg.Worker.PollIntervalSecs)
	}
	if cfg.Screening.MinTrades != 2 {
		t.Errorf("default MinTrades = %d, want 2", cfg.Screening.MinTrades)
	}
	if cfg.Screening.MinReturn != nil {
		t.Errorf("default MinReturn = %v, want nil", cfg.Screening.MinReturn)
	}
	if cfg.MarketData.Source != "parquet" {
		t.Errorf("default MarketData.Source = %q, want parquet", cfg.MarketData.Source)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("QUANTWORKER_API_TOKEN", "env_token")
	t.Setenv("QUANTWORKER_POLL_INTERVAL", "30")
	t.Setenv("DATA_DIR", "/env/data")

	cfg, err := Load(writeTempConfig(t, "worker:\n  api_token: \"file_token\"\n"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Worker.APIToken != "env_token" {
		t.Errorf("APIToken = %q, env should override file", cfg.Worker.APIToken)
	}
	if cfg.Worker.PollIntervalSecs != 30 {
		t.Errorf("PollIntervalSecs = %d, want 30", cfg.Worker.PollIntervalSecs)
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("DataDir = %q, want /env/data", cfg.Storage.DataDir)
	}
}

func TestValidateWorker(t *testing.T) {
	cfg := Default()
	err := cfg.ValidateWorker()
	if err == nil {
		t.Fatal("ValidateWorker should fail without a token")
	}
	if !strings.Contains(err.Error(), "api_token") {
		t.Errorf("error should mention api_token: %v", err)
	}

	cfg.Worker.APIToken = "tok"
	if err := cfg.ValidateWorker(); err != nil {
		t.Errorf("ValidateWorker with token should pass: %v", err)
	}

	cfg.Worker.PollIntervalSecs = 0
	if err := cfg.ValidateWorker(); err == nil {
		t.Error("ValidateWorker should reject non-positive poll interval")
	}
}
