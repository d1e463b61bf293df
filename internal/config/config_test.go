package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/atlas-desktop/prm/internal/config"
	"github.com/shopspring/decimal"
)

const sampleYAML = `
initial_equity: "250000"
risk_limits:
  max_portfolio_drawdown_pct: 20
  max_daily_loss: 5000
  max_concurrent_positions: 8
  max_correlation: 0.75
  min_cash_reserve: 10000
  max_leverage: 1.5
rebalance:
  method: sharpe_weighted
  threshold: 0.03
  adaptation_speed: 0.4
  lookback_days: 30
  min_weight: 0.05
  max_weight: 0.6
strategies:
  - id: momentum
    sizer_kind: kelly_criterion
    allocation: 0.5
    active: true
logging:
  level: debug
`

func writeConfig(t *testing.T, contents string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "prm.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoadParsesFields(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.InitialEquity != "250000" {
		t.Errorf("expected initial equity 250000, got %s", cfg.InitialEquity)
	}
	if cfg.Limits.MaxConcurrentPositions != 8 {
		t.Errorf("expected max concurrent positions 8, got %d", cfg.Limits.MaxConcurrentPositions)
	}
	if cfg.Rebalance.Method != "sharpe_weighted" {
		t.Errorf("expected rebalance method sharpe_weighted, got %s", cfg.Rebalance.Method)
	}
	if len(cfg.Strategies) != 1 || cfg.Strategies[0].ID != "momentum" {
		t.Fatalf("expected one strategy 'momentum', got %+v", cfg.Strategies)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error loading a missing config file")
	}
}

func TestToRiskLimitsConvertsDecimalFields(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	limits := cfg.Limits.ToRiskLimits()
	if !limits.MaxDailyLoss.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected max daily loss 5000, got %s", limits.MaxDailyLoss)
	}
	if limits.MaxConcurrentPositions != 8 {
		t.Errorf("expected 8, got %d", limits.MaxConcurrentPositions)
	}
}
