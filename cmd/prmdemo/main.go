// Package main provides a standalone entry point that wires a Manager
// from a config file and drives it with a scripted sequence of equity,
// daily-close, and rebalance events, printing a final snapshot.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlas-desktop/prm/internal/allocator"
	"github.com/atlas-desktop/prm/internal/config"
	"github.com/atlas-desktop/prm/internal/prm"
	"github.com/atlas-desktop/prm/internal/sizing"
	"github.com/atlas-desktop/prm/internal/telemetry"
	"github.com/atlas-desktop/prm/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "Path to a PRM config file (optional)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	initialEquity, err := cfg.InitialEquityDecimal()
	if err != nil {
		logger.Fatal("invalid initial equity", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	metrics := telemetry.New("prm", reg)

	allocCfg := prm.AllocatorConfig{
		Policy:          resolvePolicy(cfg.Rebalance.Method),
		Lookback:        cfg.Rebalance.LookbackDays,
		MinWeight:       cfg.Rebalance.MinWeight,
		MaxWeight:       cfg.Rebalance.MaxWeight,
		Threshold:       cfg.Rebalance.Threshold,
		AdaptationSpeed: cfg.Rebalance.AdaptationSpeed,
	}

	manager, err := prm.New(logger, initialEquity, cfg.Limits.ToRiskLimits(), allocCfg, metrics)
	if err != nil {
		logger.Fatal("failed to construct manager", zap.Error(err))
	}

	allocations := make([]types.StrategyAllocation, 0, len(cfg.Strategies))
	for _, s := range cfg.Strategies {
		allocations = append(allocations, types.StrategyAllocation{
			StrategyId: types.StrategyId(s.ID),
			Allocation: s.Allocation,
			Active:     true,
		})
	}
	if len(allocations) == 0 {
		allocations = append(allocations,
			types.StrategyAllocation{StrategyId: "trend-follow", Allocation: 0.5, Active: true},
			types.StrategyAllocation{StrategyId: "mean-revert", Allocation: 0.5, Active: true},
		)
	}
	if err := manager.SetAllocations(allocations); err != nil {
		logger.Fatal("failed to set initial allocations", zap.Error(err))
	}
	sizerKinds := make(map[types.StrategyId]types.SizerKind, len(cfg.Strategies))
	for _, s := range cfg.Strategies {
		sizerKinds[types.StrategyId(s.ID)] = types.SizerKind(s.SizerKind)
	}
	for _, a := range allocations {
		if err := manager.SetSizer(a.StrategyId, resolveSizer(sizerKinds[a.StrategyId])); err != nil {
			logger.Fatal("failed to set sizer", zap.Error(err), zap.String("strategy", string(a.StrategyId)))
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("starting PRM demo run", zap.Int("strategies", len(allocations)))
	runScriptedSession(logger, manager, allocations)

	snap := manager.Snapshot()
	logger.Info("final snapshot",
		zap.String("totalEquity", snap.TotalEquity.String()),
		zap.Float64("currentDrawdownPct", snap.CurrentDrawdownPct),
		zap.Int("openPositions", snap.OpenPositions),
	)
	fmt.Printf("total equity: %s, drawdown: %.4f%%, open positions: %d\n",
		snap.TotalEquity.String(), snap.CurrentDrawdownPct, snap.OpenPositions)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	default:
	}
	logger.Info("PRM demo run complete")
}

// runScriptedSession feeds a short, deterministic sequence of events
// through the manager: one equity mark, a round of daily closes each
// followed by a sizing request, and one rebalance tick, logging the
// decision at each step.
func runScriptedSession(logger *zap.Logger, manager *prm.Manager, allocations []types.StrategyAllocation) {
	now := time.Now()

	if err := manager.OnEquity(types.EquityUpdate{
		Timestamp:     now,
		TotalEquity:   decimal.NewFromInt(100000),
		Cash:          decimal.NewFromInt(40000),
		PositionValue: decimal.NewFromInt(60000),
		TotalExposure: decimal.NewFromInt(60000),
	}); err != nil {
		logger.Error("equity update failed", zap.Error(err))
		return
	}

	for i, a := range allocations {
		dailyReturn := 0.01
		if i%2 == 1 {
			dailyReturn = -0.005
		}
		if err := manager.OnDayClose(types.DayClose{Date: now, StrategyId: a.StrategyId, DailyReturn: dailyReturn}); err != nil {
			logger.Error("day close failed", zap.Error(err), zap.String("strategy", string(a.StrategyId)))
		}
		decision, err := manager.SizeOrder(a.StrategyId, 100000, 50, 48)
		if err != nil {
			logger.Error("size order failed", zap.Error(err), zap.String("strategy", string(a.StrategyId)))
			continue
		}
		logger.Info("sizing decision",
			zap.String("strategy", string(a.StrategyId)),
			zap.String("kind", string(decision.Kind)),
			zap.Int64("shares", decision.Shares),
			zap.String("reason", decision.Reason),
		)
	}

	report, err := manager.OnRebalanceTick()
	if err != nil {
		logger.Error("rebalance tick failed", zap.Error(err))
		return
	}
	if report != nil {
		logger.Info("rebalance committed", zap.String("id", report.ID), zap.Float64("totalChange", report.TotalChange))
	} else {
		logger.Info("rebalance tick produced no commit")
	}
}

// resolvePolicy maps a config-file method name onto a Policy value, in
// the teacher's getEnvOrDefault spirit: fall back rather than fail on
// an unset or unrecognized entry.
func resolvePolicy(method string) allocator.Policy {
	switch types.AllocationMethod(method) {
	case types.AllocationPerformanceWeighted:
		return allocator.PerformanceWeighted{}
	case types.AllocationSharpeWeighted:
		return allocator.SharpeWeighted{}
	case types.AllocationRiskParity:
		return allocator.RiskParity{}
	case types.AllocationAdaptiveKelly:
		return allocator.AdaptiveKelly{}
	default:
		return allocator.EqualWeight{}
	}
}

// resolveSizer maps a config-file sizer kind onto a concrete Sizer,
// falling back to PercentRisk with a conservative default when the kind
// is unset or unrecognized.
func resolveSizer(kind types.SizerKind) sizing.Sizer {
	switch kind {
	case types.SizerFixedDollarRisk:
		return sizing.NewFixedDollarRisk(500)
	case types.SizerFixedFractional:
		return sizing.NewFixedFractional(0.1)
	case types.SizerVolatilityAdjusted:
		return sizing.NewVolatilityAdjusted(0.01, 2.0, 0.20)
	case types.SizerKellyCriterion:
		return sizing.NewKellyCriterion(0.55, 2.0, 1.0, 0.5, 0.10)
	default:
		return sizing.NewPercentRisk(0.01, 0.20)
	}
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
