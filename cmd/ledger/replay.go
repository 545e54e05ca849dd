package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tipLedger/internal/config"
	"tipLedger/internal/genesis"
	"tipLedger/internal/ledger"
	"tipLedger/internal/metrics"
	"tipLedger/internal/model"
	"tipLedger/internal/replay"
	"tipLedger/internal/storage"
	"tipLedger/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Ops == "" {
		return fmt.Errorf("ops path is required")
	}
	engineCfg, err := cfg.Ledger.EngineConfig()
	if err != nil {
		return err
	}

	var gen *model.Genesis
	if cfg.Genesis != "" {
		loaded, err := genesis.Load(cfg.Genesis)
		if err != nil {
			return err
		}
		gen = &loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := ledger.New(engineCfg, logger)
	if err != nil {
		return err
	}

	var (
		events    storage.Storage
		errSink   storage.ErrorSink
		snapshots storage.SnapshotStore
	)
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN, cfg.StateName)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		events, errSink, snapshots = store, store, store
	} else {
		events = storage.NewJsonlStorage(cfg.Out)
		errSink = storage.NewJsonlStorage(cfg.Errors)
		snapshots = storage.NewFileSnapshotStore(cfg.StateFile)
	}

	runner := replay.NewRunner(replay.Config{
		OpsPath:   cfg.Ops,
		BatchSize: cfg.BatchSize,
	}, engine, events, errSink, snapshots, logger)

	if cfg.MetricsAddr != "" {
		collector := metrics.NewCollector("ledger")
		engine.SetObserver(collector)
		runner.SetBatchRecorder(collector)

		shutdown := serveMetrics(cfg.MetricsAddr, collector.Handler(), logger)
		defer shutdown()
	}

	logger.Info("replay start",
		zap.String("ops", cfg.Ops),
		zap.String("genesis", cfg.Genesis),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.String("state_file", cfg.StateFile),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Uint64("burn_rate", engineCfg.BurnRate),
		zap.Uint64("fund_rate", engineCfg.FundRate),
		zap.Uint64("reward_rate", engineCfg.RewardRate),
	)

	_, err = runner.Run(ctx, gen)
	return err
}

func serveMetrics(addr string, handler http.Handler, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("metrics server listening", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
