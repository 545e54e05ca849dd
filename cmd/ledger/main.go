package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "ledger",
		Short:        "Staking reward ledger with taxed transfers",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Apply an operation script to the ledger",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("ops", "", "input operations JSONL")
	replayCmd.Flags().String("genesis", "", "genesis balance sheet JSON")
	replayCmd.Flags().String("out", "./data/events.jsonl", "output event log JSONL")
	replayCmd.Flags().String("errors", "./data/errors.jsonl", "reverted operations JSONL")
	replayCmd.Flags().String("state-file", "./data/state.json", "checkpoint snapshot file")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN, replaces the file outputs when set")
	replayCmd.Flags().String("state-name", "ledger", "checkpoint row name in Postgres")
	replayCmd.Flags().Int("batch-size", 500, "operations per checkpoint")
	replayCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	replayCmd.Flags().String("token", "", "token ledger address")
	replayCmd.Flags().String("staking-pool", "", "staking pool address")
	replayCmd.Flags().String("router", "", "reward router address")
	replayCmd.Flags().String("treasury", "", "treasury address")
	replayCmd.Flags().String("burn-sink", "0x0000000000000000000000000000000000000000", "burn sink address")
	replayCmd.Flags().String("admin", "", "rate admin address")
	replayCmd.Flags().Uint64("burn-rate", 10, "burn rate in parts per thousand")
	replayCmd.Flags().Uint64("fund-rate", 45, "treasury rate in parts per thousand")
	replayCmd.Flags().Uint64("reward-rate", 45, "reward rate in parts per thousand")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Build a genesis balance sheet from on-chain ERC-20 balances",
		RunE:  runSeed,
	}

	seedCmd.Flags().String("rpc", "", "RPC URL")
	seedCmd.Flags().String("token", "", "ERC-20 token address")
	seedCmd.Flags().StringSlice("holder", nil, "holder addresses (comma-separated)")
	seedCmd.Flags().Uint64("block", 0, "block to read balances at, 0 means latest")
	seedCmd.Flags().Bool("discover", false, "discover holders from Transfer logs")
	seedCmd.Flags().Uint64("discover-from", 0, "first block scanned for Transfer logs")
	seedCmd.Flags().Uint64("batch-size", 2000, "blocks per log query")
	seedCmd.Flags().String("out", "./data/genesis.json", "output genesis JSON")
	seedCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	seedCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	seedCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(seedCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode event log records into typed events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "./data/events.jsonl", "input event log JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
