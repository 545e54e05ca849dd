package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tipLedger/internal/chain"
	"tipLedger/internal/config"
	"tipLedger/internal/genesis"
)

func runSeed(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSeed(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Token) {
		return fmt.Errorf("invalid token address: %q", cfg.Token)
	}
	holders := make([]common.Address, 0, len(cfg.Holders))
	for _, holder := range cfg.Holders {
		if !common.IsHexAddress(holder) {
			return fmt.Errorf("invalid holder address: %s", holder)
		}
		holders = append(holders, common.HexToAddress(holder))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	seeder := genesis.NewSeeder(genesis.SeedConfig{
		Token:        common.HexToAddress(cfg.Token),
		Holders:      holders,
		Block:        cfg.Block,
		Discover:     cfg.Discover,
		DiscoverFrom: cfg.DiscoverFrom,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, logger)

	logger.Info("seed start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("token", cfg.Token),
		zap.Int("holders", len(holders)),
		zap.Uint64("block", cfg.Block),
		zap.Bool("discover", cfg.Discover),
		zap.String("out", cfg.Out),
	)

	gen, err := seeder.Seed(ctx)
	if err != nil {
		return err
	}
	return genesis.Write(cfg.Out, gen)
}
