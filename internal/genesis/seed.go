// Package genesis builds the initial token balance sheet, either from a JSON
// file or from an ERC-20 contract's on-chain balances at a fixed block.
package genesis

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"tipLedger/internal/model"
)

// Chain is the RPC surface the seeder reads from.
type Chain interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, address common.Address, topic0 common.Hash) ([]types.Log, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// SeedConfig holds settings for an on-chain seed.
type SeedConfig struct {
	Token   common.Address
	Holders []common.Address
	// Block pins the balances; zero means the latest block.
	Block uint64
	// Discover scans Transfer logs from DiscoverFrom to Block for holders.
	Discover     bool
	DiscoverFrom uint64
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Seeder reads ERC-20 balances over RPC.
type Seeder struct {
	cfg    SeedConfig
	chain  Chain
	logger *zap.Logger
}

func NewSeeder(cfg SeedConfig, chain Chain, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{cfg: cfg, chain: chain, logger: logger}
}

// Seed returns the balance sheet of every configured or discovered holder
// with a non-zero balance, ordered by address.
func (s *Seeder) Seed(ctx context.Context) (model.Genesis, error) {
	if s.chain == nil {
		return model.Genesis{}, fmt.Errorf("chain client is nil")
	}
	if s.cfg.Token == (common.Address{}) {
		return model.Genesis{}, fmt.Errorf("token address is required")
	}
	if len(s.cfg.Holders) == 0 && !s.cfg.Discover {
		return model.Genesis{}, fmt.Errorf("at least one holder is required without discovery")
	}

	var chainID *big.Int
	err := s.retry(ctx, "eth_chainId", func(ctx context.Context) error {
		var err error
		chainID, err = s.chain.GetChainID(ctx)
		return err
	})
	if err != nil {
		return model.Genesis{}, fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return model.Genesis{}, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}

	block := s.cfg.Block
	if block == 0 {
		err := s.retry(ctx, "eth_blockNumber", func(ctx context.Context) error {
			var err error
			block, err = s.chain.LatestBlockNumber(ctx)
			return err
		})
		if err != nil {
			return model.Genesis{}, fmt.Errorf("get latest block: %w", err)
		}
	}

	holders := make(map[common.Address]struct{}, len(s.cfg.Holders))
	for _, holder := range s.cfg.Holders {
		holders[holder] = struct{}{}
	}
	if s.cfg.Discover {
		if err := s.discoverHolders(ctx, block, holders); err != nil {
			return model.Genesis{}, err
		}
	}

	ordered := make([]common.Address, 0, len(holders))
	for holder := range holders {
		ordered = append(ordered, holder)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Hex() < ordered[j].Hex() })

	genesis := model.Genesis{
		Token:       s.cfg.Token.Hex(),
		ChainID:     chainID.Uint64(),
		BlockNumber: block,
		Balances:    make([]model.BalanceEntry, 0, len(ordered)),
	}
	blockNumber := new(big.Int).SetUint64(block)
	for _, holder := range ordered {
		balance, err := s.balanceOfWithRetry(ctx, holder, blockNumber)
		if err != nil {
			return model.Genesis{}, fmt.Errorf("balanceOf %s: %w", holder.Hex(), err)
		}
		if balance.IsZero() {
			continue
		}
		genesis.Balances = append(genesis.Balances, model.BalanceEntry{Address: holder.Hex(), Balance: balance.Dec()})
	}

	s.logger.Info("seed complete",
		zap.Uint64("chain_id", genesis.ChainID),
		zap.Uint64("block", block),
		zap.Int("holders", len(ordered)),
		zap.Int("funded", len(genesis.Balances)),
	)
	return genesis, nil
}

func (s *Seeder) discoverHolders(ctx context.Context, block uint64, holders map[common.Address]struct{}) error {
	erc20, err := erc20ABIInstance()
	if err != nil {
		return err
	}
	topic0 := erc20.Events["Transfer"].ID

	batchSize := s.cfg.BatchSize
	if batchSize == 0 {
		batchSize = 2000
	}
	if s.cfg.DiscoverFrom > block {
		return fmt.Errorf("discover from block %d is after seed block %d", s.cfg.DiscoverFrom, block)
	}
	ranges, err := SplitRange(s.cfg.DiscoverFrom, block, batchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		var logs []types.Log
		err := s.retry(ctx, "eth_getLogs", func(ctx context.Context) error {
			var err error
			logs, err = s.chain.FilterLogs(ctx, blockRange.From, blockRange.To, s.cfg.Token, topic0)
			return err
		}, zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
		if err != nil {
			return fmt.Errorf("filter transfer logs: %w", err)
		}

		for _, log := range logs {
			if log.Removed || len(log.Topics) != 3 {
				continue
			}
			for _, topic := range log.Topics[1:] {
				holder := common.BytesToAddress(topic.Bytes())
				if holder != (common.Address{}) {
					holders[holder] = struct{}{}
				}
			}
		}
		s.logger.Debug("discover batch", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To), zap.Int("logs", len(logs)))
	}
	return nil
}

func (s *Seeder) balanceOfWithRetry(ctx context.Context, holder common.Address, blockNumber *big.Int) (*uint256.Int, error) {
	var balance *uint256.Int
	err := s.retry(ctx, "balanceOf", func(ctx context.Context) error {
		var err error
		balance, err = s.balanceOf(ctx, holder, blockNumber)
		return err
	}, zap.String("holder", holder.Hex()))
	return balance, err
}

func (s *Seeder) balanceOf(ctx context.Context, holder common.Address, blockNumber *big.Int) (*uint256.Int, error) {
	erc20, err := erc20ABIInstance()
	if err != nil {
		return nil, err
	}

	data, err := erc20.Pack("balanceOf", holder)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	token := s.cfg.Token
	resp, err := s.chain.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}

	values, err := erc20.Unpack("balanceOf", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("balanceOf return size %d", len(values))
	}
	raw, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf unexpected type %T", values[0])
	}
	balance, overflow := uint256.FromBig(raw)
	if overflow {
		return nil, fmt.Errorf("balanceOf value overflows uint256: %s", raw)
	}
	return balance, nil
}
