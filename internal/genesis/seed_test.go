package genesis

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"tipLedger/internal/model"
)

var (
	testToken = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	holderA   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	holderB   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	holderC   = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

type fakeChain struct {
	latest       uint64
	balances     map[common.Address]*big.Int
	transfers    []types.Log
	failCalls    int
	calls        int
	filterRanges [][2]uint64
	callBlocks   []*big.Int
}

func (f *fakeChain) GetChainID(context.Context) (*big.Int, error) {
	return big.NewInt(56), nil
}

func (f *fakeChain) LatestBlockNumber(context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakeChain) FilterLogs(_ context.Context, from, to uint64, _ common.Address, _ common.Hash) ([]types.Log, error) {
	f.filterRanges = append(f.filterRanges, [2]uint64{from, to})
	var out []types.Log
	for _, log := range f.transfers {
		if log.BlockNumber >= from && log.BlockNumber <= to {
			out = append(out, log)
		}
	}
	return out, nil
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.calls++
	if f.calls <= f.failCalls {
		return nil, errors.New("rpc unavailable")
	}
	f.callBlocks = append(f.callBlocks, block)

	erc20, err := erc20ABIInstance()
	if err != nil {
		return nil, err
	}
	args, err := erc20.Methods["balanceOf"].Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	holder := args[0].(common.Address)
	balance, ok := f.balances[holder]
	if !ok {
		balance = new(big.Int)
	}
	return erc20.Methods["balanceOf"].Outputs.Pack(balance)
}

func transferLog(t *testing.T, block uint64, from, to common.Address) types.Log {
	t.Helper()
	erc20, err := erc20ABIInstance()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	return types.Log{
		Address:     testToken,
		BlockNumber: block,
		Topics: []common.Hash{
			erc20.Events["Transfer"].ID,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
	}
}

func TestSeedExplicitHolders(t *testing.T) {
	chain := &fakeChain{
		latest: 900,
		balances: map[common.Address]*big.Int{
			holderA: big.NewInt(500),
			holderB: big.NewInt(0),
		},
		failCalls: 1,
	}
	seeder := NewSeeder(SeedConfig{
		Token:        testToken,
		Holders:      []common.Address{holderB, holderA},
		Block:        123,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}, chain, nil)

	genesis, err := seeder.Seed(context.Background())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if genesis.ChainID != 56 || genesis.BlockNumber != 123 || genesis.Token != testToken.Hex() {
		t.Fatalf("unexpected header: %+v", genesis)
	}
	if len(genesis.Balances) != 1 || genesis.Balances[0] != (model.BalanceEntry{Address: holderA.Hex(), Balance: "500"}) {
		t.Fatalf("unexpected balances: %+v", genesis.Balances)
	}
	for _, block := range chain.callBlocks {
		if block.Uint64() != 123 {
			t.Fatalf("balance read at block %s, want 123", block)
		}
	}
}

func TestSeedDiscoversHolders(t *testing.T) {
	chain := &fakeChain{
		latest: 25,
		balances: map[common.Address]*big.Int{
			holderA: big.NewInt(1),
			holderB: big.NewInt(2),
			holderC: big.NewInt(3),
		},
	}
	chain.transfers = []types.Log{
		transferLog(t, 3, common.Address{}, holderA),
		transferLog(t, 12, holderA, holderC),
		transferLog(t, 30, holderA, holderB),
	}
	seeder := NewSeeder(SeedConfig{
		Token:        testToken,
		Discover:     true,
		DiscoverFrom: 1,
		BatchSize:    10,
	}, chain, nil)

	genesis, err := seeder.Seed(context.Background())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if genesis.BlockNumber != 25 {
		t.Fatalf("expected latest block, got %d", genesis.BlockNumber)
	}
	if len(chain.filterRanges) != 3 || chain.filterRanges[2] != [2]uint64{21, 25} {
		t.Fatalf("unexpected filter ranges: %v", chain.filterRanges)
	}
	if len(genesis.Balances) != 2 {
		t.Fatalf("expected holders A and C, got %+v", genesis.Balances)
	}
	if genesis.Balances[0].Address != holderA.Hex() || genesis.Balances[1].Address != holderC.Hex() {
		t.Fatalf("unexpected order: %+v", genesis.Balances)
	}
}

func TestSeedRequiresHolders(t *testing.T) {
	seeder := NewSeeder(SeedConfig{Token: testToken}, &fakeChain{}, nil)
	if _, err := seeder.Seed(context.Background()); err == nil {
		t.Fatalf("expected error without holders")
	}
}

func TestSeedGivesUpAfterRetries(t *testing.T) {
	chain := &fakeChain{failCalls: 10}
	seeder := NewSeeder(SeedConfig{
		Token:        testToken,
		Holders:      []common.Address{holderA},
		Block:        1,
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
	}, chain, nil)

	if _, err := seeder.Seed(context.Background()); err == nil {
		t.Fatalf("expected error after retries")
	}
	if chain.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", chain.calls)
	}
}

func TestWriteLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis", "genesis.json")
	want := model.Genesis{
		Token:       testToken.Hex(),
		ChainID:     1,
		BlockNumber: 10,
		Balances:    []model.BalanceEntry{{Address: holderA.Hex(), Balance: "1000000000000000000"}},
	}
	if err := Write(path, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Token != want.Token || len(got.Balances) != 1 || got.Balances[0] != want.Balances[0] {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestValidateRejectsBadEntries(t *testing.T) {
	cases := []model.Genesis{
		{Balances: []model.BalanceEntry{{Address: "nope", Balance: "1"}}},
		{Balances: []model.BalanceEntry{{Address: holderA.Hex(), Balance: "-1"}}},
		{Balances: []model.BalanceEntry{{Address: holderA.Hex(), Balance: "1"}, {Address: holderA.Hex(), Balance: "2"}}},
	}
	for i, genesis := range cases {
		if err := Validate(genesis); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
