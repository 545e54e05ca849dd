package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"

	"tipLedger/internal/fixedpoint"
	"tipLedger/internal/model"
)

// Load reads and validates a genesis balance sheet.
func Load(path string) (model.Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Genesis{}, fmt.Errorf("read genesis: %w", err)
	}

	var genesis model.Genesis
	if err := json.Unmarshal(data, &genesis); err != nil {
		return model.Genesis{}, fmt.Errorf("parse genesis: %w", err)
	}
	if err := Validate(genesis); err != nil {
		return model.Genesis{}, err
	}
	return genesis, nil
}

// Validate checks addresses and amounts and rejects duplicate holders.
func Validate(genesis model.Genesis) error {
	seen := make(map[common.Address]struct{}, len(genesis.Balances))
	for _, entry := range genesis.Balances {
		if !common.IsHexAddress(entry.Address) {
			return fmt.Errorf("genesis: invalid holder address: %s", entry.Address)
		}
		holder := common.HexToAddress(entry.Address)
		if _, ok := seen[holder]; ok {
			return fmt.Errorf("genesis: duplicate holder: %s", holder.Hex())
		}
		seen[holder] = struct{}{}
		if _, err := fixedpoint.Parse(entry.Balance); err != nil {
			return fmt.Errorf("genesis: balance of %s: %w", entry.Address, err)
		}
	}
	return nil
}

// Write stores genesis as indented JSON at path.
func Write(path string, genesis model.Genesis) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create genesis dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(genesis, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal genesis: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write genesis: %w", err)
	}
	return nil
}
