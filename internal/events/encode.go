package events

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"tipLedger/internal/journal"
)

// Encode packs an event into a log emitted by contract. Arguments follow the
// ABI input order; indexed inputs must be addresses.
func Encode(contract common.Address, name string, args ...interface{}) (*types.Log, error) {
	ledgerABI, err := LedgerABI()
	if err != nil {
		return nil, fmt.Errorf("parse ledger abi: %w", err)
	}
	event, ok := ledgerABI.Events[name]
	if !ok {
		return nil, fmt.Errorf("unknown event: %s", name)
	}
	if len(args) != len(event.Inputs) {
		return nil, fmt.Errorf("%s expects %d arguments, got %d", name, len(event.Inputs), len(args))
	}

	topics := []common.Hash{event.ID}
	values := make([]interface{}, 0, len(args))
	for i, input := range event.Inputs {
		arg := normalizeArg(args[i])
		if input.Indexed {
			addr, ok := arg.(common.Address)
			if !ok {
				return nil, fmt.Errorf("%s.%s: indexed argument must be an address, got %T", name, input.Name, arg)
			}
			topics = append(topics, common.BytesToHash(addr.Bytes()))
			continue
		}
		values = append(values, arg)
	}

	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", name, err)
	}

	return &types.Log{
		Address: contract,
		Topics:  topics,
		Data:    data,
	}, nil
}

// Emit encodes an event and buffers it in the journal.
func Emit(j *journal.Journal, contract common.Address, name string, args ...interface{}) error {
	log, err := Encode(contract, name, args...)
	if err != nil {
		return err
	}
	j.AddLog(log)
	return nil
}

func normalizeArg(arg interface{}) interface{} {
	switch typed := arg.(type) {
	case *uint256.Int:
		if typed == nil {
			return new(big.Int)
		}
		return typed.ToBig()
	case uint64:
		return new(big.Int).SetUint64(typed)
	default:
		return arg
	}
}
