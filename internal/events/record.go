package events

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"tipLedger/internal/model"
)

// BuildLogRecord normalizes an emitted log for storage.
func BuildLogRecord(seq uint64, opHash common.Hash, log *types.Log, ingestedAt time.Time) model.LogRecord {
	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, topic.Hex())
	}

	record := model.LogRecord{
		Seq:      seq,
		OpHash:   opHash.Hex(),
		LogIndex: uint64(log.Index),
		Address:  log.Address.Hex(),
		Topics:   topics,
		Data:     hexutil.Encode(log.Data),
	}
	if !ingestedAt.IsZero() {
		record.IngestedAt = ingestedAt.UTC().Format(time.RFC3339Nano)
	}
	return record
}
