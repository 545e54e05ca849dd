package events

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"tipLedger/internal/model"
)

// Decoder converts journal records back into typed ledger events.
type Decoder struct {
	ledgerABI   abi.ABI
	topicToName map[string]string
}

// NewDecoder builds a Decoder for every ledger event.
func NewDecoder() (*Decoder, error) {
	ledgerABI, err := LedgerABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(ledgerABI.Events))
	for name, event := range ledgerABI.Events {
		topicToName[strings.ToLower(event.ID.Hex())] = name
	}

	return &Decoder{
		ledgerABI:   ledgerABI,
		topicToName: topicToName,
	}, nil
}

// CanDecode checks if the topic0 is a ledger event.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	event := d.ledgerABI.Events[name]

	fields, err := decodeFields(event, log)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	switch name {
	case Transfer:
		decoded = model.TransferEventData{
			From:  addressField(fields, "from"),
			To:    addressField(fields, "to"),
			Value: amountField(fields, "value"),
		}
	case Approval:
		decoded = model.ApprovalEventData{
			Owner:   addressField(fields, "owner"),
			Spender: addressField(fields, "spender"),
			Value:   amountField(fields, "value"),
		}
	case Deposit, Withdraw:
		decoded = model.StakeEventData{
			User:   addressField(fields, "user"),
			Amount: amountField(fields, "amount"),
		}
	case RewardPaid:
		decoded = model.RewardPaidEventData{
			User:   addressField(fields, "user"),
			Amount: amountField(fields, "amount"),
		}
	case RewardAdded:
		decoded = model.RewardAddedEventData{
			Amount:            amountField(fields, "amount"),
			AccRewardPerShare: amountField(fields, "accRewardPerShare"),
		}
	case RewardRedirected:
		decoded = model.RewardRedirectedEventData{
			Treasury: addressField(fields, "treasury"),
			Amount:   amountField(fields, "amount"),
		}
	case Tip:
		decoded = model.TipEventData{
			From:      addressField(fields, "from"),
			To:        addressField(fields, "to"),
			Amount:    amountField(fields, "amount"),
			Burned:    amountField(fields, "burned"),
			Treasury:  amountField(fields, "treasury"),
			Reward:    amountField(fields, "reward"),
			Delivered: amountField(fields, "delivered"),
		}
	case RateUpdated:
		rate, _ := fields["rate"].(string)
		decoded = model.RateUpdatedEventData{
			Rate:     rate,
			Previous: uint64Field(fields, "previous"),
			Current:  uint64Field(fields, "current"),
		}
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}

	return &model.TypedEvent{
		Seq:       log.Seq,
		OpHash:    log.OpHash,
		LogIndex:  log.LogIndex,
		Address:   log.Address,
		EventName: name,
		Decoded:   decoded,
		Raw:       &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data},
	}, nil
}

func decodeFields(event abi.Event, log model.LogRecord) (map[string]interface{}, error) {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(log.Topics))
	}
	topics, err := parseTopicHashes(log.Topics[1:])
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(fields, indexed, topics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	data, err := hexutil.Decode(log.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(fields, data); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return fields, nil
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func addressField(fields map[string]interface{}, key string) string {
	addr, ok := fields[key].(common.Address)
	if !ok {
		return ""
	}
	return addr.Hex()
}

func amountField(fields map[string]interface{}, key string) string {
	value, ok := fields[key].(*big.Int)
	if !ok || value == nil {
		return "0"
	}
	return value.String()
}

func uint64Field(fields map[string]interface{}, key string) uint64 {
	value, ok := fields[key].(*big.Int)
	if !ok || value == nil || !value.IsUint64() {
		return 0
	}
	return value.Uint64()
}
