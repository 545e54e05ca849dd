package main

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"tipLedger/internal/events"
	"tipLedger/internal/model"
)

type sliceWriter struct {
	values []interface{}
}

func (w *sliceWriter) Write(value interface{}) error {
	w.values = append(w.values, value)
	return nil
}

func TestDecodeStream(t *testing.T) {
	contract := common.HexToAddress("0x0000000000000000000000000000000000000300")
	log, err := events.Encode(contract, events.Tip,
		common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		common.HexToAddress("0x00000000000000000000000000000000000000c3"),
		uint256.NewInt(10000), uint256.NewInt(100), uint256.NewInt(450), uint256.NewInt(450), uint256.NewInt(9000),
	)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	record := events.BuildLogRecord(4, common.HexToHash("0x01"), log, time.Unix(0, 0))
	line, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	unknown := model.LogRecord{Seq: 5, Topics: []string{common.HexToHash("0xdead").Hex()}}
	unknownLine, _ := json.Marshal(unknown)
	noTopics, _ := json.Marshal(model.LogRecord{Seq: 6})

	input := strings.Join([]string{string(line), "{broken", string(unknownLine), string(noTopics)}, "\n")

	decoder, err := events.NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	out, errs := &sliceWriter{}, &sliceWriter{}
	stats, err := decodeStream(decoder, strings.NewReader(input), out, errs)
	if err != nil {
		t.Fatalf("decode stream: %v", err)
	}

	if stats.total != 4 || stats.decoded != 1 || stats.skipped != 1 || stats.failed != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	typed, ok := out.values[0].(*model.TypedEvent)
	if !ok || typed.EventName != events.Tip || typed.Seq != 4 {
		t.Fatalf("unexpected typed event: %#v", out.values[0])
	}
	if decodeErr := errs.values[1].(model.DecodeError); decodeErr.Seq != 6 {
		t.Fatalf("unexpected decode error: %+v", decodeErr)
	}
}
