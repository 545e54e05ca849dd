package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tipLedger/internal/config"
	"tipLedger/internal/events"
	"tipLedger/internal/model"
	"tipLedger/internal/storage"
)

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}

	decoder, err := events.NewDecoder()
	if err != nil {
		return err
	}

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	outWriter, err := storage.NewJSONLWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := storage.NewJSONLWriter(cfg.Errors, false)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
	)

	stats, err := decodeStream(decoder, inputFile, outWriter, errWriter)
	if err != nil {
		return err
	}

	logger.Info("decode complete",
		zap.Int("total", stats.total),
		zap.Int("decoded", stats.decoded),
		zap.Int("skipped", stats.skipped),
		zap.Int("failed", stats.failed),
	)
	return nil
}

type decodeStats struct {
	total, decoded, skipped, failed int
}

type recordWriter interface {
	Write(value interface{}) error
}

func decodeStream(decoder *events.Decoder, input io.Reader, out, errs recordWriter) (decodeStats, error) {
	var stats decodeStats
	err := storage.ScanLines(input, func(line []byte, _ uint64) error {
		stats.total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.failed++
			return errs.Write(model.DecodeError{Error: err.Error()})
		}
		if len(record.Topics) == 0 {
			stats.failed++
			return errs.Write(decodeErrorFromRecord(record, fmt.Errorf("missing topic0")))
		}
		if !decoder.CanDecode(record.Topics[0]) {
			stats.skipped++
			return nil
		}

		event, err := decoder.Decode(record)
		if err != nil {
			stats.failed++
			return errs.Write(decodeErrorFromRecord(record, err))
		}
		if err := out.Write(event); err != nil {
			return err
		}
		stats.decoded++
		return nil
	})
	return stats, err
}

func decodeErrorFromRecord(record model.LogRecord, err error) model.DecodeError {
	topic0 := ""
	if len(record.Topics) > 0 {
		topic0 = record.Topics[0]
	}

	return model.DecodeError{
		Seq:      record.Seq,
		OpHash:   record.OpHash,
		LogIndex: record.LogIndex,
		Address:  record.Address,
		Topic0:   topic0,
		Error:    err.Error(),
	}
}
