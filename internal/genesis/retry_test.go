package genesis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newRetrySeeder(maxRetries int) (*Seeder, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	seeder := NewSeeder(SeedConfig{MaxRetries: maxRetries, RetryBackoff: time.Millisecond}, nil, zap.New(core))
	return seeder, logs
}

func TestRetryLogsEachFailedAttempt(t *testing.T) {
	seeder, logs := newRetrySeeder(3)

	calls := 0
	err := seeder.retry(context.Background(), "balanceOf", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("timeout")
		}
		return nil
	}, zap.String("holder", "0xabc"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(entries))
	}
	for i, entry := range entries {
		fields := entry.ContextMap()
		if fields["call"] != "balanceOf" || fields["holder"] != "0xabc" {
			t.Fatalf("unexpected fields: %v", fields)
		}
		if fields["attempt"] != int64(i+1) {
			t.Fatalf("attempt %d logged as %v", i+1, fields["attempt"])
		}
		if fields["delay"] != time.Millisecond<<i {
			t.Fatalf("attempt %d delay %v", i+1, fields["delay"])
		}
	}
}

func TestRetryReportsAttempts(t *testing.T) {
	seeder, logs := newRetrySeeder(2)

	calls := 0
	err := seeder.retry(context.Background(), "eth_getLogs", func(context.Context) error {
		calls++
		return errors.New("rate limited")
	})
	if err == nil || !strings.Contains(err.Error(), "eth_getLogs failed after 3 attempts: rate limited") {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 || logs.Len() != 2 {
		t.Fatalf("calls=%d warnings=%d", calls, logs.Len())
	}
}

func TestRetryNegativeMeansSingleAttempt(t *testing.T) {
	seeder, logs := newRetrySeeder(-1)

	calls := 0
	err := seeder.retry(context.Background(), "eth_chainId", func(context.Context) error {
		calls++
		return errors.New("down")
	})
	if err == nil || calls != 1 || logs.Len() != 0 {
		t.Fatalf("err=%v calls=%d warnings=%d", err, calls, logs.Len())
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	core, _ := observer.New(zapcore.WarnLevel)
	seeder := NewSeeder(SeedConfig{MaxRetries: 5, RetryBackoff: time.Hour}, nil, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := seeder.retry(ctx, "eth_blockNumber", func(context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
