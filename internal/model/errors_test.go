package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestUnauthorizedIsIndependent(t *testing.T) {
	if errors.Is(ErrUnauthorized, ErrInvalidRateConfiguration) {
		t.Fatalf("unauthorized should not match invalid rate configuration")
	}
	joined := fmt.Errorf("set burn rate: %w: %w", ErrUnauthorized, ErrInvalidRateConfiguration)
	if got := ErrorCode(joined); got != "Unauthorized" {
		t.Fatalf("ErrorCode(joined) = %q, want Unauthorized", got)
	}
}

func TestErrorCode(t *testing.T) {
	cases := map[error]string{
		nil: "",
		fmt.Errorf("withdraw: %w", ErrInsufficientStake): "InsufficientStake",
		fmt.Errorf("pull: %w", ErrInsufficientBalance):   "InsufficientBalance",
		ErrInvalidAmount:                              "InvalidAmount",
		ErrUnauthorized:                               "Unauthorized",
		ErrInvalidRateConfiguration:                   "InvalidRateConfiguration",
		fmt.Errorf("hook: %w", ErrReentrancyDetected): "ReentrancyDetected",
		fmt.Errorf("kind: %w", ErrInvalidOperation):   "InvalidOperation",
		errors.New("boom"):                            "Unknown",
	}
	for err, want := range cases {
		if got := ErrorCode(err); got != want {
			t.Fatalf("ErrorCode(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestRateConfigSum(t *testing.T) {
	rates := RateConfig{BurnRate: 10, FundRate: 45, RewardRate: 45}
	if rates.Sum() != 100 {
		t.Fatalf("sum mismatch: %d", rates.Sum())
	}
}
