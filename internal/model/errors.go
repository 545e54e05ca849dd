package model

import "errors"

// Ledger failure taxonomy. Every operation that returns one of these has been
// fully reverted before the error reaches the caller.
var (
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrInsufficientStake        = errors.New("insufficient stake")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInvalidRateConfiguration = errors.New("invalid rate configuration")
	ErrReentrancyDetected       = errors.New("reentrancy detected")

	// ErrUnauthorized is reported when a privileged operation is invoked
	// without the required capability.
	ErrUnauthorized = errors.New("unauthorized")

	ErrOverflow = errors.New("arithmetic overflow")

	// ErrInvalidOperation marks a malformed operation record.
	ErrInvalidOperation = errors.New("invalid operation")
)

// ErrorCode maps an error to a stable short code for receipts and journals.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrReentrancyDetected):
		return "ReentrancyDetected"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrInvalidRateConfiguration):
		return "InvalidRateConfiguration"
	case errors.Is(err, ErrInsufficientStake):
		return "InsufficientStake"
	case errors.Is(err, ErrInsufficientBalance):
		return "InsufficientBalance"
	case errors.Is(err, ErrInvalidAmount):
		return "InvalidAmount"
	case errors.Is(err, ErrOverflow):
		return "Overflow"
	case errors.Is(err, ErrInvalidOperation):
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}
