// Package fixedpoint implements the integer arithmetic used by the staking
// accumulator and the router split. Values are unsigned 256-bit integers and
// every division truncates toward zero.
package fixedpoint

import (
	"fmt"

	"github.com/holiman/uint256"

	"tipLedger/internal/model"
)

// ScaleDecimals is the number of fractional decimal digits carried by the
// reward-per-share accumulator.
const ScaleDecimals = 12

// Scale returns 10^ScaleDecimals.
func Scale() *uint256.Int {
	return uint256.NewInt(1_000_000_000_000)
}

// Zero returns a new zero value.
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// Add returns x + y.
func Add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, fmt.Errorf("%w: %s + %s", model.ErrOverflow, x.Dec(), y.Dec())
	}
	return z, nil
}

// Sub returns x - y and fails if y > x.
func Sub(x, y *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, fmt.Errorf("%w: %s - %s", model.ErrOverflow, x.Dec(), y.Dec())
	}
	return z, nil
}

// MulDiv returns floor(x * y / d) using a 512-bit intermediate product.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("%w: division by zero", model.ErrOverflow)
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, fmt.Errorf("%w: %s * %s / %s", model.ErrOverflow, x.Dec(), y.Dec(), d.Dec())
	}
	return z, nil
}

// Portion returns floor(amount * rate / scale), the share of amount selected
// by a rate expressed in units of scale.
func Portion(amount *uint256.Int, rate, scale uint64) (*uint256.Int, error) {
	return MulDiv(amount, uint256.NewInt(rate), uint256.NewInt(scale))
}

// Parse reads a decimal amount. Empty input is zero.
func Parse(input string) (*uint256.Int, error) {
	if input == "" {
		return Zero(), nil
	}
	value, err := uint256.FromDecimal(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", model.ErrInvalidAmount, input, err)
	}
	return value, nil
}

// MustParse is Parse for constants and tests.
func MustParse(input string) *uint256.Int {
	value, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return value
}

// Ether returns n * 10^18, the base-unit amount of n whole 18-decimal tokens.
func Ether(n uint64) *uint256.Int {
	unit := uint256.NewInt(1_000_000_000_000_000_000)
	return new(uint256.Int).Mul(uint256.NewInt(n), unit)
}
