package ledger

import (
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// NativeAsset is the reserved asset identifier for the chain's native
// currency. It doubles as the null account, so no token can ever live there.
var NativeAsset = common.Address{}

// IsNative reports whether asset is the native-currency sentinel
func IsNative(asset common.Address) bool {
	return asset == NativeAsset
}

// Zero returns a fresh zero amount
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// Units returns n whole units of an asset with the given decimals
// (n × 10^decimals). Units(1, 18) is one ether / one token.
func Units(n uint64, decimals uint8) *uint256.Int {
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	return new(uint256.Int).Mul(uint256.NewInt(n), scale)
}

// ParseAmount parses a base-10 amount. An empty string is zero.
func ParseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return Zero(), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidTransaction, "bad amount %q: %v", s, err)
	}
	return v, nil
}

// Add returns a+b, failing with ErrOverflow instead of wrapping
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, errors.Wrapf(ErrOverflow, "%s + %s", a.Dec(), b.Dec())
	}
	return sum, nil
}

// Percent returns floor(amount × pct / 100)
func Percent(amount *uint256.Int, pct uint64) (*uint256.Int, error) {
	prod, overflow := new(uint256.Int).MulOverflow(amount, uint256.NewInt(pct))
	if overflow {
		return nil, errors.Wrapf(ErrOverflow, "%s × %d%%", amount.Dec(), pct)
	}
	return prod.Div(prod, uint256.NewInt(100)), nil
}
