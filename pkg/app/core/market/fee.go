package market

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// CutAmount returns floor(amount * rate)
func CutAmount(amount *uint256.Int, rate decimal.Decimal) (*uint256.Int, error) {
	if rate.IsNegative() {
		return nil, fmt.Errorf("%w: negative rate %s", ErrInvalidCutRate, rate)
	}
	if rate.IsZero() || amount.IsZero() {
		return new(uint256.Int), nil
	}
	product := decimal.NewFromBigInt(amount.ToBig(), 0).Mul(rate).Floor()
	fee, overflow := uint256.FromBig(product.BigInt())
	if overflow {
		return nil, fmt.Errorf("%w: fee overflows 256 bits", ErrInvalidCutRate)
	}
	return fee, nil
}

// split charges the cut on base and deducts it from payout.
// It refuses a fee larger than the payout instead of wrapping.
func split(payout, base *uint256.Int, rate decimal.Decimal) (fee, remainder *uint256.Int, err error) {
	fee, err = CutAmount(base, rate)
	if err != nil {
		return nil, nil, err
	}
	if fee.Gt(payout) {
		return nil, nil, fmt.Errorf("%w: fee %s exceeds payout %s", ErrInvalidPrice, fee.Dec(), payout.Dec())
	}
	return fee, new(uint256.Int).Sub(payout, fee), nil
}
