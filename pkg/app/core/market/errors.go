package market

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrMarketplacePaused = errors.New("marketplace paused")
	ErrNoOrder           = errors.New("order does not exist")
	ErrNoBid             = errors.New("bid does not exist")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrInvalidExpiration = errors.New("invalid expiration")
	ErrExpired           = errors.New("order expired")
	ErrBidExpired        = errors.New("bid expired")
	ErrZeroBidAmount     = errors.New("bid amount must be greater than zero")
	ErrInvalidBidAmount  = errors.New("bid amount must exceed the current bid")
	ErrInvalidCutRate    = errors.New("owner cut rate out of range")
	ErrMinPrice          = errors.New("bid below order price")

	// ErrInsufficientFunds is shared with the asset package so callers can
	// match either with errors.Is.
	ErrInsufficientFunds = asset.ErrInsufficientFunds
)

// MinPriceError reports a bid whose amount is below the order price.
// MinBidAmount carries the offered amount.
type MinPriceError struct {
	MinBidAmount *uint256.Int
}

func (e *MinPriceError) Error() string {
	return fmt.Sprintf("minimum bid amount: %s", e.MinBidAmount.Dec())
}

// Is lets errors.Is(err, ErrMinPrice) match
func (e *MinPriceError) Is(target error) bool {
	return target == ErrMinPrice
}
