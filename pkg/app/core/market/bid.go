package market

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
)

// CreateBid places an escrowed offer on a listed asset. The caller must
// attach the bid amount. A standing Bid is replaced and refunded, with
// the refund emitted before the new Bid is stored.
func CreateBid(deps Deps, env Env, info Info, msg OrderMsg) (*Response, error) {
	order, err := loadOrder(deps.Store, msg.Key)
	if err != nil {
		return nil, err
	}
	if order.ExpireAt.TimeExpired(env.Time) {
		return nil, ErrExpired
	}
	if msg.Price.Amount == nil {
		return nil, ErrZeroBidAmount
	}
	if msg.Price.Amount.Lt(order.Price.Amount) {
		return nil, &MinPriceError{MinBidAmount: new(uint256.Int).Set(msg.Price.Amount)}
	}
	if !msg.Price.SameDenom(order.Price) {
		return nil, fmt.Errorf("%w: bid denom %s does not match order denom %s",
			ErrInvalidPrice, msg.Price.Info, order.Price.Info)
	}

	existing, hasBid, err := deps.Store.GetBid(msg.Key)
	if err != nil {
		return nil, fmt.Errorf("load bid %s: %w", msg.Key, err)
	}
	if hasBid && !existing.ExpireAt.TimeExpired(env.Time) {
		if msg.Price.Amount.Lt(existing.Price.Amount) {
			return nil, ErrInvalidBidAmount
		}
	} else if msg.Price.Amount.IsZero() {
		return nil, ErrZeroBidAmount
	}
	if err := msg.Price.AssertSentNativeAmount(info.Funds); err != nil {
		return nil, err
	}

	res := NewResponse()
	if hasBid {
		refund, err := forceCancelBid(deps.Store, msg.Key)
		if err != nil {
			return nil, err
		}
		res.AddInstruction(refund)
	}

	bid := &Bid{
		Key:      msg.Key,
		Seller:   order.Seller,
		Bidder:   info.Sender,
		Price:    msg.Price,
		ExpireAt: msg.ExpireAt,
	}
	if err := deps.Store.SetBid(bid); err != nil {
		return nil, fmt.Errorf("save bid: %w", err)
	}

	return res.
		AddAttribute("action", ActionCreateBid).
		AddAttribute("token_id", bid.Instance).
		AddAttribute("nft_address", bid.Collection.Hex()).
		AddAttribute("bidder", bid.Bidder.Hex()).
		AddAttribute("price", bid.Price.Amount.Dec()), nil
}

// CancelBid refunds and removes the standing Bid on a key
func CancelBid(deps Deps, env Env, info Info, msg KeyMsg) (*Response, error) {
	refund, err := forceCancelBid(deps.Store, msg.Key)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, ErrNoBid
	}

	return NewResponse().
		AddInstruction(refund).
		AddAttribute("action", ActionCancelBid).
		AddAttribute("token_id", msg.Instance).
		AddAttribute("nft_address", msg.Collection.Hex()), nil
}

// forceCancelBid removes the Bid on key, if any, and returns the refund
// of its escrow to the bidder. Every path that removes an Order or
// replaces a Bid goes through here so escrow is never stranded.
func forceCancelBid(store Store, key Key) (asset.Instruction, error) {
	bid, found, err := store.GetBid(key)
	if err != nil {
		return nil, fmt.Errorf("load bid %s: %w", key, err)
	}
	if !found {
		return nil, nil
	}
	if err := store.DeleteBid(key); err != nil {
		return nil, fmt.Errorf("delete bid: %w", err)
	}
	return bid.Price.Instruction(bid.Bidder), nil
}
