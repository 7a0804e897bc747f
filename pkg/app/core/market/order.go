package market

import (
	"fmt"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
)

// CreateOrder lists an asset the caller currently owns.
// Any previous Order for the key is overwritten.
func CreateOrder(deps Deps, env Env, info Info, msg OrderMsg) (*Response, error) {
	owner, err := deps.Registry.OwnerOf(msg.Key)
	if err != nil {
		return nil, fmt.Errorf("query owner of %s: %w", msg.Key, err)
	}
	if owner != info.Sender {
		return nil, ErrUnauthorized
	}
	if err := validateListing(env, msg.Price, msg.ExpireAt); err != nil {
		return nil, err
	}

	order := &Order{
		Key:      msg.Key,
		Seller:   info.Sender,
		Price:    msg.Price,
		ExpireAt: msg.ExpireAt,
	}
	if err := deps.Store.SetOrder(order); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}

	return NewResponse().
		AddAttribute("action", ActionCreateOrder).
		AddAttribute("token_id", order.Instance).
		AddAttribute("nft_address", order.Collection.Hex()).
		AddAttribute("seller", order.Seller.Hex()).
		AddAttribute("price", order.Price.Amount.Dec()), nil
}

// UpdateOrder replaces the price and expiration of a live Order.
// A standing Bid is left untouched.
func UpdateOrder(deps Deps, env Env, info Info, msg OrderMsg) (*Response, error) {
	order, err := loadOrder(deps.Store, msg.Key)
	if err != nil {
		return nil, err
	}
	if order.ExpireAt.TimeExpired(env.Time) {
		return nil, ErrExpired
	}
	if err := validateListing(env, msg.Price, msg.ExpireAt); err != nil {
		return nil, err
	}
	if order.Seller != info.Sender {
		return nil, ErrUnauthorized
	}

	order.Price = msg.Price
	order.ExpireAt = msg.ExpireAt
	if err := deps.Store.SetOrder(order); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}

	return NewResponse().
		AddAttribute("action", ActionUpdateOrder).
		AddAttribute("token_id", order.Instance).
		AddAttribute("nft_address", order.Collection.Hex()).
		AddAttribute("price", order.Price.Amount.Dec()), nil
}

// CancelOrder withdraws a listing. A standing Bid is refunded first,
// then the asset is returned to the seller.
func CancelOrder(deps Deps, env Env, info Info, msg KeyMsg) (*Response, error) {
	order, err := loadOrder(deps.Store, msg.Key)
	if err != nil {
		return nil, err
	}
	if order.Seller != info.Sender {
		return nil, ErrUnauthorized
	}

	res := NewResponse()
	refund, err := forceCancelBid(deps.Store, msg.Key)
	if err != nil {
		return nil, err
	}
	if refund != nil {
		res.AddInstruction(refund)
	}
	res.AddInstruction(asset.NFTTransfer{
		Collection: order.Collection,
		Instance:   order.Instance,
		To:         order.Seller,
	})

	if err := deps.Store.DeleteOrder(msg.Key); err != nil {
		return nil, fmt.Errorf("delete order: %w", err)
	}

	return res.
		AddAttribute("action", ActionCancelOrder).
		AddAttribute("token_id", order.Instance).
		AddAttribute("nft_address", order.Collection.Hex()), nil
}

// validateListing applies the price and lead-time rules shared by
// create_order and update_order
func validateListing(env Env, price asset.Asset, expireAt Expiration) error {
	if price.Amount == nil || price.Amount.IsZero() {
		return ErrInvalidPrice
	}
	if expireAt.IsTime() && expireAt.Value < env.Time+MinOrderLifetime {
		return ErrInvalidExpiration
	}
	return nil
}

func loadOrder(store Store, key Key) (*Order, error) {
	order, found, err := store.GetOrder(key)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", key, err)
	}
	if !found {
		return nil, ErrNoOrder
	}
	return order, nil
}
