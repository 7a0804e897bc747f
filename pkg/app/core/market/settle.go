package market

import (
	"fmt"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
)

// SafeExecuteOrder settles an Order directly: the caller pays the listed
// price and receives the asset. Instruction order is fee payout, seller
// payout, refund of any standing Bid, then the asset transfer.
func SafeExecuteOrder(deps Deps, env Env, info Info, msg SettleMsg) (*Response, error) {
	order, err := loadOrder(deps.Store, msg.Key)
	if err != nil {
		return nil, err
	}
	if !order.Price.Equal(msg.Price) {
		return nil, ErrInvalidPrice
	}
	if err := msg.Price.AssertSentNativeAmount(info.Funds); err != nil {
		return nil, err
	}
	cfg, err := deps.Store.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	fee, remainder, err := split(order.Price.Amount, order.Price.Amount, cfg.OwnerCutRate)
	if err != nil {
		return nil, err
	}

	res := NewResponse()
	if cfg.OwnerCutRate.IsPositive() {
		res.AddInstruction(order.Price.WithAmount(fee).Instruction(cfg.Owner))
	}
	res.AddInstruction(order.Price.WithAmount(remainder).Instruction(order.Seller))

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
		To:         info.Sender,
	})

	if err := deps.Store.DeleteOrder(msg.Key); err != nil {
		return nil, fmt.Errorf("delete order: %w", err)
	}
	if err := deps.Store.AddSale(&Sale{
		Key:    order.Key,
		Seller: order.Seller,
		Buyer:  info.Sender,
		Price:  order.Price,
		Fee:    order.Price.WithAmount(fee),
		Height: env.Height,
		Time:   env.Time,
		Kind:   SaleDirect,
	}); err != nil {
		return nil, fmt.Errorf("record sale: %w", err)
	}

	return res.
		AddAttribute("action", "_"+ActionSafeExecuteOrder).
		AddAttribute("token_id", order.Instance).
		AddAttribute("nft_address", order.Collection.Hex()).
		AddAttribute("seller", order.Seller.Hex()).
		AddAttribute("buyer", info.Sender.Hex()).
		AddAttribute("price", order.Price.String()).
		AddAttribute("fee", fee.Dec()), nil
}

// AcceptBid lets the seller settle against the standing Bid.
//
// The fee is taken off the Order's listed price, not the Bid price:
// seller payout is bid amount minus floor(order amount * cut rate).
// The seller attaches the bid amount as confirmation; it is handed back
// after the asset transfer so nothing stays in the marketplace account.
func AcceptBid(deps Deps, env Env, info Info, msg SettleMsg) (*Response, error) {
	cfg, err := deps.Store.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	order, err := loadOrder(deps.Store, msg.Key)
	if err != nil {
		return nil, err
	}
	if order.Seller != info.Sender {
		return nil, ErrUnauthorized
	}
	if order.ExpireAt.TimeExpired(env.Time) {
		return nil, ErrExpired
	}
	bid, found, err := deps.Store.GetBid(msg.Key)
	if err != nil {
		return nil, fmt.Errorf("load bid %s: %w", msg.Key, err)
	}
	if !found {
		return nil, ErrNoBid
	}
	if err := msg.Price.AssertSentNativeAmount(info.Funds); err != nil {
		return nil, err
	}
	if !bid.Price.Equal(msg.Price) {
		return nil, ErrInvalidPrice
	}
	if bid.ExpireAt.TimeExpired(env.Time) {
		return nil, ErrBidExpired
	}

	fee, remainder, err := split(bid.Price.Amount, order.Price.Amount, cfg.OwnerCutRate)
	if err != nil {
		return nil, err
	}

	res := NewResponse()
	if cfg.OwnerCutRate.IsPositive() {
		res.AddInstruction(bid.Price.WithAmount(fee).Instruction(cfg.Owner))
	}
	res.AddInstruction(bid.Price.WithAmount(remainder).Instruction(order.Seller))
	res.AddInstruction(asset.NFTTransfer{
		Collection: order.Collection,
		Instance:   order.Instance,
		To:         bid.Bidder,
	})
	if msg.Price.IsNative() && !msg.Price.Amount.IsZero() {
		res.AddInstruction(msg.Price.Instruction(info.Sender))
	}

	if err := deps.Store.DeleteBid(msg.Key); err != nil {
		return nil, fmt.Errorf("delete bid: %w", err)
	}
	if err := deps.Store.DeleteOrder(msg.Key); err != nil {
		return nil, fmt.Errorf("delete order: %w", err)
	}
	if err := deps.Store.AddSale(&Sale{
		Key:    order.Key,
		Seller: order.Seller,
		Buyer:  bid.Bidder,
		Price:  bid.Price,
		Fee:    bid.Price.WithAmount(fee),
		Height: env.Height,
		Time:   env.Time,
		Kind:   SaleBid,
	}); err != nil {
		return nil, fmt.Errorf("record sale: %w", err)
	}

	return res.
		AddAttribute("action", "execute_order").
		AddAttribute("token_id", order.Instance).
		AddAttribute("nft_address", order.Collection.Hex()).
		AddAttribute("seller", order.Seller.Hex()).
		AddAttribute("bidder", bid.Bidder.Hex()).
		AddAttribute("price", order.Price.String()).
		AddAttribute("fee", fee.Dec()), nil
}
