package market

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
)

func TestSafeExecuteOrder(t *testing.T) {
	f := newFixture(t, "0.1")
	f.list(t, 10000, Never())

	res, err := SafeExecuteOrder(f.deps, f.env, Info{Sender: buyer, Funds: funds(uluna(10000))},
		SettleMsg{Key: testKey, Price: uluna(10000)})
	require.NoError(t, err)
	requireInstructions(t, []asset.Instruction{
		bankSend(owner, 1000),
		bankSend(seller, 9000),
		nftTo(buyer),
	}, res.Instructions)

	_, err = QueryOrder(f.store, testKey)
	require.ErrorIs(t, err, ErrNoOrder)

	require.Len(t, f.store.sales, 1)
	sale := f.store.sales[0]
	require.Equal(t, SaleDirect, sale.Kind)
	require.Equal(t, buyer, sale.Buyer)
	require.Equal(t, uint64(1000), sale.Fee.Amount.Uint64())
	require.Equal(t, testHeight, sale.Height)
}

func TestSafeExecuteOrderRefundsStandingBid(t *testing.T) {
	f := newFixture(t, "0.1")
	f.list(t, 10000, Never())
	f.bid(t, bidder1, 11000, Never())

	res, err := SafeExecuteOrder(f.deps, f.env, Info{Sender: buyer, Funds: funds(uluna(10000))},
		SettleMsg{Key: testKey, Price: uluna(10000)})
	require.NoError(t, err)
	requireInstructions(t, []asset.Instruction{
		bankSend(owner, 1000),
		bankSend(seller, 9000),
		bankSend(bidder1, 11000),
		nftTo(buyer),
	}, res.Instructions)

	_, err = QueryBid(f.store, testKey)
	require.ErrorIs(t, err, ErrNoBid)
}

func TestSafeExecuteOrderZeroCut(t *testing.T) {
	f := newFixture(t, "0")
	f.list(t, 10000, Never())

	res, err := SafeExecuteOrder(f.deps, f.env, Info{Sender: buyer, Funds: funds(uluna(10000))},
		SettleMsg{Key: testKey, Price: uluna(10000)})
	require.NoError(t, err)
	requireInstructions(t, []asset.Instruction{
		bankSend(seller, 10000),
		nftTo(buyer),
	}, res.Instructions)
}

func TestSafeExecuteOrderTokenPrice(t *testing.T) {
	f := newFixture(t, "0.05")
	_, err := CreateOrder(f.deps, f.env, Info{Sender: seller},
		OrderMsg{Key: testKey, Price: asset.FromToken(cw20, 2000), ExpireAt: Never()})
	require.NoError(t, err)

	res, err := SafeExecuteOrder(f.deps, f.env, Info{Sender: buyer},
		SettleMsg{Key: testKey, Price: asset.FromToken(cw20, 2000)})
	require.NoError(t, err)
	requireInstructions(t, []asset.Instruction{
		asset.FromToken(cw20, 100).Instruction(owner),
		asset.FromToken(cw20, 1900).Instruction(seller),
		nftTo(buyer),
	}, res.Instructions)
}

func TestSafeExecuteOrderRejections(t *testing.T) {
	tests := []struct {
		name    string
		info    Info
		price   asset.Asset
		wantErr error
	}{
		{"wrong amount", Info{Sender: buyer, Funds: funds(uluna(9999))}, uluna(9999), ErrInvalidPrice},
		{"wrong denom", Info{Sender: buyer, Funds: funds(asset.Native("uusd", 10000))}, asset.Native("uusd", 10000), ErrInvalidPrice},
		{"funds missing", Info{Sender: buyer}, uluna(10000), ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "0.1")
			f.list(t, 10000, Never())
			before := f.store.snapshot()
			_, err := SafeExecuteOrder(f.deps, f.env, tt.info, SettleMsg{Key: testKey, Price: tt.price})
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, before, f.store.snapshot())
		})
	}

	t.Run("no order", func(t *testing.T) {
		f := newFixture(t, "0.1")
		_, err := SafeExecuteOrder(f.deps, f.env, Info{Sender: buyer, Funds: funds(uluna(1))}, SettleMsg{Key: testKey, Price: uluna(1)})
		require.ErrorIs(t, err, ErrNoOrder)
	})
}

// Scenario: order 10000, bid 10000 replaced by 12000, accepted at 12000
// with a 10% cut. The fee is taken off the order price (1000), not the
// bid price, so the seller receives 12000 - 1000 = 11000.
func TestAcceptBidScenario(t *testing.T) {
	f := newFixture(t, "0.1")
	f.list(t, 10000, Never())
	f.bid(t, bidder1, 10000, Never())

	res := f.bid(t, bidder2, 12000, Never())
	requireInstructions(t, []asset.Instruction{bankSend(bidder1, 10000)}, res.Instructions)
	order, err := QueryOrder(f.store, testKey)
	require.NoError(t, err)
	require.Equal(t, uint64(10000), order.Price.Amount.Uint64(), "replacement leaves the order alone")

	res, err = AcceptBid(f.deps, f.env, Info{Sender: seller, Funds: funds(uluna(12000))},
		SettleMsg{Key: testKey, Price: uluna(12000)})
	require.NoError(t, err)
	// fee, payout, nft, then the seller's confirmation funds come back last
	require.Len(t, res.Instructions, 4)
	kinds := make([]string, len(res.Instructions))
	for i, ins := range res.Instructions {
		kinds[i] = ins.Kind()
	}
	require.Equal(t, []string{"bank_send", "bank_send", "nft_transfer", "bank_send"}, kinds)
	requireInstructions(t, []asset.Instruction{
		bankSend(owner, 1000),
		bankSend(seller, 11000),
		nftTo(bidder2),
		bankSend(seller, 12000),
	}, res.Instructions)
	fee, _ := res.Attribute("fee")
	require.Equal(t, "1000", fee)

	_, err = QueryOrder(f.store, testKey)
	require.ErrorIs(t, err, ErrNoOrder)
	_, err = QueryBid(f.store, testKey)
	require.ErrorIs(t, err, ErrNoBid)

	require.Len(t, f.store.sales, 1)
	require.Equal(t, SaleBid, f.store.sales[0].Kind)
	require.Equal(t, bidder2, f.store.sales[0].Buyer)
}

func TestAcceptBidRejections(t *testing.T) {
	accept := func(f *fixture, sender Info, price asset.Asset) error {
		_, err := AcceptBid(f.deps, f.env, sender, SettleMsg{Key: testKey, Price: price})
		return err
	}
	sellerWith := func(amount uint64) Info {
		return Info{Sender: seller, Funds: funds(uluna(amount))}
	}

	t.Run("no order", func(t *testing.T) {
		f := newFixture(t, "0.1")
		require.ErrorIs(t, accept(f, sellerWith(100), uluna(100)), ErrNoOrder)
	})

	t.Run("not seller", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, Never())
		f.bid(t, bidder1, 100, Never())
		require.ErrorIs(t, accept(f, Info{Sender: bidder1, Funds: funds(uluna(100))}, uluna(100)), ErrUnauthorized)
	})

	t.Run("order expired", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, AtTime(testNow+60))
		f.bid(t, bidder1, 100, Never())
		f.env.Time = testNow + 61
		require.ErrorIs(t, accept(f, sellerWith(100), uluna(100)), ErrExpired)
	})

	t.Run("no bid", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, Never())
		require.ErrorIs(t, accept(f, sellerWith(100), uluna(100)), ErrNoBid)
	})

	t.Run("funds mismatch", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, Never())
		f.bid(t, bidder1, 100, Never())
		require.ErrorIs(t, accept(f, sellerWith(50), uluna(100)), ErrInsufficientFunds)
	})

	t.Run("price differs from bid", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, Never())
		f.bid(t, bidder1, 120, Never())
		require.ErrorIs(t, accept(f, sellerWith(100), uluna(100)), ErrInvalidPrice)
	})

	t.Run("bid expired while order is live", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, AtTime(testNow+3600))
		f.bid(t, bidder1, 100, AtTime(testNow+10))
		f.env.Time = testNow + 11
		before := f.store.snapshot()
		require.ErrorIs(t, accept(f, sellerWith(100), uluna(100)), ErrBidExpired)
		require.Equal(t, before, f.store.snapshot())
	})
}

// Raising the order price above a standing bid makes the order-price fee
// exceed the bid payout; settlement refuses instead of underflowing.
func TestAcceptBidFeeGuard(t *testing.T) {
	f := newFixture(t, "0.1")
	f.list(t, 100, Never())
	f.bid(t, bidder1, 100, Never())
	_, err := UpdateOrder(f.deps, f.env, Info{Sender: seller},
		OrderMsg{Key: testKey, Price: uluna(5000), ExpireAt: Never()})
	require.NoError(t, err)

	before := f.store.snapshot()
	_, err = AcceptBid(f.deps, f.env, Info{Sender: seller, Funds: funds(uluna(100))},
		SettleMsg{Key: testKey, Price: uluna(100)})
	require.ErrorIs(t, err, ErrInvalidPrice)
	require.Equal(t, before, f.store.snapshot())
}

func TestDirectSettlementConservesAmount(t *testing.T) {
	for _, rate := range []string{"0", "0.01", "0.025", "0.0333", "0.1"} {
		for _, amount := range []uint64{1, 7, 99, 10001, 123456789} {
			fee, rest, err := split(uint256.NewInt(amount), uint256.NewInt(amount), decimal.RequireFromString(rate))
			require.NoError(t, err)
			total := new(uint256.Int).Add(fee, rest)
			require.Equal(t, amount, total.Uint64(), "rate %s amount %d", rate, amount)
		}
	}
}

func TestCutAmountFloors(t *testing.T) {
	fee, err := CutAmount(uint256.NewInt(10009), decimal.RequireFromString("0.1"))
	require.NoError(t, err)
	require.Equal(t, uint64(1000), fee.Uint64())

	fee, err = CutAmount(uint256.NewInt(9), decimal.RequireFromString("0.1"))
	require.NoError(t, err)
	require.True(t, fee.IsZero())
}
