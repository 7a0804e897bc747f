package market

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
)

func TestCreateBid(t *testing.T) {
	f := newFixture(t, "0.1")
	f.list(t, 10000, Never())

	res := f.bid(t, bidder1, 10000, AtTime(testNow+600))
	require.Empty(t, res.Instructions)
	v, _ := res.Attribute("bidder")
	require.Equal(t, bidder1.Hex(), v)

	bid, err := QueryBid(f.store, testKey)
	require.NoError(t, err)
	require.Equal(t, seller, bid.Seller)
	require.Equal(t, bidder1, bid.Bidder)
	require.True(t, bid.Price.Equal(uluna(10000)))
}

func TestCreateBidRejections(t *testing.T) {
	t.Run("no order", func(t *testing.T) {
		f := newFixture(t, "0.1")
		_, err := CreateBid(f.deps, f.env, Info{Sender: bidder1, Funds: funds(uluna(1))},
			OrderMsg{Key: testKey, Price: uluna(1), ExpireAt: Never()})
		require.ErrorIs(t, err, ErrNoOrder)
	})

	t.Run("expired order", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, AtTime(testNow+60))
		f.env.Time = testNow + 100
		_, err := CreateBid(f.deps, f.env, Info{Sender: bidder1, Funds: funds(uluna(100))},
			OrderMsg{Key: testKey, Price: uluna(100), ExpireAt: Never()})
		require.ErrorIs(t, err, ErrExpired)
	})

	t.Run("below order price reports offered amount", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 10000, Never())
		before := f.store.snapshot()

		_, err := CreateBid(f.deps, f.env, Info{Sender: bidder1, Funds: funds(uluna(9000))},
			OrderMsg{Key: testKey, Price: uluna(9000), ExpireAt: Never()})
		require.ErrorIs(t, err, ErrMinPrice)
		var minErr *MinPriceError
		require.True(t, errors.As(err, &minErr))
		require.Equal(t, uint64(9000), minErr.MinBidAmount.Uint64())
		require.Equal(t, before, f.store.snapshot())
	})

	t.Run("different denom", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, Never())
		_, err := CreateBid(f.deps, f.env, Info{Sender: bidder1, Funds: funds(asset.Native("uusd", 100))},
			OrderMsg{Key: testKey, Price: asset.Native("uusd", 100), ExpireAt: Never()})
		require.ErrorIs(t, err, ErrInvalidPrice)
	})

	t.Run("funds not attached", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, Never())
		_, err := CreateBid(f.deps, f.env, Info{Sender: bidder1, Funds: funds(uluna(99))},
			OrderMsg{Key: testKey, Price: uluna(100), ExpireAt: Never()})
		require.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("missing amount", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, Never())
		before := f.store.snapshot()

		// caught before the order price comparison, so no MinPriceError
		_, err := CreateBid(f.deps, f.env, Info{Sender: bidder1},
			OrderMsg{Key: testKey, Price: asset.Asset{Info: asset.NativeToken{Denom: "uluna"}}, ExpireAt: Never()})
		require.ErrorIs(t, err, ErrZeroBidAmount)
		require.NotErrorIs(t, err, ErrMinPrice)
		require.Equal(t, before, f.store.snapshot())
	})
}

func TestCreateBidReplacement(t *testing.T) {
	t.Run("higher bid refunds prior bidder first", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 10000, Never())
		f.bid(t, bidder1, 10000, Never())

		res := f.bid(t, bidder2, 12000, Never())
		requireInstructions(t, []asset.Instruction{bankSend(bidder1, 10000)}, res.Instructions)

		bid, err := QueryBid(f.store, testKey)
		require.NoError(t, err)
		require.Equal(t, bidder2, bid.Bidder)
		require.Equal(t, uint64(12000), bid.Price.Amount.Uint64())
	})

	t.Run("equal bid replaces", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, Never())
		f.bid(t, bidder1, 150, AtTime(testNow+600))
		res := f.bid(t, bidder2, 150, Never())
		requireInstructions(t, []asset.Instruction{bankSend(bidder1, 150)}, res.Instructions)
	})

	t.Run("lower than live bid", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, Never())
		f.bid(t, bidder1, 150, AtTime(testNow+600))
		before := f.store.snapshot()

		_, err := CreateBid(f.deps, f.env, Info{Sender: bidder2, Funds: funds(uluna(120))},
			OrderMsg{Key: testKey, Price: uluna(120), ExpireAt: Never()})
		require.ErrorIs(t, err, ErrInvalidBidAmount)
		require.Equal(t, before, f.store.snapshot())
	})

	t.Run("lower than never-expiring bid", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, Never())
		f.bid(t, bidder1, 150, Never())
		_, err := CreateBid(f.deps, f.env, Info{Sender: bidder2, Funds: funds(uluna(120))},
			OrderMsg{Key: testKey, Price: uluna(120), ExpireAt: Never()})
		require.ErrorIs(t, err, ErrInvalidBidAmount)
	})

	t.Run("lower than expired bid still refunds it", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, Never())
		f.bid(t, bidder1, 150, AtTime(testNow+10))
		f.env.Time = testNow + 11

		res := f.bid(t, bidder2, 120, Never())
		requireInstructions(t, []asset.Instruction{bankSend(bidder1, 150)}, res.Instructions)

		bid, err := QueryBid(f.store, testKey)
		require.NoError(t, err)
		require.Equal(t, bidder2, bid.Bidder)
	})
}

func TestCancelBid(t *testing.T) {
	f := newFixture(t, "0.1")

	_, err := CancelBid(f.deps, f.env, Info{Sender: bidder1}, KeyMsg{Key: testKey})
	require.ErrorIs(t, err, ErrNoBid)

	f.list(t, 100, Never())
	f.bid(t, bidder1, 100, Never())

	res, err := CancelBid(f.deps, f.env, Info{Sender: bidder1}, KeyMsg{Key: testKey})
	require.NoError(t, err)
	requireInstructions(t, []asset.Instruction{bankSend(bidder1, 100)}, res.Instructions)

	_, err = QueryBid(f.store, testKey)
	require.ErrorIs(t, err, ErrNoBid)
	_, err = QueryOrder(f.store, testKey)
	require.NoError(t, err, "order survives bid cancellation")
}
