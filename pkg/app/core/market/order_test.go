package market

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
)

func TestCreateOrder(t *testing.T) {
	f := newFixture(t, "0.1")

	res, err := CreateOrder(f.deps, f.env, Info{Sender: seller},
		OrderMsg{Key: testKey, Price: uluna(10000), ExpireAt: AtTime(testNow + 3600)})
	require.NoError(t, err)
	require.Empty(t, res.Instructions)
	require.Equal(t, []Attribute{
		{Key: "action", Value: "create_order"},
		{Key: "token_id", Value: "1"},
		{Key: "nft_address", Value: nft.Hex()},
		{Key: "seller", Value: seller.Hex()},
		{Key: "price", Value: "10000"},
	}, res.Attributes)

	order, err := QueryOrder(f.store, testKey)
	require.NoError(t, err)
	require.Equal(t, seller, order.Seller)
	require.True(t, order.Price.Equal(uluna(10000)))
	require.Equal(t, AtTime(testNow+3600), order.ExpireAt)
}

func TestCreateOrderValidation(t *testing.T) {
	tests := []struct {
		name    string
		sender  Info
		price   asset.Asset
		exp     Expiration
		wantErr error
	}{
		{"not owner", Info{Sender: buyer}, uluna(10), Never(), ErrUnauthorized},
		{"zero price", Info{Sender: seller}, uluna(0), Never(), ErrInvalidPrice},
		{"expires now", Info{Sender: seller}, uluna(10), AtTime(testNow), ErrInvalidExpiration},
		{"one second short of lead time", Info{Sender: seller}, uluna(10), AtTime(testNow + 59), ErrInvalidExpiration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "0.1")
			before := f.store.snapshot()
			_, err := CreateOrder(f.deps, f.env, tt.sender, OrderMsg{Key: testKey, Price: tt.price, ExpireAt: tt.exp})
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, before, f.store.snapshot())
		})
	}
}

func TestCreateOrderAcceptsExpirations(t *testing.T) {
	for _, exp := range []Expiration{AtTime(testNow + 60), AtHeight(1), AtHeight(testHeight + 10), Never()} {
		f := newFixture(t, "0.1")
		_, err := CreateOrder(f.deps, f.env, Info{Sender: seller}, OrderMsg{Key: testKey, Price: uluna(10), ExpireAt: exp})
		require.NoError(t, err, exp.String())
	}
}

func TestCreateOrderOverwrites(t *testing.T) {
	f := newFixture(t, "0.1")
	f.list(t, 100, Never())
	f.list(t, 200, AtHeight(500))

	order, err := QueryOrder(f.store, testKey)
	require.NoError(t, err)
	require.Equal(t, uint64(200), order.Price.Amount.Uint64())
	require.Equal(t, AtHeight(500), order.ExpireAt)
}

func TestUpdateOrder(t *testing.T) {
	f := newFixture(t, "0.1")
	f.list(t, 10000, Never())
	f.bid(t, bidder1, 10000, Never())

	res, err := UpdateOrder(f.deps, f.env, Info{Sender: seller},
		OrderMsg{Key: testKey, Price: uluna(15000), ExpireAt: AtTime(testNow + 120)})
	require.NoError(t, err)
	require.Empty(t, res.Instructions)
	v, _ := res.Attribute("action")
	require.Equal(t, "update_order", v)

	order, err := QueryOrder(f.store, testKey)
	require.NoError(t, err)
	require.Equal(t, uint64(15000), order.Price.Amount.Uint64())
	require.Equal(t, AtTime(testNow+120), order.ExpireAt)

	bid, err := QueryBid(f.store, testKey)
	require.NoError(t, err)
	require.Equal(t, bidder1, bid.Bidder)
	require.Equal(t, uint64(10000), bid.Price.Amount.Uint64())
}

func TestUpdateOrderValidation(t *testing.T) {
	t.Run("no order", func(t *testing.T) {
		f := newFixture(t, "0.1")
		_, err := UpdateOrder(f.deps, f.env, Info{Sender: seller}, OrderMsg{Key: testKey, Price: uluna(1), ExpireAt: Never()})
		require.ErrorIs(t, err, ErrNoOrder)
	})

	t.Run("expired order", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, AtTime(testNow+60))
		f.env.Time = testNow + 61
		_, err := UpdateOrder(f.deps, f.env, Info{Sender: seller}, OrderMsg{Key: testKey, Price: uluna(1), ExpireAt: Never()})
		require.ErrorIs(t, err, ErrExpired)
	})

	t.Run("expiring exactly now is still live", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, AtTime(testNow+60))
		f.env.Time = testNow + 60
		_, err := UpdateOrder(f.deps, f.env, Info{Sender: seller}, OrderMsg{Key: testKey, Price: uluna(1), ExpireAt: Never()})
		require.NoError(t, err)
	})

	tests := []struct {
		name    string
		sender  Info
		price   asset.Asset
		exp     Expiration
		wantErr error
	}{
		{"zero price", Info{Sender: seller}, uluna(0), Never(), ErrInvalidPrice},
		{"short expiration", Info{Sender: seller}, uluna(5), AtTime(testNow + 30), ErrInvalidExpiration},
		{"not seller", Info{Sender: buyer}, uluna(5), Never(), ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "0.1")
			f.list(t, 100, Never())
			before := f.store.snapshot()
			_, err := UpdateOrder(f.deps, f.env, tt.sender, OrderMsg{Key: testKey, Price: tt.price, ExpireAt: tt.exp})
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, before, f.store.snapshot())
		})
	}
}

func TestCancelOrder(t *testing.T) {
	t.Run("without bid", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, Never())

		res, err := CancelOrder(f.deps, f.env, Info{Sender: seller}, KeyMsg{Key: testKey})
		require.NoError(t, err)
		requireInstructions(t, []asset.Instruction{nftTo(seller)}, res.Instructions)

		_, err = QueryOrder(f.store, testKey)
		require.ErrorIs(t, err, ErrNoOrder)
	})

	t.Run("refunds standing bid before returning asset", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, Never())
		f.bid(t, bidder1, 150, Never())

		res, err := CancelOrder(f.deps, f.env, Info{Sender: seller}, KeyMsg{Key: testKey})
		require.NoError(t, err)
		requireInstructions(t, []asset.Instruction{bankSend(bidder1, 150), nftTo(seller)}, res.Instructions)

		_, err = QueryBid(f.store, testKey)
		require.ErrorIs(t, err, ErrNoBid)
		_, err = QueryOrder(f.store, testKey)
		require.ErrorIs(t, err, ErrNoOrder)
	})

	t.Run("not seller", func(t *testing.T) {
		f := newFixture(t, "0.1")
		f.list(t, 100, Never())
		f.bid(t, bidder1, 150, Never())
		before := f.store.snapshot()

		_, err := CancelOrder(f.deps, f.env, Info{Sender: bidder1}, KeyMsg{Key: testKey})
		require.ErrorIs(t, err, ErrUnauthorized)
		require.Equal(t, before, f.store.snapshot())
	})

	t.Run("no order", func(t *testing.T) {
		f := newFixture(t, "0.1")
		_, err := CancelOrder(f.deps, f.env, Info{Sender: seller}, KeyMsg{Key: testKey})
		require.ErrorIs(t, err, ErrNoOrder)
	})
}
