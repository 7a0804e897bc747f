package market

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	tests := []struct {
		rate    string
		wantErr bool
	}{
		{"0", false},
		{"0.05", false},
		{"0.1", false},
		{"0.1000001", true},
		{"0.5", true},
		{"1.5", true},
		{"-0.01", true},
	}
	for _, tt := range tests {
		t.Run(tt.rate, func(t *testing.T) {
			cfg, err := NewConfig(owner, cw20, decimal.RequireFromString(tt.rate))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidCutRate)
				return
			}
			require.NoError(t, err)
			require.True(t, cfg.OwnerCutRateMax.Equal(CutRateCeiling))
		})
	}
}

func TestSetPaused(t *testing.T) {
	f := newFixture(t, "0.1")

	_, err := SetPaused(f.deps, f.env, Info{Sender: seller}, SetPausedMsg{Paused: true})
	require.ErrorIs(t, err, ErrUnauthorized)
	paused, _ := f.store.Paused()
	require.False(t, paused)

	res, err := SetPaused(f.deps, f.env, Info{Sender: owner}, SetPausedMsg{Paused: true})
	require.NoError(t, err)
	v, _ := res.Attribute("paused")
	require.Equal(t, "true", v)
	paused, _ = f.store.Paused()
	require.True(t, paused)
}

func TestExpirationJSON(t *testing.T) {
	tests := []struct {
		exp  Expiration
		wire string
	}{
		{AtHeight(42), `{"at_height":42}`},
		{AtTime(1700000000), `{"at_time":1700000000}`},
		{Never(), `{"never":{}}`},
	}
	for _, tt := range tests {
		data, err := json.Marshal(tt.exp)
		require.NoError(t, err)
		require.JSONEq(t, tt.wire, string(data))

		var back Expiration
		require.NoError(t, json.Unmarshal([]byte(tt.wire), &back))
		require.Equal(t, tt.exp, back)
	}

	var bad Expiration
	require.Error(t, json.Unmarshal([]byte(`{}`), &bad))
	require.Error(t, json.Unmarshal([]byte(`{"at_height":1,"never":{}}`), &bad))
}

func TestTimeExpired(t *testing.T) {
	require.True(t, AtTime(10).TimeExpired(11))
	require.False(t, AtTime(10).TimeExpired(10))
	require.False(t, AtHeight(1).TimeExpired(1<<40))
	require.False(t, Never().TimeExpired(1<<40))
}

func TestParseExecuteMsg(t *testing.T) {
	raw := `{"create_bid":{"nft_address":"0x000000000000000000000000000000000000cafe","token_id":"1",
		"price":{"info":{"native_token":{"denom":"uluna"}},"amount":"12000"},"expire_at":{"never":{}}}}`
	msg, err := ParseExecuteMsg([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, ActionCreateBid, msg.Action())
	require.Equal(t, testKey, msg.CreateBid.Key)
	require.True(t, msg.CreateBid.Price.Equal(uluna(12000)))
	require.Equal(t, Never(), msg.CreateBid.ExpireAt)

	_, err = ParseExecuteMsg([]byte(`{}`))
	require.Error(t, err)
	_, err = ParseExecuteMsg([]byte(`{"set_paused":{"paused":true},"cancel_bid":{"nft_address":"0x01","token_id":"1"}}`))
	require.Error(t, err)
	_, err = ParseExecuteMsg(nil)
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	require.Equal(t, "1.72", Version)
}
