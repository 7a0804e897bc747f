package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
	"github.com/uhyunpark/hypermarket/pkg/app/core/market"
	"github.com/uhyunpark/hypermarket/pkg/app/core/transaction"
	"github.com/uhyunpark/hypermarket/pkg/crypto"
)

const collection = "0x000000000000000000000000000000000000cafe"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParseAsset(t *testing.T) {
	a, err := parseAsset("12000uluna")
	require.NoError(t, err)
	require.True(t, a.Equal(asset.Native("uluna", 12000)))

	a, err = parseAsset("500@0x000000000000000000000000000000000000c020")
	require.NoError(t, err)
	require.True(t, a.Equal(asset.FromToken(common.HexToAddress("0xc020"), 500)))

	for _, bad := range []string{"", "uluna", "12000", "-1uluna", "5@0x12"} {
		_, err := parseAsset(bad)
		require.Error(t, err, bad)
	}
}

func TestParseFundsAndExpiration(t *testing.T) {
	funds, err := parseFunds("10uluna, 3uatom")
	require.NoError(t, err)
	require.Len(t, funds, 2)

	_, err = parseFunds("5@0x000000000000000000000000000000000000c020")
	require.Error(t, err)

	e, err := parseExpiration("height:120")
	require.NoError(t, err)
	require.Equal(t, market.AtHeight(120), e)
	e, err = parseExpiration("time:1700000000")
	require.NoError(t, err)
	require.True(t, e.IsTime())
	e, err = parseExpiration("never")
	require.NoError(t, err)
	require.Equal(t, market.Never(), e)
	_, err = parseExpiration("soon")
	require.Error(t, err)
}

func TestSignProducesVerifiableTx(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)

	out, err := execute(t, "sign",
		"--key", signer.PrivateKeyHex(),
		"--nonce", "3",
		"--action", "create_bid",
		"--nft", collection,
		"--token-id", "7",
		"--price", "12000uluna",
		"--funds", "12000uluna",
		"--expire", "height:500",
	)
	require.NoError(t, err)

	tx, err := transaction.ParseTransaction([]byte(out))
	require.NoError(t, err)
	require.Equal(t, uint64(3), tx.Nonce)
	require.Equal(t, market.ActionCreateBid, tx.Action())

	sender, err := transaction.NewVerifier(crypto.DefaultDomain(1337)).Verify(tx)
	require.NoError(t, err)
	require.Equal(t, signer.Address(), sender)

	msg, err := tx.ExecuteMsg()
	require.NoError(t, err)
	require.Equal(t, "7", msg.CreateBid.Instance)
	require.Equal(t, market.AtHeight(500), msg.CreateBid.ExpireAt)
}

func TestSignFetchesNonceAndSubmits(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)

	var submitted []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/nonce"):
			json.NewEncoder(w).Encode(map[string]any{"address": signer.Address().Hex(), "nonce": 4})
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/txs":
			submitted, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"status":"submitted"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	out, err := execute(t, "sign", "--node", ts.URL, "--chain-id", "7",
		"--key", "0x"+signer.PrivateKeyHex(),
		"--action", "set_paused", "--paused",
		"--submit",
	)
	require.NoError(t, err)
	require.Contains(t, out, `"submitted"`)

	tx, err := transaction.ParseTransaction(submitted)
	require.NoError(t, err)
	require.Equal(t, uint64(5), tx.Nonce)
	_, err = transaction.NewVerifier(crypto.DefaultDomain(7)).Verify(tx)
	require.NoError(t, err)
}

func TestSignRejectsBadFlags(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	base := []string{"sign", "--key", signer.PrivateKeyHex(), "--nonce", "1"}

	for name, extra := range map[string][]string{
		"unknown action": {"--action", "burn", "--nft", collection, "--token-id", "1", "--price", "1uluna"},
		"bad nft":        {"--action", "cancel_bid", "--nft", "0x12", "--token-id", "1"},
		"no price":       {"--action", "create_order", "--nft", collection, "--token-id", "1"},
		"token funds":    {"--action", "cancel_bid", "--nft", collection, "--token-id", "1", "--funds", "1@" + collection},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := execute(t, append(base, extra...)...)
			require.Error(t, err)
		})
	}
}

func TestQueryCommands(t *testing.T) {
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.Contains(r.URL.Path, "/bids/") {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found","message":"bid does not exist"}`))
			return
		}
		w.Write([]byte(`{"version":"1.72"}`))
	}))
	defer ts.Close()

	out, err := execute(t, "query", "version", "--node", ts.URL)
	require.NoError(t, err)
	require.Contains(t, out, `"version": "1.72"`)

	_, err = execute(t, "query", "order", collection, "7", "--node", ts.URL)
	require.NoError(t, err)

	_, err = execute(t, "query", "bid", collection, "7", "--node", ts.URL)
	require.ErrorContains(t, err, "bid does not exist")

	_, err = execute(t, "query", "nonce", "nobody", "--node", ts.URL)
	require.Error(t, err)

	require.Equal(t, []string{
		"/api/v1/version",
		"/api/v1/orders/" + common.HexToAddress(collection).Hex() + "/7",
		"/api/v1/bids/" + common.HexToAddress(collection).Hex() + "/7",
	}, paths)
}
