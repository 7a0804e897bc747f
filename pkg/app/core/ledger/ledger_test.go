package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
	"github.com/uhyunpark/hypermarket/pkg/app/core/market"
	"github.com/uhyunpark/hypermarket/pkg/storage"
)

var (
	alice = common.HexToAddress("0xa11ce")
	bob   = common.HexToAddress("0xb0b")
	cw20  = common.HexToAddress("0xc020")
	nft   = market.Key{Collection: common.HexToAddress("0xcafe"), Instance: "1"}
)

func balance(t *testing.T, l *Ledger, addr common.Address, info asset.Info) uint64 {
	t.Helper()
	b, err := l.Balance(addr, info)
	require.NoError(t, err)
	return b.Uint64()
}

func TestTransfer(t *testing.T) {
	l := New(storage.NewMemStore())
	luna := asset.NativeToken{Denom: "uluna"}
	require.NoError(t, l.Mint(alice, asset.Native("uluna", 100)))

	require.NoError(t, l.Transfer(alice, bob, asset.Native("uluna", 40)))
	require.Equal(t, uint64(60), balance(t, l, alice, luna))
	require.Equal(t, uint64(40), balance(t, l, bob, luna))

	err := l.Transfer(alice, bob, asset.Native("uluna", 61))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, uint64(60), balance(t, l, alice, luna))

	require.NoError(t, l.Transfer(bob, alice, asset.Native("uluna", 0)), "zero transfer is a no-op")
}

func TestEscrowAndExecute(t *testing.T) {
	l := New(storage.NewMemStore())
	require.NoError(t, l.Mint(bob, asset.Native("uluna", 12000)))
	require.NoError(t, l.Mint(ModuleAddress, asset.FromToken(cw20, 50)))
	require.NoError(t, l.MintAsset(nft, alice))

	require.NoError(t, l.Escrow(bob, []asset.Asset{asset.Native("uluna", 12000)}))
	require.Equal(t, uint64(12000), balance(t, l, ModuleAddress, asset.NativeToken{Denom: "uluna"}))

	err := l.ExecuteAll([]asset.Instruction{
		asset.BankSend{To: alice, Denom: "uluna", Amount: uint256.NewInt(11000)},
		asset.TokenTransfer{Contract: cw20, To: alice, Amount: uint256.NewInt(50)},
		asset.NFTTransfer{Collection: nft.Collection, Instance: nft.Instance, To: bob},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(11000), balance(t, l, alice, asset.NativeToken{Denom: "uluna"}))
	require.Equal(t, uint64(50), balance(t, l, alice, asset.Token{Contract: cw20}))

	owner, err := l.OwnerOf(nft)
	require.NoError(t, err)
	require.Equal(t, bob, owner)

	err = l.Execute(asset.BankSend{To: alice, Denom: "uluna", Amount: uint256.NewInt(1001)})
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestOwnership(t *testing.T) {
	l := New(storage.NewMemStore())

	_, err := l.OwnerOf(nft)
	require.ErrorIs(t, err, ErrUnknownAsset)

	err = l.Execute(asset.NFTTransfer{Collection: nft.Collection, Instance: nft.Instance, To: bob})
	require.ErrorIs(t, err, ErrUnknownAsset)

	require.NoError(t, l.MintAsset(nft, alice))
	require.Error(t, l.MintAsset(nft, bob), "double mint")
}

func TestUseNonce(t *testing.T) {
	l := New(storage.NewMemStore())

	require.NoError(t, l.UseNonce(alice, 1))
	require.ErrorIs(t, l.UseNonce(alice, 1), ErrStaleNonce)
	require.NoError(t, l.UseNonce(alice, 5), "gaps are allowed")
	require.ErrorIs(t, l.UseNonce(alice, 4), ErrStaleNonce)

	n, err := l.Nonce(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(5), n)
}
