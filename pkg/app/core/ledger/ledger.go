// Package ledger is the devnet bank and asset registry the host runs
// marketplace instructions against.
package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
	"github.com/uhyunpark/hypermarket/pkg/app/core/market"
	"github.com/uhyunpark/hypermarket/pkg/storage"
)

var (
	ErrUnknownAsset = errors.New("asset not minted")
	ErrStaleNonce   = errors.New("nonce already used")
)

// ErrInsufficientFunds is shared with the asset package so callers can
// match either
var ErrInsufficientFunds = asset.ErrInsufficientFunds

// ModuleAddress is the marketplace's own account: attached funds are
// escrowed here and payouts are drawn from it
var ModuleAddress = common.BytesToAddress(crypto.Keccak256([]byte("hypermarket/module/marketplace"))[12:])

// Ledger wraps a LedgerStore with balance and ownership rules
type Ledger struct {
	store *storage.LedgerStore
}

func New(kv storage.KV) *Ledger {
	return &Ledger{store: storage.NewLedgerStore(kv)}
}

// Balance returns addr's holding of info
func (l *Ledger) Balance(addr common.Address, info asset.Info) (*uint256.Int, error) {
	return l.store.Balance(addr, info.Key())
}

// Balances lists addr's holdings keyed by denom key
func (l *Ledger) Balances(addr common.Address) (map[string]*uint256.Int, error) {
	return l.store.Balances(addr)
}

// Mint credits a out of thin air. Genesis only.
func (l *Ledger) Mint(to common.Address, a asset.Asset) error {
	bal, err := l.store.Balance(to, a.Info.Key())
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(bal, a.Amount)
	if overflow {
		return fmt.Errorf("mint %s to %s: balance overflow", a, to.Hex())
	}
	return l.store.SetBalance(to, a.Info.Key(), sum)
}

// Transfer moves a from one account to another
func (l *Ledger) Transfer(from, to common.Address, a asset.Asset) error {
	if a.Amount == nil || a.Amount.IsZero() {
		return nil
	}
	denom := a.Info.Key()
	fromBal, err := l.store.Balance(from, denom)
	if err != nil {
		return err
	}
	if fromBal.Lt(a.Amount) {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientFunds, from.Hex(), fromBal.Dec(), a)
	}
	if err := l.store.SetBalance(from, denom, new(uint256.Int).Sub(fromBal, a.Amount)); err != nil {
		return err
	}
	return l.Mint(to, a)
}

// Escrow moves funds attached to an invocation into the module account
func (l *Ledger) Escrow(from common.Address, funds []asset.Asset) error {
	for _, f := range funds {
		if err := l.Transfer(from, ModuleAddress, f); err != nil {
			return fmt.Errorf("escrow funds: %w", err)
		}
	}
	return nil
}

// Execute carries out one marketplace instruction
func (l *Ledger) Execute(ins asset.Instruction) error {
	switch in := ins.(type) {
	case asset.BankSend:
		return l.Transfer(ModuleAddress, in.To, asset.Asset{Info: asset.NativeToken{Denom: in.Denom}, Amount: in.Amount})
	case asset.TokenTransfer:
		return l.Transfer(ModuleAddress, in.To, asset.Asset{Info: asset.Token{Contract: in.Contract}, Amount: in.Amount})
	case asset.NFTTransfer:
		key := market.Key{Collection: in.Collection, Instance: in.Instance}
		if _, err := l.OwnerOf(key); err != nil {
			return err
		}
		return l.store.SetOwner(key, in.To)
	default:
		return fmt.Errorf("unsupported instruction %T", ins)
	}
}

// ExecuteAll runs instructions in order, stopping at the first failure
func (l *Ledger) ExecuteAll(ins []asset.Instruction) error {
	for i, in := range ins {
		if err := l.Execute(in); err != nil {
			return fmt.Errorf("instruction %d (%s): %w", i, in.Kind(), err)
		}
	}
	return nil
}

// MintAsset registers a non-fungible asset with its first owner
func (l *Ledger) MintAsset(key market.Key, owner common.Address) error {
	if _, found, err := l.store.Owner(key); err != nil {
		return err
	} else if found {
		return fmt.Errorf("asset %s already minted", key)
	}
	return l.store.SetOwner(key, owner)
}

// OwnerOf implements market.OwnershipRegistry
func (l *Ledger) OwnerOf(key market.Key) (common.Address, error) {
	owner, found, err := l.store.Owner(key)
	if err != nil {
		return common.Address{}, err
	}
	if !found {
		return common.Address{}, fmt.Errorf("%w: %s", ErrUnknownAsset, key)
	}
	return owner, nil
}

var _ market.OwnershipRegistry = (*Ledger)(nil)

// Nonce returns the last nonce accepted from addr
func (l *Ledger) Nonce(addr common.Address) (uint64, error) {
	return l.store.Nonce(addr)
}

// UseNonce accepts nonce if it is above the last one seen from addr
func (l *Ledger) UseNonce(addr common.Address, nonce uint64) error {
	last, err := l.store.Nonce(addr)
	if err != nil {
		return err
	}
	if nonce <= last {
		return fmt.Errorf("%w: got %d, last %d", ErrStaleNonce, nonce, last)
	}
	return l.store.SetNonce(addr, nonce)
}
