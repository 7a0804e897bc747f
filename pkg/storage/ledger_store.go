package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/hypermarket/pkg/app/core/market"
)

// LedgerStore holds devnet balances, asset owners, nonces and chain
// metadata over a KV
type LedgerStore struct {
	kv KV
}

func NewLedgerStore(kv KV) *LedgerStore {
	return &LedgerStore{kv: kv}
}

// Balance returns the balance of addr in the denom identified by denomKey.
// Missing balances are zero.
func (s *LedgerStore) Balance(addr common.Address, denomKey string) (*uint256.Int, error) {
	raw, found, err := s.kv.Get(balanceKey(addr, denomKey))
	if err != nil {
		return nil, err
	}
	if !found {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(string(raw))
	if err != nil {
		return nil, fmt.Errorf("decode balance %s/%s: %w", addr.Hex(), denomKey, err)
	}
	return v, nil
}

// SetBalance writes amount; a zero balance deletes the entry
func (s *LedgerStore) SetBalance(addr common.Address, denomKey string, amount *uint256.Int) error {
	if amount.IsZero() {
		return s.kv.Delete(balanceKey(addr, denomKey))
	}
	return s.kv.Set(balanceKey(addr, denomKey), []byte(amount.Dec()))
}

// Balances lists every non-zero balance of addr keyed by denom key
func (s *LedgerStore) Balances(addr common.Address) (map[string]*uint256.Int, error) {
	prefix := balancePrefix(addr)
	out := make(map[string]*uint256.Int)
	var decodeErr error
	err := s.kv.Iterate(prefix, false, func(key, value []byte) bool {
		v, err := uint256.FromDecimal(string(value))
		if err != nil {
			decodeErr = fmt.Errorf("decode balance %s: %w", key, err)
			return false
		}
		out[string(key[len(prefix):])] = v
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, decodeErr
}

// Owner returns the owner of an asset; found=false if it was never minted
func (s *LedgerStore) Owner(key market.Key) (common.Address, bool, error) {
	raw, found, err := s.kv.Get(ownerKey(key))
	if err != nil || !found {
		return common.Address{}, false, err
	}
	return common.BytesToAddress(raw), true, nil
}

func (s *LedgerStore) SetOwner(key market.Key, owner common.Address) error {
	return s.kv.Set(ownerKey(key), owner.Bytes())
}

// Nonce returns the last accepted nonce of addr (0 for a fresh account)
func (s *LedgerStore) Nonce(addr common.Address) (uint64, error) {
	raw, _, err := s.kv.Get(nonceKey(addr))
	if err != nil {
		return 0, err
	}
	return decodeUint64(raw), nil
}

func (s *LedgerStore) SetNonce(addr common.Address, nonce uint64) error {
	return s.kv.Set(nonceKey(addr), encodeUint64(nonce))
}

// LastHeight returns the last height the application executed
func (s *LedgerStore) LastHeight() (uint64, error) {
	raw, _, err := s.kv.Get(keyLastHeight)
	if err != nil {
		return 0, err
	}
	return decodeUint64(raw), nil
}

// AppHash returns the app hash recorded with LastHeight
func (s *LedgerStore) AppHash() ([32]byte, error) {
	var out [32]byte
	raw, _, err := s.kv.Get(keyAppHash)
	if err != nil {
		return out, err
	}
	copy(out[:], raw)
	return out, nil
}

// SetHead records the executed height and its app hash
func (s *LedgerStore) SetHead(height uint64, appHash [32]byte) error {
	if err := s.kv.Set(keyLastHeight, encodeUint64(height)); err != nil {
		return err
	}
	return s.kv.Set(keyAppHash, appHash[:])
}
