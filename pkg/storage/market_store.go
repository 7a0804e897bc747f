package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/uhyunpark/hypermarket/pkg/app/core/market"
)

// ErrNotInstantiated is returned by GetConfig before genesis has run
var ErrNotInstantiated = errors.New("marketplace not instantiated")

// MarketStore persists marketplace records as JSON over a KV. Wrap a Tx
// to get the all-or-nothing behaviour the engine relies on.
type MarketStore struct {
	kv KV
}

func NewMarketStore(kv KV) *MarketStore {
	return &MarketStore{kv: kv}
}

func (s *MarketStore) GetOrder(key market.Key) (*market.Order, bool, error) {
	var o market.Order
	found, err := s.getJSON(orderKey(key), &o)
	if err != nil || !found {
		return nil, found, err
	}
	return &o, true, nil
}

func (s *MarketStore) SetOrder(o *market.Order) error {
	return s.setJSON(orderKey(o.Key), o)
}

func (s *MarketStore) DeleteOrder(key market.Key) error {
	return s.kv.Delete(orderKey(key))
}

func (s *MarketStore) GetBid(key market.Key) (*market.Bid, bool, error) {
	var b market.Bid
	found, err := s.getJSON(bidKey(key), &b)
	if err != nil || !found {
		return nil, found, err
	}
	return &b, true, nil
}

func (s *MarketStore) SetBid(b *market.Bid) error {
	return s.setJSON(bidKey(b.Key), b)
}

func (s *MarketStore) DeleteBid(key market.Key) error {
	return s.kv.Delete(bidKey(key))
}

func (s *MarketStore) GetConfig() (*market.Config, error) {
	var c market.Config
	found, err := s.getJSON(keyConfig, &c)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotInstantiated
	}
	return &c, nil
}

func (s *MarketStore) SetConfig(c *market.Config) error {
	return s.setJSON(keyConfig, c)
}

func (s *MarketStore) Paused() (bool, error) {
	val, found, err := s.kv.Get(keyPaused)
	if err != nil {
		return false, err
	}
	return found && len(val) == 1 && val[0] == 1, nil
}

func (s *MarketStore) SetPaused(paused bool) error {
	v := byte(0)
	if paused {
		v = 1
	}
	return s.kv.Set(keyPaused, []byte{v})
}

// AddSale appends sale to the asset's history
func (s *MarketStore) AddSale(sale *market.Sale) error {
	raw, _, err := s.kv.Get(keySaleSeq)
	if err != nil {
		return err
	}
	seq := decodeUint64(raw) + 1
	if err := s.kv.Set(keySaleSeq, encodeUint64(seq)); err != nil {
		return err
	}
	return s.setJSON(saleKey(sale.Key, sale.Height, seq), sale)
}

// RecentSales returns up to limit sales of key, newest first
func (s *MarketStore) RecentSales(key market.Key, limit int) ([]*market.Sale, error) {
	var sales []*market.Sale
	var decodeErr error
	err := s.kv.Iterate(salePrefix(key), true, func(_, value []byte) bool {
		if limit > 0 && len(sales) >= limit {
			return false
		}
		var sale market.Sale
		if err := json.Unmarshal(value, &sale); err != nil {
			decodeErr = fmt.Errorf("decode sale: %w", err)
			return false
		}
		sales = append(sales, &sale)
		return true
	})
	if err != nil {
		return nil, err
	}
	return sales, decodeErr
}

func (s *MarketStore) getJSON(key []byte, out any) (bool, error) {
	raw, found, err := s.kv.Get(key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *MarketStore) setJSON(key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.kv.Set(key, raw)
}

var _ market.Store = (*MarketStore)(nil)
