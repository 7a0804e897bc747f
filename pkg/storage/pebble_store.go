package storage

import (
	"errors"
	"fmt"
	"io"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/hypermarket/pkg/consensus"
)

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}
func (s *PebbleStore) Close() error { return s.db.Close() }

// keys: b:<32-byte-hash>, c:<8-byte-height>, cm:committed
func kBlock(h consensus.Hash) []byte  { return append([]byte("b:"), h[:]...) }
func kCert(h consensus.Height) []byte { return append([]byte("c:"), heightKey(h)...) }
func kCommitted() []byte              { return []byte("cm") }

func (s *PebbleStore) SaveBlock(b consensus.Block) {
	key := kBlock(consensus.HashOfBlock(b))
	val, err := encodeGob(b)
	if err != nil {
		panic(fmt.Errorf("encode block: %w", err))
	}
	if err := s.db.Set(key, val, pebble.Sync); err != nil {
		panic(err)
	}
}

func (s *PebbleStore) GetBlock(h consensus.Hash) (consensus.Block, bool) {
	val, closer, err := s.db.Get(kBlock(h))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return consensus.Block{}, false
		}
		panic(err)
	}
	defer closer.Close()
	var out consensus.Block
	if err := decodeGob(val, &out); err != nil {
		panic(err)
	}
	return out, true
}

func (s *PebbleStore) SaveCert(c consensus.Certificate) {
	val, err := encodeGob(c)
	if err != nil {
		panic(fmt.Errorf("encode cert: %w", err))
	}
	if err := s.db.Set(kCert(c.Height), val, pebble.Sync); err != nil {
		panic(err)
	}
}

func (s *PebbleStore) GetCert(h consensus.Height) (consensus.Certificate, bool) {
	val, closer, err := s.db.Get(kCert(h))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return consensus.Certificate{}, false
		}
		panic(err)
	}
	defer closer.Close()
	var out consensus.Certificate
	if err := decodeGob(val, &out); err != nil {
		panic(err)
	}
	return out, true
}

func (s *PebbleStore) SetCommitted(h consensus.Hash) {
	if err := s.db.Set(kCommitted(), h[:], pebble.Sync); err != nil {
		panic(err)
	}
}

func (s *PebbleStore) GetCommitted() (consensus.Hash, bool) {
	val, closer, err := s.db.Get(kCommitted())
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return consensus.Hash{}, false
		}
		panic(err)
	}
	defer closer.Close()
	var out consensus.Hash
	copy(out[:], val)
	return out, true
}

var _ consensus.BlockStore = (*PebbleStore)(nil)

// ============================================================================
// Application state
// ============================================================================

// Get reads a committed value
func (s *PebbleStore) Get(key []byte) ([]byte, bool, error) {
	return getFrom(s.db, key)
}

// Set writes key outside of any batch
func (s *PebbleStore) Set(key, value []byte) error {
	return s.db.Set(key, value, pebble.Sync)
}

// Delete removes key outside of any batch
func (s *PebbleStore) Delete(key []byte) error {
	return s.db.Delete(key, pebble.Sync)
}

func (s *PebbleStore) Iterate(prefix []byte, reverse bool, fn func(key, value []byte) bool) error {
	iter, err := s.db.NewIter(prefixOptions(prefix))
	if err != nil {
		return err
	}
	return walk(iter, reverse, fn)
}

// Begin opens an indexed batch so reads inside the tx see its writes
func (s *PebbleStore) Begin() Tx {
	return &PebbleTx{batch: s.db.NewIndexedBatch()}
}

var _ Backend = (*PebbleStore)(nil)

// PebbleTx is a single block's (or tx's) pending writes
type PebbleTx struct {
	batch *pebble.Batch
	done  bool
}

func (t *PebbleTx) Get(key []byte) ([]byte, bool, error) {
	return getFrom(t.batch, key)
}

func (t *PebbleTx) Set(key, value []byte) error {
	return t.batch.Set(key, value, nil)
}

func (t *PebbleTx) Delete(key []byte) error {
	return t.batch.Delete(key, nil)
}

func (t *PebbleTx) Iterate(prefix []byte, reverse bool, fn func(key, value []byte) bool) error {
	iter, err := t.batch.NewIter(prefixOptions(prefix))
	if err != nil {
		return err
	}
	return walk(iter, reverse, fn)
}

// Commit applies the batch durably and releases it
func (t *PebbleTx) Commit() error {
	if t.done {
		return errors.New("tx already closed")
	}
	t.done = true
	defer t.batch.Close()
	return t.batch.Commit(pebble.Sync)
}

// Discard releases the batch without applying it. Safe after Commit.
func (t *PebbleTx) Discard() {
	if t.done {
		return
	}
	t.done = true
	t.batch.Close()
}

var _ Tx = (*PebbleTx)(nil)

type pebbleReader interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

func getFrom(r pebbleReader, key []byte) ([]byte, bool, error) {
	val, closer, err := r.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func prefixOptions(prefix []byte) *pebble.IterOptions {
	return &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	}
}

func walk(iter *pebble.Iterator, reverse bool, fn func(key, value []byte) bool) error {
	defer iter.Close()
	if reverse {
		for iter.Last(); iter.Valid(); iter.Prev() {
			if !fn(iter.Key(), iter.Value()) {
				break
			}
		}
	} else {
		for iter.First(); iter.Valid(); iter.Next() {
			if !fn(iter.Key(), iter.Value()) {
				break
			}
		}
	}
	return iter.Error()
}
