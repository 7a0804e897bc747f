package storage

import (
	"bytes"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
)

// MemStore is an in-memory Backend for tests and ephemeral devnets
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (m *MemStore) Get(key []byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (m *MemStore) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = bytes.Clone(value)
	return nil
}

func (m *MemStore) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *MemStore) Iterate(prefix []byte, reverse bool, fn func(key, value []byte) bool) error {
	m.mu.RLock()
	view := make(map[string][]byte)
	for k, v := range m.data {
		if strings.HasPrefix(k, string(prefix)) {
			view[k] = v
		}
	}
	m.mu.RUnlock()
	return iterateView(view, reverse, fn)
}

func (m *MemStore) Begin() Tx {
	return NewOverlay(m)
}

var _ Backend = (*MemStore)(nil)

type pendingWrite struct {
	value   []byte
	deleted bool
}

// Overlay buffers writes over a parent KV in memory. It backs MemStore
// transactions and nests a single tx inside a block batch: committing an
// Overlay writes into the parent, not to disk.
type Overlay struct {
	parent KV
	writes map[string]pendingWrite
	done   bool
}

func NewOverlay(parent KV) *Overlay {
	return &Overlay{parent: parent, writes: make(map[string]pendingWrite)}
}

func (o *Overlay) Get(key []byte) ([]byte, bool, error) {
	if w, ok := o.writes[string(key)]; ok {
		if w.deleted {
			return nil, false, nil
		}
		return bytes.Clone(w.value), true, nil
	}
	return o.parent.Get(key)
}

func (o *Overlay) Set(key, value []byte) error {
	o.writes[string(key)] = pendingWrite{value: bytes.Clone(value)}
	return nil
}

func (o *Overlay) Delete(key []byte) error {
	o.writes[string(key)] = pendingWrite{deleted: true}
	return nil
}

func (o *Overlay) Iterate(prefix []byte, reverse bool, fn func(key, value []byte) bool) error {
	view := make(map[string][]byte)
	err := o.parent.Iterate(prefix, false, func(k, v []byte) bool {
		view[string(k)] = bytes.Clone(v)
		return true
	})
	if err != nil {
		return err
	}
	for k, w := range o.writes {
		if !strings.HasPrefix(k, string(prefix)) {
			continue
		}
		if w.deleted {
			delete(view, k)
		} else {
			view[k] = w.value
		}
	}
	return iterateView(view, reverse, fn)
}

// Commit flushes the buffered writes into the parent in key order
func (o *Overlay) Commit() error {
	if o.done {
		return errors.New("tx already closed")
	}
	o.done = true
	for _, k := range slices.Sorted(maps.Keys(o.writes)) {
		w := o.writes[k]
		var err error
		if w.deleted {
			err = o.parent.Delete([]byte(k))
		} else {
			err = o.parent.Set([]byte(k), w.value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Overlay) Discard() {
	o.done = true
	o.writes = nil
}

var _ Tx = (*Overlay)(nil)

func iterateView(view map[string][]byte, reverse bool, fn func(key, value []byte) bool) error {
	keys := slices.Sorted(maps.Keys(view))
	if reverse {
		slices.Reverse(keys)
	}
	for _, k := range keys {
		if !fn([]byte(k), view[k]) {
			break
		}
	}
	return nil
}
