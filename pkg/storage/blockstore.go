package storage

import (
	"sync"

	"github.com/uhyunpark/hypermarket/pkg/consensus"
)

type InMemoryBlockStore struct {
	mu           sync.Mutex
	blocks       map[consensus.Hash]consensus.Block
	certByHeight map[consensus.Height]consensus.Certificate
	committed    *consensus.Hash
}

func NewInMemoryBlockStore() *InMemoryBlockStore {
	return &InMemoryBlockStore{
		blocks:       make(map[consensus.Hash]consensus.Block),
		certByHeight: make(map[consensus.Height]consensus.Certificate),
	}
}

func (s *InMemoryBlockStore) SaveBlock(b consensus.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[consensus.HashOfBlock(b)] = b
}

func (s *InMemoryBlockStore) GetBlock(h consensus.Hash) (consensus.Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[h]
	return b, ok
}

func (s *InMemoryBlockStore) SaveCert(c consensus.Certificate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certByHeight[c.Height] = c
}

func (s *InMemoryBlockStore) GetCert(h consensus.Height) (consensus.Certificate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.certByHeight[h]
	return c, ok
}

func (s *InMemoryBlockStore) SetCommitted(h consensus.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = &h
}

func (s *InMemoryBlockStore) GetCommitted() (consensus.Hash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.committed == nil {
		return consensus.Hash{}, false
	}
	return *s.committed, true
}

var _ consensus.BlockStore = (*InMemoryBlockStore)(nil)
