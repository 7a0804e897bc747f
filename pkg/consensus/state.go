package consensus

import "time"

type State struct {
	SelfID   NodeID
	Height   Height
	LastHash Hash
	Genesis  Block
}

func GenesisBlock() Block {
	return Block{
		Height: 0, Parent: Hash{},
		Payload: nil, Proposer: NodeID("genesis"), Time: time.Unix(0, 0),
	}
}

// NewState starts at genesis, or resumes from the committed head in store
func NewState(self NodeID, store BlockStore) *State {
	s := &State{SelfID: self, Genesis: GenesisBlock()}
	s.LastHash = HashOfBlock(s.Genesis)
	if store == nil {
		return s
	}
	if h, ok := store.GetCommitted(); ok {
		if b, ok := store.GetBlock(h); ok {
			s.Height = b.Height
			s.LastHash = h
		}
	}
	return s
}
