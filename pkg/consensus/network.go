package consensus

import "context"

// CommitHandler receives a committed block and its certificate
type CommitHandler func(ctx context.Context, blk Block, cert Certificate)

type Network interface {
	BroadcastCommit(ctx context.Context, blk Block, cert Certificate) error
	SetHandler(h CommitHandler)
}

// Fetcher retrieves an already committed block by height, for followers
// that fell behind the gossip stream
type Fetcher interface {
	FetchCommit(ctx context.Context, height Height) (Block, Certificate, error)
}

// LocalNet is the network of a single-node devnet: nothing to gossip to
type LocalNet struct{}

func (LocalNet) BroadcastCommit(context.Context, Block, Certificate) error { return nil }
func (LocalNet) SetHandler(CommitHandler)                                  {}
