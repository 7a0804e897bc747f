package consensus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/uhyunpark/hypermarket/pkg/crypto"
)

var (
	ErrBadCertificate  = errors.New("certificate does not match block")
	ErrBadSignature    = errors.New("certificate signature invalid")
	ErrAppHashMismatch = errors.New("app hash mismatch")
)

// Follower replays blocks gossiped by the producer. Blocks may arrive out
// of order; they are buffered and applied strictly by height.
type Follower struct {
	State       *State
	App         AppHook
	ProducerKey *crypto.BLSPubKey

	Logger  *zap.SugaredLogger
	Store   BlockStore
	WAL     WAL
	Fetcher Fetcher // Optional: fills gaps in the gossip stream

	OnBlockCommit func(height Height)

	mu      sync.Mutex
	pending map[Height]pendingBlock
	halted  error
}

type pendingBlock struct {
	blk  Block
	cert Certificate
}

func NewFollower(state *State, app AppHook, producerKey *crypto.BLSPubKey) *Follower {
	return &Follower{
		State:       state,
		App:         app,
		ProducerKey: producerKey,
		pending:     make(map[Height]pendingBlock),
	}
}

// Attach registers the follower as the network's commit handler
func (f *Follower) Attach(net Network) {
	net.SetHandler(func(ctx context.Context, blk Block, cert Certificate) {
		if err := f.OnCommit(blk, cert); err != nil {
			if f.Logger != nil {
				f.Logger.Warnw("block_rejected", "height", blk.Height, "err", err)
			}
			return
		}
		if f.Fetcher != nil && f.behind() {
			if _, err := f.Sync(ctx); err != nil && f.Logger != nil {
				f.Logger.Warnw("sync_failed", "height", f.height(), "err", err)
			}
		}
	})
}

// Sync pulls blocks above the local head from the Fetcher until it runs
// out. It returns the number of blocks applied.
func (f *Follower) Sync(ctx context.Context) (int, error) {
	if f.Fetcher == nil {
		return 0, nil
	}
	applied := 0
	for {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		next := f.height() + 1
		blk, cert, err := f.Fetcher.FetchCommit(ctx, next)
		if err != nil {
			return applied, nil // nothing further available
		}
		if err := f.OnCommit(blk, cert); err != nil {
			return applied, err
		}
		if f.height() < next {
			return applied, nil
		}
		applied++
	}
}

// behind reports buffered blocks waiting on a missing height
func (f *Follower) behind() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending) > 0
}

func (f *Follower) height() Height {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.State.Height
}

// Halted returns the error that stopped the follower, if any
func (f *Follower) Halted() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.halted
}

// OnCommit verifies a block certificate and applies every block that is
// now contiguous with the local head. A diverging app hash halts the
// follower: its state can no longer be trusted.
func (f *Follower) OnCommit(blk Block, cert Certificate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.halted != nil {
		return f.halted
	}
	if cert.Height != blk.Height || cert.H != HashOfBlock(blk) || cert.AppHash != blk.AppHash {
		return fmt.Errorf("%w: height %d", ErrBadCertificate, blk.Height)
	}
	if f.ProducerKey != nil && !crypto.Verify(f.ProducerKey, cert.Sig, cert.SigningBytes()) {
		return fmt.Errorf("%w: height %d", ErrBadSignature, blk.Height)
	}
	if blk.Height <= f.State.Height {
		return nil // already applied
	}
	f.pending[blk.Height] = pendingBlock{blk: blk, cert: cert}

	for {
		next, ok := f.pending[f.State.Height+1]
		if !ok {
			return nil
		}
		delete(f.pending, next.blk.Height)
		if err := f.apply(next.blk, next.cert); err != nil {
			f.halted = err
			return err
		}
	}
}

func (f *Follower) apply(blk Block, cert Certificate) error {
	if blk.Parent != f.State.LastHash {
		return fmt.Errorf("%w: parent %s does not extend head %s", ErrBadCertificate, blk.Parent, f.State.LastHash)
	}

	// Execute with the same input the producer used: AppHash is zero when
	// the producer hands the block to the app.
	exec := blk
	exec.AppHash = Hash{}
	appHash := f.App.OnCommit(exec)
	if appHash != cert.AppHash {
		if f.Logger != nil {
			f.Logger.Errorw("apphash_mismatch", "height", blk.Height,
				"local", fmt.Sprintf("0x%x", appHash[:]), "producer", fmt.Sprintf("0x%x", cert.AppHash[:]))
		}
		return fmt.Errorf("%w at height %d", ErrAppHashMismatch, blk.Height)
	}

	if f.Store != nil {
		f.Store.SaveBlock(blk)
		f.Store.SaveCert(cert)
		f.Store.SetCommitted(cert.H)
	}
	f.State.Height = blk.Height
	f.State.LastHash = cert.H

	if f.WAL != nil {
		if err := f.WAL.Append(WALEntry{Kind: "replay", Height: blk.Height, Block: cert.H, AppHash: appHash}); err != nil && f.Logger != nil {
			f.Logger.Warnw("wal_append_failed", "height", blk.Height, "err", err)
		}
	}
	if f.Logger != nil {
		f.Logger.Infow("commit", "height", blk.Height, "apphash", fmt.Sprintf("0x%x", appHash[:]), "role", "follower")
	}
	if f.OnBlockCommit != nil {
		f.OnBlockCommit(blk.Height)
	}
	return nil
}
