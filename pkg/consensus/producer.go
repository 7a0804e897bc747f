package consensus

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/hypermarket/pkg/crypto"
	"github.com/uhyunpark/hypermarket/pkg/util"
)

// Producer is the single block producer. Every MinBlockTime it asks the
// app for a payload, executes the block, signs a certificate over the
// block hash and resulting app hash, persists both and gossips them.
type Producer struct {
	State  *State
	App    AppHook
	Net    Network
	Signer *crypto.BLSSigner
	Clock  util.Clock

	MinBlockTime time.Duration
	SkipEmpty    bool // don't cut blocks when the payload is empty

	Logger         *zap.SugaredLogger
	VerboseLogging bool // if false, only log commits and errors

	Store BlockStore
	WAL   WAL

	// Optional: called after each committed block
	OnBlockCommit func(height Height)
}

func NewProducer(state *State, app AppHook, net Network, signer *crypto.BLSSigner) *Producer {
	return &Producer{
		State:        state,
		App:          app,
		Net:          net,
		Signer:       signer,
		Clock:        util.RealClock{},
		MinBlockTime: 200 * time.Millisecond,
		SkipEmpty:    true,
	}
}

// Run produces blocks until ctx is cancelled
func (p *Producer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.Clock.After(p.MinBlockTime):
		}

		if _, _, err := p.ProduceBlock(ctx); err != nil {
			return err
		}
	}
}

// RunN produces n blocks back to back (for tests)
func (p *Producer) RunN(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if _, _, err := p.ProduceBlock(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ProduceBlock cuts, executes and commits the next block.
// ok is false when the payload was empty and SkipEmpty is set.
func (p *Producer) ProduceBlock(ctx context.Context) (Block, bool, error) {
	parent := p.State.Genesis
	if p.Store != nil {
		if b, found := p.Store.GetBlock(p.State.LastHash); found {
			parent = b
		}
	}

	next := p.State.Height + 1
	payload := p.App.PreparePayload(parent, next)
	if len(payload) == 0 && p.SkipEmpty {
		return Block{}, false, nil
	}

	block := Block{
		Height:   next,
		Parent:   p.State.LastHash,
		Payload:  payload,
		Proposer: p.State.SelfID,
		Time:     p.Clock.Now(),
	}
	if !block.Time.After(parent.Time) {
		block.Time = parent.Time.Add(time.Millisecond)
	}

	appHash := p.App.OnCommit(block)
	block.AppHash = appHash

	cert := Certificate{
		Height:  block.Height,
		H:       HashOfBlock(block),
		AppHash: appHash,
	}
	if p.Signer != nil {
		cert.Sig = p.Signer.Sign(cert.SigningBytes())
	}

	if p.Store != nil {
		p.Store.SaveBlock(block)
		p.Store.SaveCert(cert)
		p.Store.SetCommitted(cert.H)
	}
	p.State.Height = block.Height
	p.State.LastHash = cert.H

	if p.WAL != nil {
		if err := p.WAL.Append(WALEntry{Kind: "commit", Height: block.Height, Block: cert.H, AppHash: appHash}); err != nil && p.Logger != nil {
			p.Logger.Warnw("wal_append_failed", "height", block.Height, "err", err)
		}
	}
	if p.Logger != nil {
		p.Logger.Infow("commit", "height", block.Height, "txs_bytes", len(payload), "apphash", fmt.Sprintf("0x%x", appHash[:]))
	}
	if p.OnBlockCommit != nil {
		p.OnBlockCommit(block.Height)
	}

	if err := p.Net.BroadcastCommit(ctx, block, cert); err != nil {
		if p.Logger != nil {
			p.Logger.Warnw("broadcast_commit_failed", "height", block.Height, "err", err)
		}
	}
	return block, true, nil
}
