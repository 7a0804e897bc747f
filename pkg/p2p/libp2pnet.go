package p2p

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/uhyunpark/hypermarket/pkg/consensus"
)

const (
	topicCommit  = "hypermarket-commit"
	protocolSync = protocol.ID("/hypermarket/sync/1.0.0")
)

var ErrNotFound = errors.New("block not available from peers")

type Libp2pNet struct {
	h    host.Host
	ps   *pubsub.PubSub
	log  *zap.SugaredLogger
	self consensus.NodeID

	tCommit   *pubsub.Topic
	subCommit *pubsub.Subscription

	// store serves sync requests; nil means this node does not serve
	store consensus.BlockStore

	muH     sync.RWMutex
	handler consensus.CommitHandler
}

type Libp2pConfig struct {
	ListenAddr string
	Bootstrap  []string
	SelfID     consensus.NodeID
	Store      consensus.BlockStore
	Logger     *zap.SugaredLogger
}

func NewLibp2pNet(ctx context.Context, cfg Libp2pConfig) (*Libp2pNet, error) {
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, err
	}

	net := &Libp2pNet{
		h:     h,
		ps:    ps,
		log:   cfg.Logger,
		self:  cfg.SelfID,
		store: cfg.Store,
	}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil && cfg.Logger != nil {
			cfg.Logger.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}

	if net.tCommit, err = ps.Join(topicCommit); err != nil {
		return nil, err
	}
	if net.subCommit, err = net.tCommit.Subscribe(); err != nil {
		return nil, err
	}

	h.SetStreamHandler(protocolSync, net.handleSyncStream)

	go net.handleCommits(ctx)

	if cfg.Logger != nil {
		cfg.Logger.Infow("libp2p_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr)
	}
	return net, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

// implement Network

func (n *Libp2pNet) SetHandler(h consensus.CommitHandler) { n.muH.Lock(); n.handler = h; n.muH.Unlock() }

func (n *Libp2pNet) Host() host.Host { return n.h }

// Addrs returns dialable multiaddrs including the peer id
func (n *Libp2pNet) Addrs() []string {
	var out []string
	for _, a := range n.h.Addrs() {
		out = append(out, fmt.Sprintf("%s/p2p/%s", a, n.h.ID()))
	}
	return out
}

func (n *Libp2pNet) Close() error { return n.h.Close() }

func (n *Libp2pNet) BroadcastCommit(ctx context.Context, blk consensus.Block, cert consensus.Certificate) error {
	data, err := encodeCommit(blk, cert)
	if err != nil {
		return err
	}
	return n.tCommit.Publish(ctx, data)
}

// FetchCommit asks connected peers, in turn, for the block at height
func (n *Libp2pNet) FetchCommit(ctx context.Context, height consensus.Height) (consensus.Block, consensus.Certificate, error) {
	for _, p := range n.h.Network().Peers() {
		blk, cert, err := n.fetchFrom(ctx, p, height)
		if err == nil {
			return blk, cert, nil
		}
		if n.log != nil && !errors.Is(err, ErrNotFound) {
			n.log.Debugw("sync_fetch_failed", "peer", p.String(), "height", height, "err", err)
		}
	}
	return consensus.Block{}, consensus.Certificate{}, ErrNotFound
}

func (n *Libp2pNet) fetchFrom(ctx context.Context, p peer.ID, height consensus.Height) (consensus.Block, consensus.Certificate, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	stream, err := n.h.NewStream(ctx, p, protocolSync)
	if err != nil {
		return consensus.Block{}, consensus.Certificate{}, err
	}
	defer stream.Close()

	if _, err := stream.Write(encodeSyncRequest(uint64(height))); err != nil {
		return consensus.Block{}, consensus.Certificate{}, err
	}
	if err := stream.CloseWrite(); err != nil {
		return consensus.Block{}, consensus.Certificate{}, err
	}

	data, err := io.ReadAll(stream)
	if err != nil {
		return consensus.Block{}, consensus.Certificate{}, err
	}
	var resp SyncResponseWire
	if err := gobDecode(data, &resp); err != nil {
		return consensus.Block{}, consensus.Certificate{}, err
	}
	if !resp.Found {
		return consensus.Block{}, consensus.Certificate{}, ErrNotFound
	}
	return decodeCommit(resp.Commit)
}

// inbound

func (n *Libp2pNet) handleCommits(ctx context.Context) {
	for {
		msg, err := n.subCommit.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == n.h.ID() {
			continue // own broadcast
		}
		var w CommitWire
		if err := gobDecode(msg.Data, &w); err != nil {
			continue
		}
		blk, cert, err := decodeCommit(w)
		if err != nil {
			continue
		}

		n.muH.RLock()
		h := n.handler
		n.muH.RUnlock()
		if h != nil {
			h(ctx, blk, cert)
		}
	}
}

// handleSyncStream serves one committed block by height
func (n *Libp2pNet) handleSyncStream(s network.Stream) {
	defer s.Close()

	data, err := io.ReadAll(io.LimitReader(s, 8))
	if err != nil {
		return
	}
	height, err := decodeSyncRequest(data)
	if err != nil {
		return
	}

	resp := SyncResponseWire{}
	if n.store != nil {
		if cert, ok := n.store.GetCert(consensus.Height(height)); ok {
			if blk, ok := n.store.GetBlock(cert.H); ok {
				bb, err1 := gobEncode(blk)
				cb, err2 := gobEncode(cert)
				if err1 == nil && err2 == nil {
					resp = SyncResponseWire{Found: true, Commit: CommitWire{Block: bb, Cert: cb}}
				}
			}
		}
	}

	out, err := gobEncode(resp)
	if err != nil {
		return
	}
	_, _ = s.Write(out)
}

func encodeCommit(blk consensus.Block, cert consensus.Certificate) ([]byte, error) {
	bb, err := gobEncode(blk)
	if err != nil {
		return nil, err
	}
	cb, err := gobEncode(cert)
	if err != nil {
		return nil, err
	}
	return gobEncode(CommitWire{Block: bb, Cert: cb})
}

func decodeCommit(w CommitWire) (consensus.Block, consensus.Certificate, error) {
	var blk consensus.Block
	var cert consensus.Certificate
	if err := gobDecode(w.Block, &blk); err != nil {
		return blk, cert, err
	}
	if err := gobDecode(w.Cert, &cert); err != nil {
		return blk, cert, err
	}
	return blk, cert, nil
}

var _ consensus.Network = (*Libp2pNet)(nil)
var _ consensus.Fetcher = (*Libp2pNet)(nil)
