package nft

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
	"github.com/uhyunpark/hypermarket/pkg/app/core/market"
	"github.com/uhyunpark/hypermarket/pkg/app/core/transaction"
	"github.com/uhyunpark/hypermarket/pkg/crypto"
)

// FeederConfig controls devnet traffic generation
type FeederConfig struct {
	Accounts  int           // Simulated traders, each minted one asset at genesis
	BatchSize int           // Txs generated per tick
	Interval  time.Duration // How often to generate batches
	Denom     string        // Native denom used for prices
	Price     uint64        // Listing and bid price
	Funding   uint64        // Genesis balance per trader
}

// DefaultFeederConfig returns reasonable defaults for a local devnet
func DefaultFeederConfig() FeederConfig {
	return FeederConfig{
		Accounts:  20,
		BatchSize: 10,
		Interval:  200 * time.Millisecond,
		Denom:     "uluna",
		Price:     1000,
		Funding:   1_000_000_000,
	}
}

type feederPhase uint8

const (
	phaseList   feederPhase = iota // owner lists the asset
	phaseBid                       // another trader bids the listed price
	phaseAccept                    // owner accepts the standing bid
	phaseBuy                       // another trader buys at the listed price
)

type feederAsset struct {
	key    market.Key
	owner  int
	bidder int
	phase  feederPhase
}

// Feeder drives every feeder asset around the list -> bid -> accept and
// list -> buy cycles with signed transactions. Keys are derived from a
// fixed seed so every node of a devnet agrees on the genesis it adds.
type Feeder struct {
	cfg      FeederConfig
	signers  []*crypto.Signer
	nonces   []uint64
	index    map[common.Address]int
	assets   []*feederAsset
	verifier *transaction.Verifier
	rng      *rand.Rand
	cursor   int

	generated int
}

// FeederCollection is the collection address feeder assets are minted in
func FeederCollection() common.Address {
	return common.BytesToAddress(ethCrypto.Keccak256([]byte("hypermarket/feeder/collection"))[12:])
}

// NewFeeder derives cfg.Accounts trader keys and one asset per trader
func NewFeeder(cfg FeederConfig, domain crypto.EIP712Domain) (*Feeder, error) {
	if cfg.Accounts < 2 {
		return nil, fmt.Errorf("feeder needs at least 2 accounts, got %d", cfg.Accounts)
	}
	f := &Feeder{
		cfg:      cfg,
		signers:  make([]*crypto.Signer, cfg.Accounts),
		nonces:   make([]uint64, cfg.Accounts),
		index:    make(map[common.Address]int, cfg.Accounts),
		assets:   make([]*feederAsset, cfg.Accounts),
		verifier: transaction.NewVerifier(domain),
		rng:      rand.New(rand.NewSource(1)),
	}
	collection := FeederCollection()
	for i := range f.signers {
		seed := ethCrypto.Keccak256([]byte("hypermarket/feeder/" + strconv.Itoa(i)))
		signer, err := crypto.FromPrivateKeyHex(hex.EncodeToString(seed))
		if err != nil {
			return nil, fmt.Errorf("derive feeder key %d: %w", i, err)
		}
		f.signers[i] = signer
		f.index[signer.Address()] = i
		f.assets[i] = &feederAsset{
			key:   market.Key{Collection: collection, Instance: strconv.Itoa(i)},
			owner: i,
		}
	}
	return f, nil
}

// Seed funds every trader and mints its asset in g
func (f *Feeder) Seed(g *Genesis) {
	for i, s := range f.signers {
		g.Balances = append(g.Balances, GenesisBalance{
			Address: s.Address(),
			Amount:  asset.Native(f.cfg.Denom, f.cfg.Funding),
		})
		g.Assets = append(g.Assets, GenesisAsset{Key: f.assets[i].key, Owner: s.Address()})
	}
}

// Resume reloads nonces, owners and cycle phases from committed state so
// a restarted node continues where the chain left off
func (f *Feeder) Resume(a *App) error {
	for i, s := range f.signers {
		n, err := a.QueryNonce(s.Address())
		if err != nil {
			return err
		}
		f.nonces[i] = n
	}
	for _, as := range f.assets {
		owner, err := a.QueryOwner(as.key)
		if err != nil {
			return err
		}
		if i, ok := f.index[owner]; ok {
			as.owner = i
		}
		as.phase = phaseList
		if _, err := a.QueryOrder(as.key); err != nil {
			continue
		}
		as.phase = phaseBid
		if bid, err := a.QueryBid(as.key); err == nil {
			if i, ok := f.index[bid.Bidder]; ok {
				as.bidder = i
				as.phase = phaseAccept
			}
		}
	}
	return nil
}

// Next builds up to n signed txs, advancing one asset per tx
func (f *Feeder) Next(n int) [][]byte {
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		as := f.assets[f.cursor]
		f.cursor = (f.cursor + 1) % len(f.assets)
		raw, err := f.step(as)
		if err != nil {
			continue
		}
		out = append(out, raw)
	}
	f.generated += len(out)
	return out
}

// Generated is the number of txs built so far
func (f *Feeder) Generated() int { return f.generated }

func (f *Feeder) step(as *feederAsset) ([]byte, error) {
	price := asset.Native(f.cfg.Denom, f.cfg.Price)

	switch as.phase {
	case phaseBid:
		as.bidder = f.other(as.owner)
		as.phase = phaseAccept
		return f.sign(as.bidder, &market.ExecuteMsg{CreateBid: &market.OrderMsg{
			Key: as.key, Price: price, ExpireAt: market.Never(),
		}}, price)

	case phaseAccept:
		seller := as.owner
		as.owner, as.phase = as.bidder, phaseList
		return f.sign(seller, &market.ExecuteMsg{AcceptBid: &market.SettleMsg{Key: as.key, Price: price}}, price)

	case phaseBuy:
		buyer := f.other(as.owner)
		as.owner, as.phase = buyer, phaseList
		return f.sign(buyer, &market.ExecuteMsg{SafeExecuteOrder: &market.SettleMsg{Key: as.key, Price: price}}, price)

	default:
		// Half the listings settle through a bid, half through a direct buy
		as.phase = phaseBid
		if f.rng.Intn(2) == 0 {
			as.phase = phaseBuy
		}
		return f.sign(as.owner, &market.ExecuteMsg{CreateOrder: &market.OrderMsg{
			Key: as.key, Price: price, ExpireAt: market.Never(),
		}})
	}
}

// other picks a random trader distinct from i
func (f *Feeder) other(i int) int {
	j := f.rng.Intn(len(f.signers) - 1)
	if j >= i {
		j++
	}
	return j
}

func (f *Feeder) sign(who int, msg *market.ExecuteMsg, funds ...asset.Asset) ([]byte, error) {
	signer := f.signers[who]
	f.nonces[who]++
	tx, err := transaction.Build(signer.Address(), f.nonces[who], msg, funds)
	if err != nil {
		return nil, err
	}
	if err := f.verifier.Sign(signer, tx); err != nil {
		return nil, err
	}
	return tx.Serialize()
}

// StartFeeder starts a background goroutine that continuously feeds
// transactions to the app. Returns a cancel function to stop the feeder.
func StartFeeder(ctx context.Context, app *App, f *Feeder, logger *zap.SugaredLogger) context.CancelFunc {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	feedCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(f.cfg.Interval)
		defer ticker.Stop()

		startTime := time.Now()
		lastReport := startTime

		logger.Infow("feeder_started",
			"accounts", len(f.signers),
			"batch", f.cfg.BatchSize,
			"interval", f.cfg.Interval)

		for {
			select {
			case <-feedCtx.Done():
				elapsed := time.Since(startTime)
				logger.Infow("feeder_stopped",
					"txs", f.Generated(),
					"elapsed", elapsed.Round(time.Second),
					"tx_per_sec", float64(f.Generated())/elapsed.Seconds())
				return

			case <-ticker.C:
				for _, tx := range f.Next(f.cfg.BatchSize) {
					app.PushTx(tx)
				}

				// Log stats every 10 seconds
				if time.Since(lastReport) >= 10*time.Second {
					lastReport = time.Now()
					elapsed := time.Since(startTime)
					logger.Infow("feeder_stats",
						"txs", f.Generated(),
						"tx_per_sec", float64(f.Generated())/elapsed.Seconds(),
						"mempool", app.PendingTxs())
				}
			}
		}
	}()

	return cancel
}
