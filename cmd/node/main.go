package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/uhyunpark/hypermarket/params"
	"github.com/uhyunpark/hypermarket/pkg/abci"
	"github.com/uhyunpark/hypermarket/pkg/api"
	"github.com/uhyunpark/hypermarket/pkg/app/nft"
	"github.com/uhyunpark/hypermarket/pkg/consensus"
	"github.com/uhyunpark/hypermarket/pkg/crypto"
	"github.com/uhyunpark/hypermarket/pkg/p2p"
	"github.com/uhyunpark/hypermarket/pkg/storage"
	"github.com/uhyunpark/hypermarket/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	// Setup logging (write to both console and file)
	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, cfg.Node.LogLevel, util.DefaultLogRotation())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile, "level", cfg.Node.LogLevel.String())

	if err := run(cfg, sugar); err != nil {
		sugar.Fatalw("node_failed", "err", err)
	}
}

func run(cfg params.Config, sugar *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Storage: app state and blocks share one Pebble instance ----
	db, err := storage.NewPebbleStore(filepath.Join(cfg.Node.DataDir, "chain"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	walPath := filepath.Join(cfg.Node.DataDir, "consensus.wal")
	journal, err := storage.ReadWAL(walPath)
	if err != nil {
		return fmt.Errorf("read wal: %w", err)
	}
	wal, err := storage.NewFileWAL(walPath)
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	defer wal.Close()

	// ---- App: NFT marketplace ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app, err := nft.NewApp(db, nft.Options{
		Domain:   crypto.DefaultDomain(cfg.Chain.ChainID),
		Logger:   sugar.Named("app"),
		Registry: reg,
	})
	if err != nil {
		return fmt.Errorf("open app: %w", err)
	}
	genesis, err := params.LoadGenesis(cfg.Chain.GenesisFile)
	if err != nil {
		return err
	}

	// ---- Transaction Feeder (optional) ----
	// Enable with: ENABLE_TXGEN=true on every node, the feeder accounts
	// are part of the genesis
	var feeder *nft.Feeder
	if cfg.Node.TxGen.Enabled {
		fcfg := nft.DefaultFeederConfig()
		fcfg.Accounts = cfg.Node.TxGen.Accounts
		fcfg.BatchSize = cfg.Node.TxGen.Batch
		if feeder, err = nft.NewFeeder(fcfg, crypto.DefaultDomain(cfg.Chain.ChainID)); err != nil {
			return err
		}
		feeder.Seed(&genesis)
	}
	if err := app.InitChain(genesis); err != nil {
		return fmt.Errorf("init chain: %w", err)
	}
	sugar.Infow("app_ready", "height", app.Height(), "chain_id", cfg.Chain.ChainID)

	bridge := &abci.Bridge{App: app}

	// ---- Network ----
	state := consensus.NewState(consensus.NodeID(cfg.Network.SelfID), db)
	if n := len(journal); n > 0 {
		tail := journal[n-1]
		sugar.Infow("wal_tail", "kind", tail.Kind, "height", tail.Height, "block_height", state.Height)
		if tail.Height != state.Height {
			sugar.Warnw("wal_block_store_diverged", "wal_height", tail.Height, "block_height", state.Height)
		}
	}
	if app.Height() > uint64(state.Height) {
		// The app committed a block the block store never saved; that
		// height is re-produced and ignored by the app as a replay
		sugar.Warnw("app_ahead_of_blocks", "app_height", app.Height(), "block_height", state.Height)
	}
	lpn, err := p2p.NewLibp2pNet(ctx, p2p.Libp2pConfig{
		ListenAddr: cfg.Network.Listen,
		Bootstrap:  cfg.Network.Bootstrap,
		SelfID:     state.SelfID,
		Store:      db,
		Logger:     sugar.Named("p2p"),
	})
	if err != nil {
		return fmt.Errorf("libp2p: %w", err)
	}
	defer lpn.Close()
	sugar.Infow("p2p_addrs", "addrs", lpn.Addrs())

	// ---- API Server ----
	apiServer := api.NewServer(app, api.Config{
		Logger:         sugar.Named("api"),
		Gatherer:       reg,
		AllowedOrigins: cfg.API.AllowedOrigins,
	})
	go func() {
		if err := apiServer.Start(ctx, cfg.API.Addr); err != nil {
			sugar.Errorw("api_server_failed", "err", err)
			stop()
		}
	}()

	// ---- Block production ----
	switch cfg.Node.Role {
	case params.RoleProducer:
		signer, err := crypto.NewBLSSignerFromPhrase(cfg.Chain.ProducerSeed)
		if err != nil {
			return err
		}
		pub, err := crypto.MarshalBLSPubKey(signer.Pubkey())
		if err != nil {
			return err
		}

		producer := consensus.NewProducer(state, bridge, lpn, signer)
		producer.Logger = sugar.Named("consensus")
		producer.VerboseLogging = cfg.Node.Verbose
		producer.MinBlockTime = cfg.Node.MinBlockTime
		producer.SkipEmpty = cfg.Node.SkipEmpty
		producer.Store = db
		producer.WAL = wal

		if feeder != nil {
			if err := feeder.Resume(app); err != nil {
				return fmt.Errorf("resume feeder: %w", err)
			}
			cancelFeeder := nft.StartFeeder(ctx, app, feeder, sugar.Named("feeder"))
			defer cancelFeeder()
		}

		sugar.Infow("node_starting",
			"role", cfg.Node.Role,
			"height", state.Height,
			"min_block_time_ms", cfg.Node.MinBlockTime.Milliseconds(),
			"producer_pubkey", "0x"+hex.EncodeToString(pub))

		if err := producer.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("producer: %w", err)
		}

	case params.RoleFollower:
		key, err := producerKey(cfg.Chain)
		if err != nil {
			return err
		}

		follower := consensus.NewFollower(state, bridge, key)
		follower.Logger = sugar.Named("consensus")
		follower.Store = db
		follower.WAL = wal
		follower.Fetcher = lpn
		follower.Attach(lpn)

		sugar.Infow("node_starting", "role", cfg.Node.Role, "height", state.Height)
		return followLoop(ctx, follower, sugar)
	}
	return nil
}

// followLoop catches up from peers, then keeps polling for gaps the
// gossip stream did not fill until ctx ends or the follower halts
func followLoop(ctx context.Context, f *consensus.Follower, sugar *zap.SugaredLogger) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		n, err := f.Sync(ctx)
		if n > 0 {
			sugar.Infow("sync_applied", "blocks", n)
		}
		if herr := f.Halted(); herr != nil {
			return fmt.Errorf("follower halted: %w", herr)
		}
		if err != nil && ctx.Err() == nil {
			sugar.Warnw("sync_failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func producerKey(c params.Chain) (*crypto.BLSPubKey, error) {
	if c.ProducerPubKey != "" {
		raw, err := hex.DecodeString(strings.TrimPrefix(c.ProducerPubKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("producer pubkey: %w", err)
		}
		return crypto.ParseBLSPubKey(raw)
	}
	signer, err := crypto.NewBLSSignerFromPhrase(c.ProducerSeed)
	if err != nil {
		return nil, err
	}
	return signer.Pubkey(), nil
}
