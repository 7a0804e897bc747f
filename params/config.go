package params

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// Role selects how a node takes part in block production
type Role string

const (
	RoleProducer Role = "producer" // cuts, signs and gossips blocks
	RoleFollower Role = "follower" // verifies and replays the producer's blocks
)

type Node struct {
	Role Role
	// MinBlockTime throttles block production.
	//
	// Recommended values:
	//   - Devnet:  200ms (5 blocks/sec)
	//   - Demo:    1s (readable logs, one block per user action)
	MinBlockTime time.Duration
	SkipEmpty    bool // don't cut blocks while the mempool is empty
	DataDir      string
	LogFile      string
	LogLevel     zapcore.Level
	Verbose      bool // log every produced block, not only non-empty ones
	TxGen        TxGen
}

// TxGen configures the devnet traffic generator. Every node must agree
// on Enabled and Accounts since both change the genesis.
type TxGen struct {
	Enabled  bool
	Accounts int
	Batch    int
}

type Network struct {
	SelfID    string
	Listen    string   // libp2p multiaddr
	Bootstrap []string // peer multiaddrs including /p2p/<id>
}

type Chain struct {
	ChainID     int64  // EIP-712 signing domain
	GenesisFile string // TOML, see genesis.go
	// ProducerSeed derives the producer BLS key. Required on the producer.
	ProducerSeed string
	// ProducerPubKey (hex) authenticates certificates on followers. When
	// empty, followers derive it from ProducerSeed.
	ProducerPubKey string
}

type API struct {
	Addr           string
	AllowedOrigins []string
}

type Config struct {
	Node    Node
	Network Network
	Chain   Chain
	API     API
}

func Default() Config {
	return Config{
		Node: Node{
			Role:         RoleProducer,
			SkipEmpty:    true,
			MinBlockTime: 200 * time.Millisecond, // Devnet default: prevent log spam
			DataDir:      "data",
			LogFile:      "data/node.log",
			LogLevel:     zapcore.InfoLevel,
			TxGen:        TxGen{Accounts: 20, Batch: 10},
		},
		Network: Network{
			SelfID: "node1",
			Listen: "/ip4/0.0.0.0/tcp/26656",
		},
		Chain: Chain{
			ChainID:      1337,
			GenesisFile:  "genesis.toml",
			ProducerSeed: "devnet",
		},
		API: API{
			Addr: ":8080",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	// Node
	cfg.Node.Role = Role(getEnv("NODE_ROLE", string(cfg.Node.Role)))
	if minBlock := os.Getenv("NODE_MIN_BLOCK_TIME_MS"); minBlock != "" {
		if ms, err := strconv.Atoi(minBlock); err == nil {
			cfg.Node.MinBlockTime = time.Duration(ms) * time.Millisecond
		}
	}
	if skip := os.Getenv("NODE_SKIP_EMPTY"); skip != "" {
		cfg.Node.SkipEmpty = skip == "true"
	}
	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, err := zapcore.ParseLevel(lvl); err == nil {
			cfg.Node.LogLevel = parsed
		}
	}
	cfg.Node.Verbose = os.Getenv("VERBOSE") == "true"
	cfg.Node.TxGen.Enabled = os.Getenv("ENABLE_TXGEN") == "true"
	if n, err := strconv.Atoi(os.Getenv("TXGEN_ACCOUNTS")); err == nil {
		cfg.Node.TxGen.Accounts = n
	}
	if n, err := strconv.Atoi(os.Getenv("TXGEN_BATCH")); err == nil {
		cfg.Node.TxGen.Batch = n
	}

	// Network
	cfg.Network.SelfID = getEnv("NODE_ID", cfg.Network.SelfID)
	cfg.Network.Listen = getEnv("LISTEN", cfg.Network.Listen)
	cfg.Network.Bootstrap = splitList(os.Getenv("BOOTSTRAP"))

	// Chain
	if id := os.Getenv("CHAIN_ID"); id != "" {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			cfg.Chain.ChainID = n
		}
	}
	cfg.Chain.GenesisFile = getEnv("GENESIS_FILE", cfg.Chain.GenesisFile)
	cfg.Chain.ProducerSeed = getEnv("PRODUCER_BLS_SEED", cfg.Chain.ProducerSeed)
	cfg.Chain.ProducerPubKey = os.Getenv("PRODUCER_BLS_PUBKEY")

	// API
	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)
	cfg.API.AllowedOrigins = splitList(os.Getenv("API_ALLOWED_ORIGINS"))

	return cfg
}

// Validate rejects configurations the node cannot start with
func (c Config) Validate() error {
	switch c.Node.Role {
	case RoleProducer:
		if c.Chain.ProducerSeed == "" {
			return errors.New("producer requires PRODUCER_BLS_SEED")
		}
	case RoleFollower:
		if c.Chain.ProducerPubKey == "" && c.Chain.ProducerSeed == "" {
			return errors.New("follower requires PRODUCER_BLS_PUBKEY or PRODUCER_BLS_SEED")
		}
		if c.Chain.ProducerPubKey != "" {
			if _, err := hex.DecodeString(strings.TrimPrefix(c.Chain.ProducerPubKey, "0x")); err != nil {
				return fmt.Errorf("PRODUCER_BLS_PUBKEY: %w", err)
			}
		}
	default:
		return fmt.Errorf("unknown NODE_ROLE %q", c.Node.Role)
	}
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive, got %d", c.Chain.ChainID)
	}
	if c.Node.MinBlockTime <= 0 {
		return fmt.Errorf("NODE_MIN_BLOCK_TIME_MS must be positive")
	}
	if c.Node.TxGen.Enabled && (c.Node.TxGen.Accounts < 2 || c.Node.TxGen.Batch < 1) {
		return fmt.Errorf("txgen needs TXGEN_ACCOUNTS >= 2 and TXGEN_BATCH >= 1")
	}
	return nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList parses a comma-separated list, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
