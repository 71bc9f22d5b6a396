package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
)

type Node struct {
	// MinBlockTime paces block production; the sequencer only commits a
	// block when the mempool is non-empty.
	//
	// Recommended values:
	//   - Devnet:      200ms (5 blocks/sec at most)
	//   - Load tests:  50ms
	MinBlockTime  time.Duration
	MaxBlockBytes int64 // 0 = unlimited
	MempoolLimit  int   // 0 = unbounded
	DataDir       string
	// InMemory skips pebble; nothing survives a restart
	InMemory bool
	LogFile  string
	Verbose  bool
}

type API struct {
	Addr           string
	AllowedOrigins []string
	TxLogFile      string
}

type Genesis struct {
	// DeployerKey is the hex private key that creates tokens and the exchange
	DeployerKey string
	FeeAccount  common.Address
	FeePercent  uint64
	ChainID     int64
	GenesisTime int64
	// Alloc funds native balances; from NATIVE_ALLOC "0xaddr=amount,..."
	Alloc map[common.Address]*uint256.Int
}

// Kafka streaming is off when Brokers is empty
type Kafka struct {
	Brokers []string
	Topic   string
}

// P2P gossip is off when ListenAddr is empty
type P2P struct {
	ListenAddr string
	Bootstrap  []string
	// BLSSeed (hex, 32+ bytes) derives the block-signing key; empty
	// derives it from the deployer key
	BLSSeed string
	// SequencerKey (hex BLS public key) makes the node drop block
	// announcements not signed by it
	SequencerKey string
}

type TxGen struct {
	Enabled bool
	Mode    string // default | high
	// Seed derives the simulated traders; keep it fixed across restarts of
	// a persistent node or the genesis changes and replay fails
	Seed int64
}

type Config struct {
	Node    Node
	API     API
	Genesis Genesis
	Kafka   Kafka
	P2P     P2P
	TxGen   TxGen
}

// devDeployerKey is the first well-known ganache key; never use it outside devnets
const devDeployerKey = "4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d"

func Default() Config {
	return Config{
		Node: Node{
			MinBlockTime: 200 * time.Millisecond, // Devnet default
			MempoolLimit: 10_000,
			DataDir:      "data/chain",
			LogFile:      "data/node.log",
		},
		API: API{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
			TxLogFile:      "data/transactions.log",
		},
		Genesis: Genesis{
			DeployerKey: devDeployerKey,
			FeeAccount:  common.HexToAddress("0xFFcf8FDEE72ac11b5c542428B35EEF5769C409f0"),
			FeePercent:  10,
			ChainID:     1337,
			Alloc:       map[common.Address]*uint256.Int{},
		},
		Kafka: Kafka{Topic: "escrowdex-events"},
		TxGen: TxGen{Mode: "default", Seed: 1},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	var errs []error
	durationMs := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			ms, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, errors.Wrapf(err, "%s", key))
				return
			}
			*dst = time.Duration(ms) * time.Millisecond
		}
	}
	integer := func(key string, dst *int64) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, errors.Wrapf(err, "%s", key))
				return
			}
			*dst = n
		}
	}

	// Node
	durationMs("NODE_MIN_BLOCK_TIME_MS", &cfg.Node.MinBlockTime)
	integer("NODE_MAX_BLOCK_BYTES", &cfg.Node.MaxBlockBytes)
	mempoolLimit := int64(cfg.Node.MempoolLimit)
	integer("MEMPOOL_LIMIT", &mempoolLimit)
	cfg.Node.MempoolLimit = int(mempoolLimit)
	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.InMemory = os.Getenv("IN_MEMORY") == "true"
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.Verbose = os.Getenv("VERBOSE") == "true"

	// API
	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)
	cfg.API.TxLogFile = getEnv("TX_LOG_FILE", cfg.API.TxLogFile)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.API.AllowedOrigins = splitList(origins)
	}

	// Genesis
	cfg.Genesis.DeployerKey = strings.TrimPrefix(getEnv("DEPLOYER_KEY", cfg.Genesis.DeployerKey), "0x")
	if fee := os.Getenv("FEE_ACCOUNT"); fee != "" {
		if !common.IsHexAddress(fee) {
			errs = append(errs, errors.Newf("FEE_ACCOUNT: invalid address %q", fee))
		} else {
			cfg.Genesis.FeeAccount = common.HexToAddress(fee)
		}
	}
	if pct := os.Getenv("FEE_PERCENT"); pct != "" {
		n, err := strconv.ParseUint(pct, 10, 64)
		if err != nil || n > 100 {
			errs = append(errs, errors.Newf("FEE_PERCENT: %q is not 0..100", pct))
		} else {
			cfg.Genesis.FeePercent = n
		}
	}
	integer("CHAIN_ID", &cfg.Genesis.ChainID)
	integer("GENESIS_TIME", &cfg.Genesis.GenesisTime)
	if alloc := os.Getenv("NATIVE_ALLOC"); alloc != "" {
		parsed, err := ParseAlloc(alloc)
		if err != nil {
			errs = append(errs, err)
		} else {
			cfg.Genesis.Alloc = parsed
		}
	}

	// Streaming and gossip
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitList(brokers)
	}
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.P2P.ListenAddr = os.Getenv("P2P_LISTEN")
	if bs := os.Getenv("P2P_BOOTSTRAP"); bs != "" {
		cfg.P2P.Bootstrap = splitList(bs)
	}
	cfg.P2P.BLSSeed = os.Getenv("P2P_BLS_SEED")
	cfg.P2P.SequencerKey = os.Getenv("P2P_SEQUENCER_KEY")

	cfg.TxGen.Enabled = os.Getenv("ENABLE_TXGEN") == "true"
	cfg.TxGen.Mode = getEnv("TXGEN_MODE", cfg.TxGen.Mode)
	integer("TXGEN_SEED", &cfg.TxGen.Seed)

	if len(errs) > 0 {
		return cfg, errors.Join(errs...)
	}
	return cfg, nil
}

// ParseAlloc parses "0xaddr=amount,0xaddr=amount" with amounts in wei
func ParseAlloc(s string) (map[common.Address]*uint256.Int, error) {
	out := make(map[common.Address]*uint256.Int)
	for _, entry := range splitList(s) {
		addr, amount, ok := strings.Cut(entry, "=")
		if !ok || !common.IsHexAddress(addr) {
			return nil, errors.Newf("NATIVE_ALLOC: bad entry %q", entry)
		}
		v, err := uint256.FromDecimal(amount)
		if err != nil {
			return nil, errors.Wrapf(err, "NATIVE_ALLOC: amount for %s", addr)
		}
		out[common.HexToAddress(addr)] = v
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
