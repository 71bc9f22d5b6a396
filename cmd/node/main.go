package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/uhyunpark/escrowdex/params"
	"github.com/uhyunpark/escrowdex/pkg/api"
	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
	"github.com/uhyunpark/escrowdex/pkg/app/dex"
	"github.com/uhyunpark/escrowdex/pkg/crypto"
	"github.com/uhyunpark/escrowdex/pkg/p2p"
	"github.com/uhyunpark/escrowdex/pkg/sequencer"
	"github.com/uhyunpark/escrowdex/pkg/storage"
	"github.com/uhyunpark/escrowdex/pkg/stream"
	"github.com/uhyunpark/escrowdex/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg, err := params.LoadFromEnv("") // "" means load from .env in current directory
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, cfg.Node.Verbose)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Genesis ----
	deployer, err := crypto.FromPrivateKeyHex(cfg.Genesis.DeployerKey)
	if err != nil {
		sugar.Fatalw("deployer_key_invalid", "err", err)
	}
	genesis := dex.DefaultGenesis(deployer.Address(), cfg.Genesis.FeeAccount)
	genesis.FeePercent = cfg.Genesis.FeePercent
	genesis.GenesisTime = cfg.Genesis.GenesisTime
	for addr, amt := range cfg.Genesis.Alloc {
		genesis.Alloc[addr] = amt
	}

	// Simulated traders are part of genesis, so create them before the app
	var gen *dex.TxGenerator
	var feederCfg dex.TxFeederConfig
	if cfg.TxGen.Enabled {
		switch cfg.TxGen.Mode {
		case "high":
			feederCfg = dex.HighLoadConfig()
		default:
			feederCfg = dex.DefaultFeederConfig()
		}
		gen, err = dex.NewTxGenerator(feederCfg.NumAccounts, cfg.TxGen.Seed)
		if err != nil {
			sugar.Fatalw("txgen_init_failed", "err", err)
		}
		gen.Fund(&genesis)
	}

	app, err := dex.NewApp(genesis, dex.Options{
		MempoolLimit: cfg.Node.MempoolLimit,
		ChainID:      cfg.Genesis.ChainID,
	}, logger)
	if err != nil {
		sugar.Fatalw("genesis_failed", "err", err)
	}
	sugar.Infow("genesis_loaded",
		"deployer", deployer.Address().Hex(),
		"exchange", genesis.ExchangeAddress().Hex(),
		"fee_account", genesis.FeeAccount.Hex(),
		"fee_percent", genesis.FeePercent,
		"app_hash", app.AppHash().Hex(),
	)

	// ---- Storage ----
	var store storage.Store
	if cfg.Node.InMemory {
		store = storage.NewInMemoryBlockStore()
		sugar.Info("storage_in_memory - chain will not survive a restart")
	} else {
		ps, err := storage.NewPebbleStore(cfg.Node.DataDir)
		if err != nil {
			sugar.Fatalw("storage_open_failed", "dir", cfg.Node.DataDir, "err", err)
		}
		store = ps
	}
	defer store.Close()

	// ---- Sequencer ----
	seq := sequencer.New(app, store, util.RealClock{}, sugar.Named("sequencer"))
	seq.MinBlockTime = cfg.Node.MinBlockTime
	seq.MaxTxBytes = cfg.Node.MaxBlockBytes
	seq.VerboseLogging = cfg.Node.Verbose
	if !cfg.Node.InMemory {
		blockLog, err := storage.NewFileJournal(filepath.Join(cfg.Node.DataDir, "blocks.log"))
		if err != nil {
			sugar.Fatalw("block_journal_failed", "err", err)
		}
		defer blockLog.Close()
		seq.Journal = blockLog
	}

	if err := seq.Replay(ctx); err != nil {
		sugar.Fatalw("replay_failed", "err", err)
	}
	sugar.Infow("block_time_config", "min_block_time_ms", cfg.Node.MinBlockTime.Milliseconds(), "height", seq.Height())

	// ---- API Server ----
	var txJournal storage.Journal = storage.NewNopJournal()
	if cfg.API.TxLogFile != "" {
		fj, err := storage.NewFileJournal(cfg.API.TxLogFile)
		if err != nil {
			sugar.Fatalw("tx_journal_failed", "err", err)
		}
		defer fj.Close()
		txJournal = fj
	}
	apiServer := api.NewServer(app, store, api.Config{
		AllowedOrigins: cfg.API.AllowedOrigins,
		TxJournal:      txJournal,
		Logger:         sugar.Named("api"),
	})
	seq.Publishers = append(seq.Publishers, apiServer.Hub())

	// ---- Kafka (optional) ----
	if len(cfg.Kafka.Brokers) > 0 {
		kp := stream.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kp.Close()
		seq.Publishers = append(seq.Publishers, kp)
		sugar.Infow("kafka_enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	// ---- P2P gossip (optional) ----
	if cfg.P2P.ListenAddr != "" {
		lpn := startP2P(ctx, cfg.P2P, cfg.Genesis.DeployerKey, app, sugar.Named("p2p"))
		defer lpn.Close()
		seq.Publishers = append(seq.Publishers, lpn)
		seq.OnBlockCommit = func(height int64) {
			announceBlock(ctx, lpn, store, height, sugar)
		}
	}

	// ---- Transaction Feeder (optional) ----
	// Enable with: ENABLE_TXGEN=true TXGEN_MODE=default|high
	if gen != nil {
		gen.Bind(app)
		sugar.Infow("txgen_enabled", "mode", cfg.TxGen.Mode, "accounts", feederCfg.NumAccounts, "seed", cfg.TxGen.Seed)
		cancelFeeder := dex.StartTxFeeder(ctx, app, gen, feederCfg, sugar.Named("txgen"))
		defer cancelFeeder()
	} else {
		sugar.Info("txgen_disabled - waiting for signed transactions")
	}

	go func() {
		if err := apiServer.Start(ctx, cfg.API.Addr); err != nil {
			sugar.Errorw("api_server_failed", "err", err)
			stop()
		}
	}()

	sugar.Infow("node_starting", "height", seq.Height(), "api_addr", cfg.API.Addr)
	if err := seq.Run(ctx); err != nil && ctx.Err() == nil {
		sugar.Errorw("sequencer_failed", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("api_shutdown_failed", "err", err)
	}
	sugar.Infow("node_stopped", "height", seq.Height())
}

// startP2P joins the gossip network. Peers receive committed events and
// block headers; transactions they forward land in the local mempool.
func startP2P(ctx context.Context, cfg params.P2P, deployerKey string, app *dex.App, logger *zap.SugaredLogger) *p2p.Libp2pNet {
	signer, seqKey, err := blockKeys(cfg, deployerKey)
	if err != nil {
		logger.Fatalw("block_key_invalid", "err", err)
	}
	pub, err := signer.PubkeyBytes()
	if err != nil {
		logger.Fatalw("block_key_invalid", "err", err)
	}
	logger.Infow("block_signing_key", "pubkey", hexutil.Encode(pub))

	lpn, err := p2p.NewLibp2pNet(ctx, p2p.Libp2pConfig{
		ListenAddr:   cfg.ListenAddr,
		Bootstrap:    cfg.Bootstrap,
		Logger:       logger,
		BlockSigner:  signer,
		SequencerKey: seqKey,
	})
	if err != nil {
		logger.Fatalw("libp2p_init_failed", "err", err)
	}
	lpn.SetHandlers(p2p.Handlers{
		OnTx: func(raw []byte) error {
			_, err := app.SubmitTx(raw)
			return err
		},
		OnBlock: func(_ context.Context, from peer.ID, b p2p.BlockAnnounce) {
			logger.Debugw("peer_block", "peer", from.String(), "height", b.Height, "hash", b.Hash.Hex())
		},
		OnEvents: func(_ context.Context, from peer.ID, records []eventlog.Record) {
			logger.Debugw("peer_events", "peer", from.String(), "count", len(records))
		},
	})
	logger.Infow("p2p_listening", "addrs", lpn.Addrs())
	return lpn
}

// blockKeys loads the BLS block-signing key and, if configured, the key
// peer announcements must be signed with
func blockKeys(cfg params.P2P, deployerKey string) (*crypto.BLSSigner, *crypto.BLSPubKey, error) {
	var seed []byte
	if cfg.BLSSeed != "" {
		b, err := hexutil.Decode(cfg.BLSSeed)
		if err != nil {
			return nil, nil, errors.Wrap(err, "P2P_BLS_SEED")
		}
		seed = b
	} else {
		seed = ethcrypto.Keccak256([]byte("escrowdex-block-key"), []byte(deployerKey))
	}
	signer, err := crypto.NewBLSSignerFromSeed(seed)
	if err != nil {
		return nil, nil, err
	}

	if cfg.SequencerKey == "" {
		return signer, nil, nil
	}
	raw, err := hexutil.Decode(cfg.SequencerKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "P2P_SEQUENCER_KEY")
	}
	pk, err := crypto.ParseBLSPubKey(raw)
	if err != nil {
		return nil, nil, err
	}
	return signer, pk, nil
}

func announceBlock(ctx context.Context, lpn *p2p.Libp2pNet, store storage.Store, height int64, logger *zap.SugaredLogger) {
	b, ok, err := store.GetBlock(height)
	if err != nil || !ok {
		logger.Warnw("announce_block_missing", "height", height, "err", err)
		return
	}
	ann := p2p.BlockAnnounce{
		Height:  b.Height,
		Time:    b.Time,
		Hash:    storage.HashOfBlock(b),
		AppHash: b.AppHash,
		Txs:     len(b.Txs),
	}
	if err := lpn.AnnounceBlock(ctx, ann); err != nil {
		logger.Warnw("announce_block_failed", "height", height, "err", err)
	}
}
