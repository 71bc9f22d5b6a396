package dex

import (
	"context"
	"encoding/hex"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/uhyunpark/escrowdex/pkg/app/core/exchange"
	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
	"github.com/uhyunpark/escrowdex/pkg/app/core/transaction"
	"github.com/uhyunpark/escrowdex/pkg/crypto"
)

// TxFeederConfig controls transaction generation rate
type TxFeederConfig struct {
	BatchSize   int           // Number of txs to generate per batch
	Interval    time.Duration // How often to generate batches
	NumAccounts int           // Number of simulated traders
	Seed        int64         // 0 = time based
}

// DefaultFeederConfig returns reasonable defaults for a devnet
func DefaultFeederConfig() TxFeederConfig {
	return TxFeederConfig{
		BatchSize:   10,
		Interval:    100 * time.Millisecond,
		NumAccounts: 20,
	}
}

// HighLoadConfig returns config for stress testing
func HighLoadConfig() TxFeederConfig {
	return TxFeederConfig{
		BatchSize:   100,
		Interval:    100 * time.Millisecond,
		NumAccounts: 200,
	}
}

// feederStake is the genesis native allocation of every simulated trader
var feederStake = ledger.Units(1_000, 18)

// TxGenerator creates random signed exchange traffic for load testing.
// Traders deposit native currency, post native-for-native orders, fill
// and cancel open ones.
type TxGenerator struct {
	keys    []*crypto.Signer
	wallets []*transaction.Wallet
	rng     *rand.Rand
}

// NewTxGenerator derives numAccounts traders from seed, so a node restarted
// with the same seed rebuilds the same genesis. Fund them with Fund before
// building the app, then Bind to it.
func NewTxGenerator(numAccounts int, seed int64) (*TxGenerator, error) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := &TxGenerator{rng: rand.New(rand.NewSource(seed))}
	var raw [32]byte
	for i := 0; i < numAccounts; i++ {
		g.rng.Read(raw[:])
		k, err := crypto.FromPrivateKeyHex(hex.EncodeToString(raw[:]))
		if err != nil {
			return nil, err
		}
		g.keys = append(g.keys, k)
	}
	return g, nil
}

// Fund adds the traders to the genesis allocation
func (g *TxGenerator) Fund(gen *Genesis) {
	if gen.Alloc == nil {
		gen.Alloc = make(map[common.Address]*uint256.Int)
	}
	for _, k := range g.keys {
		gen.Alloc[k.Address()] = feederStake.Clone()
	}
}

// Bind prepares wallets signing for app's domain, resuming from the
// nonces the app has already seen
func (g *TxGenerator) Bind(app *App) {
	g.wallets = make([]*transaction.Wallet, len(g.keys))
	for i, k := range g.keys {
		g.wallets[i] = transaction.NewWallet(app.Domain(), k, app.Nonce(k.Address()))
	}
}

// Accounts lists the simulated traders
func (g *TxGenerator) Accounts() []common.Address {
	out := make([]common.Address, len(g.keys))
	for i, k := range g.keys {
		out[i] = k.Address()
	}
	return out
}

// randomAmount is 1..100 hundredths of a native unit
func (g *TxGenerator) randomAmount() *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(uint64(g.rng.Intn(100)+1)), ledger.Units(1, 16))
}

// Generate builds one random transaction. open is the current open order
// set, used to pick fills and cancels.
func (g *TxGenerator) Generate(open []OrderView) ([]byte, error) {
	w := g.wallets[g.rng.Intn(len(g.wallets))]

	// Random action: 25% deposit, 40% make, 25% fill, 10% cancel
	r := g.rng.Intn(100)
	switch {
	case r < 25 || len(open) == 0 && r >= 65:
		return w.DepositNative(g.randomAmount())
	case r < 65:
		return w.MakeOrder(ledger.NativeAsset, g.randomAmount(), ledger.NativeAsset, g.randomAmount())
	case r < 90:
		return w.FillOrder(open[g.rng.Intn(len(open))].ID)
	default:
		for _, o := range open {
			if o.Maker == w.Address() {
				return w.CancelOrder(o.ID)
			}
		}
		return w.CancelOrder(open[g.rng.Intn(len(open))].ID)
	}
}

// GenerateBatch builds n transactions against the app's current open orders
func (g *TxGenerator) GenerateBatch(app *App, n int) [][]byte {
	open := app.Orders(exchange.StatusOpen)
	batch := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		tx, err := g.Generate(open)
		if err != nil {
			continue
		}
		batch = append(batch, tx)
	}
	return batch
}

// StartTxFeeder starts a background goroutine that continuously feeds
// transactions to the app. Returns a cancel function to stop the feeder.
func StartTxFeeder(ctx context.Context, app *App, gen *TxGenerator, cfg TxFeederConfig, logger *zap.SugaredLogger) context.CancelFunc {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	feedCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		startTime := time.Now()
		lastReport := startTime
		totalTxs, rejected := 0, 0

		logger.Infow("txfeeder_started", "batch", cfg.BatchSize, "interval_ms", cfg.Interval.Milliseconds(), "accounts", len(gen.keys))

		for {
			select {
			case <-feedCtx.Done():
				elapsed := time.Since(startTime)
				logger.Infow("txfeeder_stopped", "total", totalTxs, "rejected", rejected, "elapsed_s", elapsed.Seconds())
				return

			case <-ticker.C:
				for _, tx := range gen.GenerateBatch(app, cfg.BatchSize) {
					if _, err := app.SubmitTx(tx); err != nil {
						rejected++
						continue
					}
					totalTxs++
				}

				// Log stats every 10 seconds
				if time.Since(lastReport) >= 10*time.Second {
					elapsed := time.Since(startTime)
					logger.Infow("txfeeder_stats",
						"total", totalTxs,
						"rejected", rejected,
						"tx_per_sec", float64(totalTxs)/elapsed.Seconds(),
					)
					lastReport = time.Now()
				}
			}
		}
	}()

	return cancel
}
