package dex

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/escrowdex/pkg/abci"
	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
	"github.com/uhyunpark/escrowdex/pkg/app/core/exchange"
	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
	"github.com/uhyunpark/escrowdex/pkg/app/core/mempool"
	"github.com/uhyunpark/escrowdex/pkg/app/core/native"
	"github.com/uhyunpark/escrowdex/pkg/app/core/token"
	"github.com/uhyunpark/escrowdex/pkg/app/core/transaction"
	"github.com/uhyunpark/escrowdex/pkg/crypto"
)

// blockClock reports the timestamp of the block being executed
type blockClock struct{ t time.Time }

func (c *blockClock) Now() time.Time { return c.t }

// App is the exchange state machine behind the node. It is the single
// writer: FinalizeBlock holds the write lock for a whole block, so readers
// only ever observe state between blocks.
type App struct {
	mu  sync.RWMutex
	log *zap.SugaredLogger

	genesis  Genesis
	mempool  *mempool.Mempool
	verifier *transaction.Verifier
	domain   crypto.EIP712Domain

	bank     *native.Bank
	tokens   *token.Registry
	exchange *exchange.Exchange
	nonces   map[common.Address]uint64

	clock    *blockClock
	buf      *eventlog.Buffer
	events   *eventlog.Log
	receipts map[common.Hash]abci.TxResult

	height    int64
	blockTime int64
	appHash   common.Hash
}

// Options tune the node-facing parts of the app
type Options struct {
	MempoolLimit int
	ChainID      int64
}

// NewApp builds the genesis state
func NewApp(g Genesis, opts Options, logger *zap.Logger) (*App, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		log:      logger.Sugar().Named("app"),
		genesis:  g,
		mempool:  mempool.NewMempool(opts.MempoolLimit),
		bank:     native.NewBank(),
		tokens:   token.NewRegistry(),
		nonces:   make(map[common.Address]uint64),
		clock:    &blockClock{t: time.Unix(g.GenesisTime, 0)},
		buf:      eventlog.NewBuffer(),
		events:   eventlog.NewLog(),
		receipts: make(map[common.Hash]abci.TxResult),
	}
	a.blockTime = g.GenesisTime

	a.domain = crypto.DefaultDomain(g.ExchangeAddress())
	if opts.ChainID != 0 {
		a.domain.ChainID.SetInt64(opts.ChainID)
	}
	a.verifier = transaction.NewVerifier(a.domain)

	for addr, amt := range g.Alloc {
		if err := a.bank.Credit(addr, amt); err != nil {
			return nil, errors.Wrapf(err, "genesis alloc %s", addr.Hex())
		}
	}

	for i, meta := range g.Tokens {
		l, err := token.New(token.AddressFor(g.Deployer, uint64(i)), g.Deployer, meta, a.buf)
		if err != nil {
			return nil, errors.Wrapf(err, "genesis token %s", meta.Symbol)
		}
		if err := a.tokens.Register(l); err != nil {
			return nil, err
		}
	}

	resolver := exchange.AssetResolverFunc(func(asset common.Address) (exchange.AssetLedger, bool) {
		l, ok := a.tokens.Get(asset)
		if !ok {
			return nil, false
		}
		return l, true
	})
	ex, err := exchange.New(exchange.Config{
		Address:    g.ExchangeAddress(),
		FeeAccount: g.FeeAccount,
		FeePercent: g.FeePercent,
	}, a.bank, resolver, a.clock, a.buf)
	if err != nil {
		return nil, err
	}
	a.exchange = ex

	// genesis events (the initial mint transfers) are not part of any block
	a.buf.Discard()
	a.appHash = a.computeStateHash(0, g.GenesisTime)
	return a, nil
}

// Domain is the EIP-712 domain clients sign against
func (a *App) Domain() crypto.EIP712Domain { return a.domain }

// SubmitTx checks a transaction's shape and signature and queues it.
// State checks (nonce, balances) happen when the block executes.
func (a *App) SubmitTx(raw []byte) (common.Hash, error) {
	tx, err := transaction.Deserialize(raw)
	if err != nil {
		return common.Hash{}, err
	}
	if _, err := a.verifier.Verify(tx); err != nil {
		return common.Hash{}, err
	}
	if err := a.mempool.PushRaw(raw); err != nil {
		return common.Hash{}, err
	}
	return transaction.HashRaw(raw), nil
}

// PendingTxs is the mempool size
func (a *App) PendingTxs() int { return a.mempool.Len() }

func (a *App) PrepareProposal(req abci.RequestPrepareProposal) abci.ResponsePrepareProposal {
	return abci.ResponsePrepareProposal{Txs: a.mempool.SelectForProposal(req.MaxTxBytes)}
}

// ProcessProposal accepts any block of non-empty transactions. Invalid
// transactions are still executed and fail with a receipt.
func (a *App) ProcessProposal(req abci.RequestProcessProposal) abci.ResponseProcessProposal {
	for _, tx := range req.Txs {
		if len(tx) == 0 {
			return abci.ResponseProcessProposal{Accept: false}
		}
	}
	return abci.ResponseProcessProposal{Accept: true}
}

// FinalizeBlock executes txs in order at the given height and time
func (a *App) FinalizeBlock(req abci.RequestFinalizeBlock) abci.ResponseFinalizeBlock {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.clock.t = time.Unix(req.Timestamp, 0)

	resp := abci.ResponseFinalizeBlock{Results: make([]abci.TxResult, 0, len(req.Txs))}
	failed := 0
	for i, raw := range req.Txs {
		res, evs := a.applyTx(raw)
		res.Height = req.Height
		res.Index = i

		if len(evs) > 0 {
			records, err := a.events.Append(req.Height, res.TxHash, evs)
			if err != nil {
				// payload encoding cannot fail for our own event types
				a.log.Errorw("event_append_failed", "tx", res.TxHash.Hex(), "err", err)
			}
			for _, r := range records {
				res.Events = append(res.Events, r.Seq)
			}
			resp.Records = append(resp.Records, records...)
		}
		if !res.Success {
			failed++
		}
		a.receipts[res.TxHash] = res
		resp.Results = append(resp.Results, res)
	}

	a.height = req.Height
	a.blockTime = req.Timestamp
	a.appHash = a.computeStateHash(req.Height, req.Timestamp)
	resp.AppHash = a.appHash

	if len(req.Txs) > 0 {
		a.log.Infow("block_finalized",
			"height", req.Height,
			"txs", len(req.Txs),
			"failed", failed,
			"events", len(resp.Records),
			"app_hash", a.appHash.Hex(),
		)
	}
	return resp
}

// applyTx verifies and executes one transaction. A transaction that passes
// signature and nonce checks consumes its nonce even if the call fails.
func (a *App) applyTx(raw []byte) (abci.TxResult, []eventlog.Event) {
	res := abci.TxResult{TxHash: transaction.HashRaw(raw)}
	fail := func(err error) (abci.TxResult, []eventlog.Event) {
		a.buf.Discard()
		res.Success = false
		res.ErrorKind = ledger.KindOf(err).String()
		res.Error = err.Error()
		a.log.Debugw("tx_failed", "tx", res.TxHash.Hex(), "type", res.Type, "kind", res.ErrorKind, "err", err)
		return res, nil
	}

	tx, err := transaction.Deserialize(raw)
	if err != nil {
		return fail(err)
	}
	act := &tx.Action
	res.Type = string(act.Type)
	res.From = act.From

	from, err := a.verifier.Verify(tx)
	if err != nil {
		return fail(err)
	}
	if last := a.nonces[from]; act.Nonce <= last {
		return fail(errors.Wrapf(ledger.ErrInvalidTransaction, "nonce %d not above %d", act.Nonce, last))
	}
	a.nonces[from] = act.Nonce

	value := act.ValueOrZero()
	if !value.IsZero() && !act.Type.Payable() {
		return fail(errors.Wrapf(ledger.ErrNotPayable, "%s does not accept value", act.Type))
	}

	if err := a.dispatch(from, act, &res); err != nil {
		return fail(err)
	}
	res.Success = true
	return res, a.buf.Take()
}

func (a *App) dispatch(from common.Address, act *transaction.Action, res *abci.TxResult) error {
	amount := act.AmountOrZero()

	switch act.Type {
	case transaction.TxDepositNative:
		return a.exchange.DepositNative(from, act.ValueOrZero())
	case transaction.TxWithdrawNative:
		return a.exchange.WithdrawNative(from, amount)
	case transaction.TxDepositAsset:
		return a.exchange.DepositAsset(from, act.Asset, amount)
	case transaction.TxWithdrawAsset:
		return a.exchange.WithdrawAsset(from, act.Asset, amount)
	case transaction.TxMakeOrder:
		res.OrderID = a.exchange.MakeOrder(from, act.Asset, amount, act.AssetWanted, act.AmountWantedOrZero())
		return nil
	case transaction.TxCancelOrder:
		return a.exchange.CancelOrder(from, act.OrderID)
	case transaction.TxFillOrder:
		return a.exchange.FillOrder(from, act.OrderID)
	case transaction.TxTokenTransfer, transaction.TxTokenApprove, transaction.TxTokenTransferFrom:
		l, ok := a.tokens.Get(act.Asset)
		if !ok {
			return errors.Wrapf(ledger.ErrInvalidAsset, "unknown token %s", act.Asset.Hex())
		}
		switch act.Type {
		case transaction.TxTokenTransfer:
			return l.Transfer(from, act.To, amount)
		case transaction.TxTokenApprove:
			return l.Approve(from, act.To, amount)
		default:
			return l.TransferFrom(from, act.Owner, act.To, amount)
		}
	case transaction.TxNativeTransfer:
		return a.bank.Transfer(from, act.To, amount)
	default:
		return errors.Wrapf(ledger.ErrInvalidTransaction, "unsupported type %q", act.Type)
	}
}
