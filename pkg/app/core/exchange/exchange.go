package exchange

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
)

// DefaultFeePercent is charged to the taker on every fill
const DefaultFeePercent = 10

// Config is fixed at creation
type Config struct {
	// Address is the exchange's own account on the token ledgers and the
	// native bank; custody funds are held there.
	Address    common.Address
	FeeAccount common.Address
	FeePercent uint64
}

// NativeVault moves native currency. The exchange pulls deposits into
// Config.Address and pays withdrawals out of it.
type NativeVault interface {
	Transfer(from, to common.Address, amount *uint256.Int) error
}

// AssetLedger is the slice of a token ledger the exchange uses
type AssetLedger interface {
	Transfer(from, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
}

// AssetResolver looks up the ledger for a registered asset
type AssetResolver interface {
	Resolve(asset common.Address) (AssetLedger, bool)
}

// AssetResolverFunc adapts a function to AssetResolver
type AssetResolverFunc func(asset common.Address) (AssetLedger, bool)

func (f AssetResolverFunc) Resolve(asset common.Address) (AssetLedger, bool) { return f(asset) }

type Clock interface {
	Now() time.Time
}

// Exchange is the escrow engine: custody balances, the order book and
// settlement. Every mutating method either applies fully or returns an
// error with no state change.
//
// Not safe for concurrent use. The caller serializes mutations.
type Exchange struct {
	cfg    Config
	vault  NativeVault
	assets AssetResolver
	clock  Clock
	sink   eventlog.Sink

	custody map[common.Address]ledger.Balances // asset -> account -> amount

	orderCount uint64
	orders     map[uint64]*Order
	filled     map[uint64]bool
	cancelled  map[uint64]bool
	trades     []Trade
}

// New creates an exchange. sink may be nil.
func New(cfg Config, vault NativeVault, assets AssetResolver, clock Clock, sink eventlog.Sink) (*Exchange, error) {
	if cfg.Address == (common.Address{}) {
		return nil, errors.Wrap(ledger.ErrInvalidRecipient, "exchange address is the null address")
	}
	if cfg.FeeAccount == (common.Address{}) {
		return nil, errors.Wrap(ledger.ErrInvalidRecipient, "fee account is the null address")
	}
	if cfg.FeePercent > 100 {
		return nil, errors.Newf("fee percent %d out of range", cfg.FeePercent)
	}
	if vault == nil || assets == nil || clock == nil {
		return nil, errors.New("exchange requires a vault, an asset resolver and a clock")
	}
	return &Exchange{
		cfg:       cfg,
		vault:     vault,
		assets:    assets,
		clock:     clock,
		sink:      sink,
		custody:   make(map[common.Address]ledger.Balances),
		orders:    make(map[uint64]*Order),
		filled:    make(map[uint64]bool),
		cancelled: make(map[uint64]bool),
	}, nil
}

func (e *Exchange) Address() common.Address    { return e.cfg.Address }
func (e *Exchange) FeeAccount() common.Address { return e.cfg.FeeAccount }
func (e *Exchange) FeePercent() uint64         { return e.cfg.FeePercent }

func (e *Exchange) emit(ev eventlog.Event) {
	if e.sink != nil {
		e.sink.Emit(ev)
	}
}
