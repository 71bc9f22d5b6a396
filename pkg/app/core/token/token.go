package token

import (
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
)

// Metadata describes a token at creation time
type Metadata struct {
	Name     string
	Symbol   string
	Decimals uint8
	// Supply in whole units; scaled by Decimals at creation
	Supply uint64
}

// DefaultMetadata is the token the node creates at genesis
func DefaultMetadata() Metadata {
	return Metadata{
		Name:     "J Token",
		Symbol:   "J23",
		Decimals: 18,
		Supply:   1_000_000,
	}
}

// Ledger is a single fungible asset: balances plus per-owner allowances.
// The whole supply is minted to the creator; there is no mint or burn after.
//
// Not safe for concurrent use; the node serializes all calls.
type Ledger struct {
	address     common.Address
	meta        Metadata
	totalSupply *uint256.Int

	balances   ledger.Balances
	allowances map[common.Address]ledger.Balances // owner -> spender -> amount

	sink eventlog.Sink
}

// AddressFor derives the asset identifier of the nonce-th token created by creator
func AddressFor(creator common.Address, nonce uint64) common.Address {
	return crypto.CreateAddress(creator, nonce)
}

// New creates a token at address and assigns the full supply to creator
func New(address, creator common.Address, meta Metadata, sink eventlog.Sink) (*Ledger, error) {
	if ledger.IsNative(address) {
		return nil, errors.Wrap(ledger.ErrInvalidAsset, "token cannot use the native asset identifier")
	}
	if creator == (common.Address{}) {
		return nil, errors.Wrap(ledger.ErrInvalidRecipient, "token creator is the null address")
	}
	supply := ledger.Units(meta.Supply, meta.Decimals)
	l := &Ledger{
		address:     address,
		meta:        meta,
		totalSupply: supply,
		balances:    ledger.Balances{},
		allowances:  make(map[common.Address]ledger.Balances),
		sink:        sink,
	}
	l.balances.Set(creator, supply)
	return l, nil
}

func (l *Ledger) Address() common.Address   { return l.address }
func (l *Ledger) Name() string              { return l.meta.Name }
func (l *Ledger) Symbol() string            { return l.meta.Symbol }
func (l *Ledger) Decimals() uint8           { return l.meta.Decimals }
func (l *Ledger) TotalSupply() *uint256.Int { return l.totalSupply.Clone() }

// BalanceOf returns owner's balance (zero when unknown)
func (l *Ledger) BalanceOf(owner common.Address) *uint256.Int {
	return l.balances.Get(owner)
}

// Allowance returns how much spender may still move out of owner's balance
func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	if a, ok := l.allowances[owner]; ok {
		return a.Get(spender)
	}
	return ledger.Zero()
}

// Transfer moves amount from sender to recipient
func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return errors.Wrap(ledger.ErrInvalidRecipient, "transfer to the null address")
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	l.emit(eventlog.Transfer{Token: l.address, From: from, To: to, Value: amount.Clone()})
	return nil
}

// Approve sets (does not add to) spender's allowance over owner's balance
func (l *Ledger) Approve(owner, spender common.Address, amount *uint256.Int) error {
	if spender == (common.Address{}) {
		return errors.Wrap(ledger.ErrInvalidRecipient, "approve the null address")
	}
	a, ok := l.allowances[owner]
	if !ok {
		a = ledger.Balances{}
		l.allowances[owner] = a
	}
	a.Set(spender, amount)
	if len(a) == 0 {
		delete(l.allowances, owner)
	}
	l.emit(eventlog.Approval{Token: l.address, Owner: owner, Spender: spender, Value: amount.Clone()})
	return nil
}

// TransferFrom moves amount from owner to recipient on behalf of spender,
// consuming exactly amount of spender's allowance.
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return errors.Wrap(ledger.ErrInvalidRecipient, "transfer to the null address")
	}
	allowed := l.Allowance(from, spender)
	if allowed.Lt(amount) {
		return errors.Wrapf(ledger.ErrInsufficientBalance,
			"allowance of %s over %s: have %s, need %s", spender.Hex(), from.Hex(), allowed.Dec(), amount.Dec())
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}

	a := l.allowances[from]
	a.Set(spender, new(uint256.Int).Sub(allowed, amount))
	if len(a) == 0 {
		delete(l.allowances, from)
	}

	l.emit(eventlog.Transfer{Token: l.address, From: from, To: to, Value: amount.Clone()})
	return nil
}

// move debits then credits. The credit cannot overflow since every balance
// is bounded by the fixed total supply.
func (l *Ledger) move(from, to common.Address, amount *uint256.Int) error {
	if _, err := l.balances.Debit(from, amount); err != nil {
		return errors.Wrapf(err, "token %s", l.meta.Symbol)
	}
	if _, err := l.balances.Credit(to, amount); err != nil {
		// unreachable while supply is fixed; restore anyway
		l.balances.Credit(from, amount)
		return err
	}
	return nil
}

// Holders returns accounts with a non-zero balance in byte order
func (l *Ledger) Holders() []common.Address {
	return l.balances.Accounts()
}

// Owners returns accounts that granted at least one non-zero allowance
func (l *Ledger) Owners() []common.Address {
	out := make([]common.Address, 0, len(l.allowances))
	for owner := range l.allowances {
		out = append(out, owner)
	}
	ledger.SortAddresses(out)
	return out
}

// Spenders returns the spenders holding a non-zero allowance from owner
func (l *Ledger) Spenders(owner common.Address) []common.Address {
	return l.allowances[owner].Accounts()
}

func (l *Ledger) emit(ev eventlog.Event) {
	if l.sink != nil {
		l.sink.Emit(ev)
	}
}
