package exchange

import (
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
)

// BalanceOf returns account's custody balance of asset
func (e *Exchange) BalanceOf(asset, account common.Address) *uint256.Int {
	if b, ok := e.custody[asset]; ok {
		return b.Get(account)
	}
	return ledger.Zero()
}

func (e *Exchange) balances(asset common.Address) ledger.Balances {
	b, ok := e.custody[asset]
	if !ok {
		b = ledger.Balances{}
		e.custody[asset] = b
	}
	return b
}

// set writes a custody balance and keeps the asset map free of empty entries
func (e *Exchange) set(asset, account common.Address, amount *uint256.Int) {
	b := e.balances(asset)
	b.Set(account, amount)
	if len(b) == 0 {
		delete(e.custody, asset)
	}
}

// DepositNative credits account with value, the native currency attached
// to the call. The value is pulled from account through the vault.
func (e *Exchange) DepositNative(account common.Address, value *uint256.Int) error {
	next, err := ledger.Add(e.BalanceOf(ledger.NativeAsset, account), value)
	if err != nil {
		return err
	}
	if err := e.vault.Transfer(account, e.cfg.Address, value); err != nil {
		return errors.Wrap(err, "deposit native")
	}
	e.set(ledger.NativeAsset, account, next)
	e.emit(eventlog.Deposit{Asset: ledger.NativeAsset, Account: account, Amount: value.Clone(), Balance: next})
	return nil
}

// WithdrawNative releases amount of native custody back to account.
// The custody balance is decremented before the vault pays out, so a payout
// that re-enters the exchange sees the reduced balance.
func (e *Exchange) WithdrawNative(account common.Address, amount *uint256.Int) error {
	next, err := e.debit(ledger.NativeAsset, account, amount)
	if err != nil {
		return err
	}
	if err := e.vault.Transfer(e.cfg.Address, account, amount); err != nil {
		e.balances(ledger.NativeAsset).Credit(account, amount)
		return errors.Wrap(err, "withdraw native")
	}
	e.emit(eventlog.Withdraw{Asset: ledger.NativeAsset, Account: account, Amount: amount.Clone(), Balance: next})
	return nil
}

// DepositAsset pulls amount of asset from account's token balance into
// custody. account must have approved the exchange for at least amount.
func (e *Exchange) DepositAsset(account, asset common.Address, amount *uint256.Int) error {
	l, err := e.resolve(asset)
	if err != nil {
		return err
	}
	next, err := ledger.Add(e.BalanceOf(asset, account), amount)
	if err != nil {
		return err
	}
	if err := l.TransferFrom(e.cfg.Address, account, e.cfg.Address, amount); err != nil {
		return errors.Wrapf(err, "deposit %s", asset.Hex())
	}
	e.set(asset, account, next)
	e.emit(eventlog.Deposit{Asset: asset, Account: account, Amount: amount.Clone(), Balance: next})
	return nil
}

// WithdrawAsset releases amount of asset custody to account's token
// balance. Custody is decremented before the token transfer.
func (e *Exchange) WithdrawAsset(account, asset common.Address, amount *uint256.Int) error {
	l, err := e.resolve(asset)
	if err != nil {
		return err
	}
	next, err := e.debit(asset, account, amount)
	if err != nil {
		return err
	}
	if err := l.Transfer(e.cfg.Address, account, amount); err != nil {
		e.balances(asset).Credit(account, amount)
		return errors.Wrapf(err, "withdraw %s", asset.Hex())
	}
	e.emit(eventlog.Withdraw{Asset: asset, Account: account, Amount: amount.Clone(), Balance: next})
	return nil
}

func (e *Exchange) debit(asset, account common.Address, amount *uint256.Int) (*uint256.Int, error) {
	next, err := e.balances(asset).Debit(account, amount)
	if len(e.custody[asset]) == 0 {
		delete(e.custody, asset)
	}
	if err != nil {
		return nil, errors.Wrap(err, "custody")
	}
	return next, nil
}

// resolve rejects the native sentinel and unregistered assets
func (e *Exchange) resolve(asset common.Address) (AssetLedger, error) {
	if ledger.IsNative(asset) {
		return nil, errors.Wrap(ledger.ErrInvalidAsset, "native currency has no token ledger")
	}
	l, ok := e.assets.Resolve(asset)
	if !ok {
		return nil, errors.Wrapf(ledger.ErrInvalidAsset, "unknown asset %s", asset.Hex())
	}
	return l, nil
}

// CustodyAssets lists assets with any custody balance, in byte order
func (e *Exchange) CustodyAssets() []common.Address {
	out := make([]common.Address, 0, len(e.custody))
	for asset := range e.custody {
		out = append(out, asset)
	}
	ledger.SortAddresses(out)
	return out
}

// CustodyHolders lists accounts holding asset in custody, in byte order
func (e *Exchange) CustodyHolders(asset common.Address) []common.Address {
	return e.custody[asset].Accounts()
}

// CustodyTotal is the sum of all custody balances of asset
func (e *Exchange) CustodyTotal(asset common.Address) *uint256.Int {
	return e.custody[asset].Total()
}
