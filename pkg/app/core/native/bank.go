package native

import (
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
)

// Bank holds native-currency balances outside the exchange: what an account
// can attach as value to a call, and where withdrawn native funds land.
type Bank struct {
	balances ledger.Balances
}

func NewBank() *Bank {
	return &Bank{balances: ledger.Balances{}}
}

// Credit mints native funds into account. Only genesis allocation uses it.
func (b *Bank) Credit(account common.Address, amount *uint256.Int) error {
	if account == (common.Address{}) {
		return errors.Wrap(ledger.ErrInvalidRecipient, "credit the null address")
	}
	_, err := b.balances.Credit(account, amount)
	return err
}

// Transfer moves native funds between accounts
func (b *Bank) Transfer(from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return errors.Wrap(ledger.ErrInvalidRecipient, "send native funds to the null address")
	}
	if _, err := b.balances.Debit(from, amount); err != nil {
		return errors.Wrap(err, "native")
	}
	if _, err := b.balances.Credit(to, amount); err != nil {
		b.balances.Credit(from, amount)
		return err
	}
	return nil
}

// BalanceOf returns the account's native holdings
func (b *Bank) BalanceOf(account common.Address) *uint256.Int {
	return b.balances.Get(account)
}

// Accounts lists holders in byte order
func (b *Bank) Accounts() []common.Address {
	return b.balances.Accounts()
}

// Total is the native supply in circulation
func (b *Bank) Total() *uint256.Int {
	return b.balances.Total()
}
