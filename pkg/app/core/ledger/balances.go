package ledger

import (
	"bytes"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Balances maps accounts to non-negative amounts. Missing entries read as
// zero. Debit and Credit either apply fully or leave the entry untouched.
type Balances map[common.Address]*uint256.Int

// Get returns a copy of the account's balance
func (b Balances) Get(addr common.Address) *uint256.Int {
	if v, ok := b[addr]; ok {
		return v.Clone()
	}
	return Zero()
}

// Set overwrites the balance; zero entries are dropped
func (b Balances) Set(addr common.Address, amount *uint256.Int) {
	if amount.IsZero() {
		delete(b, addr)
		return
	}
	b[addr] = amount.Clone()
}

// Credit adds amount and returns the new balance
func (b Balances) Credit(addr common.Address, amount *uint256.Int) (*uint256.Int, error) {
	next, err := Add(b.Get(addr), amount)
	if err != nil {
		return nil, err
	}
	b.Set(addr, next)
	return next, nil
}

// Debit subtracts amount and returns the new balance.
// Fails with ErrInsufficientBalance when the balance is short.
func (b Balances) Debit(addr common.Address, amount *uint256.Int) (*uint256.Int, error) {
	cur := b.Get(addr)
	if cur.Lt(amount) {
		return nil, errors.Wrapf(ErrInsufficientBalance, "%s: have %s, need %s", addr.Hex(), cur.Dec(), amount.Dec())
	}
	next := new(uint256.Int).Sub(cur, amount)
	b.Set(addr, next)
	return next, nil
}

// Total sums every balance
func (b Balances) Total() *uint256.Int {
	total := Zero()
	for _, v := range b {
		total.Add(total, v)
	}
	return total
}

// Accounts returns holders with a non-zero balance in byte order
func (b Balances) Accounts() []common.Address {
	out := make([]common.Address, 0, len(b))
	for addr := range b {
		out = append(out, addr)
	}
	SortAddresses(out)
	return out
}

// SortAddresses sorts addresses in byte order (deterministic iteration)
func SortAddresses(addrs []common.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
}
