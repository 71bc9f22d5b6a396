package ledger

import (
	"github.com/cockroachdb/errors"
)

// Failure kinds shared by every ledger in the node. Callers wrap these with
// context (errors.Wrapf) and classify with KindOf.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAsset        = errors.New("invalid asset")
	ErrNotFound            = errors.New("order not found")
	ErrAlreadyFinalized    = errors.New("order already finalized")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidRecipient    = errors.New("invalid recipient")
	ErrNotPayable          = errors.New("call does not accept native value")
	ErrOverflow            = errors.New("amount overflow")
	ErrInvalidTransaction  = errors.New("invalid transaction")
)

// Kind is the coarse classification of a ledger failure
type Kind int

const (
	KindNone Kind = iota
	KindInsufficientBalance
	KindInvalidAsset
	KindNotFound
	KindAlreadyFinalized
	KindUnauthorized
	KindInvalidRecipient
	KindNotPayable
	KindOverflow
	KindInvalidTransaction
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindInvalidAsset:
		return "invalid_asset"
	case KindNotFound:
		return "not_found"
	case KindAlreadyFinalized:
		return "already_finalized"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidRecipient:
		return "invalid_recipient"
	case KindNotPayable:
		return "not_payable"
	case KindOverflow:
		return "overflow"
	case KindInvalidTransaction:
		return "invalid_transaction"
	default:
		return "internal"
	}
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInsufficientBalance, KindInsufficientBalance},
	{ErrInvalidAsset, KindInvalidAsset},
	{ErrNotFound, KindNotFound},
	{ErrAlreadyFinalized, KindAlreadyFinalized},
	{ErrUnauthorized, KindUnauthorized},
	{ErrInvalidRecipient, KindInvalidRecipient},
	{ErrNotPayable, KindNotPayable},
	{ErrOverflow, KindOverflow},
	{ErrInvalidTransaction, KindInvalidTransaction},
}

// KindOf maps an error returned by any ledger operation to its Kind.
// nil maps to KindNone; anything unrecognised is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
