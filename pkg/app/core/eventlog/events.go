package eventlog

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Kind names a record type. Values are the event names dApp clients
// filter on.
type Kind string

const (
	KindDeposit  Kind = "Deposit"
	KindWithdraw Kind = "Withdraw"
	KindOrder    Kind = "Order"
	KindCancel   Kind = "Cancel"
	KindTrade    Kind = "Trade"
	KindTransfer Kind = "Transfer"
	KindApproval Kind = "Approval"
)

// Event is a single state transition emitted by a ledger
type Event interface {
	Kind() Kind
}

// Deposit is emitted when custody is funded. Balance is the account's
// custody balance after the deposit.
type Deposit struct {
	Asset   common.Address `json:"token"`
	Account common.Address `json:"user"`
	Amount  *uint256.Int   `json:"amount"`
	Balance *uint256.Int   `json:"balance"`
}

// Withdraw is emitted when custody is released back to the account
type Withdraw struct {
	Asset   common.Address `json:"token"`
	Account common.Address `json:"user"`
	Amount  *uint256.Int   `json:"amount"`
	Balance *uint256.Int   `json:"balance"`
}

// OrderCreated carries the full order as stored
type OrderCreated struct {
	ID            uint64         `json:"id"`
	Maker         common.Address `json:"user"`
	AssetWanted   common.Address `json:"tokenGet"`
	AmountWanted  *uint256.Int   `json:"amountGet"`
	AssetOffered  common.Address `json:"tokenGive"`
	AmountOffered *uint256.Int   `json:"amountGive"`
	Timestamp     int64          `json:"timestamp"`
}

// OrderCancelled repeats the order snapshot at cancellation
type OrderCancelled struct {
	ID            uint64         `json:"id"`
	Maker         common.Address `json:"user"`
	AssetWanted   common.Address `json:"tokenGet"`
	AmountWanted  *uint256.Int   `json:"amountGet"`
	AssetOffered  common.Address `json:"tokenGive"`
	AmountOffered *uint256.Int   `json:"amountGive"`
	Timestamp     int64          `json:"timestamp"`
}

// Trade is emitted on a fill. Timestamp is the fill time.
type Trade struct {
	ID            uint64         `json:"id"`
	Maker         common.Address `json:"user"`
	AssetWanted   common.Address `json:"tokenGet"`
	AmountWanted  *uint256.Int   `json:"amountGet"`
	AssetOffered  common.Address `json:"tokenGive"`
	AmountOffered *uint256.Int   `json:"amountGive"`
	Taker         common.Address `json:"userFill"`
	Fee           *uint256.Int   `json:"fee"`
	Timestamp     int64          `json:"timestamp"`
}

// Transfer is emitted by a token ledger for direct and delegated transfers
type Transfer struct {
	Token common.Address `json:"token"`
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Value *uint256.Int   `json:"value"`
}

// Approval is emitted when an allowance is (re)set
type Approval struct {
	Token   common.Address `json:"token"`
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Value   *uint256.Int   `json:"value"`
}

func (Deposit) Kind() Kind        { return KindDeposit }
func (Withdraw) Kind() Kind       { return KindWithdraw }
func (OrderCreated) Kind() Kind   { return KindOrder }
func (OrderCancelled) Kind() Kind { return KindCancel }
func (Trade) Kind() Kind          { return KindTrade }
func (Transfer) Kind() Kind       { return KindTransfer }
func (Approval) Kind() Kind       { return KindApproval }

// Accounts returns the accounts an event concerns, used for per-account
// fan-out to subscribers.
func Accounts(ev Event) []common.Address {
	switch e := ev.(type) {
	case Deposit:
		return []common.Address{e.Account}
	case Withdraw:
		return []common.Address{e.Account}
	case OrderCreated:
		return []common.Address{e.Maker}
	case OrderCancelled:
		return []common.Address{e.Maker}
	case Trade:
		return []common.Address{e.Maker, e.Taker}
	case Transfer:
		return []common.Address{e.From, e.To}
	case Approval:
		return []common.Address{e.Owner, e.Spender}
	default:
		return nil
	}
}

// Record is an event placed in the global log
type Record struct {
	Seq    uint64          `json:"seq"`
	Height int64           `json:"height"`
	TxHash common.Hash     `json:"txHash"`
	Kind   Kind            `json:"event"`
	Data   json.RawMessage `json:"args"`
}

// NewRecord encodes ev into a record
func NewRecord(seq uint64, height int64, txHash common.Hash, ev Event) (Record, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return Record{}, errors.Wrapf(err, "marshal %s event", ev.Kind())
	}
	return Record{Seq: seq, Height: height, TxHash: txHash, Kind: ev.Kind(), Data: data}, nil
}

// Decode turns the record payload back into its typed event
func (r Record) Decode() (Event, error) {
	var err error
	switch r.Kind {
	case KindDeposit:
		var e Deposit
		err = json.Unmarshal(r.Data, &e)
		return e, err
	case KindWithdraw:
		var e Withdraw
		err = json.Unmarshal(r.Data, &e)
		return e, err
	case KindOrder:
		var e OrderCreated
		err = json.Unmarshal(r.Data, &e)
		return e, err
	case KindCancel:
		var e OrderCancelled
		err = json.Unmarshal(r.Data, &e)
		return e, err
	case KindTrade:
		var e Trade
		err = json.Unmarshal(r.Data, &e)
		return e, err
	case KindTransfer:
		var e Transfer
		err = json.Unmarshal(r.Data, &e)
		return e, err
	case KindApproval:
		var e Approval
		err = json.Unmarshal(r.Data, &e)
		return e, err
	default:
		return nil, errors.Newf("unknown event kind %q", r.Kind)
	}
}
