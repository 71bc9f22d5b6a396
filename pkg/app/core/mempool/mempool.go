package mempool

import (
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrFull is returned when the pool is at capacity
var ErrFull = errors.New("mempool full")

// TxClass decides which bucket a transaction waits in
type TxClass int

const (
	TxFunding TxClass = iota // deposits, withdrawals, token and native transfers
	TxCancel
	TxOrder // make_order and fill_order
)

// ClassifyRaw reads the action type from a signed JSON transaction:
//
//	{"action": {"type": "cancel_order", ...}, "signature": "0x..."}
//
// Malformed input lands in the order bucket; it is rejected when applied.
func ClassifyRaw(b []byte) TxClass {
	if len(b) == 0 || b[0] != '{' {
		return TxOrder
	}

	var envelope struct {
		Action struct {
			Type string `json:"type"`
		} `json:"action"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return TxOrder
	}

	switch envelope.Action.Type {
	case "cancel_order":
		return TxCancel
	case "make_order", "fill_order":
		return TxOrder
	case "deposit_native", "withdraw_native", "deposit_asset", "withdraw_asset",
		"token_transfer", "token_approve", "token_transfer_from", "native_transfer":
		return TxFunding
	default:
		return TxOrder
	}
}

// Mempool keeps three FIFO queues drained in a fixed order per block:
// funding, then cancels, then orders and fills. Funds deposited and orders
// cancelled in a block are visible to the fills of the same block.
type Mempool struct {
	mu      sync.Mutex
	limit   int
	funding [][]byte
	cancel  [][]byte
	orders  [][]byte
}

// NewMempool creates a pool holding at most limit transactions (0 = unbounded)
func NewMempool(limit int) *Mempool {
	return &Mempool{limit: limit}
}

// PushRaw classifies and enqueues a copy of b
func (m *Mempool) PushRaw(b []byte) error {
	cp := append([]byte(nil), b...)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit > 0 && m.len() >= m.limit {
		return ErrFull
	}
	switch ClassifyRaw(b) {
	case TxFunding:
		m.funding = append(m.funding, cp)
	case TxCancel:
		m.cancel = append(m.cancel, cp)
	default:
		m.orders = append(m.orders, cp)
	}
	return nil
}

// SelectForProposal removes and returns up to maxBytes worth of txs in
// bucket order (maxBytes <= 0 = everything).
func (m *Mempool) SelectForProposal(maxBytes int64) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out [][]byte
	var used int64
	full := false

	pull := func(q *[][]byte) {
		for !full && len(*q) > 0 {
			tx := (*q)[0]
			n := int64(len(tx))
			if maxBytes > 0 && used+n > maxBytes {
				full = true
				return
			}
			out = append(out, tx)
			used += n
			*q = (*q)[1:]
		}
	}

	pull(&m.funding)
	pull(&m.cancel)
	pull(&m.orders)

	return out
}

func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.len()
}

func (m *Mempool) len() int {
	return len(m.funding) + len(m.cancel) + len(m.orders)
}
