package abci

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
)

type RequestPrepareProposal struct{ Height, MaxTxBytes int64 }
type ResponsePrepareProposal struct{ Txs [][]byte }

type RequestProcessProposal struct {
	Height int64
	Txs    [][]byte
}
type ResponseProcessProposal struct{ Accept bool }

type RequestFinalizeBlock struct {
	Height    int64
	Timestamp int64 // unix seconds; the only clock state transitions see
	Txs       [][]byte
}

// TxResult is the receipt of one transaction in a block. Failed
// transactions are included with their error and change nothing but the
// sender's nonce.
type TxResult struct {
	TxHash    common.Hash    `json:"txHash"`
	Height    int64          `json:"height"`
	Index     int            `json:"index"`
	From      common.Address `json:"from"`
	Type      string         `json:"type"`
	Success   bool           `json:"success"`
	ErrorKind string         `json:"errorKind,omitempty"`
	Error     string         `json:"error,omitempty"`
	OrderID   uint64         `json:"orderId,omitempty"` // id assigned by make_order
	Events    []uint64       `json:"events,omitempty"`  // sequence numbers emitted
}

type ResponseFinalizeBlock struct {
	Results []TxResult
	Records []eventlog.Record
	AppHash common.Hash // state hash after executing the block
}

type Application interface {
	PrepareProposal(RequestPrepareProposal) ResponsePrepareProposal
	ProcessProposal(RequestProcessProposal) ResponseProcessProposal
	FinalizeBlock(RequestFinalizeBlock) ResponseFinalizeBlock
}
