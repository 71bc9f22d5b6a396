package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
)

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// SubmitTxResponse is the response to POST /api/v1/txs
type SubmitTxResponse struct {
	Status string      `json:"status"` // "submitted"
	TxHash common.Hash `json:"txHash"`
}

// BalanceResponse is a custody balance
type BalanceResponse struct {
	Asset   common.Address `json:"asset"`
	Account common.Address `json:"account"`
	Balance *uint256.Int   `json:"balance"`
}

// OrderStatusResponse answers GET /orders/{id}/status
type OrderStatusResponse struct {
	ID        uint64 `json:"id"`
	Status    string `json:"status"` // "open" | "filled" | "cancelled"
	Filled    bool   `json:"filled"`
	Cancelled bool   `json:"cancelled"`
}

// TokenBalanceResponse is an asset ledger balance outside the exchange
type TokenBalanceResponse struct {
	Token   common.Address `json:"token"`
	Owner   common.Address `json:"owner"`
	Balance *uint256.Int   `json:"balance"`
}

type AllowanceResponse struct {
	Token     common.Address `json:"token"`
	Owner     common.Address `json:"owner"`
	Spender   common.Address `json:"spender"`
	Allowance *uint256.Int   `json:"allowance"`
}

// NativeBalanceResponse is an account's native holdings outside the exchange
type NativeBalanceResponse struct {
	Account common.Address `json:"account"`
	Balance *uint256.Int   `json:"balance"`
}

type NonceResponse struct {
	Account common.Address `json:"account"`
	Nonce   uint64         `json:"nonce"` // last used; next tx needs a larger one
}

// EventsResponse pages through the event log
type EventsResponse struct {
	Events []eventlog.Record `json:"events"`
	Next   uint64            `json:"next"` // pass as ?from= to continue
}

// BlockResponse is a stored block with its txs as JSON
type BlockResponse struct {
	Height     int64       `json:"height"`
	Time       int64       `json:"time"`
	Hash       common.Hash `json:"hash"`
	ParentHash common.Hash `json:"parentHash"`
	AppHash    common.Hash `json:"appHash"`
	Txs        []string    `json:"txs"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"` // error kind, e.g. "insufficient_balance"
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSMessage is the envelope for everything pushed to clients
type WSMessage struct {
	Type    string      `json:"type"`    // "event"
	Channel string      `json:"channel"` // channel that matched
	Data    interface{} `json:"data"`
}

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["events", "trades", "orders", "account:0x..."]
}
