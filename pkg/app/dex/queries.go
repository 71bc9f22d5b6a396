package dex

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/escrowdex/pkg/abci"
	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
	"github.com/uhyunpark/escrowdex/pkg/app/core/exchange"
	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
)

// TokenInfo describes a registered token
type TokenInfo struct {
	Address     common.Address `json:"address"`
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"`
	Decimals    uint8          `json:"decimals"`
	TotalSupply *uint256.Int   `json:"totalSupply"`
}

// ExchangeInfo is the exchange's configuration and counters
type ExchangeInfo struct {
	Address     common.Address `json:"address"`
	FeeAccount  common.Address `json:"feeAccount"`
	FeePercent  uint64         `json:"feePercent"`
	OrderCount  uint64         `json:"orderCount"`
	NativeAsset common.Address `json:"nativeAsset"`
	Tokens      []TokenInfo    `json:"tokens"`
}

// OrderView is an order with its lifecycle status
type OrderView struct {
	exchange.Order
	Status exchange.Status `json:"status"`
}

// ChainStatus summarizes the last committed block
type ChainStatus struct {
	Height    int64       `json:"height"`
	BlockTime int64       `json:"blockTime"`
	AppHash   common.Hash `json:"appHash"`
	Pending   int         `json:"pendingTxs"`
	Events    int         `json:"events"`
}

func (a *App) Exchange() ExchangeInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()

	info := ExchangeInfo{
		Address:     a.exchange.Address(),
		FeeAccount:  a.exchange.FeeAccount(),
		FeePercent:  a.exchange.FeePercent(),
		OrderCount:  a.exchange.OrderCount(),
		NativeAsset: ledger.NativeAsset,
	}
	for _, l := range a.tokens.List() {
		info.Tokens = append(info.Tokens, TokenInfo{
			Address: l.Address(), Name: l.Name(), Symbol: l.Symbol(),
			Decimals: l.Decimals(), TotalSupply: l.TotalSupply(),
		})
	}
	return info
}

// BalanceOf is the custody balance of account in asset
func (a *App) BalanceOf(asset, account common.Address) *uint256.Int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.exchange.BalanceOf(asset, account)
}

func (a *App) Order(id uint64) (OrderView, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	o, ok := a.exchange.Order(id)
	if !ok {
		return OrderView{}, false
	}
	st, _ := a.exchange.Status(id)
	return OrderView{Order: o, Status: st}, true
}

// Orders lists orders with the given status; empty status lists all
func (a *App) Orders(status exchange.Status) []OrderView {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var views []OrderView
	add := func(orders []exchange.Order, st exchange.Status) {
		for _, o := range orders {
			views = append(views, OrderView{Order: o, Status: st})
		}
	}
	if status == "" || status == exchange.StatusOpen {
		add(a.exchange.OpenOrders(), exchange.StatusOpen)
	}
	if status == "" || status == exchange.StatusFilled {
		add(a.exchange.FilledOrders(), exchange.StatusFilled)
	}
	if status == "" || status == exchange.StatusCancelled {
		add(a.exchange.CancelledOrders(), exchange.StatusCancelled)
	}
	return views
}

func (a *App) Trades() []exchange.Trade {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.exchange.Trades()
}

func (a *App) Token(asset common.Address) (TokenInfo, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	l, ok := a.tokens.Get(asset)
	if !ok {
		return TokenInfo{}, false
	}
	return TokenInfo{Address: l.Address(), Name: l.Name(), Symbol: l.Symbol(), Decimals: l.Decimals(), TotalSupply: l.TotalSupply()}, true
}

func (a *App) TokenBalance(asset, owner common.Address) (*uint256.Int, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	l, ok := a.tokens.Get(asset)
	if !ok {
		return nil, false
	}
	return l.BalanceOf(owner), true
}

func (a *App) Allowance(asset, owner, spender common.Address) (*uint256.Int, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	l, ok := a.tokens.Get(asset)
	if !ok {
		return nil, false
	}
	return l.Allowance(owner, spender), true
}

// NativeBalance is the account's native holdings outside the exchange
func (a *App) NativeBalance(account common.Address) *uint256.Int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bank.BalanceOf(account)
}

// Nonce is the last nonce used by account; the next tx needs a larger one
func (a *App) Nonce(account common.Address) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.nonces[account]
}

func (a *App) Receipt(txHash common.Hash) (abci.TxResult, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.receipts[txHash]
	return r, ok
}

// Events returns committed records from seq onwards
func (a *App) Events(from uint64, limit int, kind eventlog.Kind) []eventlog.Record {
	return a.events.Since(from, limit, kind)
}

func (a *App) Status() ChainStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return ChainStatus{
		Height:    a.height,
		BlockTime: a.blockTime,
		AppHash:   a.appHash,
		Pending:   a.mempool.Len(),
		Events:    a.events.Len(),
	}
}

// AppHash is the state hash after the last committed block
func (a *App) AppHash() common.Hash {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.appHash
}

func (a *App) Height() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.height
}
