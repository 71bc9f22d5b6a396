package transaction

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/escrowdex/pkg/crypto"
)

// Wallet signs successive actions for one key and tracks its nonce
type Wallet struct {
	signer *crypto.Signer
	es     *crypto.EIP712Signer
	nonce  uint64
}

// NewWallet starts after lastNonce (0 for a fresh account)
func NewWallet(domain crypto.EIP712Domain, signer *crypto.Signer, lastNonce uint64) *Wallet {
	return &Wallet{signer: signer, es: crypto.NewEIP712Signer(domain), nonce: lastNonce}
}

func (w *Wallet) Address() common.Address { return w.signer.Address() }

// Nonce is the last nonce handed out
func (w *Wallet) Nonce() uint64 { return w.nonce }

// Build signs a with the next nonce and returns the raw transaction
func (w *Wallet) Build(a Action) ([]byte, error) {
	a.Nonce = w.nonce + 1
	tx, err := Sign(w.es, w.signer, a)
	if err != nil {
		return nil, err
	}
	raw, err := tx.Serialize()
	if err != nil {
		return nil, err
	}
	w.nonce = a.Nonce
	return raw, nil
}

func (w *Wallet) DepositNative(value *uint256.Int) ([]byte, error) {
	return w.Build(Action{Type: TxDepositNative, Value: value})
}

func (w *Wallet) WithdrawNative(amount *uint256.Int) ([]byte, error) {
	return w.Build(Action{Type: TxWithdrawNative, Amount: amount})
}

func (w *Wallet) DepositAsset(asset common.Address, amount *uint256.Int) ([]byte, error) {
	return w.Build(Action{Type: TxDepositAsset, Asset: asset, Amount: amount})
}

func (w *Wallet) WithdrawAsset(asset common.Address, amount *uint256.Int) ([]byte, error) {
	return w.Build(Action{Type: TxWithdrawAsset, Asset: asset, Amount: amount})
}

func (w *Wallet) MakeOrder(assetOffered common.Address, amountOffered *uint256.Int, assetWanted common.Address, amountWanted *uint256.Int) ([]byte, error) {
	return w.Build(Action{
		Type:         TxMakeOrder,
		Asset:        assetOffered,
		Amount:       amountOffered,
		AssetWanted:  assetWanted,
		AmountWanted: amountWanted,
	})
}

func (w *Wallet) CancelOrder(id uint64) ([]byte, error) {
	return w.Build(Action{Type: TxCancelOrder, OrderID: id})
}

func (w *Wallet) FillOrder(id uint64) ([]byte, error) {
	return w.Build(Action{Type: TxFillOrder, OrderID: id})
}

func (w *Wallet) TokenTransfer(asset, to common.Address, amount *uint256.Int) ([]byte, error) {
	return w.Build(Action{Type: TxTokenTransfer, Asset: asset, To: to, Amount: amount})
}

func (w *Wallet) TokenApprove(asset, spender common.Address, amount *uint256.Int) ([]byte, error) {
	return w.Build(Action{Type: TxTokenApprove, Asset: asset, To: spender, Amount: amount})
}

func (w *Wallet) TokenTransferFrom(asset, owner, to common.Address, amount *uint256.Int) ([]byte, error) {
	return w.Build(Action{Type: TxTokenTransferFrom, Asset: asset, Owner: owner, To: to, Amount: amount})
}

func (w *Wallet) NativeTransfer(to common.Address, amount *uint256.Int) ([]byte, error) {
	return w.Build(Action{Type: TxNativeTransfer, To: to, Amount: amount})
}
