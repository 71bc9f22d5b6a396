package transaction

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
	"github.com/uhyunpark/escrowdex/pkg/crypto"
)

// TxType names the exchange call a transaction makes
type TxType string

const (
	TxDepositNative  TxType = "deposit_native"
	TxWithdrawNative TxType = "withdraw_native"
	TxDepositAsset   TxType = "deposit_asset"
	TxWithdrawAsset  TxType = "withdraw_asset"
	TxMakeOrder      TxType = "make_order"
	TxCancelOrder    TxType = "cancel_order"
	TxFillOrder      TxType = "fill_order"

	TxTokenTransfer     TxType = "token_transfer"
	TxTokenApprove      TxType = "token_approve"
	TxTokenTransferFrom TxType = "token_transfer_from"
	TxNativeTransfer    TxType = "native_transfer"
)

// Payable reports whether the call may carry native value
func (t TxType) Payable() bool { return t == TxDepositNative }

// Action is the signed body of a transaction. The signer must equal From.
//
//	{
//	  "type": "make_order",
//	  "from": "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1",
//	  "nonce": 3,
//	  "asset": "0x0000000000000000000000000000000000000000",  // offered
//	  "amount": "1000000000000000000",
//	  "asset_wanted": "0xCfEB869F69431e42cdB54A4F4f105C19C080A601",
//	  "amount_wanted": "1000000000000000000"
//	}
type Action struct {
	Type  TxType         `json:"type"`
	From  common.Address `json:"from"`
	Nonce uint64         `json:"nonce"`
	Value *uint256.Int   `json:"value,omitempty"`

	// Asset is the deposited/withdrawn asset, the offered asset of an
	// order, or the token of a token_* call.
	Asset        common.Address `json:"asset"`
	Amount       *uint256.Int   `json:"amount,omitempty"`
	AssetWanted  common.Address `json:"asset_wanted"`
	AmountWanted *uint256.Int   `json:"amount_wanted,omitempty"`
	OrderID      uint64         `json:"order_id,omitempty"`
	To           common.Address `json:"to"`    // recipient or approved spender
	Owner        common.Address `json:"owner"` // token_transfer_from source
}

// SignedTransaction is what clients submit: an action plus an EIP-712
// signature over it, hex-encoded.
type SignedTransaction struct {
	Action    Action `json:"action"`
	Signature string `json:"signature"`
}

// ToEIP712 converts the action to its typed-data form
func (a *Action) ToEIP712() *crypto.ActionEIP712 {
	return &crypto.ActionEIP712{
		Type:         string(a.Type),
		From:         a.From,
		Nonce:        a.Nonce,
		Value:        a.Value,
		Asset:        a.Asset,
		Amount:       a.Amount,
		AssetWanted:  a.AssetWanted,
		AmountWanted: a.AmountWanted,
		OrderID:      a.OrderID,
		To:           a.To,
		Owner:        a.Owner,
	}
}

// ValueOrZero returns the attached native value
func (a *Action) ValueOrZero() *uint256.Int {
	if a.Value == nil {
		return ledger.Zero()
	}
	return a.Value.Clone()
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return ledger.Zero()
	}
	return v.Clone()
}

func (a *Action) AmountOrZero() *uint256.Int       { return orZero(a.Amount) }
func (a *Action) AmountWantedOrZero() *uint256.Int { return orZero(a.AmountWanted) }

// Validate checks that the action is well formed for its type. It does not
// look at state.
func (a *Action) Validate() error {
	if a.From == (common.Address{}) {
		return errors.Wrap(ledger.ErrInvalidTransaction, "missing sender")
	}
	need := func(ok bool, field string) error {
		if !ok {
			return errors.Wrapf(ledger.ErrInvalidTransaction, "%s requires %s", a.Type, field)
		}
		return nil
	}

	switch a.Type {
	case TxDepositNative:
		return nil
	case TxWithdrawNative:
		return need(a.Amount != nil, "amount")
	case TxDepositAsset, TxWithdrawAsset, TxTokenTransfer:
		if err := need(a.Amount != nil, "amount"); err != nil {
			return err
		}
		if a.Type == TxTokenTransfer {
			return need(a.Asset != (common.Address{}), "asset")
		}
		return nil
	case TxTokenApprove:
		if err := need(a.Asset != (common.Address{}), "asset"); err != nil {
			return err
		}
		return need(a.Amount != nil, "amount")
	case TxTokenTransferFrom:
		if err := need(a.Asset != (common.Address{}), "asset"); err != nil {
			return err
		}
		if err := need(a.Owner != (common.Address{}), "owner"); err != nil {
			return err
		}
		return need(a.Amount != nil, "amount")
	case TxNativeTransfer:
		return need(a.Amount != nil, "amount")
	case TxMakeOrder:
		if err := need(a.Amount != nil, "amount"); err != nil {
			return err
		}
		return need(a.AmountWanted != nil, "amount_wanted")
	case TxCancelOrder, TxFillOrder:
		return need(a.OrderID != 0, "order_id")
	case "":
		return errors.Wrap(ledger.ErrInvalidTransaction, "missing transaction type")
	default:
		return errors.Wrapf(ledger.ErrInvalidTransaction, "unknown transaction type %q", a.Type)
	}
}

// Serialize encodes the transaction as JSON
func (tx *SignedTransaction) Serialize() ([]byte, error) {
	return json.Marshal(tx)
}

// HashRaw identifies a transaction by keccak256 of its submitted bytes
func HashRaw(raw []byte) common.Hash {
	return ethcrypto.Keccak256Hash(raw)
}

// Hash is HashRaw of the canonical encoding
func (tx *SignedTransaction) Hash() common.Hash {
	b, _ := tx.Serialize()
	return HashRaw(b)
}

// Deserialize parses a JSON transaction and validates its shape
func Deserialize(data []byte) (*SignedTransaction, error) {
	var tx SignedTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, errors.Wrapf(ledger.ErrInvalidTransaction, "unmarshal transaction: %v", err)
	}
	if tx.Signature == "" {
		return nil, errors.Wrap(ledger.ErrInvalidTransaction, "missing signature")
	}
	if err := tx.Action.Validate(); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Sign builds a signed transaction for action with signer's key. From is
// set to the signer's address.
func Sign(es *crypto.EIP712Signer, signer *crypto.Signer, action Action) (*SignedTransaction, error) {
	action.From = signer.Address()
	if err := action.Validate(); err != nil {
		return nil, err
	}
	sig, err := es.SignAction(signer, action.ToEIP712())
	if err != nil {
		return nil, errors.Wrap(err, "sign action")
	}
	return &SignedTransaction{Action: action, Signature: crypto.EncodeSignature(sig)}, nil
}
