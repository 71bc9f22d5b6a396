package transaction

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
	"github.com/uhyunpark/escrowdex/pkg/crypto"
)

var exchangeAddr = common.HexToAddress("0xEC00000000000000000000000000000000000000")

func setup(t *testing.T) (*crypto.EIP712Signer, *crypto.Signer, *Verifier) {
	t.Helper()
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	domain := crypto.DefaultDomain(exchangeAddr)
	return crypto.NewEIP712Signer(domain), signer, NewVerifier(domain)
}

func TestSignAndVerify(t *testing.T) {
	es, signer, v := setup(t)

	tx, err := Sign(es, signer, Action{Type: TxWithdrawNative, Nonce: 1, Amount: uint256.NewInt(5)})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if tx.Action.From != signer.Address() {
		t.Errorf("from = %s, want signer", tx.Action.From.Hex())
	}

	raw, err := tx.Serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	decoded, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("deserialize failed: %v", err)
	}
	if decoded.Hash() != tx.Hash() {
		t.Error("hash changed across serialization")
	}

	got, err := v.Verify(decoded)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if got != signer.Address() {
		t.Errorf("signer = %s, want %s", got.Hex(), signer.Address().Hex())
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	es, signer, v := setup(t)
	other, _ := crypto.GenerateKey()

	tests := []struct {
		name   string
		mutate func(tx *SignedTransaction)
	}{
		{"amount changed", func(tx *SignedTransaction) { tx.Action.Amount = uint256.NewInt(500) }},
		{"nonce changed", func(tx *SignedTransaction) { tx.Action.Nonce = 2 }},
		{"sender changed", func(tx *SignedTransaction) { tx.Action.From = other.Address() }},
		{"value attached", func(tx *SignedTransaction) { tx.Action.Value = uint256.NewInt(1) }},
		{"garbage signature", func(tx *SignedTransaction) { tx.Signature = "0x1234" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := Sign(es, signer, Action{Type: TxWithdrawNative, Nonce: 1, Amount: uint256.NewInt(5)})
			if err != nil {
				t.Fatalf("sign failed: %v", err)
			}
			tt.mutate(tx)
			if _, err := v.Verify(tx); !errors.Is(err, ledger.ErrInvalidTransaction) {
				t.Errorf("expected ErrInvalidTransaction, got %v", err)
			}
		})
	}
}

func TestVerifyRejectsOtherDomain(t *testing.T) {
	es, signer, _ := setup(t)
	otherDomain := NewVerifier(crypto.DefaultDomain(common.HexToAddress("0x1234")))

	tx, _ := Sign(es, signer, Action{Type: TxFillOrder, Nonce: 1, OrderID: 1})
	if _, err := otherDomain.Verify(tx); !errors.Is(err, ledger.ErrInvalidTransaction) {
		t.Errorf("expected ErrInvalidTransaction across domains, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	from := common.HexToAddress("0x1111")
	token := common.HexToAddress("0x7070")
	one := uint256.NewInt(1)

	tests := []struct {
		name   string
		action Action
		ok     bool
	}{
		{"deposit native without value", Action{Type: TxDepositNative, From: from}, true},
		{"withdraw native", Action{Type: TxWithdrawNative, From: from, Amount: one}, true},
		{"withdraw native missing amount", Action{Type: TxWithdrawNative, From: from}, false},
		{"deposit asset", Action{Type: TxDepositAsset, From: from, Asset: token, Amount: one}, true},
		{"make order", Action{Type: TxMakeOrder, From: from, Amount: one, AssetWanted: token, AmountWanted: one}, true},
		{"make order missing wanted", Action{Type: TxMakeOrder, From: from, Amount: one}, false},
		{"cancel order", Action{Type: TxCancelOrder, From: from, OrderID: 1}, true},
		{"fill order id 0", Action{Type: TxFillOrder, From: from}, false},
		{"token transfer", Action{Type: TxTokenTransfer, From: from, Asset: token, Amount: one}, true},
		{"token transfer without token", Action{Type: TxTokenTransfer, From: from, Amount: one}, false},
		{"transfer from missing owner", Action{Type: TxTokenTransferFrom, From: from, Asset: token, Amount: one}, false},
		{"approve", Action{Type: TxTokenApprove, From: from, Asset: token, Amount: one}, true},
		{"native transfer", Action{Type: TxNativeTransfer, From: from, Amount: one}, true},
		{"missing sender", Action{Type: TxFillOrder, OrderID: 1}, false},
		{"missing type", Action{From: from}, false},
		{"unknown type", Action{Type: "mint", From: from}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !errors.Is(err, ledger.ErrInvalidTransaction) {
				t.Errorf("error does not wrap ErrInvalidTransaction: %v", err)
			}
		})
	}
}

func TestDeserializeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "O:GTC:BTC"},
		{"missing signature", `{"action":{"type":"fill_order","from":"0x1111111111111111111111111111111111111111","nonce":1,"order_id":1}}`},
		{"bad amount", `{"action":{"type":"withdraw_native","from":"0x1111111111111111111111111111111111111111","nonce":1,"amount":"-5"},"signature":"0x00"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Deserialize([]byte(tt.raw)); !errors.Is(err, ledger.ErrInvalidTransaction) {
				t.Errorf("expected ErrInvalidTransaction, got %v", err)
			}
		})
	}
}

func TestAmountsEncodeAsDecimalStrings(t *testing.T) {
	es, signer, _ := setup(t)
	tx, _ := Sign(es, signer, Action{Type: TxWithdrawNative, Nonce: 1, Amount: ledger.Units(1, 18)})
	raw, _ := tx.Serialize()
	if !strings.Contains(string(raw), `"amount":"1000000000000000000"`) {
		t.Errorf("amount not encoded as decimal string: %s", raw)
	}
	if !TxDepositNative.Payable() || TxWithdrawNative.Payable() {
		t.Error("only deposit_native is payable")
	}
}
