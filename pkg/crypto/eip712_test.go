package crypto

import (
	"bytes"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var testExchange = common.HexToAddress("0xEC00000000000000000000000000000000000000")

func testAction(from common.Address) *ActionEIP712 {
	return &ActionEIP712{
		Type:         "make_order",
		From:         from,
		Nonce:        1,
		Asset:        common.Address{},
		Amount:       uint256.NewInt(1_000),
		AssetWanted:  common.HexToAddress("0x7070000000000000000000000000000000000000"),
		AmountWanted: uint256.NewInt(2_000),
	}
}

func TestActionSignAndRecover(t *testing.T) {
	signer, _ := GenerateKey()
	es := NewEIP712Signer(DefaultDomain(testExchange))
	action := testAction(signer.Address())

	sig, err := es.SignAction(signer, action)
	if err != nil {
		t.Fatalf("failed to sign action: %v", err)
	}
	got, err := es.RecoverActionSigner(action, sig)
	if err != nil {
		t.Fatalf("failed to recover signer: %v", err)
	}
	if got != signer.Address() {
		t.Errorf("recovered = %s, want %s", got.Hex(), signer.Address().Hex())
	}

	// any field change yields a different signer
	tampered := *action
	tampered.AmountWanted = uint256.NewInt(1)
	got, err = es.RecoverActionSigner(&tampered, sig)
	if err == nil && got == signer.Address() {
		t.Error("tampered action recovered the original signer")
	}
}

func TestHashActionDomainSeparation(t *testing.T) {
	action := testAction(common.HexToAddress("0x1111"))

	h1, err := NewEIP712Signer(DefaultDomain(testExchange)).HashAction(action)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	other := DefaultDomain(testExchange)
	other.ChainID = big.NewInt(1)
	h2, _ := NewEIP712Signer(other).HashAction(action)
	h3, _ := NewEIP712Signer(DefaultDomain(common.HexToAddress("0x2222"))).HashAction(action)

	if len(h1) != 32 {
		t.Fatalf("digest length = %d, want 32", len(h1))
	}
	if bytes.Equal(h1, h2) || bytes.Equal(h1, h3) {
		t.Error("digest must depend on chain id and verifying contract")
	}

	again, _ := NewEIP712Signer(DefaultDomain(testExchange)).HashAction(action)
	if !bytes.Equal(h1, again) {
		t.Error("hash is not deterministic")
	}
}

func TestHashActionNilAmounts(t *testing.T) {
	es := NewEIP712Signer(DefaultDomain(testExchange))
	a := &ActionEIP712{Type: "cancel_order", From: common.HexToAddress("0x1111"), Nonce: 3, OrderID: 7}
	b := &ActionEIP712{Type: "cancel_order", From: common.HexToAddress("0x1111"), Nonce: 3, OrderID: 7,
		Value: uint256.NewInt(0), Amount: uint256.NewInt(0), AmountWanted: uint256.NewInt(0)}

	ha, err := es.HashAction(a)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	hb, _ := es.HashAction(b)
	if !bytes.Equal(ha, hb) {
		t.Error("nil and zero amounts should hash the same")
	}
}

func TestActionToJSON(t *testing.T) {
	es := NewEIP712Signer(DefaultDomain(testExchange))
	out, err := es.ActionToJSON(testAction(common.HexToAddress("0x1111")))
	if err != nil {
		t.Fatalf("ActionToJSON failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["primaryType"] != "Action" {
		t.Errorf("primaryType = %v, want Action", decoded["primaryType"])
	}
	msg, _ := decoded["message"].(map[string]any)
	if msg["type"] != "make_order" || msg["amountWanted"] != "2000" {
		t.Errorf("message = %v", msg)
	}
}
