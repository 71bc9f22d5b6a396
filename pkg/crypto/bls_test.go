package crypto

import (
	"bytes"
	"testing"
)

func TestBLSSignVerify(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)
	s, err := NewBLSSignerFromSeed(seed)
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("block 12")
	sig := s.Sign(msg)

	if !VerifyBLS(s.Pubkey(), sig, msg) {
		t.Fatal("valid signature rejected")
	}
	if VerifyBLS(s.Pubkey(), sig, []byte("block 13")) {
		t.Error("signature verified for a different message")
	}
	if VerifyBLS(s.Pubkey(), nil, msg) {
		t.Error("empty signature verified")
	}

	// the public key survives a round trip through its encoding
	raw, err := s.PubkeyBytes()
	if err != nil {
		t.Fatal(err)
	}
	pk, err := ParseBLSPubKey(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyBLS(pk, sig, msg) {
		t.Error("parsed key rejects signature")
	}

	other, err := NewBLSSignerFromSeed(bytes.Repeat([]byte{8}, 32))
	if err != nil {
		t.Fatal(err)
	}
	if VerifyBLS(other.Pubkey(), sig, msg) {
		t.Error("signature verified under another key")
	}

	if _, err := NewBLSSignerFromSeed([]byte("short")); err == nil {
		t.Error("short seed accepted")
	}
}
