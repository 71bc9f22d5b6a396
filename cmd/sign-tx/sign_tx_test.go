package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/escrowdex/pkg/app/core/transaction"
	"github.com/uhyunpark/escrowdex/pkg/crypto"
)

var exchangeAddr = common.HexToAddress("0x5b1869D9A4C187F2EAa108f3062412ecf0526b24")

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return out.String(), err
}

func TestSignAndSubmit(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/txs" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"txHash":"0x01"}`))
	}))
	defer srv.Close()

	out, err := run(t, "make-order",
		"--key", signer.PrivateKeyHex(),
		"--nonce", "4",
		"--exchange", exchangeAddr.Hex(),
		"--chain-id", "1337",
		"--submit", srv.URL,
		"0x0000000000000000000000000000000000000000", "1000",
		"0xCfEB869F69431e42cdB54A4F4f105C19C080A601", "2000",
	)
	if err != nil {
		t.Fatalf("make-order: %v\n%s", err, out)
	}
	if !strings.Contains(out, "submitted:") {
		t.Errorf("output missing submit confirmation:\n%s", out)
	}

	tx, err := transaction.Deserialize(got)
	if err != nil {
		t.Fatalf("server received bad tx: %v", err)
	}
	if tx.Action.Type != transaction.TxMakeOrder || tx.Action.Nonce != 5 {
		t.Errorf("action = %s nonce %d, want make_order nonce 5", tx.Action.Type, tx.Action.Nonce)
	}
	from, err := transaction.NewVerifier(crypto.DefaultDomain(exchangeAddr)).Verify(tx)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if from != signer.Address() {
		t.Errorf("signer = %s, want %s", from.Hex(), signer.Address().Hex())
	}
}

func TestSignRejectsBadInput(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	cases := [][]string{
		{"fill-order", "--key", signer.PrivateKeyHex(), "--exchange", "nope", "--submit", "", "1"},
		{"fill-order", "--key", signer.PrivateKeyHex(), "--exchange", exchangeAddr.Hex(), "--submit", "", "x"},
		{"deposit-native", "--key", signer.PrivateKeyHex(), "--exchange", exchangeAddr.Hex(), "--submit", "", "-5"},
		{"fill-order", "--key", "", "--exchange", exchangeAddr.Hex(), "--submit", "", "1"},
	}
	for _, args := range cases {
		if _, err := run(t, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}
