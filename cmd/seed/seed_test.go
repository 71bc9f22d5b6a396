package main

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/escrowdex/pkg/api"
	"github.com/uhyunpark/escrowdex/pkg/app/core/exchange"
	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
	"github.com/uhyunpark/escrowdex/pkg/app/dex"
	"github.com/uhyunpark/escrowdex/pkg/crypto"
	"github.com/uhyunpark/escrowdex/pkg/sequencer"
	"github.com/uhyunpark/escrowdex/pkg/storage"
)

func TestSeedSession(t *testing.T) {
	key1, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	key2, err := crypto.FromPrivateKeyHex(defaultUser2Key)
	if err != nil {
		t.Fatal(err)
	}

	g := dex.DefaultGenesis(key1.Address(), common.HexToAddress("0xFEE0000000000000000000000000000000000000"))
	g.Alloc[key1.Address()] = ledger.Units(10, 18)
	app, err := dex.NewApp(g, dex.Options{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	store := storage.NewInMemoryBlockStore()
	seq := sequencer.New(app, store, nil, nil)
	seq.MinBlockTime = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- seq.Run(ctx) }()

	srv := httptest.NewServer(api.NewServer(app, store, api.Config{}).Handler())
	defer srv.Close()

	c := newNodeClient(srv.URL)
	c.poll = 5 * time.Millisecond
	s, err := newSeeder(ctx, c, key1, key2, 1337, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	s.pause = 0
	s.ordersN = 3

	if err := s.run(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cancel()
	<-done

	if n := len(app.Orders(exchange.StatusFilled)); n != 3 {
		t.Errorf("filled orders = %d, want 3", n)
	}
	if n := len(app.Orders(exchange.StatusCancelled)); n != 1 {
		t.Errorf("cancelled orders = %d, want 1", n)
	}
	if n := len(app.Orders(exchange.StatusOpen)); n != 6 {
		t.Errorf("open orders = %d, want 6", n)
	}
	if n := len(app.Trades()); n != 3 {
		t.Errorf("trades = %d, want 3", n)
	}
}
