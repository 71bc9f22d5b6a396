package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/escrowdex/pkg/abci"
	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
)

var (
	alice = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob   = common.HexToAddress("0xBB00000000000000000000000000000000000000")
	asset = common.HexToAddress("0x7700000000000000000000000000000000000000")
)

func records(t *testing.T, log *eventlog.Log, height int64, tx common.Hash, evs ...eventlog.Event) []eventlog.Record {
	t.Helper()
	recs, err := log.Append(height, tx, evs)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return recs
}

func fillStore(t *testing.T, s Store) {
	t.Helper()
	log := eventlog.NewLog()

	tx1 := common.Hash{0x01}
	b1 := Block{Height: 1, Time: 100, Txs: [][]byte{[]byte("tx1")}}
	r1 := []abci.TxResult{{TxHash: tx1, Height: 1, From: alice, Type: "deposit_native", Success: true}}
	recs1 := records(t, log, 1, tx1,
		eventlog.Deposit{Asset: common.Address{}, Account: alice, Amount: uint256.NewInt(5), Balance: uint256.NewInt(5)})
	if err := s.SaveBlock(b1, r1, recs1); err != nil {
		t.Fatalf("save block 1: %v", err)
	}

	tx2 := common.Hash{0x02}
	b2 := Block{Height: 2, Time: 101, ParentHash: HashOfBlock(b1), Txs: [][]byte{[]byte("tx2")}}
	r2 := []abci.TxResult{{TxHash: tx2, Height: 2, From: bob, Type: "token_transfer", Success: true}}
	recs2 := records(t, log, 2, tx2,
		eventlog.Transfer{Token: asset, From: bob, To: alice, Value: uint256.NewInt(3)},
		eventlog.Approval{Token: asset, Owner: bob, Spender: bob, Value: uint256.NewInt(1)})
	if err := s.SaveBlock(b2, r2, recs2); err != nil {
		t.Fatalf("save block 2: %v", err)
	}
}

func checkStore(t *testing.T, s Store) {
	t.Helper()

	h, err := s.LastHeight()
	if err != nil || h != 2 {
		t.Fatalf("LastHeight() = %d, %v; want 2", h, err)
	}

	b, ok, err := s.GetBlock(2)
	if err != nil || !ok {
		t.Fatalf("GetBlock(2) = %v, %v", ok, err)
	}
	if string(b.Txs[0]) != "tx2" || b.Time != 101 {
		t.Errorf("block 2 = %+v", b)
	}
	if _, ok, _ := s.GetBlock(3); ok {
		t.Error("block 3 should not exist")
	}

	var heights []int64
	err = s.BlocksFrom(1, func(b Block) error {
		heights = append(heights, b.Height)
		return nil
	})
	if err != nil || len(heights) != 2 || heights[0] != 1 || heights[1] != 2 {
		t.Errorf("BlocksFrom(1) heights = %v, %v", heights, err)
	}

	r, ok, err := s.Receipt(common.Hash{0x02})
	if err != nil || !ok || r.From != bob || !r.Success {
		t.Errorf("Receipt = %+v, %v, %v", r, ok, err)
	}
	if _, ok, _ := s.Receipt(common.Hash{0x99}); ok {
		t.Error("unknown receipt found")
	}

	all, err := s.Events(0, 0, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("Events() = %d records, %v", len(all), err)
	}
	transfers, _ := s.Events(0, 0, eventlog.KindTransfer)
	if len(transfers) != 1 || transfers[0].Seq != 2 {
		t.Errorf("transfer filter = %+v", transfers)
	}
	limited, _ := s.Events(2, 1, "")
	if len(limited) != 1 || limited[0].Seq != 2 {
		t.Errorf("Events(2, 1) = %+v", limited)
	}

	aliceEvents, err := s.AccountEvents(alice, 0)
	if err != nil || len(aliceEvents) != 2 {
		t.Fatalf("AccountEvents(alice) = %d, %v", len(aliceEvents), err)
	}
	if aliceEvents[0].Seq != 2 || aliceEvents[1].Seq != 1 {
		t.Errorf("account events not newest first: %d,%d", aliceEvents[0].Seq, aliceEvents[1].Seq)
	}

	// bob is both owner and spender of the approval; indexed once
	bobEvents, _ := s.AccountEvents(bob, 0)
	if len(bobEvents) != 2 {
		t.Errorf("AccountEvents(bob) = %d records, want 2", len(bobEvents))
	}
	if latest, _ := s.AccountEvents(bob, 1); len(latest) != 1 || latest[0].Kind != eventlog.KindApproval {
		t.Errorf("AccountEvents(bob, 1) = %+v", latest)
	}
}

func TestPebbleStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	fillStore(t, s)
	checkStore(t, s)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	checkStore(t, reopened)
}

func TestPebbleStoreEmpty(t *testing.T) {
	s, err := NewPebbleStore(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if h, err := s.LastHeight(); err != nil || h != 0 {
		t.Errorf("LastHeight() = %d, %v; want 0", h, err)
	}
}

func TestInMemoryBlockStore(t *testing.T) {
	s := NewInMemoryBlockStore()
	fillStore(t, s)
	checkStore(t, s)
}

func TestHashOfBlockCoversTxs(t *testing.T) {
	a := Block{Height: 1, Txs: [][]byte{[]byte("a")}}
	b := Block{Height: 1, Txs: [][]byte{[]byte("b")}}
	if HashOfBlock(a) == HashOfBlock(b) {
		t.Error("different txs hash equal")
	}
	if HashOfBlock(a) != HashOfBlock(a) {
		t.Error("hash not deterministic")
	}
}

func TestAccountEventKeyOrder(t *testing.T) {
	k9 := accountEventKey(alice, 9)
	k10 := accountEventKey(alice, 10)
	if string(k9) >= string(k10) {
		t.Error("seq 9 should sort before seq 10")
	}
	seq, ok := seqFromAccountEventKey(k10)
	if !ok || seq != 10 {
		t.Errorf("seqFromAccountEventKey = %d, %v", seq, ok)
	}
}

func TestFileJournalAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "blocks.log")
	j, err := NewFileJournal(path)
	if err != nil {
		t.Fatal(err)
	}
	j.Append("block 1")
	j.Append("block 2")
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "block 1\nblock 2\n" {
		t.Errorf("journal = %q", got)
	}
}
