package storage

import (
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/escrowdex/pkg/abci"
	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
)

// InMemoryBlockStore is a Store for tests and ephemeral nodes
type InMemoryBlockStore struct {
	mu       sync.Mutex
	blocks   map[int64]Block
	receipts map[common.Hash]abci.TxResult
	events   []eventlog.Record
	byAcct   map[common.Address][]int // indexes into events
	height   int64
}

func NewInMemoryBlockStore() *InMemoryBlockStore {
	return &InMemoryBlockStore{
		blocks:   make(map[int64]Block),
		receipts: make(map[common.Hash]abci.TxResult),
		byAcct:   make(map[common.Address][]int),
	}
}

func (s *InMemoryBlockStore) SaveBlock(b Block, results []abci.TxResult, records []eventlog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	decoded := make([]eventlog.Event, len(records))
	for i, rec := range records {
		ev, err := rec.Decode()
		if err != nil {
			return err
		}
		decoded[i] = ev
	}

	s.blocks[b.Height] = b
	for _, r := range results {
		s.receipts[r.TxHash] = r
	}
	for i, rec := range records {
		s.events = append(s.events, rec)
		idx := len(s.events) - 1
		seen := make(map[common.Address]bool)
		for _, acct := range eventlog.Accounts(decoded[i]) {
			if seen[acct] {
				continue
			}
			seen[acct] = true
			s.byAcct[acct] = append(s.byAcct[acct], idx)
		}
	}
	s.height = b.Height
	return nil
}

func (s *InMemoryBlockStore) GetBlock(height int64) (Block, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[height]
	return b, ok, nil
}

func (s *InMemoryBlockStore) LastHeight() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height, nil
}

func (s *InMemoryBlockStore) BlocksFrom(from int64, fn func(Block) error) error {
	s.mu.Lock()
	heights := make([]int64, 0, len(s.blocks))
	for h := range s.blocks {
		if h >= from {
			heights = append(heights, h)
		}
	}
	blocks := make([]Block, 0, len(heights))
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	for _, h := range heights {
		blocks = append(blocks, s.blocks[h])
	}
	s.mu.Unlock()

	for _, b := range blocks {
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryBlockStore) Receipt(txHash common.Hash) (abci.TxResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[txHash]
	return r, ok, nil
}

func (s *InMemoryBlockStore) Events(from uint64, limit int, kind eventlog.Kind) ([]eventlog.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []eventlog.Record
	for _, rec := range s.events {
		if rec.Seq < from || (kind != "" && rec.Kind != kind) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryBlockStore) AccountEvents(account common.Address, limit int) ([]eventlog.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.byAcct[account]
	var out []eventlog.Record
	for i := len(idx) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, s.events[idx[i]])
	}
	return out, nil
}

func (s *InMemoryBlockStore) Close() error { return nil }
