package storage

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/escrowdex/pkg/abci"
	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
)

// Store is the block history the sequencer writes and replays from
type Store interface {
	SaveBlock(b Block, results []abci.TxResult, records []eventlog.Record) error
	GetBlock(height int64) (Block, bool, error)
	LastHeight() (int64, error)
	BlocksFrom(from int64, fn func(Block) error) error
	Receipt(txHash common.Hash) (abci.TxResult, bool, error)
	Events(from uint64, limit int, kind eventlog.Kind) ([]eventlog.Record, error)
	AccountEvents(account common.Address, limit int) ([]eventlog.Record, error)
	Close() error
}

var (
	_ Store = (*PebbleStore)(nil)
	_ Store = (*InMemoryBlockStore)(nil)
)
