package storage

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/escrowdex/pkg/abci"
	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
)

// PebbleStore persists committed blocks with their receipts and events
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble at %s", path)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// SaveBlock writes a block, its receipts and its events in one synced batch
func (s *PebbleStore) SaveBlock(b Block, results []abci.TxResult, records []eventlog.Record) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	val, err := encodeGob(b)
	if err != nil {
		return errors.Wrapf(err, "encode block %d", b.Height)
	}
	if err := batch.Set(blockKey(b.Height), val, nil); err != nil {
		return err
	}

	for _, r := range results {
		data, err := json.Marshal(r)
		if err != nil {
			return errors.Wrap(err, "marshal receipt")
		}
		if err := batch.Set(receiptKey(r.TxHash), data, nil); err != nil {
			return err
		}
	}

	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return errors.Wrap(err, "marshal event")
		}
		if err := batch.Set(eventKey(rec.Seq), data, nil); err != nil {
			return err
		}
		ev, err := rec.Decode()
		if err != nil {
			return err
		}
		for _, acct := range eventlog.Accounts(ev) {
			if err := batch.Set(accountEventKey(acct, rec.Seq), nil, nil); err != nil {
				return err
			}
		}
	}

	if err := batch.Set([]byte(keyHeight), be64(uint64(b.Height)), nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// LastHeight returns the last committed height (0 when empty)
func (s *PebbleStore) LastHeight() (int64, error) {
	val, closer, err := s.db.Get([]byte(keyHeight))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "get height")
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, errors.Newf("corrupt height entry (%d bytes)", len(val))
	}
	var h uint64
	for _, b := range val {
		h = h<<8 | uint64(b)
	}
	return int64(h), nil
}

func (s *PebbleStore) GetBlock(height int64) (Block, bool, error) {
	val, closer, err := s.db.Get(blockKey(height))
	if errors.Is(err, pebble.ErrNotFound) {
		return Block{}, false, nil
	}
	if err != nil {
		return Block{}, false, errors.Wrapf(err, "get block %d", height)
	}
	defer closer.Close()
	var out Block
	if err := decodeGob(val, &out); err != nil {
		return Block{}, false, errors.Wrapf(err, "decode block %d", height)
	}
	return out, true, nil
}

// BlocksFrom calls fn for every stored block with height >= from, in order
func (s *PebbleStore) BlocksFrom(from int64, fn func(Block) error) error {
	prefix := []byte(prefixBlock)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: blockKey(from),
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var b Block
		if err := decodeGob(iter.Value(), &b); err != nil {
			return errors.Wrap(err, "decode block")
		}
		if err := fn(b); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *PebbleStore) Receipt(txHash common.Hash) (abci.TxResult, bool, error) {
	val, closer, err := s.db.Get(receiptKey(txHash))
	if errors.Is(err, pebble.ErrNotFound) {
		return abci.TxResult{}, false, nil
	}
	if err != nil {
		return abci.TxResult{}, false, err
	}
	defer closer.Close()
	var r abci.TxResult
	if err := json.Unmarshal(val, &r); err != nil {
		return abci.TxResult{}, false, errors.Wrap(err, "unmarshal receipt")
	}
	return r, true, nil
}

// Events returns up to limit records with seq >= from, optionally of one kind
func (s *PebbleStore) Events(from uint64, limit int, kind eventlog.Kind) ([]eventlog.Record, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: eventKey(from),
		UpperBound: keyUpperBound([]byte(prefixEvent)),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []eventlog.Record
	for iter.First(); iter.Valid(); iter.Next() {
		var rec eventlog.Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, errors.Wrap(err, "unmarshal event")
		}
		if kind != "" && rec.Kind != kind {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}

// AccountEvents returns the most recent limit records that concern
// account, newest first.
func (s *PebbleStore) AccountEvents(account common.Address, limit int) ([]eventlog.Record, error) {
	prefix := accountEventPrefix(account)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []eventlog.Record
	for iter.Last(); iter.Valid() && (limit <= 0 || len(out) < limit); iter.Prev() {
		seq, ok := seqFromAccountEventKey(iter.Key())
		if !ok {
			continue
		}
		val, closer, err := s.db.Get(eventKey(seq))
		if err != nil {
			return nil, errors.Wrapf(err, "event %d indexed but missing", seq)
		}
		var rec eventlog.Record
		err = json.Unmarshal(val, &rec)
		closer.Close()
		if err != nil {
			return nil, errors.Wrap(err, "unmarshal event")
		}
		out = append(out, rec)
	}
	return out, iter.Error()
}
