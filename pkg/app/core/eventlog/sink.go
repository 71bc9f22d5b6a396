package eventlog

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Sink receives events as ledgers emit them
type Sink interface {
	Emit(ev Event)
}

// Publisher ships committed records to something outside the node
// (Kafka, peers, websocket clients).
type Publisher interface {
	Publish(ctx context.Context, records []Record) error
}

// Buffer collects the events of one transaction. The node drops the buffer
// when the transaction fails, so observers never see a rejected call.
type Buffer struct {
	events []Event
}

func NewBuffer() *Buffer { return &Buffer{} }

func (b *Buffer) Emit(ev Event) { b.events = append(b.events, ev) }

// Take returns the collected events and empties the buffer
func (b *Buffer) Take() []Event {
	out := b.events
	b.events = nil
	return out
}

// Discard drops collected events
func (b *Buffer) Discard() { b.events = nil }

func (b *Buffer) Len() int { return len(b.events) }

// Log is an append-only, sequenced, in-memory event log
type Log struct {
	mu      sync.RWMutex
	records []Record
}

func NewLog() *Log {
	return &Log{records: make([]Record, 0, 1024)}
}

// Append assigns sequence numbers to events and stores them.
// Sequence numbers start at 1 and never repeat.
func (l *Log) Append(height int64, txHash common.Hash, events []Event) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, 0, len(events))
	next := uint64(len(l.records)) + 1
	for i, ev := range events {
		rec, err := NewRecord(next+uint64(i), height, txHash, ev)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	l.records = append(l.records, out...)
	return out, nil
}

// Since returns up to limit records with Seq >= from, optionally filtered by
// kind (empty kind = all). limit <= 0 means no limit.
func (l *Log) Since(from uint64, limit int, kind Kind) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if from == 0 {
		from = 1
	}
	if from > uint64(len(l.records)) {
		return nil
	}
	var out []Record
	for i := int(from - 1); i < len(l.records); i++ {
		if kind != "" && l.records[i].Kind != kind {
			continue
		}
		out = append(out, l.records[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Len returns the number of records, which is also the last sequence number
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
