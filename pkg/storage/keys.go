package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Key schema:
//
//	b:<8-byte height>            → Block (gob)
//	h                            → last committed height
//	r:<tx hash>                  → receipt (JSON)
//	e:<8-byte seq>               → event record (JSON)
//	ae:<address>:<020d seq>      → empty; per-account event index
const (
	prefixBlock        = "b:"
	prefixReceipt      = "r:"
	prefixEvent        = "e:"
	prefixAccountEvent = "ae:"
	keyHeight          = "h"
)

func be64(v uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], v)
	return k[:]
}

func blockKey(height int64) []byte {
	return append([]byte(prefixBlock), be64(uint64(height))...)
}

func receiptKey(txHash common.Hash) []byte {
	return append([]byte(prefixReceipt), txHash[:]...)
}

func eventKey(seq uint64) []byte {
	return append([]byte(prefixEvent), be64(seq)...)
}

// accountEventKey indexes seq under account.
// Format: "ae:{address}:{seq}", seq zero-padded for lexicographic order
func accountEventKey(account common.Address, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixAccountEvent, account.Hex(), seq))
}

func accountEventPrefix(account common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixAccountEvent, account.Hex()))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
