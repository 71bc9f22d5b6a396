package storage

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Block is an ordered batch of raw transactions as executed by the
// sequencer, with the state hash it produced.
type Block struct {
	Height     int64
	Time       int64 // unix seconds
	ParentHash common.Hash
	Txs        [][]byte
	AppHash    common.Hash
}

// HashOfBlock commits to height, time, parent, every tx and the app hash
func HashOfBlock(b Block) common.Hash {
	var buf []byte
	buf = append(buf, be64(uint64(b.Height))...)
	buf = append(buf, be64(uint64(b.Time))...)
	buf = append(buf, b.ParentHash[:]...)
	for _, tx := range b.Txs {
		h := crypto.Keccak256(tx)
		buf = append(buf, h...)
	}
	buf = append(buf, b.AppHash[:]...)
	return crypto.Keccak256Hash(buf)
}
