package p2p

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
)

func init() {
	gob.Register(EventsWire{})
	gob.Register(BlockAnnounce{})
	gob.Register(TxAck{})
}

// EventsWire carries a batch of records; each is JSON so observers get the
// same payload the API serves.
type EventsWire struct {
	Records [][]byte
}

// BlockAnnounce is the header of a committed block. Signature is the
// sequencer's BLS signature over SigningBytes, empty when it has no key.
type BlockAnnounce struct {
	Height    int64
	Time      int64
	Hash      common.Hash
	AppHash   common.Hash
	Txs       int
	Signature []byte
}

// SigningBytes is the message the sequencer signs: every header field
// except the signature, fixed width.
func (b BlockAnnounce) SigningBytes() []byte {
	out := make([]byte, 0, 8*3+2*common.HashLength)
	out = binary.BigEndian.AppendUint64(out, uint64(b.Height))
	out = binary.BigEndian.AppendUint64(out, uint64(b.Time))
	out = append(out, b.Hash[:]...)
	out = append(out, b.AppHash[:]...)
	out = binary.BigEndian.AppendUint64(out, uint64(b.Txs))
	return out
}

type TxAck struct {
	Accepted bool
	Error    string
}

func encodeEvents(records []eventlog.Record) ([]byte, error) {
	w := EventsWire{Records: make([][]byte, 0, len(records))}
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		w.Records = append(w.Records, b)
	}
	return gobEncode(w)
}

func decodeEvents(data []byte) ([]eventlog.Record, error) {
	var w EventsWire
	if err := gobDecode(data, &w); err != nil {
		return nil, err
	}
	out := make([]eventlog.Record, 0, len(w.Records))
	for _, b := range w.Records {
		var r eventlog.Record
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
