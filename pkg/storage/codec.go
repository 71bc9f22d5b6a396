package storage

import (
	"bytes"
	"encoding/gob"
	"strconv"
)

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

// seqFromAccountEventKey parses the trailing zero-padded seq of an "ae:" key
func seqFromAccountEventKey(k []byte) (uint64, bool) {
	if len(k) < 20 {
		return 0, false
	}
	seq, err := strconv.ParseUint(string(k[len(k)-20:]), 10, 64)
	return seq, err == nil
}
