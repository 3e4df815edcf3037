package mempool

import (
	"bytes"
	"encoding/gob"
)

// gobEncode is the shared serialization used for on-disk and in-memory
// blobs (orphan bytes, UTXO records, cache entries) throughout this
// package, matching the encoding/gob approach the rest of the stack
// uses for its own persisted records.
func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
