package source

import (
	"encoding/binary"
	"fmt"
)

// encodeIndex returns the position token of an index-addressed handle.
func encodeIndex(i int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(i))
}

// decodeIndex parses a token written by encodeIndex and checks it against
// the number of addressable records.
func decodeIndex(token []byte, limit int64) (int64, error) {
	if len(token) != 8 {
		return 0, fmt.Errorf("position must be 8 bytes, got %d", len(token))
	}
	i := int64(binary.BigEndian.Uint64(token))
	if i < 0 || i > limit {
		return 0, fmt.Errorf("position %d out of range [0, %d]", i, limit)
	}
	return i, nil
}
