package probe

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/benbrittain/aether-throughput/internal/shared"
)

// ErrPayloadTooSmall means the configured payload cannot hold the sequence
// header. This is a configuration error, not a runtime condition.
var ErrPayloadTooSmall = errors.New("payload size must be at least 8 bytes")

// encodePayload builds one probe datagram: the sequence number as a 64-bit
// little-endian integer in the leading bytes, padding to the configured size.
func encodePayload(seq uint64, size int) ([]byte, error) {
	if size < shared.SeqBytes {
		return nil, fmt.Errorf("%w, got %d", ErrPayloadTooSmall, size)
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint64(buf, seq)
	for i := shared.SeqBytes; i < size; i++ {
		buf[i] = shared.PaddingByte
	}
	return buf, nil
}

// decodeSeq reads the sequence number back out of an echoed datagram.
// Returns false if the datagram is too short to carry one.
func decodeSeq(buf []byte) (uint64, bool) {
	if len(buf) < shared.SeqBytes {
		return 0, false
	}
	return binary.LittleEndian.Uint64(buf), true
}
