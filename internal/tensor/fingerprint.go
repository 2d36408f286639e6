package tensor

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a 64-bit hash over dtype, shape and the raw bytes.
// Two tensors with equal fingerprints are, for all practical purposes,
// bit-identical. The empty sentinel hashes to 0.
func Fingerprint(t *RawTensor) uint64 {
	if IsEmpty(t) {
		return 0
	}
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(t.dtype))
	_, _ = d.Write(buf[:])
	for _, dim := range t.shape {
		binary.LittleEndian.PutUint64(buf[:], uint64(dim)) //nolint:gosec // dims are validated > 0
		_, _ = d.Write(buf[:])
	}
	_, _ = d.Write(t.data)
	return d.Sum64()
}
