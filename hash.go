// Checksum algorithms for segment records.
//
// Every JSONL line carries a _c field: a 16 hex character digest of the
// raw record bytes. Three algorithms are supported, selectable via
// JSONL.Checksum. Segments are verified with the algorithm of the format
// that reads them.
package rotor

import (
	"fmt"
	"hash/fnv"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// Checksum algorithm constants.
const (
	AlgNone    = -1 // No checksum field written
	AlgXXHash3 = 1  // Default, fastest
	AlgFNV1a   = 2  // No external dependencies
	AlgBlake2b = 3  // Best distribution
)

// checksum returns a 16 hex character digest of data using alg.
func checksum(data []byte, alg int) string {
	switch alg {
	case AlgXXHash3:
		return fmt.Sprintf("%016x", xxh3.Hash(data))
	case AlgFNV1a:
		h := fnv.New64a()
		h.Write(data)
		return fmt.Sprintf("%016x", h.Sum64())
	case AlgBlake2b:
		h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
		h.Write(data)
		return fmt.Sprintf("%016x", h.Sum(nil))
	default:
		return ""
	}
}
