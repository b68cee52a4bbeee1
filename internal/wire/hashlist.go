package wire

import (
	"crypto/sha1" //nolint:gosec // matches the protocol-mandated digest, not used for anything security-load-bearing

	"dissent/internal/errs"
)

// HashList is the Verify-phase digest every node recomputes over the final
// ciphertext bag: canonical-serialize the ordered list, then SHA-1 it, so
// any two nodes holding the same bag in the same order agree on the same
// hash.
func HashList(items [][]byte) ([]byte, error) {
	b, err := Serialize(items)
	if err != nil {
		return nil, &errs.LocalIoError{Op: "wire.HashList", Err: err}
	}
	sum := sha1.Sum(b) //nolint:gosec
	return sum[:], nil
}
