// Package bulk implements the four-phase bulk transport: a seed-exchange
// KeyExchange (identical in shape to Shuffle's), a DescriptorGen phase
// where every node commits to a slot length and a set of pairwise XOR pad
// seeds, a DescriptorShuffle that anonymizes those commitments by running
// one full Shuffle round over them, and a Transmit/Verify pass that
// combines everyone's pads into the final per-slot ciphertexts.
package bulk

import (
	"crypto/rand"

	"dissent/internal/errs"
	"dissent/internal/primitives"
)

// seedLen is the 1024-bit pairwise PRG seed size spec §4.4 Phase 1 fixes:
// the author "draws N fresh random 1024-bit seeds s_{i,0}..s_{i,N-1}".
const seedLen = 128

// drawSeed returns a fresh random PRG seed.
func drawSeed() ([]byte, error) {
	seed := make([]byte, seedLen)
	if _, err := rand.Read(seed); err != nil {
		return nil, &errs.CryptoError{Op: "bulk: draw seed", Err: err}
	}
	return seed, nil
}

// pad draws n bytes of keystream from seed and the rolling hash committed
// to alongside it, matching the cheating-hash check every recipient of a
// pairwise seed performs before trusting the pad it derives.
func pad(seed []byte, n int) (padBytes, hash []byte, err error) {
	prg, err := primitives.NewPRG(seed)
	if err != nil {
		return nil, nil, err
	}
	padBytes = prg.Read(n)
	hash = prg.Hash()
	return padBytes, hash, nil
}

// xor combines a and b into a new buffer of their shared length. Callers
// always draw both operands to the same published slot length; a peer
// that sends a mismatched length is caught here, as a MalformedPayload
// ProtocolViolation.
func xor(a, b []byte) ([]byte, error) {
	if len(a) != len(b) {
		return nil, &errs.ProtocolViolation{PeerID: -1, Reason: errs.MalformedPayload, Detail: "pad length mismatch"}
	}
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out, nil
}
