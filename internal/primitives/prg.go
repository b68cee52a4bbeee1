package primitives

import (
	"crypto/aes"
	"crypto/sha1" //nolint:gosec // wire-mandated rolling digest
	"crypto/sha256"
	"encoding/binary"

	"dissent/internal/errs"
)

// PRG is the counter-mode AES-256 pseudo-random generator of spec §4.1: AES
// encryption of a 64-bit big-endian counter emits successive 16-byte blocks,
// with a rolling SHA-1 maintained over every byte drawn so far.
type PRG struct {
	block   [aesBlockSize]byte
	counter uint64
	cipher  interface {
		Encrypt(dst, src []byte)
	}
	keystreamBuf []byte
	rolling      sha1Hash
}

// sha1Hash is the minimal surface PRG needs from hash.Hash, kept narrow so
// tests can assert on Sum() without importing hash.Hash directly.
type sha1Hash interface {
	Write(p []byte) (int, error)
	Sum(b []byte) []byte
}

// NewPRG seeds a generator from an arbitrary-length seed, deriving the
// AES-256 key from the seed bytes deterministically (see deriveAESKey).
func NewPRG(seed []byte) (*PRG, error) {
	key := deriveAESKey(seed)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &errs.CryptoError{Op: "aes.NewCipher", Err: err}
	}
	return &PRG{cipher: block, rolling: sha1.New()}, nil //nolint:gosec
}

// deriveAESKey maps an arbitrary-length seed onto a 32-byte AES-256 key.
// For a seed that is already 32 bytes this is the identity; longer/shorter
// seeds (such as Bulk's 128-byte seeds) are stretched with SHA-256 so the
// PRG never rejects a caller-supplied seed.
func deriveAESKey(seed []byte) []byte {
	if len(seed) == SessionKeyLen {
		out := make([]byte, SessionKeyLen)
		copy(out, seed)
		return out
	}
	return stretchSeed(seed)
}

// Read draws n bytes of keystream, updating the rolling digest over every
// byte emitted.
func (p *PRG) Read(n int) []byte {
	out := make([]byte, 0, n)
	for len(out) < n {
		if len(p.keystreamBuf) == 0 {
			p.keystreamBuf = p.nextBlock()
		}
		take := n - len(out)
		if take > len(p.keystreamBuf) {
			take = len(p.keystreamBuf)
		}
		out = append(out, p.keystreamBuf[:take]...)
		p.keystreamBuf = p.keystreamBuf[take:]
	}
	_, _ = p.rolling.Write(out)
	return out
}

// Hash returns SHA-1 over every byte drawn from this generator so far.
func (p *PRG) Hash() []byte {
	return p.rolling.Sum(nil)
}

// stretchSeed maps an arbitrary-length seed onto exactly SessionKeyLen bytes
// via a single SHA-256 pass, used for Bulk's 1024-bit PRG seeds.
func stretchSeed(seed []byte) []byte {
	sum := sha256.Sum256(seed)
	return sum[:]
}

func (p *PRG) nextBlock() []byte {
	var ctrBytes [aesBlockSize]byte
	binary.BigEndian.PutUint64(ctrBytes[aesBlockSize-8:], p.counter)
	p.counter++
	out := make([]byte, aesBlockSize)
	p.cipher.Encrypt(out, ctrBytes[:])
	return out
}
