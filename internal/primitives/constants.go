// Package primitives implements the fixed cryptographic building blocks the
// wire contract is built on: RSA-OAEP session-key wrapping, AES-256-CBC used
// as a keystream, SHA-1 digests, and the counter-mode AES PRG. Every
// constant here — IV, modulus size, exponent, padding layout — is part of
// the wire contract (spec §4.1/§6) and must not drift between participants.
package primitives

const (
	// RSAModulusBits is the fixed RSA key size used for both primary (K1)
	// and secondary (K2) keypairs.
	RSAModulusBits = 1024

	// RSAPublicExponent is the fixed RSA public exponent.
	RSAPublicExponent = 65537

	// SessionKeyLen is the size in bytes of the random per-message AES-256 key.
	SessionKeyLen = 32

	// aesBlockSize is the AES block size in bytes (also the PRG's emission unit).
	aesBlockSize = 16
)

// fixedIV is the ASCII string "al*73lf9)982" (12 bytes), padded to a full
// AES block as required by the block-cipher implementation. Reused across
// session keys is acceptable ONLY because every session key is fresh per
// message (spec §9 Open Question (a)) — do not silently swap this for
// AES-GCM or a per-message nonce; that would change the wire format.
var fixedIV = padIV([]byte("al*73lf9)982"))

func padIV(iv []byte) []byte {
	out := make([]byte, aesBlockSize)
	copy(out, iv)
	return out
}
