package shuffle

import (
	"crypto/rsa"

	"dissent/internal/primitives"
)

// BuildOnion nests plaintext under keys[n-1], then keys[n-2], ..., then
// keys[0] last, so keys[0] ends up as the outermost layer and keys[n-1] as
// the innermost — the layering that lets the ring, visited in id order
// starting at the leader (id 0), peel exactly one layer per hop.
func BuildOnion(keys []*rsa.PublicKey, plaintext []byte) ([]byte, error) {
	cur := plaintext
	for i := len(keys) - 1; i >= 0; i-- {
		ct, err := primitives.RSAEncrypt(keys[i], cur)
		if err != nil {
			return nil, err
		}
		cur = ct
	}
	return cur, nil
}

// PeelOnion strips exactly one layer using priv.
func PeelOnion(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	return primitives.RSADecrypt(priv, ciphertext)
}

// PeelAll strips every layer in keys[0..n-1] order, the final step of
// Reveal once every round key has been published: it recovers the
// plaintext a ciphertext was built from without anyone having to know
// which participant originated it.
func PeelAll(keys []*rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	cur := ciphertext
	for i := 0; i < len(keys); i++ {
		pt, err := primitives.RSADecrypt(keys[i], cur)
		if err != nil {
			return nil, err
		}
		cur = pt
	}
	return cur, nil
}
