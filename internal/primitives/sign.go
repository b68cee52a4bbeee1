package primitives

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"

	"dissent/internal/errs"
)

// Sign implements spec §4.1 sign: RSA-PKCS1 private-encrypt of SHA-1(m).
// Returns the raw signature bytes; callers assemble the (id, m, sig) tuple
// (see internal/wire).
func Sign(priv *rsa.PrivateKey, m []byte) ([]byte, error) {
	digest := sha1Sum(m)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA1, digest)
	if err != nil {
		return nil, &errs.CryptoError{Op: "rsa.SignPKCS1v15", Err: err}
	}
	return sig, nil
}

// Verify implements spec §4.1 verify's signature check: RSA-PKCS1
// public-decrypt of sig must equal SHA-1(m).
func Verify(pub *rsa.PublicKey, m, sig []byte) bool {
	digest := sha1Sum(m)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA1, digest, sig) == nil
}
