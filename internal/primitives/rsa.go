package primitives

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // wire-mandated digest, not a security choice
	"crypto/sha256"

	"dissent/internal/errs"
)

// GenerateKeyPair produces a fresh RSA keypair at the wire-mandated modulus
// size and exponent.
func GenerateKeyPair() (*rsa.PrivateKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, RSAModulusBits)
	if err != nil {
		return nil, &errs.CryptoError{Op: "rsa.GenerateKey", Err: err}
	}
	return priv, nil
}

// RSAEncrypt implements spec §4.1 rsa_encrypt: draw a fresh 32-byte session
// key, OAEP-wrap it under pub, pad m to a whole number of AES blocks with a
// 1-byte filler-length prefix, and AES-256-CBC encrypt the result under the
// fixed IV. Returns enc_key || aes_ciphertext.
func RSAEncrypt(pub *rsa.PublicKey, m []byte) ([]byte, error) {
	sessionKey := make([]byte, SessionKeyLen)
	if _, err := rand.Read(sessionKey); err != nil {
		return nil, &errs.CryptoError{Op: "rand.Read session key", Err: err}
	}

	encKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, sessionKey, nil)
	if err != nil {
		return nil, &errs.CryptoError{Op: "rsa.EncryptOAEP", Err: err}
	}

	padded := padMessage(m)
	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return nil, &errs.CryptoError{Op: "aes.NewCipher", Err: err}
	}
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, fixedIV).CryptBlocks(ct, padded)

	out := make([]byte, 0, len(encKey)+len(ct))
	out = append(out, encKey...)
	out = append(out, ct...)
	return out, nil
}

// RSADecrypt implements spec §4.1 rsa_decrypt: split c into the OAEP-wrapped
// session key and the AES-CBC ciphertext, recover the session key, decrypt,
// and strip the filler-length prefix.
func RSADecrypt(priv *rsa.PrivateKey, c []byte) ([]byte, error) {
	encKeyLen := priv.Size()
	if len(c) < encKeyLen {
		return nil, &errs.ProtocolViolation{PeerID: -1, Reason: errs.MalformedPayload, Detail: "ciphertext shorter than RSA modulus"}
	}
	encKey, ct := c[:encKeyLen], c[encKeyLen:]
	if len(ct) == 0 || len(ct)%aesBlockSize != 0 {
		return nil, &errs.ProtocolViolation{PeerID: -1, Reason: errs.MalformedPayload, Detail: "aes ciphertext not block-aligned"}
	}

	sessionKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, encKey, nil)
	if err != nil {
		return nil, &errs.ProtocolViolation{PeerID: -1, Reason: errs.MalformedPayload, Detail: "oaep unwrap failed: " + err.Error()}
	}

	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return nil, &errs.CryptoError{Op: "aes.NewCipher", Err: err}
	}
	padded := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, fixedIV).CryptBlocks(padded, ct)

	return unpadMessage(padded)
}

// padMessage builds pad_prefix(1 byte) + m + filler so the result is a whole
// number of AES blocks: filler_len = ((16 - (|m| mod 16)) - 1) mod 16.
func padMessage(m []byte) []byte {
	fillerLen := (aesBlockSize - (len(m) % aesBlockSize) - 1 + aesBlockSize) % aesBlockSize
	out := make([]byte, 0, 1+len(m)+fillerLen)
	out = append(out, byte(fillerLen))
	out = append(out, m...)
	for i := 0; i < fillerLen; i++ {
		out = append(out, 'X')
	}
	return out
}

// unpadMessage reverses padMessage, validating the filler-length prefix.
func unpadMessage(padded []byte) ([]byte, error) {
	if len(padded) == 0 {
		return nil, &errs.ProtocolViolation{PeerID: -1, Reason: errs.MalformedPayload, Detail: "empty padded plaintext"}
	}
	fillerLen := int(padded[0])
	body := padded[1:]
	if fillerLen > len(body) {
		return nil, &errs.ProtocolViolation{PeerID: -1, Reason: errs.MalformedPayload, Detail: "filler length exceeds body"}
	}
	return body[:len(body)-fillerLen], nil
}

// sha1Sum returns the SHA-1 digest the wire-mandated signature scheme signs.
func sha1Sum(m []byte) []byte {
	h := sha1.Sum(m) //nolint:gosec // wire-mandated digest
	return h[:]
}
