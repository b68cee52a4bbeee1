// Package vault protects an RSA private key at rest, adapting the teacher's
// env.enc format (env_encrypt.go: MAGIC|salt|nonce|len|ciphertext under
// Argon2id+XChaCha20-Poly1305) to hold a PEM-encoded key instead of the
// teacher's symmetric beacon/file keys. cmd/dissent-node uses it only for
// an optional operator identity fingerprint, never for protocol signing.
package vault

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"dissent/internal/errs"
	"dissent/internal/wire"
)

var magic = []byte("DSNT1")

const saltLen = 16

var hkdfInfo = []byte("dissent/vault/seal/v1")

// kdf derives a 32-byte XChaCha20-Poly1305 key from a passphrase and a
// random per-file salt. Argon2id (the teacher's own tuning, m=64MiB, t=2,
// p=1) does the slow, memory-hard passphrase stretching; HKDF-SHA256 then
// expands that output into a domain-separated key, the way the teacher's
// own `fingerprint.go`/`crypto.go` layer HKDF on top of a shared secret
// rather than using raw key material directly.
func kdf(pass, salt []byte) ([]byte, error) {
	master := argon2.IDKey(pass, salt, 2, 64*1024, 1, 32)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, salt, hkdfInfo), key); err != nil {
		return nil, &errs.CryptoError{Op: "hkdf expand", Err: err}
	}
	return key, nil
}

// Seal encrypts priv under pass and writes it to path as
// MAGIC|salt|nonce|plaintext_len|ciphertext.
func Seal(path string, pass []byte, priv *rsa.PrivateKey) error {
	plain := wire.EncodePrivateKey(priv)

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return &errs.CryptoError{Op: "vault: draw salt", Err: err}
	}
	key, err := kdf(pass, salt)
	if err != nil {
		return err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return &errs.CryptoError{Op: "chacha20poly1305.NewX", Err: err}
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return &errs.CryptoError{Op: "vault: draw nonce", Err: err}
	}
	ct := aead.Seal(nil, nonce, plain, nil)

	out := make([]byte, 0, len(magic)+saltLen+len(nonce)+4+len(ct))
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	var lbuf [4]byte
	binary.BigEndian.PutUint32(lbuf[:], uint32(len(plain)))
	out = append(out, lbuf[:]...)
	out = append(out, ct...)

	if err := os.WriteFile(path, out, 0o600); err != nil {
		return &errs.LocalIoError{Op: "vault: write " + path, Err: err}
	}
	return nil
}

// Open decrypts the identity key stored at path under pass.
func Open(path string, pass []byte) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.LocalIoError{Op: "vault: read " + path, Err: err}
	}
	minLen := len(magic) + saltLen + chacha20poly1305.NonceSizeX + 4
	if len(b) < minLen {
		return nil, &errs.LocalIoError{Op: "vault: open " + path, Err: errors.New("file too short to be a valid vault")}
	}
	if string(b[:len(magic)]) != string(magic) {
		return nil, &errs.LocalIoError{Op: "vault: open " + path, Err: errors.New("bad vault magic")}
	}
	offset := len(magic)
	salt := b[offset : offset+saltLen]
	offset += saltLen
	nonce := b[offset : offset+chacha20poly1305.NonceSizeX]
	offset += chacha20poly1305.NonceSizeX
	offset += 4 // plaintext length, unused on read; kept for forward compatibility
	ct := b[offset:]

	key, err := kdf(pass, salt)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, &errs.CryptoError{Op: "chacha20poly1305.NewX", Err: err}
	}
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, &errs.LocalIoError{Op: "vault: open " + path, Err: errors.New("decrypt failed, wrong passphrase or corrupted file")}
	}
	return wire.DecodePrivateKey(plain)
}
