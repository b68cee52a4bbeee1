package wire

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"

	"dissent/internal/errs"
)

// EncodePublicKey PEM-encodes an RSA public key for transport inside a
// Phase1Report or KeyBookAnnounce, matching the teacher's identity.go
// convention of shipping PEM blocks rather than raw DER over the wire.
func EncodePublicKey(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, &errs.LocalIoError{Op: "x509.MarshalPKIXPublicKey", Err: err}
	}
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: der}), nil
}

// DecodePublicKey reverses EncodePublicKey. A malformed block is a protocol
// violation, not a local error: the bytes came from a peer.
func DecodePublicKey(b []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, &errs.ProtocolViolation{PeerID: -1, Reason: errs.MalformedPayload, Detail: "no PEM block in public key"}
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, &errs.ProtocolViolation{PeerID: -1, Reason: errs.MalformedPayload, Detail: err.Error()}
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, &errs.ProtocolViolation{PeerID: -1, Reason: errs.MalformedPayload, Detail: "public key is not RSA"}
	}
	return pub, nil
}

// EncodePrivateKey PEM-encodes an RSA private key. Used only for the Phase5
// reveal of a secondary key and for the vault's at-rest identity blob; never
// placed on the wire unencrypted outside that reveal.
func EncodePrivateKey(priv *rsa.PrivateKey) []byte {
	der := x509.MarshalPKCS1PrivateKey(priv)
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})
}

// DecodePrivateKey reverses EncodePrivateKey.
func DecodePrivateKey(b []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, &errs.ProtocolViolation{PeerID: -1, Reason: errs.MalformedPayload, Detail: "no PEM block in private key"}
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, &errs.ProtocolViolation{PeerID: -1, Reason: errs.MalformedPayload, Detail: err.Error()}
	}
	return priv, nil
}
