package wire

import (
	"crypto/rsa"

	"dissent/internal/errs"
	"dissent/internal/primitives"
)

// SignedEnvelope is the (sender_id, payload, signature) tuple spec §6
// mandates around every message a participant originates: the signature
// covers the serialized payload bytes exactly, so verification never
// depends on how the payload happens to be re-encoded downstream.
type SignedEnvelope struct {
	SenderID  int    `json:"sender_id"`
	Payload   []byte `json:"payload"`
	Signature []byte `json:"signature"`
}

// Seal signs payload with priv and wraps it as a SignedEnvelope attributed
// to senderID.
func Seal(priv *rsa.PrivateKey, senderID int, payload []byte) (SignedEnvelope, error) {
	sig, err := primitives.Sign(priv, payload)
	if err != nil {
		return SignedEnvelope{}, err
	}
	return SignedEnvelope{SenderID: senderID, Payload: payload, Signature: sig}, nil
}

// Open verifies env's signature against pub and, on success, returns the
// enclosed payload. A failed signature is always a BadSignature
// ProtocolViolation blaming env.SenderID — this is the one check every
// phase performs before trusting anything else in a received message.
func Open(pub *rsa.PublicKey, env SignedEnvelope) ([]byte, error) {
	if !primitives.Verify(pub, env.Payload, env.Signature) {
		return nil, &errs.ProtocolViolation{PeerID: env.SenderID, Reason: errs.BadSignature}
	}
	return env.Payload, nil
}

// RoundEnvelope stamps an inner payload with the round it belongs to (spec
// §6), so Unwrap rejects a stray message from a previous or concurrent
// round outright. The shuffle and bulk engines do not wrap their phase
// messages in it; each of those messages carries its own RoundID field.
type RoundEnvelope struct {
	RoundID uint64 `json:"round_id"`
	Inner   []byte `json:"inner"`
}

// WrapRound tags payload with roundID.
func WrapRound(roundID uint64, payload []byte) RoundEnvelope {
	return RoundEnvelope{RoundID: roundID, Inner: payload}
}

// Unwrap checks re belongs to wantRound and returns its inner payload.
func Unwrap(re RoundEnvelope, wantRound uint64) ([]byte, error) {
	if re.RoundID != wantRound {
		return nil, &errs.ProtocolViolation{PeerID: -1, Reason: errs.RoundMismatch, Detail: "unexpected round id"}
	}
	return re.Inner, nil
}
