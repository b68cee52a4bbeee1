// Package wire implements the canonical self-describing serializer (spec
// §6), the signed and round-tagged envelopes, and the tagged per-phase
// message types that replace the original's untyped heterogeneous tuples
// (Design Notes §9).
package wire

import (
	"encoding/json"

	"dissent/internal/errs"
)

// Serialize is the canonical, deterministic encoder spec §6 requires: a
// byte-identical encoding across runs for any composite value. Go's
// encoding/json satisfies this directly — struct fields encode in
// declaration order and map keys are sorted lexicographically — so no
// competing binary codec is introduced (the teacher's own wire format is
// JSON throughout: ChatMsg, FileManifest, Beacon, onionPacket).
func Serialize(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &errs.LocalIoError{Op: "wire.Serialize", Err: err}
	}
	return b, nil
}

// Deserialize reverses Serialize, reporting a MalformedPayload violation on
// failure since malformed wire data is always attributable to whatever sent
// it.
func Deserialize(b []byte, v any) error {
	if err := json.Unmarshal(b, v); err != nil {
		return &errs.ProtocolViolation{PeerID: -1, Reason: errs.MalformedPayload, Detail: err.Error()}
	}
	return nil
}
