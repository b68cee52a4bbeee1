// Package transport implements the length-prefixed socket framing spec §5.1
// runs over, plus the reconnecting client and leader-side accept server
// built on top of it. Framing mirrors the teacher's own length-delimited
// discovery packets (discover.go) generalized from UDP datagrams to a TCP
// byte stream.
package transport

import (
	"encoding/binary"
	"io"

	"dissent/internal/errs"
)

const maxFrameLen = 64 << 20 // 64 MiB: generous upper bound on a single onion bag or descriptor set

// WriteFrame writes payload to w prefixed with its length as a big-endian
// uint64, per spec §5.1.
func WriteFrame(w io.Writer, payload []byte) error {
	var hdr [8]byte
	binary.BigEndian.PutUint64(hdr[:], uint64(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return &errs.TransportError{Op: "write frame header", Err: err}
	}
	if _, err := w.Write(payload); err != nil {
		return &errs.TransportError{Op: "write frame body", Err: err}
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r. A frame claiming a
// length beyond maxFrameLen is treated as a malformed-peer condition rather
// than a transport fault, since a well-behaved peer never sends one.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, &errs.TransportError{Op: "read frame header", Err: err}
	}
	n := binary.BigEndian.Uint64(hdr[:])
	if n > maxFrameLen {
		return nil, &errs.ProtocolViolation{PeerID: -1, Reason: errs.MalformedPayload, Detail: "frame length exceeds maximum"}
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, &errs.TransportError{Op: "read frame body", Err: err}
	}
	return buf, nil
}
