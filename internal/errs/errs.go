// Package errs defines the round-abort error taxonomy shared by every engine.
package errs

import "fmt"

// Reason classifies why a ProtocolViolation was raised.
type Reason string

const (
	BadSignature      Reason = "BadSignature"
	RoundMismatch     Reason = "RoundMismatch"
	MissingCiphertext Reason = "MissingCiphertext"
	BadHash           Reason = "BadHash"
	GoFalse           Reason = "GoFalse"
	MalformedPayload  Reason = "MalformedPayload"
	DuplicateCipher   Reason = "DuplicateCiphertext"
)

// TransportError wraps a connect/recv/send failure. Fatal outside phase 1's
// bounded-retry window.
type TransportError struct {
	Peer int
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Peer >= 0 {
		return fmt.Sprintf("transport: %s (peer %d): %v", e.Op, e.Peer, e.Err)
	}
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolViolation is raised whenever a peer's behavior fails a protocol
// check. It is always fatal and always names the offending id when known.
type ProtocolViolation struct {
	PeerID int
	Reason Reason
	Detail string
}

func (e *ProtocolViolation) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("protocol violation by peer %d: %s (%s)", e.PeerID, e.Reason, e.Detail)
	}
	return fmt.Sprintf("protocol violation by peer %d: %s", e.PeerID, e.Reason)
}

// CryptoError wraps a library-level cryptographic failure not attributable to
// any specific peer.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string { return fmt.Sprintf("crypto: %s: %v", e.Op, e.Err) }
func (e *CryptoError) Unwrap() error { return e.Err }

// LocalIoError wraps a local filesystem/OS failure not attributable to any peer.
type LocalIoError struct {
	Op  string
	Err error
}

func (e *LocalIoError) Error() string { return fmt.Sprintf("local io: %s: %v", e.Op, e.Err) }
func (e *LocalIoError) Unwrap() error { return e.Err }

// RoundError is the structured abort record a round yields to its caller: the
// variant, the phase number it happened in, and (for ProtocolViolation) the
// blamed peer id.
type RoundError struct {
	Phase int
	Err   error
}

func (e *RoundError) Error() string {
	return fmt.Sprintf("round aborted in phase %d: %v", e.Phase, e.Err)
}

func (e *RoundError) Unwrap() error { return e.Err }

// BlamedPeer returns the offending peer id and true if Err is a ProtocolViolation.
func (e *RoundError) BlamedPeer() (int, bool) {
	var pv *ProtocolViolation
	if asProtocolViolation(e.Err, &pv) {
		return pv.PeerID, true
	}
	return -1, false
}

func asProtocolViolation(err error, target **ProtocolViolation) bool {
	for err != nil {
		if pv, ok := err.(*ProtocolViolation); ok {
			*target = pv
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
