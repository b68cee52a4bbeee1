package wire

import (
	"encoding/binary"

	"dissent/internal/errs"
)

// PadToLength implements the SERIALIZE((actual_len, plaintext+'X'*fill))
// scheme spec §5.2 uses for onion payloads: a 4-byte big-endian length
// prefix followed by the plaintext, padded with 'X' bytes out to total.
// Every onion layer is padded to the same total so peeling a layer never
// leaks which participant's message is shorter.
func PadToLength(plaintext []byte, total int) ([]byte, error) {
	if len(plaintext)+4 > total {
		return nil, &errs.LocalIoError{Op: "wire.PadToLength", Err: errTooLong(len(plaintext), total)}
	}
	out := make([]byte, total)
	binary.BigEndian.PutUint32(out[:4], uint32(len(plaintext)))
	copy(out[4:], plaintext)
	for i := 4 + len(plaintext); i < total; i++ {
		out[i] = 'X'
	}
	return out, nil
}

// Unpad reverses PadToLength, trusting the embedded length prefix but
// bounds-checking it against the padded buffer's own size so a peer cannot
// claim a length that reads past the buffer.
func Unpad(padded []byte) ([]byte, error) {
	if len(padded) < 4 {
		return nil, &errs.ProtocolViolation{PeerID: -1, Reason: errs.MalformedPayload, Detail: "padded buffer shorter than length prefix"}
	}
	n := binary.BigEndian.Uint32(padded[:4])
	if int(n) > len(padded)-4 {
		return nil, &errs.ProtocolViolation{PeerID: -1, Reason: errs.MalformedPayload, Detail: "embedded length exceeds buffer"}
	}
	return padded[4 : 4+n], nil
}

type lengthError struct {
	have, max int
}

func (e *lengthError) Error() string {
	return "plaintext too long for padded length"
}

func errTooLong(have, max int) error {
	return &lengthError{have: have, max: max}
}
