package bulk

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"dissent/internal/errs"
)

func TestPadDeterministicForSameSeed(t *testing.T) {
	seed, err := drawSeed()
	require.NoError(t, err)

	a, hashA, err := pad(seed, 128)
	require.NoError(t, err)
	b, hashB, err := pad(seed, 128)
	require.NoError(t, err)

	require.True(t, bytes.Equal(a, b))
	require.True(t, bytes.Equal(hashA, hashB))
}

func TestXorSelfInverse(t *testing.T) {
	a := []byte("some plaintext message, padded ")
	seed, err := drawSeed()
	require.NoError(t, err)
	padBytes, _, err := pad(seed, len(a))
	require.NoError(t, err)

	masked, err := xor(a, padBytes)
	require.NoError(t, err)
	unmasked, err := xor(masked, padBytes)
	require.NoError(t, err)

	require.True(t, bytes.Equal(a, unmasked))
}

func TestXorRejectsLengthMismatch(t *testing.T) {
	_, err := xor([]byte("short"), []byte("much much longer buffer"))
	require.Error(t, err)

	var pv *errs.ProtocolViolation
	require.ErrorAs(t, err, &pv)
	require.Equal(t, errs.MalformedPayload, pv.Reason)
}

func TestTwoSeedsProduceDifferentPads(t *testing.T) {
	seedA, err := drawSeed()
	require.NoError(t, err)
	seedB, err := drawSeed()
	require.NoError(t, err)

	padA, _, err := pad(seedA, 64)
	require.NoError(t, err)
	padB, _, err := pad(seedB, 64)
	require.NoError(t, err)

	require.False(t, bytes.Equal(padA, padB))
}
