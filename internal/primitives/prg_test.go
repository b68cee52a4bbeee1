package primitives

import (
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // matches the wire-mandated rolling digest under test
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPRGHashMatchesDrainedBytes(t *testing.T) {
	seed := make([]byte, SessionKeyLen)
	_, err := rand.Read(seed)
	require.NoError(t, err)

	for _, l := range []int{0, 1, 15, 16, 17, 31, 32, 33, 100, 1000} {
		prg, err := NewPRG(seed)
		require.NoError(t, err)

		drained := prg.Read(l)
		want := sha1.Sum(drained) //nolint:gosec
		require.Equal(t, want[:], prg.Hash(), "length %d", l)
	}
}

func TestPRGDeterministicPerSeed(t *testing.T) {
	seed := []byte("a fixed 32 byte seed for prg!!!!")
	require.Len(t, seed, 32)

	a, err := NewPRG(seed)
	require.NoError(t, err)
	b, err := NewPRG(seed)
	require.NoError(t, err)

	require.Equal(t, a.Read(50), b.Read(50))
}

func TestPRGDistinctSeedsDiverge(t *testing.T) {
	a, err := NewPRG([]byte("seed-one-32-bytes-padded-zeros!!"))
	require.NoError(t, err)
	b, err := NewPRG([]byte("seed-two-32-bytes-padded-zeros!!"))
	require.NoError(t, err)

	require.NotEqual(t, a.Read(32), b.Read(32))
}
