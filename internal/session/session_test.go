package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"dissent/internal/primitives"
	"dissent/internal/wire"
)

func TestKeyBookAddAndComplete(t *testing.T) {
	priv, err := primitives.GenerateKeyPair()
	require.NoError(t, err)
	sec, err := primitives.GenerateKeyPair()
	require.NoError(t, err)

	primaryPEM, err := wire.EncodePublicKey(&priv.PublicKey)
	require.NoError(t, err)
	secondaryPEM, err := wire.EncodePublicKey(&sec.PublicKey)
	require.NoError(t, err)

	kb := NewKeyBook(1)
	require.NoError(t, kb.Add(0, wire.KeyBookEntry{PrimaryPub: primaryPEM, SecondaryPub: secondaryPEM}))
	require.True(t, kb.Complete())
}

func TestKeyBookIncompleteUntilEveryoneAdded(t *testing.T) {
	kb := NewKeyBook(2)
	require.False(t, kb.Complete())
}

func TestCleanupAggregatorRunsAllAndAggregates(t *testing.T) {
	var agg CleanupAggregator
	calls := 0
	agg.Defer(func() error { calls++; return nil })
	agg.Defer(func() error { calls++; return errors.New("boom") })
	agg.Defer(func() error { calls++; return nil })

	err := agg.Run()
	require.Error(t, err)
	require.Equal(t, 3, calls)
}

func TestScratchDirCreateAndCleanup(t *testing.T) {
	base := t.TempDir()
	dir, err := NewScratchDir(base)
	require.NoError(t, err)
	require.DirExists(t, dir)

	require.NoError(t, CleanupScratch(dir))
	require.NoDirExists(t, dir)
}
