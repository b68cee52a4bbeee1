package shuffle

import (
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/require"

	"dissent/internal/primitives"
)

func genKeys(t *testing.T, n int) ([]*rsa.PrivateKey, []*rsa.PublicKey) {
	t.Helper()
	privs := make([]*rsa.PrivateKey, n)
	pubs := make([]*rsa.PublicKey, n)
	for i := 0; i < n; i++ {
		priv, err := primitives.GenerateKeyPair()
		require.NoError(t, err)
		privs[i] = priv
		pubs[i] = &priv.PublicKey
	}
	return privs, pubs
}

func TestBuildOnionPeelOnionLayerOrder(t *testing.T) {
	privs, pubs := genKeys(t, 3)

	onion, err := BuildOnion(pubs, []byte("hello ring"))
	require.NoError(t, err)

	layer, err := PeelOnion(privs[0], onion)
	require.NoError(t, err)
	layer, err = PeelOnion(privs[1], layer)
	require.NoError(t, err)
	layer, err = PeelOnion(privs[2], layer)
	require.NoError(t, err)
	require.Equal(t, []byte("hello ring"), layer)
}

func TestPeelAllMatchesSequentialPeel(t *testing.T) {
	privs, pubs := genKeys(t, 4)

	onion, err := BuildOnion(pubs, []byte("message"))
	require.NoError(t, err)

	out, err := PeelAll(privs, onion)
	require.NoError(t, err)
	require.Equal(t, []byte("message"), out)
}
