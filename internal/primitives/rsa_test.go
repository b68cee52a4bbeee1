package primitives

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRSAEncryptDecryptRoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair()
	require.NoError(t, err)

	for l := 0; l < 96; l++ {
		m := make([]byte, l)
		for i := range m {
			m[i] = byte(i)
		}
		ct, err := RSAEncrypt(&priv.PublicKey, m)
		require.NoError(t, err)

		got, err := RSADecrypt(priv, ct)
		require.NoError(t, err)
		require.Equal(t, m, got, "length %d", l)
	}
}

func TestRSADecryptRejectsTruncatedCiphertext(t *testing.T) {
	priv, err := GenerateKeyPair()
	require.NoError(t, err)

	_, err = RSADecrypt(priv, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestSignVerify(t *testing.T) {
	priv, err := GenerateKeyPair()
	require.NoError(t, err)

	msg := []byte("phase1 secondary pub announcement")
	sig, err := Sign(priv, msg)
	require.NoError(t, err)
	require.True(t, Verify(&priv.PublicKey, msg, sig))
	require.False(t, Verify(&priv.PublicKey, []byte("tampered"), sig))
}
