package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dissent/internal/primitives"
)

func TestSealOpenRoundTrip(t *testing.T) {
	priv, err := primitives.GenerateKeyPair()
	require.NoError(t, err)

	env, err := Seal(priv, 3, []byte("phase1 report payload"))
	require.NoError(t, err)

	payload, err := Open(&priv.PublicKey, env)
	require.NoError(t, err)
	require.Equal(t, []byte("phase1 report payload"), payload)
}

func TestOpenRejectsTamperedPayload(t *testing.T) {
	priv, err := primitives.GenerateKeyPair()
	require.NoError(t, err)

	env, err := Seal(priv, 3, []byte("original"))
	require.NoError(t, err)
	env.Payload = []byte("tampered")

	_, err = Open(&priv.PublicKey, env)
	require.Error(t, err)
}

func TestWrapUnwrapRound(t *testing.T) {
	re := WrapRound(7, []byte("inner"))
	inner, err := Unwrap(re, 7)
	require.NoError(t, err)
	require.Equal(t, []byte("inner"), inner)

	_, err = Unwrap(re, 8)
	require.Error(t, err)
}

func TestPublicKeyEncodeDecodeRoundTrip(t *testing.T) {
	priv, err := primitives.GenerateKeyPair()
	require.NoError(t, err)

	b, err := EncodePublicKey(&priv.PublicKey)
	require.NoError(t, err)

	pub, err := DecodePublicKey(b)
	require.NoError(t, err)
	require.Equal(t, priv.PublicKey, *pub)
}

func TestPrivateKeyEncodeDecodeRoundTrip(t *testing.T) {
	priv, err := primitives.GenerateKeyPair()
	require.NoError(t, err)

	b := EncodePrivateKey(priv)
	got, err := DecodePrivateKey(b)
	require.NoError(t, err)
	require.Equal(t, priv.D, got.D)
}

func TestPadUnpadRoundTrip(t *testing.T) {
	for _, l := range []int{0, 1, 15, 100} {
		msg := make([]byte, l)
		for i := range msg {
			msg[i] = byte(i)
		}
		padded, err := PadToLength(msg, 200)
		require.NoError(t, err)
		require.Len(t, padded, 200)

		got, err := Unpad(padded)
		require.NoError(t, err)
		require.Equal(t, msg, got)
	}
}

func TestPadToLengthRejectsOversizedPlaintext(t *testing.T) {
	_, err := PadToLength(make([]byte, 300), 200)
	require.Error(t, err)
}

func TestUnpadRejectsTruncatedBuffer(t *testing.T) {
	_, err := Unpad([]byte{0, 0})
	require.Error(t, err)
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	in := Phase1Report{ID: 2, RoundID: 9, IP: "127.0.0.1", Port: 9001, PrimaryPub: []byte("pp"), SecondaryPub: []byte("sp")}
	b, err := Serialize(in)
	require.NoError(t, err)

	var out Phase1Report
	require.NoError(t, Deserialize(b, &out))
	require.Equal(t, in, out)
}
