package bulk

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dissent/internal/errs"
	"dissent/internal/primitives"
	"dissent/internal/session"
	"dissent/internal/wire"
)

func buildRoster(t *testing.T, n int) []*session.Participant {
	t.Helper()
	parts := make([]*session.Participant, n)
	peers := make(map[int]session.Peer, n)
	for i := 0; i < n; i++ {
		peers[i] = session.Peer{ID: i, IP: "127.0.0.1", Port: 9100 + i}
		parts[i] = &session.Participant{ID: i, N: n, RoundID: 7, Log: zap.NewNop()}
	}
	for i := range parts {
		parts[i].Peers = peers
	}
	return parts
}

func TestBulkRoundHappyPath(t *testing.T) {
	const n = 3
	const slotLen = 64
	parts := buildRoster(t, n)
	hub := newFakeHub(n)

	messages := [][]byte{
		[]byte("alice's bulk message"),
		[]byte("bob's bulk message"),
		[]byte("carol's bulk message"),
	}

	type result struct {
		out [][]byte
		err error
	}
	results := make(chan result, n)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	for i := 0; i < n; i++ {
		i := i
		go func() {
			net := &fakeNet{id: i, n: n, hub: hub}
			metrics := session.NewRoundMetrics(zap.NewNop())
			eng := NewEngine(parts[i], net, metrics)
			out, err := eng.Run(ctx, messages[i], slotLen)
			results <- result{out: out, err: err}
		}()
	}

	var last [][]byte
	for i := 0; i < n; i++ {
		r := <-results
		require.NoError(t, r.err)
		last = r.out
	}

	require.Len(t, last, n)
	got := make([]string, len(last))
	for i, b := range last {
		got[i] = string(b)
	}
	want := make([]string, len(messages))
	for i, b := range messages {
		want[i] = string(b)
	}
	sort.Strings(got)
	sort.Strings(want)
	require.Equal(t, want, got)
}

// TestPhase3TransmitDetectsBadPRGHash covers spec scenario 6: a descriptor
// author publishes a pad-commitment hash that doesn't match the seed it
// actually encrypted for its trustee, so the trustee's own PRG draw during
// Transmit disagrees with the committed hash before any network exchange
// happens.
func TestPhase3TransmitDetectsBadPRGHash(t *testing.T) {
	parts := buildRoster(t, 2)
	hub := newFakeHub(2)

	trustee := NewEngine(parts[0], &fakeNet{id: 0, n: 2, hub: hub}, session.NewRoundMetrics(zap.NewNop()))
	var err error
	trustee.myKey1, err = primitives.GenerateKeyPair()
	require.NoError(t, err)

	seed, err := drawSeed()
	require.NoError(t, err)
	encSeed, err := primitives.RSAEncrypt(&trustee.myKey1.PublicKey, seed)
	require.NoError(t, err)

	ownSlotDesc, err := wire.Serialize(descriptorPayload{SlotLen: 64, Cipher: make([]byte, 64)})
	require.NoError(t, err)
	badDesc, err := wire.Serialize(descriptorPayload{
		SlotLen:   64,
		Cipher:    make([]byte, 64),
		EncSeeds:  map[int][]byte{0: encSeed},
		PadHashes: map[int][]byte{0: []byte("not the real pad hash")},
	})
	require.NoError(t, err)

	trustee.slots = [][]byte{ownSlotDesc, badDesc}
	trustee.mySlot = 0

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = trustee.phase3Transmit(ctx)
	require.Error(t, err)
	var pv *errs.ProtocolViolation
	require.ErrorAs(t, err, &pv)
	require.Equal(t, errs.BadHash, pv.Reason)
}
