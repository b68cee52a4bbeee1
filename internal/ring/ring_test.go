package ring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dissent/internal/session"
)

func peerSet(n int) map[int]session.Peer {
	out := make(map[int]session.Peer, n)
	for i := 0; i < n; i++ {
		out[i] = session.Peer{ID: i, IP: "127.0.0.1", Port: 9000 + i}
	}
	return out
}

func TestBuildWrapsAroundRing(t *testing.T) {
	peers := peerSet(4)

	top := Build(3, peers)
	require.Equal(t, 0, top.Next.ID)
	require.Equal(t, 2, top.Prev.ID)
	require.False(t, top.IsLeader)

	leaderTop := Build(0, peers)
	require.True(t, leaderTop.IsLeader)
	require.Equal(t, 3, leaderTop.Prev.ID)
	require.Equal(t, 1, leaderTop.Next.ID)
}

func TestBroadcastTargetsExcludesLeader(t *testing.T) {
	peers := peerSet(4)
	targets := BroadcastTargets(peers)
	require.Len(t, targets, 3)
	for _, p := range targets {
		require.NotEqual(t, 0, p.ID)
	}
}
