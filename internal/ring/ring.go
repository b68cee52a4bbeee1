// Package ring wires the leader/non-leader topology spec §4.5 describes:
// id 0 is always the leader and collects from / broadcasts to everyone;
// every id also has a next and previous neighbour for the Anonymize
// ring-pass.
package ring

import "dissent/internal/session"

// Topology describes one participant's position in the ring for a round.
type Topology struct {
	Self     session.Peer
	Next     session.Peer
	Prev     session.Peer
	Leader   session.Peer
	IsLeader bool
	N        int
}

// Build derives a Topology for id from the full peer set, indexed 0..n-1
// around the ring in ascending id order. The leader (id 0) is both a ring
// member and the fan-in/broadcast hub for KeyExchange, Submit, Verify and
// Reveal.
func Build(id int, peers map[int]session.Peer) Topology {
	n := len(peers)
	nextID := (id + 1) % n
	prevID := (id - 1 + n) % n
	return Topology{
		Self:     peers[id],
		Next:     peers[nextID],
		Prev:     peers[prevID],
		Leader:   peers[0],
		IsLeader: id == 0,
		N:        n,
	}
}

// BroadcastTargets returns every non-leader participant's address, in id
// order, for the leader's use when publishing a KeyBookAnnounce or the
// final bag.
func BroadcastTargets(peers map[int]session.Peer) []session.Peer {
	out := make([]session.Peer, 0, len(peers)-1)
	for id := 1; id < len(peers); id++ {
		out = append(out, peers[id])
	}
	return out
}
