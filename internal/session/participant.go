package session

import (
	"go.uber.org/zap"
)

// Peer is one ring member's network address as published in its
// Phase1Report.
type Peer struct {
	ID   int
	IP   string
	Port int
}

// Participant is the local node's identity and round context, threaded
// through the shuffle and bulk engines. It holds no phase-specific state —
// that lives in each engine's own struct — only what every phase needs.
type Participant struct {
	ID      int
	N       int
	Leader  bool
	RoundID uint64

	Peers map[int]Peer // all ring members, including self and leader
	Log   *zap.Logger

	Scratch string // per-round scratch directory, see NewScratchDir
}

// LeaderPeer returns the designated leader (always id 0, per spec §4.5).
func (p *Participant) LeaderPeer() Peer {
	return p.Peers[0]
}

// IsLeader reports whether this participant is id 0.
func (p *Participant) IsLeader() bool {
	return p.ID == 0
}
