package shuffle

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"dissent/internal/ring"
	"dissent/internal/session"
	"dissent/internal/transport"
)

// Net is everything a phase needs from the network, kept narrow so tests
// can drive the state machine over an in-memory fake instead of real
// sockets. The two shapes mirror the protocol's two communication
// patterns: leader-centric fan-in/broadcast (KeyExchange, Submit, Verify,
// Reveal) and ring bag-passing (Anonymize).
type Net interface {
	CollectFromAll(ctx context.Context) ([][]byte, error)
	SendToLeader(ctx context.Context, payload []byte) error
	BroadcastFromLeader(ctx context.Context, payload []byte) error
	RecvFromLeader(ctx context.Context) ([]byte, error)

	SendToNext(ctx context.Context, payload []byte) error
	RecvFromPrev(ctx context.Context) ([]byte, error)
}

const defaultMaxRetries = 3

// TCPNet is the real Net, built on internal/transport and the ring
// topology: one listener accepts every inbound connection a node receives
// (from the leader, from its ring predecessor, or — if this node is the
// leader — from every other participant), and outbound sends dial fresh
// reconnecting clients per destination.
type TCPNet struct {
	top   ring.Topology
	peers map[int]session.Peer // full roster, needed only for leader broadcast fan-out
	srv   *transport.Server
	log   *zap.Logger
}

// NewTCPNet binds listenAddr and returns a Net for top.
func NewTCPNet(top ring.Topology, peers map[int]session.Peer, listenAddr string, log *zap.Logger) (*TCPNet, error) {
	srv, err := transport.Listen(listenAddr, log)
	if err != nil {
		return nil, err
	}
	return &TCPNet{top: top, peers: peers, srv: srv, log: log}, nil
}

// Close releases the listener.
func (n *TCPNet) Close() error { return n.srv.Close() }

func addrOf(p session.Peer) string {
	return p.IP + ":" + strconv.Itoa(p.Port)
}

func (n *TCPNet) CollectFromAll(ctx context.Context) ([][]byte, error) {
	return n.srv.FanIn(ctx, n.top.N-1)
}

func (n *TCPNet) SendToLeader(ctx context.Context, payload []byte) error {
	c := transport.NewClient(addrOf(n.top.Leader), defaultMaxRetries, n.log)
	defer c.Close()
	return c.Send(ctx, payload)
}

func (n *TCPNet) BroadcastFromLeader(ctx context.Context, payload []byte) error {
	targets := ring.BroadcastTargets(n.peers)
	addrs := make([]string, len(targets))
	for i, p := range targets {
		addrs[i] = addrOf(p)
	}
	return transport.Broadcast(ctx, addrs, payload, defaultMaxRetries, n.log)
}

func (n *TCPNet) RecvFromLeader(ctx context.Context) ([]byte, error) {
	conn, payload, err := n.srv.AcceptOne(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return payload, nil
}

func (n *TCPNet) SendToNext(ctx context.Context, payload []byte) error {
	c := transport.NewClient(addrOf(n.top.Next), defaultMaxRetries, n.log)
	defer c.Close()
	return c.Send(ctx, payload)
}

func (n *TCPNet) RecvFromPrev(ctx context.Context) ([]byte, error) {
	conn, payload, err := n.srv.AcceptOne(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return payload, nil
}
