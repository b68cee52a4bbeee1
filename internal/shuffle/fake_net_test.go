package shuffle

import "context"

// fakeHub wires n in-process fakeNets together so engine_test can drive a
// full round without opening real sockets: one shared channel for
// leader fan-in, one broadcast channel per non-leader, and one ring
// channel per id for Anonymize's hop-to-hop passing.
type fakeHub struct {
	n         int
	collect   chan []byte
	broadcast []chan []byte // indexed by id, id 0 (leader) unused
	ring      []chan []byte // indexed by id: messages this id's predecessor sends it
}

func newFakeHub(n int) *fakeHub {
	h := &fakeHub{
		n:         n,
		collect:   make(chan []byte, n),
		broadcast: make([]chan []byte, n),
		ring:      make([]chan []byte, n),
	}
	for i := 0; i < n; i++ {
		h.broadcast[i] = make(chan []byte, 1)
		h.ring[i] = make(chan []byte, 1)
	}
	return h
}

type fakeNet struct {
	id  int
	n   int
	hub *fakeHub
}

func (f *fakeNet) CollectFromAll(ctx context.Context) ([][]byte, error) {
	out := make([][]byte, 0, f.n-1)
	for i := 0; i < f.n-1; i++ {
		select {
		case p := <-f.hub.collect:
			out = append(out, p)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

func (f *fakeNet) SendToLeader(ctx context.Context, payload []byte) error {
	select {
	case f.hub.collect <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeNet) BroadcastFromLeader(ctx context.Context, payload []byte) error {
	for id := 1; id < f.n; id++ {
		select {
		case f.hub.broadcast[id] <- payload:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *fakeNet) RecvFromLeader(ctx context.Context) ([]byte, error) {
	select {
	case p := <-f.hub.broadcast[f.id]:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeNet) SendToNext(ctx context.Context, payload []byte) error {
	next := (f.id + 1) % f.n
	select {
	case f.hub.ring[next] <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeNet) RecvFromPrev(ctx context.Context) ([]byte, error) {
	select {
	case p := <-f.hub.ring[f.id]:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
