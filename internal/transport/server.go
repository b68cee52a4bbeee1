package transport

import (
	"context"
	"net"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dissent/internal/errs"
)

// Server accepts inbound framed connections on one listen address. The
// leader uses it to receive Phase1Reports, Phase2Submissions, Phase4GoVotes
// and Phase5Reveals from every other participant; a non-leader ring node
// uses it to receive its single predecessor connection.
type Server struct {
	ln  net.Listener
	log *zap.Logger
}

// Listen binds addr and returns a Server ready to Accept.
func Listen(addr string, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &errs.TransportError{Op: "listen " + addr, Err: err}
	}
	return &Server{ln: ln, log: log}, nil
}

// Addr reports the bound address, useful when addr was ":0".
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Close stops accepting new connections.
func (s *Server) Close() error { return s.ln.Close() }

// AcceptOne blocks for a single inbound connection and returns the first
// frame read from it alongside the connection, left open for the caller to
// close. ctx is not consulted: a pending Accept is not interrupted by
// cancellation.
func (s *Server) AcceptOne(ctx context.Context) (net.Conn, []byte, error) {
	conn, err := s.ln.Accept()
	if err != nil {
		return nil, nil, &errs.TransportError{Op: "accept", Err: err}
	}
	payload, err := ReadFrame(conn)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, payload, nil
}

// FanIn accepts exactly n inbound connections, reads one frame from each,
// and returns the payloads. Connections are closed once their frame is
// read; FanIn is used for the leader-collects-from-everyone shape of
// KeyExchange, Submit, Verify and Reveal.
func (s *Server) FanIn(ctx context.Context, n int) ([][]byte, error) {
	out := make([][]byte, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			conn, payload, err := s.AcceptOne(gctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			out[i] = payload
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Broadcast dials every address in addrs concurrently and sends payload to
// each, used by the leader to publish a KeyBookAnnounce, the final bag, or
// the collected votes and reveals to all participants at once.
func Broadcast(ctx context.Context, addrs []string, payload []byte, maxRetries int, log *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, addr := range addrs {
		addr := addr
		g.Go(func() error {
			c := NewClient(addr, maxRetries, log)
			defer c.Close()
			return c.Send(gctx, payload)
		})
	}
	return g.Wait()
}
