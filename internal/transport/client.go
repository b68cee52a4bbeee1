package transport

import (
	"context"
	"math/rand"
	"net"
	"time"

	"go.uber.org/zap"

	"dissent/internal/errs"
)

// Client is a reconnecting point-to-point sender. It keeps its connection
// open across Sends until Close; shuffle.TCPNet and Broadcast create a
// fresh Client for each message and close it after the one Send.
type Client struct {
	addr       string
	maxRetries int
	log        *zap.Logger

	conn net.Conn
}

// NewClient returns a Client that will dial addr lazily on first Send,
// retrying up to maxRetries times with randomized 5-10s backoff (spec
// §5.1) before giving up.
func NewClient(addr string, maxRetries int, log *zap.Logger) *Client {
	return &Client{addr: addr, maxRetries: maxRetries, log: log}
}

// Send frames and writes payload, dialing or redialing as needed. A write
// failure drops the stale connection so the next Send redials from
// scratch.
func (c *Client) Send(ctx context.Context, payload []byte) error {
	if c.conn == nil {
		if err := c.dial(ctx); err != nil {
			return err
		}
	}
	if err := WriteFrame(c.conn, payload); err != nil {
		_ = c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := 5*time.Second + time.Duration(rand.Intn(5000))*time.Millisecond
			c.log.Warn("retrying dial", zap.String("addr", c.addr), zap.Int("attempt", attempt), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return &errs.TransportError{Op: "dial " + c.addr, Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}
		d := net.Dialer{}
		conn, err := d.DialContext(ctx, "tcp", c.addr)
		if err == nil {
			c.conn = conn
			return nil
		}
		lastErr = err
	}
	return &errs.TransportError{Op: "dial " + c.addr, Err: lastErr}
}

// Close releases the underlying connection, if any.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
