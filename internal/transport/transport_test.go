package transport

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("phase3 bag contents")
	require.NoError(t, WriteFrame(&buf, payload))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, make([]byte, 0)))
	oversized := buf.Bytes()
	oversized[0] = 0xFF // corrupt the length prefix to something past maxFrameLen

	_, err := ReadFrame(bytes.NewReader(oversized))
	require.Error(t, err)
}

func TestClientServerSendReceive(t *testing.T) {
	log := zap.NewNop()
	srv, err := Listen("127.0.0.1:0", log)
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resultCh := make(chan []byte, 1)
	errCh := make(chan error, 1)
	go func() {
		conn, payload, err := srv.AcceptOne(ctx)
		if err != nil {
			errCh <- err
			return
		}
		defer conn.Close()
		resultCh <- payload
	}()

	client := NewClient(srv.Addr().String(), 1, log)
	defer client.Close()
	require.NoError(t, client.Send(ctx, []byte("hello ring")))

	select {
	case got := <-resultCh:
		require.Equal(t, []byte("hello ring"), got)
	case err := <-errCh:
		t.Fatalf("accept failed: %v", err)
	case <-ctx.Done():
		t.Fatal("timed out waiting for frame")
	}
}

func TestFanInCollectsAllPayloads(t *testing.T) {
	log := zap.NewNop()
	srv, err := Listen("127.0.0.1:0", log)
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const n = 3
	doneCh := make(chan [][]byte, 1)
	go func() {
		got, err := srv.FanIn(ctx, n)
		require.NoError(t, err)
		doneCh <- got
	}()

	for i := 0; i < n; i++ {
		c := NewClient(srv.Addr().String(), 1, log)
		require.NoError(t, c.Send(ctx, []byte{byte(i)}))
		require.NoError(t, c.Close())
	}

	select {
	case got := <-doneCh:
		sum := 0
		for _, p := range got {
			sum += int(p[0])
		}
		require.Equal(t, 0+1+2, sum)
	case <-ctx.Done():
		t.Fatal("timed out waiting for fan-in")
	}
}
