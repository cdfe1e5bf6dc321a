package adapters

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akarpov/agora/internal/core"
)

type fakeWSConn struct {
	mu     sync.Mutex
	wrote  [][]byte
	closed bool
}

func (c *fakeWSConn) ReadMessage() (int, []byte, error) {
	return 0, nil, errors.New("not used")
}

func (c *fakeWSConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("use of closed connection")
	}
	c.wrote = append(c.wrote, data)
	return nil
}

func (c *fakeWSConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeWSConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeWSConn) written() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.wrote)
}

func TestTrySendDuringTeardownNeverPanics(t *testing.T) {
	req := require.New(t)
	ws := &fakeWSConn{}
	conn := NewWSConnection(ws, 4, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	conn.StartWriteLoop(ctx)

	// Hammer TrySend from several goroutines while teardown runs. Any
	// send on a closed channel would panic and fail the test.
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < 5000; i++ {
				if err := conn.TrySend(core.Frame(`{"type":"ping"}`)); errors.Is(err, ErrClosed) {
					return
				}
			}
		}()
	}
	close(start)
	cancel()
	wg.Wait()

	req.Eventually(func() bool {
		return errors.Is(conn.TrySend(core.Frame(`{}`)), ErrClosed)
	}, time.Second, time.Millisecond)
}

func TestCloseIsIdempotent(t *testing.T) {
	req := require.New(t)
	conn := NewWSConnection(&fakeWSConn{}, 1, time.Second)
	conn.Close()
	conn.Close()
	req.ErrorIs(conn.TrySend(core.Frame(`{}`)), ErrClosed)
}

func TestBufferedFramesAreWrittenInOrder(t *testing.T) {
	req := require.New(t)
	ws := &fakeWSConn{}
	conn := NewWSConnection(ws, 8, time.Second)

	req.NoError(conn.TrySend(core.Frame(`{"n":1}`)))
	req.NoError(conn.TrySend(core.Frame(`{"n":2}`)))

	ctx, cancel := context.WithCancel(context.Background())
	conn.StartWriteLoop(ctx)
	defer cancel()

	req.Eventually(func() bool { return ws.written() == 2 }, time.Second, time.Millisecond)
}

func TestTrySendBackpressureOnFullBuffer(t *testing.T) {
	req := require.New(t)
	conn := NewWSConnection(&fakeWSConn{}, 1, time.Second)

	req.NoError(conn.TrySend(core.Frame(`{}`)))
	req.ErrorIs(conn.TrySend(core.Frame(`{}`)), ErrBackpressure)
}
