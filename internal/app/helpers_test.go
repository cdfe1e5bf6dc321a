package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akarpov/agora/internal/core"
	"github.com/akarpov/agora/internal/domain"
	"github.com/akarpov/agora/internal/presence"
	"github.com/akarpov/agora/internal/store"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	broken bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return errors.New("broken pipe")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) decoded(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) last(t *testing.T) map[string]any {
	t.Helper()
	all := c.decoded(t)
	require.NotEmpty(t, all)
	return all[len(all)-1]
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func newTestRouter() *Router {
	return NewRouter(NewOrchestrator(), store.NewMemory(), presence.NewMemoryTracker(0))
}

// connect builds a session, binds it and joins it to origin the same way
// the WS controller does.
func connect(t *testing.T, r *Router, sid string, user *domain.User, origin domain.RoomID) (core.MemberSession, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	sess := core.NewMemberSession(core.SessionID(sid), user, conn)
	r.Orch.Connect(sess, nil)
	require.NoError(t, r.OnConnect(context.Background(), sess, origin))
	return sess, conn
}
