package core

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akarpov/agora/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
	broken bool
	closed bool
}

func (c *fakeConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return errors.New("broken pipe")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) received() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

func newSession(sid string, user *domain.User) (MemberSession, *fakeConn) {
	conn := &fakeConn{}
	return NewMemberSession(SessionID(sid), user, conn), conn
}

func TestRoom_JoinIdempotent(t *testing.T) {
	req := require.New(t)

	room := NewRoomService(domain.ForumRoom())
	sess, _ := newSession("s1", nil)
	room.AddMember(sess)
	room.AddMember(sess)
	req.Equal(1, room.MemberCount())

	room.RemoveMember(sess.ID())
	room.RemoveMember(sess.ID()) // no-op if absent
	req.Equal(0, room.MemberCount())
}

func TestRoom_MembersIsSnapshot(t *testing.T) {
	req := require.New(t)

	room := NewRoomService(domain.ForumRoom())
	s1, _ := newSession("s1", nil)
	s2, _ := newSession("s2", nil)
	room.AddMember(s1)
	room.AddMember(s2)

	snap := room.Members()
	req.Len(snap, 2)

	// Mutations after the snapshot do not show up in it.
	room.RemoveMember(s1.ID())
	req.Len(snap, 2)
	req.Equal(1, room.MemberCount())
}

func TestRoom_BroadcastExcludesSender(t *testing.T) {
	req := require.New(t)

	room := NewRoomService(domain.ForumRoom())
	s1, c1 := newSession("s1", nil)
	s2, c2 := newSession("s2", nil)
	room.AddMember(s1)
	room.AddMember(s2)

	res := room.Broadcast(s1.ID(), Frame(`{"type":"x"}`))
	req.Equal(1, res.Delivered)
	req.Empty(res.Dropped)
	req.Empty(c1.received())
	req.Len(c2.received(), 1)
}

func TestRoom_SendAllIncludesSender(t *testing.T) {
	req := require.New(t)

	room := NewRoomService(domain.ForumRoom())
	s1, c1 := newSession("s1", nil)
	s2, c2 := newSession("s2", nil)
	room.AddMember(s1)
	room.AddMember(s2)

	res := room.SendAll(Frame(`{"type":"x"}`))
	req.Equal(2, res.Delivered)
	req.Len(c1.received(), 1)
	req.Len(c2.received(), 1)
}

func TestRoom_BrokenTransportDoesNotAbortFanout(t *testing.T) {
	req := require.New(t)

	room := NewRoomService(domain.ForumRoom())
	s1, c1 := newSession("s1", nil)
	s2, c2 := newSession("s2", nil)
	s3, c3 := newSession("s3", nil)
	c2.broken = true
	room.AddMember(s1)
	room.AddMember(s2)
	room.AddMember(s3)

	res := room.SendAll(Frame(`{"type":"x"}`))
	req.Equal(2, res.Delivered)
	req.Len(res.Dropped, 1)
	req.Equal(s2.ID(), res.Dropped[0].ID())
	req.Len(c1.received(), 1)
	req.Empty(c2.received())
	req.Len(c3.received(), 1)
}

func TestRoom_SendToUserTargetsAllTheirSessions(t *testing.T) {
	req := require.New(t)

	alice := &domain.User{ID: 1, Username: "alice"}
	bob := &domain.User{ID: 2, Username: "bob"}

	room := NewRoomService(domain.GroupCallRoom("tok"))
	a1, ca1 := newSession("a1", alice)
	a2, ca2 := newSession("a2", alice) // second tab
	b1, cb1 := newSession("b1", bob)
	anon, canon := newSession("x1", nil)
	room.AddMember(a1)
	room.AddMember(a2)
	room.AddMember(b1)
	room.AddMember(anon)

	res := room.SendToUser("alice", Frame(`{"type":"offer"}`))
	req.Equal(2, res.Delivered)
	req.Len(ca1.received(), 1)
	req.Len(ca2.received(), 1)
	req.Empty(cb1.received())
	req.Empty(canon.received())
}

func TestRoom_DeliveryOrderPerDestination(t *testing.T) {
	req := require.New(t)

	room := NewRoomService(domain.ForumRoom())
	s1, c1 := newSession("s1", nil)
	room.AddMember(s1)

	for i := 0; i < 10; i++ {
		payload, err := json.Marshal(map[string]int{"n": i})
		req.NoError(err)
		room.SendAll(Frame(payload))
	}

	got := c1.received()
	req.Len(got, 10)
	for i, f := range got {
		var m map[string]int
		req.NoError(json.Unmarshal(f, &m))
		req.Equal(i, m["n"])
	}
}

func TestRoomManager_LazyCreateAndEvict(t *testing.T) {
	req := require.New(t)

	mgr := NewRoomManager()
	rid := domain.CallRoom(42)
	_, ok := mgr.Get(rid)
	req.False(ok)

	room := mgr.GetOrCreate(rid)
	req.Same(room, mgr.GetOrCreate(rid))

	s1, _ := newSession("s1", nil)
	room.AddMember(s1)
	mgr.EvictIfEmpty(rid)
	_, ok = mgr.Get(rid)
	req.True(ok) // occupied rooms stay

	room.RemoveMember(s1.ID())
	mgr.EvictIfEmpty(rid)
	_, ok = mgr.Get(rid)
	req.False(ok)
}
