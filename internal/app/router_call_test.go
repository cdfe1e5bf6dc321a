package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akarpov/agora/internal/core"
	"github.com/akarpov/agora/internal/domain"
)

func TestCallAcceptByCallerIsRejected(t *testing.T) {
	req := require.New(t)
	r := newTestRouter()

	caller := user(t, 1, "alice")
	call, err := r.Store.CreateCall(context.Background(), caller.ID, 2)
	req.NoError(err)
	room := domain.CallRoom(call.ID)

	callerSess, callerConn := connect(t, r, "s-caller", caller, room)
	_, receiverConn := connect(t, r, "s-receiver", user(t, 2, "bob"), room)

	r.OnFrame(context.Background(), callerSess, room, core.Frame(`{"type":"call_accept"}`))

	req.Equal("invalid call state transition", callerConn.last(t)["error"])
	req.Empty(receiverConn.decoded(t))

	got, err := r.Store.CallByID(context.Background(), call.ID)
	req.NoError(err)
	req.Equal(domain.CallRinging, got.Status)
}

func TestCallAcceptByReceiverActivatesAndTellsBothSides(t *testing.T) {
	req := require.New(t)
	r := newTestRouter()

	caller := user(t, 1, "alice")
	receiver := user(t, 2, "bob")
	call, err := r.Store.CreateCall(context.Background(), caller.ID, receiver.ID)
	req.NoError(err)
	room := domain.CallRoom(call.ID)

	_, callerConn := connect(t, r, "s-caller", caller, room)
	receiverSess, receiverConn := connect(t, r, "s-receiver", receiver, room)

	r.OnFrame(context.Background(), receiverSess, room, core.Frame(`{"type":"call_accept"}`))

	for _, conn := range []*fakeConn{callerConn, receiverConn} {
		frame := conn.last(t)
		req.Equal("call_accepted", frame["type"])
		req.EqualValues(call.ID, frame["call_id"])
		req.Equal("bob", frame["by_user"])
	}

	got, err := r.Store.CallByID(context.Background(), call.ID)
	req.NoError(err)
	req.Equal(domain.CallActive, got.Status)
}

func TestCallEndCarriesDurationToWholeRoom(t *testing.T) {
	req := require.New(t)
	r := newTestRouter()

	caller := user(t, 1, "alice")
	receiver := user(t, 2, "bob")
	call, err := r.Store.CreateCall(context.Background(), caller.ID, receiver.ID)
	req.NoError(err)
	_, err = r.Store.AcceptCall(context.Background(), call.ID, receiver.ID)
	req.NoError(err)
	room := domain.CallRoom(call.ID)

	callerSess, callerConn := connect(t, r, "s-caller", caller, room)
	_, receiverConn := connect(t, r, "s-receiver", receiver, room)

	r.OnFrame(context.Background(), callerSess, room, core.Frame(`{"type":"call_end"}`))

	for _, conn := range []*fakeConn{callerConn, receiverConn} {
		frame := conn.last(t)
		req.Equal("call_ended", frame["type"])
		req.Equal("alice", frame["by_user"])
	}

	hist, err := r.Store.History(context.Background(), caller.ID, 10)
	req.NoError(err)
	req.Len(hist, 1)
}

func TestInitiateCallRingsReceiverInbox(t *testing.T) {
	req := require.New(t)
	r := newTestRouter()

	caller := user(t, 1, "alice")
	receiver := user(t, 2, "bob")
	_, receiverConn := connect(t, r, "s-bob", receiver, domain.ForumRoom())

	call, err := r.InitiateCall(context.Background(), caller, receiver.ID)
	req.NoError(err)
	req.Equal(domain.CallRinging, call.Status)

	frame := receiverConn.last(t)
	req.Equal("call_incoming", frame["type"])
	req.EqualValues(call.ID, frame["call_id"])
	req.Equal("alice", frame["caller"])
}

func TestUnansweredCallGoesMissedAfterRingTimeout(t *testing.T) {
	req := require.New(t)
	r := newTestRouter()
	r.RingTimeout = 20 * time.Millisecond

	caller := user(t, 1, "alice")
	call, err := r.InitiateCall(context.Background(), caller, 2)
	req.NoError(err)

	req.Eventually(func() bool {
		got, err := r.Store.CallByID(context.Background(), call.ID)
		return err == nil && got.Status == domain.CallMissed
	}, time.Second, 10*time.Millisecond)
}

func TestAnsweredCallSurvivesRingTimeout(t *testing.T) {
	req := require.New(t)
	r := newTestRouter()
	r.RingTimeout = 20 * time.Millisecond

	caller := user(t, 1, "alice")
	call, err := r.InitiateCall(context.Background(), caller, 2)
	req.NoError(err)
	_, err = r.Store.AcceptCall(context.Background(), call.ID, 2)
	req.NoError(err)

	time.Sleep(100 * time.Millisecond)
	got, err := r.Store.CallByID(context.Background(), call.ID)
	req.NoError(err)
	req.Equal(domain.CallActive, got.Status)
}

func TestGroupRoomConnectTakesSeatAndRejectsWhenFull(t *testing.T) {
	req := require.New(t)
	r := newTestRouter()

	// The initiator holds the only seat.
	gc, err := r.Store.CreateGroupCall(context.Background(), 1, "standup", "", 1)
	req.NoError(err)
	room := domain.GroupCallRoom(gc.RoomToken)

	conn := &fakeConn{}
	sess := core.NewMemberSession("s-late", user(t, 2, "bob"), conn)
	r.Orch.Connect(sess, nil)
	err = r.OnConnect(context.Background(), sess, room)
	req.ErrorIs(err, domain.ErrGroupCallFull)
	req.Equal(map[string]any{"error": "group call is full"}, conn.last(t))

	// The rejected session never joined any room.
	req.Empty(r.Orch.Registry.RoomsOf(sess.ID()))
	_, ok := r.Orch.Rooms.Get(room)
	req.False(ok)

	got, err := r.Store.GroupCallByToken(context.Background(), gc.RoomToken)
	req.NoError(err)
	req.Len(got.Participants, 1)
}

func TestGroupCallAcceptIsMeaningless(t *testing.T) {
	req := require.New(t)
	r := newTestRouter()

	gc, err := r.Store.CreateGroupCall(context.Background(), 1, "standup", "", 8)
	req.NoError(err)
	room := domain.GroupCallRoom(gc.RoomToken)

	sess, conn := connect(t, r, "s-a", user(t, 1, "alice"), room)
	r.OnFrame(context.Background(), sess, room, core.Frame(`{"type":"call_accept"}`))
	req.Equal("invalid call state transition", conn.last(t)["error"])
}

func TestGroupCallEndAnnouncesDepartureAndEnd(t *testing.T) {
	req := require.New(t)
	r := newTestRouter()

	alice := user(t, 1, "alice")
	gc, err := r.Store.CreateGroupCall(context.Background(), alice.ID, "standup", "", 8)
	req.NoError(err)
	_, err = r.Store.JoinGroupCall(context.Background(), gc.RoomToken, alice.ID)
	req.NoError(err)
	_, err = r.Store.JoinGroupCall(context.Background(), gc.RoomToken, 2)
	req.NoError(err)
	room := domain.GroupCallRoom(gc.RoomToken)

	aliceSess, _ := connect(t, r, "s-a", alice, room)
	_, bobConn := connect(t, r, "s-b", user(t, 2, "bob"), room)

	// The initiator leaving ends the whole call.
	r.OnFrame(context.Background(), aliceSess, room, core.Frame(`{"type":"call_end"}`))

	var types []string
	for _, f := range bobConn.decoded(t) {
		types = append(types, f["type"].(string))
	}
	req.Contains(types, "user_left")
	req.Contains(types, "call_ended")

	got, err := r.Store.GroupCallByToken(context.Background(), gc.RoomToken)
	req.NoError(err)
	req.Equal(domain.CallEnded, got.Status)
}
