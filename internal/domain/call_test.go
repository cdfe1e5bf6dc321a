package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ringing(t *testing.T) *CallSession {
	t.Helper()
	return NewCallSession(1, 10, 20, time.Now())
}

func TestCallSession_AcceptOnlyReceiverFromRinging(t *testing.T) {
	req := require.New(t)

	call := ringing(t)
	req.Equal(CallRinging, call.Status)

	// Caller must not be able to accept their own call.
	err := call.Accept(call.Caller, time.Now())
	req.ErrorIs(err, ErrInvalidTransition)
	req.Equal(CallRinging, call.Status)

	err = call.Accept(call.Receiver, time.Now())
	req.NoError(err)
	req.Equal(CallActive, call.Status)
	req.NotNil(call.StartTime)

	// Accepting again is a backward move.
	err = call.Accept(call.Receiver, time.Now())
	req.ErrorIs(err, ErrInvalidTransition)
	req.Equal(CallActive, call.Status)
}

func TestCallSession_RejectSetsEndTime(t *testing.T) {
	req := require.New(t)

	call := ringing(t)
	err := call.Reject(call.Receiver, time.Now())
	req.NoError(err)
	req.Equal(CallRejected, call.Status)
	req.NotNil(call.EndTime)
	req.True(call.Status.Terminal())
}

func TestCallSession_TerminalStatesAreFinal(t *testing.T) {
	at := time.Now()
	cases := []struct {
		name  string
		setup func(*CallSession)
	}{
		{"ended", func(c *CallSession) { _ = c.End(c.Caller, at) }},
		{"rejected", func(c *CallSession) { _ = c.Reject(c.Receiver, at) }},
		{"missed", func(c *CallSession) { _ = c.Miss(at) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			call := ringing(t)
			tc.setup(call)
			before := call.Status
			req.True(before.Terminal())

			req.ErrorIs(call.Accept(call.Receiver, at), ErrInvalidTransition)
			req.ErrorIs(call.Reject(call.Receiver, at), ErrInvalidTransition)
			req.ErrorIs(call.End(call.Caller, at), ErrInvalidTransition)
			req.ErrorIs(call.Miss(at), ErrInvalidTransition)
			req.Equal(before, call.Status)
		})
	}
}

func TestCallSession_EndFromRingingHasZeroDuration(t *testing.T) {
	req := require.New(t)

	call := ringing(t)
	err := call.End(call.Caller, time.Now())
	req.NoError(err)
	req.Equal(CallEnded, call.Status)
	req.Zero(call.Duration())
}

func TestCallSession_DurationIsEndMinusStart(t *testing.T) {
	req := require.New(t)

	call := ringing(t)
	start := time.Now()
	req.NoError(call.Accept(call.Receiver, start))
	req.NoError(call.End(call.Receiver, start.Add(90*time.Second)))
	req.Equal(90*time.Second, call.Duration())
}

func TestCallSession_EndByStranger(t *testing.T) {
	call := ringing(t)
	require.ErrorIs(t, call.End(UserID(999), time.Now()), ErrUnauthorized)
	require.Equal(t, CallRinging, call.Status)
}

func TestGroupCall_JoinBounded(t *testing.T) {
	req := require.New(t)

	gc := NewGroupCall(1, "room-token", 1, "standup", "", 3, time.Now())
	req.NoError(gc.Join(2))
	req.NoError(gc.Join(3))
	req.ErrorIs(gc.Join(4), ErrGroupCallFull)

	// Re-joining is a no-op, not a second slot.
	req.NoError(gc.Join(2))
	req.Len(gc.Participants, 3)
}

func TestGroupCall_LeaveSemantics(t *testing.T) {
	req := require.New(t)

	gc := NewGroupCall(1, "room-token", 1, "standup", "", 10, time.Now())
	req.NoError(gc.Join(2))
	req.NoError(gc.Join(3))

	// A regular participant leaving keeps the call active.
	gc.Leave(2, time.Now())
	req.Equal(CallActive, gc.Status)
	req.False(gc.HasParticipant(2))

	// The initiator leaving ends the call for everyone.
	gc.Leave(1, time.Now())
	req.Equal(CallEnded, gc.Status)
	req.NotNil(gc.EndTime)
}

func TestGroupCall_DrainEnds(t *testing.T) {
	req := require.New(t)

	gc := NewGroupCall(1, "room-token", 1, "standup", "", 10, time.Now())
	req.NoError(gc.Join(2))
	gc.Leave(2, time.Now())
	req.Equal(CallActive, gc.Status)
	gc.Leave(1, time.Now())
	req.Equal(CallEnded, gc.Status)
}
