package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/akarpov/agora/internal/core"
	"github.com/akarpov/agora/internal/domain"
)

// handleSignal routes offer/answer/ice_candidate. In a 1:1 call room the
// frame goes to everyone but the sender. In a group room a to_user
// addressee narrows delivery to that user's sessions only; without one
// the frame goes to every other member.
func (r *Router) handleSignal(ctx context.Context, sess core.MemberSession, origin domain.RoomID, kind domain.EventKind, data core.Frame) {
	user, err := r.requireUser(sess)
	if err != nil {
		r.sendError(sess, err)
		return
	}
	var p signalPayload
	if err := r.decode(data, &p); err != nil {
		r.sendError(sess, err)
		return
	}
	out := marshalFrame(domain.SignalFrame{
		Type:     kind,
		Payload:  p.Payload,
		FromUser: user.Username,
		ToUser:   p.ToUser,
	})
	if origin.Kind == domain.KindGroupCall && p.ToUser != "" {
		r.deliver(origin, out, func(room core.RoomService, f core.Frame) core.DeliveryResult {
			return room.SendToUser(p.ToUser, f)
		})
		return
	}
	from := sess.ID()
	r.deliver(origin, out, func(room core.RoomService, f core.Frame) core.DeliveryResult {
		return room.Broadcast(from, f)
	})
}

// handleCallControl handles accept/reject/end frames arriving on a call
// or group-call socket.
func (r *Router) handleCallControl(ctx context.Context, sess core.MemberSession, origin domain.RoomID, kind domain.EventKind) {
	user, err := r.requireUser(sess)
	if err != nil {
		r.sendError(sess, err)
		return
	}

	switch origin.Kind {
	case domain.KindCall:
		callID, ok := origin.CallID()
		if !ok {
			r.sendError(sess, domain.ErrNotFound)
			return
		}
		var opErr error
		switch kind {
		case domain.EvCallAccept:
			_, opErr = r.AcceptCall(ctx, user, callID)
		case domain.EvCallReject:
			_, opErr = r.RejectCall(ctx, user, callID)
		case domain.EvCallEnd:
			_, opErr = r.EndCall(ctx, user, callID)
		}
		if opErr != nil {
			r.sendError(sess, opErr)
		}

	case domain.KindGroupCall:
		// Group calls have no receiver gate: end means "I am leaving".
		// Accept/reject have no meaning here.
		if kind != domain.EvCallEnd {
			r.sendError(sess, domain.ErrInvalidTransition)
			return
		}
		token, ok := origin.GroupToken()
		if !ok {
			r.sendError(sess, domain.ErrNotFound)
			return
		}
		if err := r.LeaveGroup(ctx, user, origin, token, sess.ID()); err != nil {
			r.sendError(sess, err)
		}

	default:
		r.sendError(sess, domain.ErrInvalidTransition)
	}
}

// InitiateCall creates a ringing 1:1 call and announces it on the
// receiver's inbox room. Shared by the REST surface.
func (r *Router) InitiateCall(ctx context.Context, caller *domain.User, receiver domain.UserID) (*domain.CallSession, error) {
	call, err := r.Store.CreateCall(ctx, caller.ID, receiver)
	if err != nil {
		return nil, storeErr("create_call", err)
	}
	r.deliver(domain.InboxRoom(receiver), marshalFrame(domain.CallIncomingFrame{
		Type:   domain.EvCallIncoming,
		CallID: call.ID,
		Caller: caller.Username,
	}), func(room core.RoomService, f core.Frame) core.DeliveryResult { return room.SendAll(f) })

	if r.RingTimeout > 0 {
		id := call.ID
		time.AfterFunc(r.RingTimeout, func() {
			// Still ringing by now means nobody answered.
			if _, err := r.MissCall(context.Background(), id); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
				log.Warn().Str("module", "app.router").Int64("call_id", id).Err(err).Msg("ring timeout")
			}
		})
	}
	return call, nil
}

// AcceptCall transitions ringing → active and tells the whole call room.
func (r *Router) AcceptCall(ctx context.Context, by *domain.User, callID int64) (*domain.CallSession, error) {
	call, err := r.Store.AcceptCall(ctx, callID, by.ID)
	if err != nil {
		return nil, storeErr("accept_call", err)
	}
	r.broadcastCallStatus(domain.CallRoom(callID), domain.EvCallAccepted, call.ID, by.Username, 0)
	return call, nil
}

// RejectCall transitions ringing → rejected and tells the whole call room.
func (r *Router) RejectCall(ctx context.Context, by *domain.User, callID int64) (*domain.CallSession, error) {
	call, err := r.Store.RejectCall(ctx, callID, by.ID)
	if err != nil {
		return nil, storeErr("reject_call", err)
	}
	r.broadcastCallStatus(domain.CallRoom(callID), domain.EvCallRejected, call.ID, by.Username, 0)
	return call, nil
}

// EndCall terminates the call; the derived history duration rides on the
// call_ended frame.
func (r *Router) EndCall(ctx context.Context, by *domain.User, callID int64) (*domain.CallSession, error) {
	call, _, err := r.Store.EndCall(ctx, callID, by.ID)
	if err != nil {
		return nil, storeErr("end_call", err)
	}
	r.broadcastCallStatus(domain.CallRoom(callID), domain.EvCallEnded, call.ID, by.Username, int64(call.Duration().Seconds()))
	return call, nil
}

// MissCall marks an unanswered ring as missed (ring timeout).
func (r *Router) MissCall(ctx context.Context, callID int64) (*domain.CallSession, error) {
	call, err := r.Store.MissCall(ctx, callID)
	if err != nil {
		return nil, storeErr("miss_call", err)
	}
	r.broadcastCallStatus(domain.CallRoom(callID), domain.EvCallEnded, call.ID, "", 0)
	return call, nil
}

// LeaveGroup records a participant's departure, announces it, and ends
// the call room when the call itself ended with them.
func (r *Router) LeaveGroup(ctx context.Context, user *domain.User, origin domain.RoomID, token string, from core.SessionID) error {
	gc, err := r.Store.LeaveGroupCall(ctx, token, user.ID)
	if err != nil {
		return storeErr("leave_group_call", err)
	}
	r.deliver(origin, marshalFrame(domain.PresenceFrame{Type: domain.EvUserLeft, Username: user.Username}),
		func(room core.RoomService, f core.Frame) core.DeliveryResult { return room.Broadcast(from, f) })
	if gc.Status == domain.CallEnded {
		r.broadcastCallStatus(origin, domain.EvCallEnded, gc.ID, user.Username, 0)
	}
	return nil
}

func (r *Router) broadcastCallStatus(rid domain.RoomID, kind domain.EventKind, callID int64, byUser string, duration int64) {
	r.deliver(rid, marshalFrame(domain.CallStatusFrame{
		Type:     kind,
		CallID:   callID,
		ByUser:   byUser,
		Duration: duration,
	}), func(room core.RoomService, f core.Frame) core.DeliveryResult { return room.SendAll(f) })
}
