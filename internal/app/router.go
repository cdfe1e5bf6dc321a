package app

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/akarpov/agora/internal/core"
	"github.com/akarpov/agora/internal/domain"
	"github.com/akarpov/agora/internal/presence"
	"github.com/akarpov/agora/internal/store"
)

// Router classifies inbound frames, applies per-event authorization and
// validation, performs the persistence side effect, and resolves the
// delivery set. Every error it recovers is converted to an error frame
// for the originating session only; nothing here ever aborts fan-out to
// other sessions.
type Router struct {
	Orch     *Orchestrator
	Store    store.Store
	Presence presence.Tracker
	// RingTimeout > 0 marks unanswered calls as missed after that long.
	RingTimeout time.Duration
	validate    *validator.Validate
}

func NewRouter(orch *Orchestrator, st store.Store, pr presence.Tracker) *Router {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Router{Orch: orch, Store: st, Presence: pr, validate: v}
}

// OnConnect joins the session to its origin room (and the user's inbox
// room when authenticated). Group-call sessions take their participant
// seat here, after the transport is already up; a rejected seat is
// reported to the session as an error frame and the session joins
// nothing. Group rooms announce the arrival.
func (r *Router) OnConnect(ctx context.Context, sess core.MemberSession, origin domain.RoomID) error {
	u := sess.User()
	if origin.Kind == domain.KindGroupCall {
		token, ok := origin.GroupToken()
		if !ok || u == nil {
			r.sendError(sess, domain.ErrNotFound)
			return domain.ErrNotFound
		}
		if _, err := r.Store.JoinGroupCall(ctx, token, u.ID); err != nil {
			err = storeErr("join_group_call", err)
			r.sendError(sess, err)
			return err
		}
	}
	r.Orch.Join(sess.ID(), origin)
	if u == nil {
		return nil
	}
	r.Orch.Join(sess.ID(), domain.InboxRoom(u.ID))
	if r.Presence != nil {
		if err := r.Presence.Touch(ctx, u.Username); err != nil {
			log.Warn().Str("module", "app.router").Err(err).Msg("presence touch")
		}
	}
	if origin.Kind == domain.KindGroupCall {
		room := r.Orch.Rooms.GetOrCreate(origin)
		res := room.Broadcast(sess.ID(), marshalFrame(domain.PresenceFrame{
			Type:     domain.EvUserJoined,
			Username: u.Username,
		}))
		r.Orch.ApplyDeliveryPolicy(room, res)
	}
	return nil
}

// OnClose runs when the transport reports the session gone. A departing
// group-call participant is recorded in the store and announced; then
// the session leaves every room.
func (r *Router) OnClose(ctx context.Context, sess core.MemberSession, origin domain.RoomID) {
	u := sess.User()
	if u != nil && origin.Kind == domain.KindGroupCall {
		if token, ok := origin.GroupToken(); ok {
			gc, err := r.Store.LeaveGroupCall(ctx, token, u.ID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				log.Error().Str("module", "app.router").Err(err).Msg("group leave on close")
			}
			if room, ok := r.Orch.Rooms.Get(origin); ok {
				res := room.Broadcast(sess.ID(), marshalFrame(domain.PresenceFrame{
					Type:     domain.EvUserLeft,
					Username: u.Username,
				}))
				r.Orch.ApplyDeliveryPolicy(room, res)
				if gc != nil && gc.Status == domain.CallEnded {
					res = room.SendAll(marshalFrame(domain.CallStatusFrame{
						Type:   domain.EvCallEnded,
						CallID: gc.ID,
						ByUser: u.Username,
					}))
					r.Orch.ApplyDeliveryPolicy(room, res)
				}
			}
		}
	}
	r.Orch.OnDisconnect(sess.ID())
}

// OnFrame processes one inbound frame for its session. Frames of one
// session are handled in arrival order by the transport's read loop;
// the only blocking point in here is the store call.
func (r *Router) OnFrame(ctx context.Context, sess core.MemberSession, origin domain.RoomID, data core.Frame) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Str("module", "app.router").Err(err).Msg("bad json frame ignored")
		return
	}
	if u := sess.User(); u != nil && r.Presence != nil {
		_ = r.Presence.Touch(ctx, u.Username)
	}

	switch domain.EventKind(env.Type) {
	case domain.EvPing:
		r.sendJSON(sess, domain.PongFrame{Type: domain.EvPong})
	case domain.EvNewThread:
		r.handleNewThread(ctx, sess, origin, data)
	case domain.EvNewReply:
		r.handleNewReply(ctx, sess, origin, data)
	case domain.EvVote:
		r.handleVote(ctx, sess, origin, data)
	case domain.EvChatMessage:
		r.handleChatMessage(ctx, sess, origin, data)
	case domain.EvOffer, domain.EvAnswer, domain.EvIceCandidate:
		r.handleSignal(ctx, sess, origin, domain.EventKind(env.Type), data)
	case domain.EvCallAccept:
		r.handleCallControl(ctx, sess, origin, domain.EvCallAccept)
	case domain.EvCallReject:
		r.handleCallControl(ctx, sess, origin, domain.EvCallReject)
	case domain.EvCallEnd:
		r.handleCallControl(ctx, sess, origin, domain.EvCallEnd)
	default:
		// Forward compatibility: unknown tags are a no-op, not an error.
		log.Debug().Str("module", "app.router").Str("type", env.Type).Msg("unknown frame type ignored")
	}
}

// requireUser gates events that need an authenticated identity.
func (r *Router) requireUser(sess core.MemberSession) (*domain.User, error) {
	if u := sess.User(); u != nil {
		return u, nil
	}
	return nil, domain.ErrAuthenticationRequired
}

// decode unmarshals and validates an inbound payload.
func (r *Router) decode(data core.Frame, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &domain.ValidationError{Fields: []string{"payload"}}
	}
	if err := r.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return &domain.ValidationError{Fields: fields}
		}
		return &domain.ValidationError{Fields: []string{"payload"}}
	}
	return nil
}

func marshalFrame(v any) core.Frame {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Str("module", "app.router").Err(err).Msg("marshal outbound frame")
		return nil
	}
	return data
}

// sendJSON delivers a frame to the originating session only. A failed
// send is not an error path here; the transport teardown handles it.
func (r *Router) sendJSON(sess core.MemberSession, v any) {
	data := marshalFrame(v)
	if data == nil {
		return
	}
	seq := sess.NextSeq()
	if err := sess.Signal().TrySend(data); err != nil {
		log.Debug().Str("module", "app.router").Str("sid", string(sess.ID())).Uint64("seq", seq).Err(err).Msg("direct send dropped")
	}
}

// sendError converts a recovered taxonomy error to an error frame for the
// originator. Persistence failures are logged and masked.
func (r *Router) sendError(sess core.MemberSession, err error) {
	var (
		verr *domain.ValidationError
		perr *domain.PersistenceError
	)
	msg := err.Error()
	switch {
	case errors.As(err, &perr):
		log.Error().Str("module", "app.router").Err(perr).Msg("persistence failure")
		msg = "internal error"
	case errors.As(err, &verr),
		errors.Is(err, domain.ErrAuthenticationRequired),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrGroupCallFull):
	default:
		log.Error().Str("module", "app.router").Err(err).Msg("unexpected router error")
		msg = "internal error"
	}
	r.sendJSON(sess, domain.ErrorFrame{Error: msg})
}

// storeErr wraps non-taxonomy store failures as persistence errors.
func storeErr(op string, err error) error {
	var verr *domain.ValidationError
	if errors.As(err, &verr) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, domain.ErrGroupCallFull) {
		return err
	}
	return &domain.PersistenceError{Op: op, Err: err}
}

// deliver fans an already-marshaled event out to a room and applies the
// backpressure policy to whatever could not be delivered.
func (r *Router) deliver(origin domain.RoomID, data core.Frame, send func(core.RoomService, core.Frame) core.DeliveryResult) {
	room := r.Orch.Rooms.GetOrCreate(origin)
	res := send(room, data)
	r.Orch.ApplyDeliveryPolicy(room, res)
}
