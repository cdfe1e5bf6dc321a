package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/akarpov/agora/internal/core"
	"github.com/akarpov/agora/internal/domain"
)

// Orchestrator keeps the room member sets and the registry's reverse
// index in sync. It is the only writer of both, which is what upholds
// the membership invariant between them.
type Orchestrator struct {
	Registry *Registry
	Rooms    core.RoomManager
	Policy   Policy
}

func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		Registry: NewRegistry(),
		Rooms:    core.NewRoomManager(),
		Policy:   SimplePolicy{},
	}
}

// Connect binds a new session. cancel tears down the session's transport
// when fired.
func (o *Orchestrator) Connect(sess core.MemberSession, cancel context.CancelFunc) {
	o.Registry.Bind(sess, cancel)
}

// Join adds the session to a room, creating the room lazily.
// Joining twice is a no-op.
func (o *Orchestrator) Join(sid core.SessionID, rid domain.RoomID) {
	sess, ok := o.Registry.Get(sid)
	if !ok {
		return
	}
	room := o.Rooms.GetOrCreate(rid)
	room.AddMember(sess)
	o.Registry.AddRoom(sid, rid)
	log.Info().Str("module", "app.orchestrator").Str("sid", string(sid)).Str("room", rid.String()).Msg("joined room")
}

// Leave removes the session from one room; no-op if absent.
func (o *Orchestrator) Leave(sid core.SessionID, rid domain.RoomID) {
	if room, ok := o.Rooms.Get(rid); ok {
		room.RemoveMember(sid)
		o.Rooms.EvictIfEmpty(rid)
	}
	o.Registry.RemoveRoom(sid, rid)
}

// OnDisconnect runs session teardown: the session leaves every room it
// belongs to and is unbound. Safe to call more than once.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	for _, rid := range o.Registry.Unbind(sid) {
		if room, ok := o.Rooms.Get(rid); ok {
			room.RemoveMember(sid)
			o.Rooms.EvictIfEmpty(rid)
		}
	}
	log.Info().Str("module", "app.orchestrator").Str("sid", string(sid)).Msg("session disconnected")
}

// Kick cancels the session's transport and cleans up membership at once,
// so fan-out stops targeting it immediately.
func (o *Orchestrator) Kick(sid core.SessionID) {
	o.Registry.Cancel(sid)
	o.OnDisconnect(sid)
}

// ApplyDeliveryPolicy runs the backpressure policy over the sessions a
// fan-out pass could not deliver to.
func (o *Orchestrator) ApplyDeliveryPolicy(room core.RoomService, res core.DeliveryResult) {
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case KickMember:
			log.Warn().Str("module", "app.orchestrator").Str("sid", string(slow.ID())).Msg("kicking slow session")
			o.Kick(slow.ID())
		case MarkSlow, DropFrame, NoAction:
		}
	}
}
