package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/akarpov/agora/internal/domain"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	id    domain.RoomID
	mu    sync.Mutex
	bySID map[SessionID]MemberSession
}

func NewRoomService(id domain.RoomID) RoomService {
	return &roomImpl{
		id:    id,
		bySID: make(map[SessionID]MemberSession),
	}
}

func (r *roomImpl) ID() domain.RoomID { return r.id }

func (r *roomImpl) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySID)
}

func (r *roomImpl) HasMember(sid SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.bySID[sid]
	return ok
}

// AddMember is idempotent: joining twice is a no-op, not an error.
func (r *roomImpl) AddMember(ms MemberSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sid := ms.ID()
	if _, ok := r.bySID[sid]; ok {
		return
	}
	r.bySID[sid] = ms
	log.Debug().Str("module", "core.room").Str("room", r.id.String()).Str("sid", string(sid)).Msg("member added")
}

func (r *roomImpl) RemoveMember(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[sid]; !ok {
		return
	}
	delete(r.bySID, sid)
	log.Debug().Str("module", "core.room").Str("room", r.id.String()).Str("sid", string(sid)).Msg("member removed")
}

func (r *roomImpl) Members() []MemberSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MemberSession, 0, len(r.bySID))
	for _, ms := range r.bySID {
		out = append(out, ms)
	}
	return out
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MemberDTO, 0, len(r.bySID))
	for sid, ms := range r.bySID {
		dto := MemberDTO{SID: sid}
		if u := ms.User(); u != nil {
			dto.Username = u.Username
		}
		out = append(out, dto)
	}
	return out
}

// The send passes hold the room lock for their whole pass. TrySend never
// blocks, so the hold is short, and serializing passes per room is what
// keeps delivery FIFO per destination for that room. No lock of another
// room is ever taken while it is held.

func (r *roomImpl) SendAll(data Frame) DeliveryResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fanout(data, func(SessionID) bool { return true })
}

func (r *roomImpl) Broadcast(from SessionID, data Frame) DeliveryResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fanout(data, func(sid SessionID) bool { return sid != from })
}

func (r *roomImpl) SendToUser(username string, data Frame) DeliveryResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fanout(data, func(sid SessionID) bool {
		u := r.bySID[sid].User()
		return u != nil && u.Username == username
	})
}

// fanout attempts each send independently; one broken session never
// aborts the pass. Callers hold r.mu.
func (r *roomImpl) fanout(data Frame, want func(SessionID) bool) DeliveryResult {
	res := DeliveryResult{}
	for sid, ms := range r.bySID {
		if !want(sid) {
			continue
		}
		if err := ms.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, ms)
			continue
		}
		res.Delivered++
	}
	log.Debug().Str("module", "core.room").Str("room", r.id.String()).
		Int("delivered", res.Delivered).Int("dropped", len(res.Dropped)).Msg("fanout result")
	return res
}
