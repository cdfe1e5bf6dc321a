package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/akarpov/agora/internal/core"
	"github.com/akarpov/agora/internal/domain"
)

type sessionEntry struct {
	Session core.MemberSession
	Rooms   map[domain.RoomID]struct{}
	Cancel  context.CancelFunc
}

// Registry is the reverse index from session to its room memberships.
// It must always agree with the rooms' own member sets; the orchestrator
// is the only writer of both.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[core.SessionID]*sessionEntry)}
}

func (r *Registry) Bind(sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID()] = &sessionEntry{
		Session: sess,
		Rooms:   make(map[domain.RoomID]struct{}),
		Cancel:  cancel,
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sess.ID())).Msg("bound session")
}

// Unbind removes the session and returns the rooms it was still in.
func (r *Registry) Unbind(sid core.SessionID) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	delete(r.sessions, sid)
	out := make([]domain.RoomID, 0, len(entry.Rooms))
	for rid := range entry.Rooms {
		out = append(out, rid)
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return out
}

func (r *Registry) Get(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) AddRoom(sid core.SessionID, rid domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return false
	}
	entry.Rooms[rid] = struct{}{}
	return true
}

func (r *Registry) RemoveRoom(sid core.SessionID, rid domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[sid]; ok {
		delete(entry.Rooms, rid)
	}
}

func (r *Registry) RoomsOf(sid core.SessionID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	out := make([]domain.RoomID, 0, len(entry.Rooms))
	for rid := range entry.Rooms {
		out = append(out, rid)
	}
	return out
}

func (r *Registry) InRoom(sid core.SessionID, rid domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return false
	}
	_, ok = entry.Rooms[rid]
	return ok
}

// Cancel fires the session's transport cancel func, if any.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
