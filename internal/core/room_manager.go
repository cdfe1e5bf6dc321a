package core

import (
	"sync"

	"github.com/akarpov/agora/internal/domain"
)

type roomManager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]RoomService
}

func NewRoomManager() RoomManager {
	return &roomManager{rooms: make(map[domain.RoomID]RoomService)}
}

func (m *roomManager) GetOrCreate(id domain.RoomID) RoomService {
	m.mu.RLock()
	room, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok {
		return room
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok = m.rooms[id]; ok {
		return room
	}
	room = NewRoomService(id)
	m.rooms[id] = room
	return room
}

func (m *roomManager) Get(id domain.RoomID) (RoomService, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	return room, ok
}

func (m *roomManager) List() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for id, r := range m.rooms {
		out = append(out, RoomInfo{ID: id.String(), MemberCount: r.MemberCount()})
	}
	return out
}

func (m *roomManager) EvictIfEmpty(id domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[id]; ok && room.MemberCount() == 0 {
		delete(m.rooms, id)
	}
}
