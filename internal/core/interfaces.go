package core

import "github.com/akarpov/agora/internal/domain"

// Frame is a serialized outbound event, one JSON object per message.
type Frame []byte

type SessionID string

// SignalConnection abstracts the system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession binds one live connection, its resolved identity and its
// transport endpoint. This is what a room stores and fans out to.
type MemberSession interface {
	ID() SessionID
	// User is nil for anonymous sessions.
	User() *domain.User
	Signal() SignalConnection
	// NextSeq is a per-session monotonic counter for sent events,
	// used for debug logging and ordering assertions only.
	NextSeq() uint64
}

// DeliveryResult reports per-send outcomes of one fan-out pass. Failures
// are collected, never propagated; the caller's policy decides what to do
// with the dropped sessions.
type DeliveryResult struct {
	Delivered int
	Dropped   []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	SID      SessionID `json:"sid"`
	Username string    `json:"username"`
}

// RoomService is the core-facing API of a room. It owns the membership set
// but never touches transport resources. Mutations and fan-out passes are
// serialized per room only; unrelated rooms never share a lock.
type RoomService interface {
	ID() domain.RoomID
	MemberCount() int
	MembersSnapshot() []MemberDTO
	// Members returns a point-in-time copy; iterating it never observes
	// joins or leaves made during the same delivery pass.
	Members() []MemberSession
	HasMember(sid SessionID) bool

	AddMember(ms MemberSession)
	RemoveMember(sid SessionID)

	// SendAll delivers to every member including the sender.
	SendAll(data Frame) DeliveryResult
	// Broadcast delivers to every member except from.
	Broadcast(from SessionID, data Frame) DeliveryResult
	// SendToUser delivers to the sessions whose identity equals username.
	SendToUser(username string, data Frame) DeliveryResult
}

type RoomInfo struct {
	ID          string `json:"id"`
	MemberCount int    `json:"member_count"`
}

// RoomManager creates rooms lazily on first join and garbage-collects
// empty ones. Empty rooms are not an error state, just inert.
type RoomManager interface {
	GetOrCreate(id domain.RoomID) RoomService
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	EvictIfEmpty(id domain.RoomID)
}
