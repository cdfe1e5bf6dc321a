package core

import (
	"sync/atomic"

	"github.com/akarpov/agora/internal/domain"
)

// memberSession implements MemberSession by pairing identity + transport.
type memberSession struct {
	sid  SessionID
	user *domain.User
	conn SignalConnection
	seq  atomic.Uint64
}

func NewMemberSession(sid SessionID, user *domain.User, conn SignalConnection) MemberSession {
	return &memberSession{sid: sid, user: user, conn: conn}
}

func (m *memberSession) ID() SessionID            { return m.sid }
func (m *memberSession) User() *domain.User       { return m.user }
func (m *memberSession) Signal() SignalConnection { return m.conn }
func (m *memberSession) NextSeq() uint64          { return m.seq.Add(1) }
