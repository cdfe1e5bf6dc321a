package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akarpov/agora/internal/domain"
)

type voteKey struct {
	subject  domain.VoteSubjectKind
	objectID int64
	user     domain.UserID
}

// Memory is the in-process Store used in tests and single-node dev runs.
type Memory struct {
	mu            sync.Mutex
	seq           int64
	threads       map[int64]*domain.Thread
	replies       map[int64]*domain.Reply
	votes         map[voteKey]int
	chats         map[int64]*domain.ChatMessage
	notifications map[int64]*domain.Notification
	calls         map[int64]*domain.CallSession
	groupCalls    map[string]*domain.GroupCall
	history       []domain.CallHistory
}

func NewMemory() *Memory {
	return &Memory{
		threads:       make(map[int64]*domain.Thread),
		replies:       make(map[int64]*domain.Reply),
		votes:         make(map[voteKey]int),
		chats:         make(map[int64]*domain.ChatMessage),
		notifications: make(map[int64]*domain.Notification),
		calls:         make(map[int64]*domain.CallSession),
		groupCalls:    make(map[string]*domain.GroupCall),
	}
}

func (m *Memory) nextID() int64 {
	m.seq++
	return m.seq
}

func (m *Memory) CreateThread(_ context.Context, author *domain.User, title, content string, categoryID int64) (*domain.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &domain.Thread{
		ID:         m.nextID(),
		Title:      title,
		Content:    content,
		Author:     author.Username,
		AuthorID:   author.ID,
		CategoryID: categoryID,
		CreatedAt:  time.Now().UTC(),
	}
	m.threads[t.ID] = t
	out := *t
	return &out, nil
}

func (m *Memory) CreateReply(_ context.Context, author *domain.User, threadID int64, content string) (*domain.Reply, *domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	thread, ok := m.threads[threadID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	r := &domain.Reply{
		ID:        m.nextID(),
		ThreadID:  threadID,
		Content:   content,
		Author:    author.Username,
		AuthorID:  author.ID,
		CreatedAt: time.Now().UTC(),
	}
	m.replies[r.ID] = r

	var notif *domain.Notification
	if thread.AuthorID != author.ID {
		notif = &domain.Notification{
			ID:        m.nextID(),
			UserID:    thread.AuthorID,
			Message:   fmt.Sprintf("%s replied to your thread '%s'", author.Username, thread.Title),
			ThreadID:  threadID,
			ReplyID:   r.ID,
			CreatedAt: time.Now().UTC(),
		}
		m.notifications[notif.ID] = notif
	}
	out := *r
	if notif == nil {
		return &out, nil, nil
	}
	notifOut := *notif
	return &out, &notifOut, nil
}

func (m *Memory) ToggleVote(_ context.Context, user domain.UserID, subject domain.VoteSubjectKind, objectID int64, value int) (*domain.VoteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch subject {
	case domain.VoteThread:
		if _, ok := m.threads[objectID]; !ok {
			return nil, domain.ErrNotFound
		}
	case domain.VoteReply:
		if _, ok := m.replies[objectID]; !ok {
			return nil, domain.ErrNotFound
		}
	default:
		return nil, &domain.ValidationError{Fields: []string{"model_type"}}
	}

	key := voteKey{subject: subject, objectID: objectID, user: user}
	switch existing, ok := m.votes[key]; {
	case ok && existing == value:
		delete(m.votes, key) // same value toggles off
	default:
		m.votes[key] = value
	}

	res := &domain.VoteResult{
		Subject:  subject,
		ObjectID: objectID,
		UserVote: m.votes[key],
	}
	for k, v := range m.votes {
		if k.subject == subject && k.objectID == objectID {
			res.VoteCount += v
		}
	}
	return res, nil
}

func (m *Memory) CreateChatMessage(_ context.Context, author *domain.User, content string) (*domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := &domain.ChatMessage{
		ID:        m.nextID(),
		Content:   content,
		Author:    author.Username,
		AuthorID:  author.ID,
		CreatedAt: time.Now().UTC(),
	}
	m.chats[msg.ID] = msg
	out := *msg
	return &out, nil
}

func (m *Memory) CreateNotification(_ context.Context, user domain.UserID, message string, threadID, replyID int64) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := &domain.Notification{
		ID:        m.nextID(),
		UserID:    user,
		Message:   message,
		ThreadID:  threadID,
		ReplyID:   replyID,
		CreatedAt: time.Now().UTC(),
	}
	m.notifications[n.ID] = n
	out := *n
	return &out, nil
}

func (m *Memory) CreateCall(_ context.Context, caller, receiver domain.UserID) (*domain.CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := domain.NewCallSession(m.nextID(), caller, receiver, time.Now().UTC())
	m.calls[call.ID] = call
	out := *call
	return &out, nil
}

func (m *Memory) CallByID(_ context.Context, id int64) (*domain.CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.calls[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *call
	return &out, nil
}

func (m *Memory) mutateCall(id int64, fn func(*domain.CallSession) error) (*domain.CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.calls[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := fn(call); err != nil {
		return nil, err
	}
	out := *call
	return &out, nil
}

func (m *Memory) AcceptCall(_ context.Context, id int64, by domain.UserID) (*domain.CallSession, error) {
	return m.mutateCall(id, func(c *domain.CallSession) error {
		return c.Accept(by, time.Now().UTC())
	})
}

func (m *Memory) RejectCall(_ context.Context, id int64, by domain.UserID) (*domain.CallSession, error) {
	return m.mutateCall(id, func(c *domain.CallSession) error {
		return c.Reject(by, time.Now().UTC())
	})
}

func (m *Memory) EndCall(_ context.Context, id int64, by domain.UserID) (*domain.CallSession, []domain.CallHistory, error) {
	call, err := m.mutateCall(id, func(c *domain.CallSession) error {
		return c.End(by, time.Now().UTC())
	})
	if err != nil {
		return nil, nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]domain.CallHistory, 0, 2)
	for _, u := range []domain.UserID{call.Caller, call.Receiver} {
		records = append(records, domain.CallHistory{
			ID:       m.nextID(),
			UserID:   u,
			CallID:   call.ID,
			Duration: int64(call.Duration().Seconds()),
			CallDate: *call.EndTime,
		})
	}
	m.history = append(m.history, records...)
	return call, records, nil
}

func (m *Memory) MissCall(_ context.Context, id int64) (*domain.CallSession, error) {
	return m.mutateCall(id, func(c *domain.CallSession) error {
		return c.Miss(time.Now().UTC())
	})
}

// cloneGroup detaches a returned record from the stored one. The
// Participants backing array is mutated in place by Leave, so the slice
// has to be copied, not just the header.
func cloneGroup(gc *domain.GroupCall) *domain.GroupCall {
	out := *gc
	out.Participants = append([]domain.UserID(nil), gc.Participants...)
	return &out
}

func (m *Memory) CreateGroupCall(_ context.Context, initiator domain.UserID, title, description string, maxParticipants int) (*domain.GroupCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := uuid.NewString()[:12]
	gc := domain.NewGroupCall(m.nextID(), token, initiator, title, description, maxParticipants, time.Now().UTC())
	m.groupCalls[token] = gc
	return cloneGroup(gc), nil
}

func (m *Memory) GroupCallByToken(_ context.Context, token string) (*domain.GroupCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gc, ok := m.groupCalls[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneGroup(gc), nil
}

func (m *Memory) JoinGroupCall(_ context.Context, token string, user domain.UserID) (*domain.GroupCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gc, ok := m.groupCalls[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := gc.Join(user); err != nil {
		return nil, err
	}
	return cloneGroup(gc), nil
}

func (m *Memory) LeaveGroupCall(_ context.Context, token string, user domain.UserID) (*domain.GroupCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gc, ok := m.groupCalls[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	wasActive := !gc.Status.Terminal()
	gc.Leave(user, time.Now().UTC())
	if wasActive && gc.Status == domain.CallEnded {
		m.history = append(m.history, domain.CallHistory{
			ID:          m.nextID(),
			UserID:      gc.Initiator,
			GroupCallID: gc.ID,
			Duration:    int64(gc.EndTime.Sub(gc.StartTime).Seconds()),
			CallDate:    *gc.EndTime,
		})
	}
	return cloneGroup(gc), nil
}

func (m *Memory) History(_ context.Context, user domain.UserID, limit int) ([]domain.CallHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.CallHistory, 0, limit)
	for _, h := range m.history {
		if h.UserID == user {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CallDate.After(out[j].CallDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
