package domain

import "time"

type CallStatus string

const (
	CallInitiated CallStatus = "initiated"
	CallRinging   CallStatus = "ringing"
	CallActive    CallStatus = "active"
	CallEnded     CallStatus = "ended"
	CallRejected  CallStatus = "rejected"
	CallMissed    CallStatus = "missed"
)

// Terminal reports whether no further transition may leave s.
func (s CallStatus) Terminal() bool {
	return s == CallEnded || s == CallRejected || s == CallMissed
}

// CallSession is the lifecycle record of one 1:1 signaling exchange.
// Transitions are monotonic: initiated → ringing → {active, missed,
// rejected}; active → ended; ringing → ended (caller hangs up).
// Terminal states are never left.
type CallSession struct {
	ID        int64      `json:"id"`
	Caller    UserID     `json:"caller"`
	Receiver  UserID     `json:"receiver"`
	Status    CallStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

func NewCallSession(id int64, caller, receiver UserID, at time.Time) *CallSession {
	return &CallSession{
		ID:        id,
		Caller:    caller,
		Receiver:  receiver,
		Status:    CallRinging,
		CreatedAt: at,
	}
}

// Accept moves ringing → active. Only the designated receiver may accept;
// anyone else gets ErrInvalidTransition, same as a wrong-state attempt.
func (c *CallSession) Accept(by UserID, at time.Time) error {
	if c.Status != CallRinging || by != c.Receiver {
		return ErrInvalidTransition
	}
	c.Status = CallActive
	c.StartTime = &at
	return nil
}

// Reject moves ringing → rejected and stamps the end time.
func (c *CallSession) Reject(by UserID, at time.Time) error {
	if c.Status != CallRinging || by != c.Receiver {
		return ErrInvalidTransition
	}
	c.Status = CallRejected
	c.EndTime = &at
	return nil
}

// End moves active or ringing → ended. Only a participant may end.
func (c *CallSession) End(by UserID, at time.Time) error {
	if by != c.Caller && by != c.Receiver {
		return ErrUnauthorized
	}
	if c.Status != CallActive && c.Status != CallRinging {
		return ErrInvalidTransition
	}
	c.Status = CallEnded
	c.EndTime = &at
	return nil
}

// Miss marks an unanswered ring as missed (ring timeout).
func (c *CallSession) Miss(at time.Time) error {
	if c.Status != CallRinging {
		return ErrInvalidTransition
	}
	c.Status = CallMissed
	c.EndTime = &at
	return nil
}

// Duration is end − start, zero when the call never went active.
func (c *CallSession) Duration() time.Duration {
	if c.StartTime == nil || c.EndTime == nil {
		return 0
	}
	return c.EndTime.Sub(*c.StartTime)
}

// GroupCall is an open signaling room bounded by MaxParticipants.
// There is no receiver gate: any participant may leave on their own,
// and the status stays active until the initiator ends it or the last
// participant leaves.
type GroupCall struct {
	ID              int64      `json:"id"`
	RoomToken       string     `json:"room_id"`
	Initiator       UserID     `json:"initiator"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	MaxParticipants int        `json:"max_participants"`
	Participants    []UserID   `json:"participants"`
	Status          CallStatus `json:"status"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
}

func NewGroupCall(id int64, token string, initiator UserID, title, description string, maxParticipants int, at time.Time) *GroupCall {
	if maxParticipants <= 0 {
		maxParticipants = 10
	}
	return &GroupCall{
		ID:              id,
		RoomToken:       token,
		Initiator:       initiator,
		Title:           title,
		Description:     description,
		MaxParticipants: maxParticipants,
		Participants:    []UserID{initiator},
		Status:          CallActive,
		StartTime:       at,
	}
}

func (g *GroupCall) HasParticipant(u UserID) bool {
	for _, p := range g.Participants {
		if p == u {
			return true
		}
	}
	return false
}

// Join adds a participant, rejecting joins on a full or finished call.
// Re-joining is a no-op.
func (g *GroupCall) Join(u UserID) error {
	if g.Status.Terminal() {
		return ErrInvalidTransition
	}
	if g.HasParticipant(u) {
		return nil
	}
	if len(g.Participants) >= g.MaxParticipants {
		return ErrGroupCallFull
	}
	g.Participants = append(g.Participants, u)
	return nil
}

// Leave removes a participant. The initiator leaving, or the set draining
// to zero, ends the call.
func (g *GroupCall) Leave(u UserID, at time.Time) {
	for i, p := range g.Participants {
		if p == u {
			g.Participants = append(g.Participants[:i], g.Participants[i+1:]...)
			break
		}
	}
	if g.Status.Terminal() {
		return
	}
	if u == g.Initiator || len(g.Participants) == 0 {
		g.Status = CallEnded
		g.EndTime = &at
	}
}

// CallHistory is the derived record emitted when a call ends.
type CallHistory struct {
	ID          int64     `json:"id"`
	UserID      UserID    `json:"user_id"`
	CallID      int64     `json:"call_id,omitempty"`
	GroupCallID int64     `json:"group_call_id,omitempty"`
	Duration    int64     `json:"duration"` // seconds
	CallDate    time.Time `json:"call_date"`
}
