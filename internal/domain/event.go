package domain

// EventKind is the closed set of frame tags the core routes. Unknown tags
// coming off the wire are a no-op branch, not an error, so older and newer
// clients can talk to the same server.
type EventKind string

const (
	EvNewThread    EventKind = "new_thread"
	EvNewReply     EventKind = "new_reply"
	EvVote         EventKind = "vote"
	EvVoteUpdate   EventKind = "vote_update"
	EvChatMessage  EventKind = "chat_message"
	EvNewChat      EventKind = "new_chat_message"
	EvNotification EventKind = "notification"
	EvOffer        EventKind = "offer"
	EvAnswer       EventKind = "answer"
	EvIceCandidate EventKind = "ice_candidate"
	EvCallAccept   EventKind = "call_accept"
	EvCallReject   EventKind = "call_reject"
	EvCallEnd      EventKind = "call_end"
	EvCallAccepted EventKind = "call_accepted"
	EvCallRejected EventKind = "call_rejected"
	EvCallEnded    EventKind = "call_ended"
	EvCallIncoming EventKind = "call_incoming"
	EvUserJoined   EventKind = "user_joined"
	EvUserLeft     EventKind = "user_left"
	EvPing         EventKind = "ping"
	EvPong         EventKind = "pong"
)

// Outbound frames. Each mirrors an inbound tag per the wire convention:
// inbound new_thread → outbound new_thread, inbound vote → vote_update,
// inbound chat_message → new_chat_message.

type ThreadFrame struct {
	Type   EventKind `json:"type"`
	Thread *Thread   `json:"thread"`
}

type ReplyFrame struct {
	Type  EventKind `json:"type"`
	Reply *Reply    `json:"reply"`
}

type VoteUpdateFrame struct {
	Type EventKind `json:"type"`
	*VoteResult
}

type ChatFrame struct {
	Type    EventKind    `json:"type"`
	Message *ChatMessage `json:"message"`
}

type NotificationFrame struct {
	Type         EventKind     `json:"type"`
	Notification *Notification `json:"notification"`
}

// SignalFrame carries WebRTC signaling metadata between peers. The payload
// is an opaque blob; media bytes never pass through the core.
type SignalFrame struct {
	Type     EventKind `json:"type"`
	Payload  any       `json:"payload"`
	FromUser string    `json:"from_user"`
	ToUser   string    `json:"to_user,omitempty"`
}

type CallStatusFrame struct {
	Type     EventKind `json:"type"`
	CallID   int64     `json:"call_id"`
	ByUser   string    `json:"by_user"`
	Duration int64     `json:"duration,omitempty"`
}

type CallIncomingFrame struct {
	Type   EventKind `json:"type"`
	CallID int64     `json:"call_id"`
	Caller string    `json:"caller"`
}

type PresenceFrame struct {
	Type     EventKind `json:"type"`
	Username string    `json:"username"`
}

type PongFrame struct {
	Type EventKind `json:"type"`
}

// ErrorFrame is sent only to the originating session, never broadcast.
type ErrorFrame struct {
	Error string `json:"error"`
}
