package domain

import "time"

// Records materialized by the store and carried by outbound events.
// They are immutable once handed to the router.

type Thread struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Author     string    `json:"author"`
	AuthorID   UserID    `json:"author_id"`
	CategoryID int64     `json:"category_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	VoteCount  int       `json:"vote_count"`
}

type Reply struct {
	ID        int64     `json:"id"`
	ThreadID  int64     `json:"thread_id"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	AuthorID  UserID    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	VoteCount int       `json:"vote_count"`
}

type ChatMessage struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	AuthorID  UserID    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Notification struct {
	ID        int64     `json:"id"`
	UserID    UserID    `json:"user_id"`
	Message   string    `json:"message"`
	ThreadID  int64     `json:"thread_id,omitempty"`
	ReplyID   int64     `json:"reply_id,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// VoteSubjectKind selects which record a vote targets.
type VoteSubjectKind string

const (
	VoteThread VoteSubjectKind = "thread"
	VoteReply  VoteSubjectKind = "reply"
)

const (
	Upvote   = 1
	Downvote = -1
)

// Vote: per (subject, user) at most one record. Re-submitting the same
// value removes the vote, the opposite value flips it.
type Vote struct {
	Subject   VoteSubjectKind `json:"model_type"`
	ObjectID  int64           `json:"object_id"`
	UserID    UserID          `json:"user_id"`
	Value     int             `json:"vote_type"`
	CreatedAt time.Time       `json:"created_at"`
}

// VoteResult is the materialized outcome of a toggle.
type VoteResult struct {
	Subject   VoteSubjectKind `json:"model_type"`
	ObjectID  int64           `json:"object_id"`
	VoteCount int             `json:"vote_count"`
	UserVote  int             `json:"user_vote"`
}
