package app

import "encoding/json"

// Inbound frame payloads, one JSON object per message with a required
// "type" field. Validation tags feed the ValidationError field lists.

type envelope struct {
	Type string `json:"type"`
}

type newThreadPayload struct {
	Title      string `json:"title" validate:"required,max=200"`
	Content    string `json:"content" validate:"required"`
	CategoryID int64  `json:"category_id"`
}

type newReplyPayload struct {
	ThreadID int64  `json:"thread_id" validate:"required"`
	Content  string `json:"content" validate:"required"`
}

type votePayload struct {
	ModelType string `json:"model_type" validate:"required,oneof=thread reply"`
	ObjectID  int64  `json:"object_id" validate:"required"`
	VoteType  int    `json:"vote_type" validate:"required,oneof=1 -1"`
}

type chatPayload struct {
	Content string `json:"content" validate:"required"`
}

type signalPayload struct {
	Payload json.RawMessage `json:"payload" validate:"required"`
	ToUser  string          `json:"to_user"`
}
