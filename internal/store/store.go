// Package store is the persistence boundary the event router calls into.
// Implementations must be safe for concurrent use; all call-session
// transitions go through the domain state machine so its invariants hold
// in every backend.
package store

import (
	"context"

	"github.com/akarpov/agora/internal/domain"
)

type Store interface {
	CreateThread(ctx context.Context, author *domain.User, title, content string, categoryID int64) (*domain.Thread, error)
	// CreateReply also materializes a notification for the thread author
	// when the replier is someone else; the second return is nil otherwise.
	CreateReply(ctx context.Context, author *domain.User, threadID int64, content string) (*domain.Reply, *domain.Notification, error)
	ToggleVote(ctx context.Context, user domain.UserID, subject domain.VoteSubjectKind, objectID int64, value int) (*domain.VoteResult, error)
	CreateChatMessage(ctx context.Context, author *domain.User, content string) (*domain.ChatMessage, error)
	CreateNotification(ctx context.Context, user domain.UserID, message string, threadID, replyID int64) (*domain.Notification, error)

	CreateCall(ctx context.Context, caller, receiver domain.UserID) (*domain.CallSession, error)
	CallByID(ctx context.Context, id int64) (*domain.CallSession, error)
	AcceptCall(ctx context.Context, id int64, by domain.UserID) (*domain.CallSession, error)
	RejectCall(ctx context.Context, id int64, by domain.UserID) (*domain.CallSession, error)
	// EndCall emits one history record per participant with
	// duration = end − start (zero if the call never went active).
	EndCall(ctx context.Context, id int64, by domain.UserID) (*domain.CallSession, []domain.CallHistory, error)
	MissCall(ctx context.Context, id int64) (*domain.CallSession, error)

	CreateGroupCall(ctx context.Context, initiator domain.UserID, title, description string, maxParticipants int) (*domain.GroupCall, error)
	GroupCallByToken(ctx context.Context, token string) (*domain.GroupCall, error)
	JoinGroupCall(ctx context.Context, token string, user domain.UserID) (*domain.GroupCall, error)
	LeaveGroupCall(ctx context.Context, token string, user domain.UserID) (*domain.GroupCall, error)

	History(ctx context.Context, user domain.UserID, limit int) ([]domain.CallHistory, error)

	Close() error
}
