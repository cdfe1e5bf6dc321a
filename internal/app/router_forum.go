package app

import (
	"context"

	"github.com/akarpov/agora/internal/core"
	"github.com/akarpov/agora/internal/domain"
)

// Forum events: persist first, then fan out the materialized record to
// every member of the sender's room, sender included.

func (r *Router) handleNewThread(ctx context.Context, sess core.MemberSession, origin domain.RoomID, data core.Frame) {
	user, err := r.requireUser(sess)
	if err != nil {
		r.sendError(sess, err)
		return
	}
	var p newThreadPayload
	if err := r.decode(data, &p); err != nil {
		r.sendError(sess, err)
		return
	}
	thread, err := r.Store.CreateThread(ctx, user, p.Title, p.Content, p.CategoryID)
	if err != nil {
		r.sendError(sess, storeErr("create_thread", err))
		return
	}
	r.deliver(origin, marshalFrame(domain.ThreadFrame{Type: domain.EvNewThread, Thread: thread}),
		func(room core.RoomService, f core.Frame) core.DeliveryResult { return room.SendAll(f) })
}

func (r *Router) handleNewReply(ctx context.Context, sess core.MemberSession, origin domain.RoomID, data core.Frame) {
	user, err := r.requireUser(sess)
	if err != nil {
		r.sendError(sess, err)
		return
	}
	var p newReplyPayload
	if err := r.decode(data, &p); err != nil {
		r.sendError(sess, err)
		return
	}
	reply, notif, err := r.Store.CreateReply(ctx, user, p.ThreadID, p.Content)
	if err != nil {
		r.sendError(sess, storeErr("create_reply", err))
		return
	}
	r.deliver(origin, marshalFrame(domain.ReplyFrame{Type: domain.EvNewReply, Reply: reply}),
		func(room core.RoomService, f core.Frame) core.DeliveryResult { return room.SendAll(f) })

	// The thread author hears about the reply on their personal inbox
	// room, wherever they are connected.
	if notif != nil {
		r.deliver(domain.InboxRoom(notif.UserID),
			marshalFrame(domain.NotificationFrame{Type: domain.EvNotification, Notification: notif}),
			func(room core.RoomService, f core.Frame) core.DeliveryResult { return room.SendAll(f) })
	}
}

func (r *Router) handleVote(ctx context.Context, sess core.MemberSession, origin domain.RoomID, data core.Frame) {
	user, err := r.requireUser(sess)
	if err != nil {
		r.sendError(sess, err)
		return
	}
	var p votePayload
	if err := r.decode(data, &p); err != nil {
		r.sendError(sess, err)
		return
	}
	res, err := r.Store.ToggleVote(ctx, user.ID, domain.VoteSubjectKind(p.ModelType), p.ObjectID, p.VoteType)
	if err != nil {
		r.sendError(sess, storeErr("toggle_vote", err))
		return
	}
	r.deliver(origin, marshalFrame(domain.VoteUpdateFrame{Type: domain.EvVoteUpdate, VoteResult: res}),
		func(room core.RoomService, f core.Frame) core.DeliveryResult { return room.SendAll(f) })
}

func (r *Router) handleChatMessage(ctx context.Context, sess core.MemberSession, origin domain.RoomID, data core.Frame) {
	user, err := r.requireUser(sess)
	if err != nil {
		r.sendError(sess, err)
		return
	}
	var p chatPayload
	if err := r.decode(data, &p); err != nil {
		r.sendError(sess, err)
		return
	}
	msg, err := r.Store.CreateChatMessage(ctx, user, p.Content)
	if err != nil {
		r.sendError(sess, storeErr("create_chat_message", err))
		return
	}
	r.deliver(origin, marshalFrame(domain.ChatFrame{Type: domain.EvNewChat, Message: msg}),
		func(room core.RoomService, f core.Frame) core.DeliveryResult { return room.SendAll(f) })
}
