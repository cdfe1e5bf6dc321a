package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/akarpov/agora/internal/domain"
)

// Badger is the persistent Store. Records are JSON values under typed key
// prefixes; ids come from a shared badger sequence. Call mutations are
// serialized by muCalls so state-machine checks and writes are atomic.
type Badger struct {
	db      *badger.DB
	ids     *badger.Sequence
	muCalls sync.Mutex
}

func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	seq, err := db.GetSequence([]byte("!ids"), 128)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("id sequence: %w", err)
	}
	log.Info().Str("module", "store.badger").Str("path", path).Msg("store opened")
	return &Badger{db: db, ids: seq}, nil
}

func (b *Badger) Close() error {
	if err := b.ids.Release(); err != nil {
		log.Warn().Str("module", "store.badger").Err(err).Msg("sequence release")
	}
	return b.db.Close()
}

func (b *Badger) nextID() (int64, error) {
	n, err := b.ids.Next()
	if err != nil {
		return 0, err
	}
	return int64(n) + 1, nil
}

func threadKey(id int64) []byte  { return fmt.Appendf(nil, "thread:%020d", id) }
func replyKey(id int64) []byte   { return fmt.Appendf(nil, "reply:%020d", id) }
func chatKey(id int64) []byte    { return fmt.Appendf(nil, "chat:%020d", id) }
func callKey(id int64) []byte    { return fmt.Appendf(nil, "call:%020d", id) }
func groupKey(token string) []byte {
	return fmt.Appendf(nil, "group:%s", token)
}
func notifKey(user domain.UserID, id int64) []byte {
	return fmt.Appendf(nil, "notif:%s:%020d", user, id)
}
func historyKey(user domain.UserID, id int64) []byte {
	return fmt.Appendf(nil, "history:%s:%020d", user, id)
}
func voteKeyBytes(subject domain.VoteSubjectKind, objectID int64, user domain.UserID) []byte {
	return fmt.Appendf(nil, "vote:%s:%020d:%s", subject, objectID, user)
}
func votePrefix(subject domain.VoteSubjectKind, objectID int64) []byte {
	return fmt.Appendf(nil, "vote:%s:%020d:", subject, objectID)
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(data []byte) error {
		return json.Unmarshal(data, v)
	})
}

func (b *Badger) CreateThread(_ context.Context, author *domain.User, title, content string, categoryID int64) (*domain.Thread, error) {
	id, err := b.nextID()
	if err != nil {
		return nil, err
	}
	t := &domain.Thread{
		ID:         id,
		Title:      title,
		Content:    content,
		Author:     author.Username,
		AuthorID:   author.ID,
		CategoryID: categoryID,
		CreatedAt:  time.Now().UTC(),
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, threadKey(id), t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (b *Badger) CreateReply(_ context.Context, author *domain.User, threadID int64, content string) (*domain.Reply, *domain.Notification, error) {
	var (
		reply *domain.Reply
		notif *domain.Notification
	)
	err := b.db.Update(func(txn *badger.Txn) error {
		var thread domain.Thread
		if err := getJSON(txn, threadKey(threadID), &thread); err != nil {
			return err
		}
		id, err := b.nextID()
		if err != nil {
			return err
		}
		reply = &domain.Reply{
			ID:        id,
			ThreadID:  threadID,
			Content:   content,
			Author:    author.Username,
			AuthorID:  author.ID,
			CreatedAt: time.Now().UTC(),
		}
		if err := setJSON(txn, replyKey(id), reply); err != nil {
			return err
		}
		if thread.AuthorID == author.ID {
			return nil
		}
		nid, err := b.nextID()
		if err != nil {
			return err
		}
		notif = &domain.Notification{
			ID:        nid,
			UserID:    thread.AuthorID,
			Message:   fmt.Sprintf("%s replied to your thread '%s'", author.Username, thread.Title),
			ThreadID:  threadID,
			ReplyID:   id,
			CreatedAt: time.Now().UTC(),
		}
		return setJSON(txn, notifKey(notif.UserID, nid), notif)
	})
	if err != nil {
		return nil, nil, err
	}
	return reply, notif, nil
}

func (b *Badger) ToggleVote(_ context.Context, user domain.UserID, subject domain.VoteSubjectKind, objectID int64, value int) (*domain.VoteResult, error) {
	res := &domain.VoteResult{Subject: subject, ObjectID: objectID}
	err := b.db.Update(func(txn *badger.Txn) error {
		var objKey []byte
		switch subject {
		case domain.VoteThread:
			objKey = threadKey(objectID)
		case domain.VoteReply:
			objKey = replyKey(objectID)
		default:
			return &domain.ValidationError{Fields: []string{"model_type"}}
		}
		if _, err := txn.Get(objKey); errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrNotFound
		} else if err != nil {
			return err
		}

		key := voteKeyBytes(subject, objectID, user)
		var existing int
		switch err := getJSON(txn, key, &existing); {
		case err == nil && existing == value:
			if err := txn.Delete(key); err != nil {
				return err
			}
			res.UserVote = 0
		case err == nil || errors.Is(err, domain.ErrNotFound):
			if err := setJSON(txn, key, value); err != nil {
				return err
			}
			res.UserVote = value
		default:
			return err
		}

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := votePrefix(subject, objectID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var v int
			if err := it.Item().Value(func(data []byte) error {
				return json.Unmarshal(data, &v)
			}); err != nil {
				return err
			}
			res.VoteCount += v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (b *Badger) CreateChatMessage(_ context.Context, author *domain.User, content string) (*domain.ChatMessage, error) {
	id, err := b.nextID()
	if err != nil {
		return nil, err
	}
	msg := &domain.ChatMessage{
		ID:        id,
		Content:   content,
		Author:    author.Username,
		AuthorID:  author.ID,
		CreatedAt: time.Now().UTC(),
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, chatKey(id), msg)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (b *Badger) CreateNotification(_ context.Context, user domain.UserID, message string, threadID, replyID int64) (*domain.Notification, error) {
	id, err := b.nextID()
	if err != nil {
		return nil, err
	}
	n := &domain.Notification{
		ID:        id,
		UserID:    user,
		Message:   message,
		ThreadID:  threadID,
		ReplyID:   replyID,
		CreatedAt: time.Now().UTC(),
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, notifKey(user, id), n)
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (b *Badger) CreateCall(_ context.Context, caller, receiver domain.UserID) (*domain.CallSession, error) {
	id, err := b.nextID()
	if err != nil {
		return nil, err
	}
	call := domain.NewCallSession(id, caller, receiver, time.Now().UTC())
	err = b.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, callKey(id), call)
	})
	if err != nil {
		return nil, err
	}
	return call, nil
}

func (b *Badger) CallByID(_ context.Context, id int64) (*domain.CallSession, error) {
	var call domain.CallSession
	err := b.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, callKey(id), &call)
	})
	if err != nil {
		return nil, err
	}
	return &call, nil
}

func (b *Badger) mutateCall(id int64, fn func(*domain.CallSession) error) (*domain.CallSession, error) {
	b.muCalls.Lock()
	defer b.muCalls.Unlock()
	var call domain.CallSession
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, callKey(id), &call); err != nil {
			return err
		}
		if err := fn(&call); err != nil {
			return err
		}
		return setJSON(txn, callKey(id), &call)
	})
	if err != nil {
		return nil, err
	}
	return &call, nil
}

func (b *Badger) AcceptCall(_ context.Context, id int64, by domain.UserID) (*domain.CallSession, error) {
	return b.mutateCall(id, func(c *domain.CallSession) error {
		return c.Accept(by, time.Now().UTC())
	})
}

func (b *Badger) RejectCall(_ context.Context, id int64, by domain.UserID) (*domain.CallSession, error) {
	return b.mutateCall(id, func(c *domain.CallSession) error {
		return c.Reject(by, time.Now().UTC())
	})
}

func (b *Badger) EndCall(_ context.Context, id int64, by domain.UserID) (*domain.CallSession, []domain.CallHistory, error) {
	call, err := b.mutateCall(id, func(c *domain.CallSession) error {
		return c.End(by, time.Now().UTC())
	})
	if err != nil {
		return nil, nil, err
	}
	records := make([]domain.CallHistory, 0, 2)
	err = b.db.Update(func(txn *badger.Txn) error {
		for _, u := range []domain.UserID{call.Caller, call.Receiver} {
			hid, err := b.nextID()
			if err != nil {
				return err
			}
			h := domain.CallHistory{
				ID:       hid,
				UserID:   u,
				CallID:   call.ID,
				Duration: int64(call.Duration().Seconds()),
				CallDate: *call.EndTime,
			}
			if err := setJSON(txn, historyKey(u, hid), h); err != nil {
				return err
			}
			records = append(records, h)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return call, records, nil
}

func (b *Badger) MissCall(_ context.Context, id int64) (*domain.CallSession, error) {
	return b.mutateCall(id, func(c *domain.CallSession) error {
		return c.Miss(time.Now().UTC())
	})
}

func (b *Badger) CreateGroupCall(_ context.Context, initiator domain.UserID, title, description string, maxParticipants int) (*domain.GroupCall, error) {
	id, err := b.nextID()
	if err != nil {
		return nil, err
	}
	token := uuid.NewString()[:12]
	gc := domain.NewGroupCall(id, token, initiator, title, description, maxParticipants, time.Now().UTC())
	err = b.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, groupKey(token), gc)
	})
	if err != nil {
		return nil, err
	}
	return gc, nil
}

func (b *Badger) GroupCallByToken(_ context.Context, token string) (*domain.GroupCall, error) {
	var gc domain.GroupCall
	err := b.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, groupKey(token), &gc)
	})
	if err != nil {
		return nil, err
	}
	return &gc, nil
}

func (b *Badger) mutateGroup(token string, fn func(*domain.GroupCall) error) (*domain.GroupCall, error) {
	b.muCalls.Lock()
	defer b.muCalls.Unlock()
	var gc domain.GroupCall
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, groupKey(token), &gc); err != nil {
			return err
		}
		if err := fn(&gc); err != nil {
			return err
		}
		return setJSON(txn, groupKey(token), &gc)
	})
	if err != nil {
		return nil, err
	}
	return &gc, nil
}

func (b *Badger) JoinGroupCall(_ context.Context, token string, user domain.UserID) (*domain.GroupCall, error) {
	return b.mutateGroup(token, func(gc *domain.GroupCall) error {
		return gc.Join(user)
	})
}

func (b *Badger) LeaveGroupCall(_ context.Context, token string, user domain.UserID) (*domain.GroupCall, error) {
	var endedAt *time.Time
	gc, err := b.mutateGroup(token, func(gc *domain.GroupCall) error {
		wasActive := !gc.Status.Terminal()
		gc.Leave(user, time.Now().UTC())
		if wasActive && gc.Status == domain.CallEnded {
			endedAt = gc.EndTime
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if endedAt != nil {
		hid, err := b.nextID()
		if err != nil {
			return nil, err
		}
		h := domain.CallHistory{
			ID:          hid,
			UserID:      gc.Initiator,
			GroupCallID: gc.ID,
			Duration:    int64(endedAt.Sub(gc.StartTime).Seconds()),
			CallDate:    *endedAt,
		}
		err = b.db.Update(func(txn *badger.Txn) error {
			return setJSON(txn, historyKey(h.UserID, hid), h)
		})
		if err != nil {
			return nil, err
		}
	}
	return gc, nil
}

func (b *Badger) History(_ context.Context, user domain.UserID, limit int) ([]domain.CallHistory, error) {
	var out []domain.CallHistory
	prefix := fmt.Appendf(nil, "history:%s:", user)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var h domain.CallHistory
			if err := it.Item().Value(func(data []byte) error {
				return json.Unmarshal(data, &h)
			}); err != nil {
				return err
			}
			out = append(out, h)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CallDate.After(out[j].CallDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
