package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type RoomKind int

const (
	KindForum RoomKind = iota
	KindCall
	KindGroupCall
	KindInbox
)

// RoomID is the only way to name a room. Constructors below are the full
// set of room shapes; ad hoc string formatting of room keys is forbidden
// to rule out key collisions between the namespaces.
type RoomID struct {
	Kind RoomKind
	Key  string
}

func ForumRoom() RoomID { return RoomID{Kind: KindForum, Key: "forum"} }

func CallRoom(callID int64) RoomID {
	return RoomID{Kind: KindCall, Key: fmt.Sprintf("call/%d", callID)}
}

func GroupCallRoom(token string) RoomID {
	return RoomID{Kind: KindGroupCall, Key: "group/" + token}
}

func InboxRoom(user UserID) RoomID {
	return RoomID{Kind: KindInbox, Key: "inbox/" + user.String()}
}

func (r RoomID) String() string { return r.Key }

// CallID recovers the call id a CallRoom was built from.
func (r RoomID) CallID() (int64, bool) {
	if r.Kind != KindCall {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(r.Key, "call/"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// GroupToken recovers the room token a GroupCallRoom was built from.
func (r RoomID) GroupToken() (string, bool) {
	if r.Kind != KindGroupCall {
		return "", false
	}
	return strings.TrimPrefix(r.Key, "group/"), true
}
