package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomIDKindsAreDisjoint(t *testing.T) {
	req := require.New(t)

	ids := []RoomID{
		ForumRoom(),
		CallRoom(7),
		GroupCallRoom("abc123"),
		InboxRoom(7),
	}
	seen := map[RoomID]bool{}
	for _, id := range ids {
		req.False(seen[id], "duplicate room id %v", id)
		seen[id] = true
	}

	// Same numeric key, different kinds.
	req.NotEqual(CallRoom(7), InboxRoom(7))
}

func TestCallRoomRoundTrip(t *testing.T) {
	req := require.New(t)

	id, ok := CallRoom(42).CallID()
	req.True(ok)
	req.EqualValues(42, id)

	_, ok = ForumRoom().CallID()
	req.False(ok)

	token, ok := GroupCallRoom("tok-1").GroupToken()
	req.True(ok)
	req.Equal("tok-1", token)

	_, ok = CallRoom(42).GroupToken()
	req.False(ok)
}
