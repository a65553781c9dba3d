package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modaba/pursuit-server/internal/game"
)

func TestManager_CreateAndFind(t *testing.T) {
	m := NewManager(8)

	r := m.CreateRoom()
	assert.Len(t, r.ID, 4)
	assert.Same(t, r, m.GetRoom(r.ID))

	p := game.NewParticipant("someone")
	require.NoError(t, r.AddParticipant(p))
	assert.Same(t, r, m.FindRoomByPlayer(p.PlayerID))
	assert.Nil(t, m.FindRoomByPlayer("nobody"))

	m.RemoveRoom(r.ID)
	assert.Nil(t, m.GetRoom(r.ID))
	assert.Equal(t, 0, m.RoomCount())
}

func TestManager_OverduePlaying(t *testing.T) {
	m := NewManager(8)

	overdueRoom := m.CreateRoom()
	freshRoom := m.CreateRoom()
	waitingRoom := m.CreateRoom()

	for _, r := range []*Room{overdueRoom, freshRoom} {
		host := game.NewParticipant("host")
		guest := game.NewParticipant("guest")
		require.NoError(t, r.AddParticipant(host))
		require.NoError(t, r.AddParticipant(guest))
		_, err := r.Start(host.PlayerID, nil, nil, testAssigner, testDuration)
		require.NoError(t, err)
	}

	// A session started GAME_DURATION+1 minutes ago is overdue; one started
	// a minute ago is not; a waiting room never is.
	overdueRoom.Session.Deadline = time.Now().Add(-time.Minute)
	_ = waitingRoom

	got := m.OverduePlaying(time.Now())
	require.Len(t, got, 1)
	assert.Same(t, overdueRoom, got[0])
}
