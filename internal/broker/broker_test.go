package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streambridge/streambridge/internal/ipc"
	"github.com/streambridge/streambridge/internal/model"
)

// catSpawner spawns the system "cat" binary as a stand-in streamer
// child process, mirroring ipc.TestSpawnRoundTripsThroughCat's approach
// so CreateRoom/CloseRoom can be exercised against a real *ipc.Process
// without a real streamer binary.
type catSpawner struct {
	spawnErr error
}

func (s *catSpawner) Spawn(ctx context.Context, roomID model.RoomID) (*ipc.Process, error) {
	if s.spawnErr != nil {
		return nil, s.spawnErr
	}
	return ipc.Spawn(ctx, ipc.RealCommander{}, "cat")
}

type stubValidator struct {
	subject string
	err     error
}

func (v *stubValidator) ValidateToken(tokenString string) (string, error) {
	return v.subject, v.err
}

func TestCreateRoomRegistersRoomWithHostAtSlotZero(t *testing.T) {
	b := New(&stubValidator{}, &catSpawner{}, model.CodecH264High8_444)
	host := newTestParticipant("host-1", model.RoleHost)

	room, err := b.CreateRoom(context.Background(), "app-1", host)
	require.NoError(t, err)
	assert.Len(t, room.ID, 6)
	assert.Same(t, host, room.Host())

	found, ok := b.Room(room.ID)
	require.True(t, ok)
	assert.Same(t, room, found)

	b.CloseRoom(room)
	_, ok = b.Room(room.ID)
	assert.False(t, ok, "room should be evicted after close")
}

func TestCreateRoomPropagatesSpawnError(t *testing.T) {
	b := New(&stubValidator{}, &catSpawner{spawnErr: assert.AnError}, model.CodecH264High8_444)
	host := newTestParticipant("host-1", model.RoleHost)

	_, err := b.CreateRoom(context.Background(), "app-1", host)
	assert.Error(t, err)
}

func TestCloseRoomClosesParticipantTransports(t *testing.T) {
	b := New(&stubValidator{}, &catSpawner{}, model.CodecH264High8_444)
	host := newTestParticipant("host-1", model.RoleHost)
	hostTr := newFakeTransport()
	host.transport = hostTr

	room, err := b.CreateRoom(context.Background(), "app-1", host)
	require.NoError(t, err)

	b.CloseRoom(room)

	select {
	case <-hostTr.Closed():
	default:
		t.Fatal("expected host transport to be closed")
	}
}
