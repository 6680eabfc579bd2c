package broker

import (
	"context"

	"github.com/streambridge/streambridge/internal/ipc"
	"github.com/streambridge/streambridge/internal/model"
)

// ProcessSpawner is the production StreamerSpawner: it spawns the
// configured streamer binary via ipc.Spawn, passing the room id as its
// sole argument so the child can tag its own logs.
type ProcessSpawner struct {
	Binary string
}

// Spawn starts the streamer binary found on PATH.
func (s ProcessSpawner) Spawn(ctx context.Context, roomID model.RoomID) (*ipc.Process, error) {
	return ipc.Spawn(ctx, ipc.RealCommander{}, s.Binary, string(roomID))
}
