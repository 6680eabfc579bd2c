package broker

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/streambridge/streambridge/internal/ipc"
	"github.com/streambridge/streambridge/internal/model"
)

// roomIDAlphabet is base-36 uniform over [0-9A-Z], per spec §4.E's
// 6-character room id recommendation.
const roomIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

const roomIDLength = 6

// TokenValidator authenticates a bearer token presented at room join,
// grounded on the teacher's Hub.validator (internal/v1/auth.Validator).
type TokenValidator interface {
	ValidateToken(tokenString string) (subject string, err error)
}

// StreamerSpawner starts the child streamer process for a freshly
// created room. Abstracted so tests can substitute a fake process
// without touching os/exec.
type StreamerSpawner interface {
	Spawn(ctx context.Context, roomID model.RoomID) (*ipc.Process, error)
}

// Broker is the central authoritative component: the registry of live
// rooms and the authentication/spawn dependencies needed to create one.
// Analogous to the teacher's Hub, generalised from a meeting registry to
// a game-room registry.
type Broker struct {
	validator         TokenValidator
	spawner           StreamerSpawner
	defaultVideoCodec model.VideoCodec

	mu    sync.Mutex
	rooms map[model.RoomID]*Room
}

// New constructs a Broker with no rooms. defaultVideoCodec is the codec
// every room it creates requires on the RTP track plane (spec §4.B's
// capability exchange checks a peer's advertised bitmask against this).
func New(validator TokenValidator, spawner StreamerSpawner, defaultVideoCodec model.VideoCodec) *Broker {
	return &Broker{
		validator:         validator,
		spawner:           spawner,
		defaultVideoCodec: defaultVideoCodec,
		rooms:             make(map[model.RoomID]*Room),
	}
}

// generateRoomID produces a fresh room id, retrying on collision as
// spec §4.E prescribes.
func (b *Broker) generateRoomID() (model.RoomID, error) {
	for attempt := 0; attempt < 16; attempt++ {
		id, err := randomRoomID()
		if err != nil {
			return "", err
		}
		b.mu.Lock()
		_, taken := b.rooms[id]
		b.mu.Unlock()
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("broker: could not allocate a unique room id")
}

func randomRoomID() (model.RoomID, error) {
	buf := make([]byte, roomIDLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(roomIDAlphabet))))
		if err != nil {
			return "", err
		}
		buf[i] = roomIDAlphabet[n.Int64()]
	}
	return model.RoomID(buf), nil
}

// CreateRoom spawns a streamer child process and registers a new Room
// with host as its sole occupant of slot 0, per spec §4.E's Host Init
// room-creation rule.
func (b *Broker) CreateRoom(ctx context.Context, appID string, host *Participant) (*Room, error) {
	id, err := b.generateRoomID()
	if err != nil {
		return nil, err
	}

	proc, err := b.spawner.Spawn(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("broker: spawn streamer: %w", err)
	}

	room := NewRoom(id, appID, host, proc, b.removeRoom)
	room.videoCodec = b.defaultVideoCodec

	b.mu.Lock()
	b.rooms[id] = room
	b.mu.Unlock()

	slog.Info("broker: room created", "room_id", id, "host_id", host.ID)
	return room, nil
}

// Room looks up a live room by id.
func (b *Broker) Room(id model.RoomID) (*Room, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rooms[id]
	return r, ok
}

// removeRoom evicts id from the registry, e.g. once its Host has left
// and the room has been torn down.
func (b *Broker) removeRoom(id model.RoomID) {
	b.mu.Lock()
	delete(b.rooms, id)
	b.mu.Unlock()
	slog.Info("broker: room removed", "room_id", id)
}

// CloseRoom tears down room: stops its streamer, closes every
// participant's transport, and evicts it from the registry. Called when
// the Host disconnects (spec §4.E room lifecycle).
func (b *Broker) CloseRoom(room *Room) {
	for _, p := range room.Participants() {
		if tr := p.Transport(); tr != nil {
			tr.Close()
		}
	}
	if proc := room.Process(); proc != nil {
		proc.Writer.Write(ipc.KindStop, ipc.Stop{})
	}
	b.removeRoom(room.ID)
}
