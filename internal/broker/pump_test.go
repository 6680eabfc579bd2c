package broker

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streambridge/streambridge/internal/ipc"
	"github.com/streambridge/streambridge/internal/model"
)

// pumpHarness wires a Room to an in-memory IPC pipe so RunStreamerPump
// can be driven without a real streamer child process.
type pumpHarness struct {
	room       *Room
	toRoom     *ipc.Writer      // writes envelopes as if they came from the streamer
	toRoomPipe *io.PipeWriter
}

func newPumpHarness() *pumpHarness {
	streamerOut, brokerIn := io.Pipe()
	_, streamerIn := io.Pipe()

	host := newTestParticipant("host-1", model.RoleHost)
	proc := &ipc.Process{Writer: ipc.NewWriter(streamerIn), Reader: ipc.NewReader(streamerOut)}
	room := NewRoom(model.RoomID("ABCDEF"), "app-1", host, proc, func(model.RoomID) {})

	return &pumpHarness{
		room:       room,
		toRoom:     ipc.NewWriter(brokerIn),
		toRoomPipe: brokerIn,
	}
}

func TestRunStreamerPumpBroadcastsMediaOut(t *testing.T) {
	h := newPumpHarness()
	guest := newTestParticipant("g1", model.RoleSpectator)
	h.room.JoinAsGuest(guest)
	guestTr := newFakeTransport()
	guest.transport = guestTr
	guest.markSubscribed(4, 4)

	b := New(&stubValidator{}, &catSpawner{}, model.CodecH264High8_444)
	notifications := make(chan ServerMessage, 8)
	go b.RunStreamerPump(h.room, func(msg ServerMessage) { notifications <- msg })

	err := h.toRoom.Write(ipc.KindMediaOut, ipc.MediaOut{ChannelID: model.ChannelVideo, Bytes: []byte("frame"), FrameType: model.FrameTypeKey})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		vc := guestTr.channelFor(model.ChannelVideo)
		return vc != nil && len(vc.sentPayloads()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRunStreamerPumpLatchesStreamingOnConnectionComplete(t *testing.T) {
	h := newPumpHarness()
	b := New(&stubValidator{}, &catSpawner{}, model.CodecH264High8_444)

	notifications := make(chan ServerMessage, 8)
	go b.RunStreamerPump(h.room, func(msg ServerMessage) { notifications <- msg })

	require.False(t, h.room.IsStreaming())

	require.NoError(t, h.toRoom.Write(ipc.KindConnectionComplete, ipc.ConnectionComplete{FPS: 60}))

	require.Eventually(t, func() bool {
		return h.room.IsStreaming()
	}, time.Second, 5*time.Millisecond)
}

func TestRunStreamerPumpClosesRoomOnConnectionTerminated(t *testing.T) {
	h := newPumpHarness()
	b := New(&stubValidator{}, &catSpawner{}, model.CodecH264High8_444)
	b.rooms[h.room.ID] = h.room

	notifications := make(chan ServerMessage, 8)
	done := make(chan struct{})
	go func() {
		b.RunStreamerPump(h.room, func(msg ServerMessage) { notifications <- msg })
		close(done)
	}()

	require.NoError(t, h.toRoom.Write(ipc.KindConnectionTerminated, ipc.ConnectionTerminated{ErrorCode: ipc.ErrorCodeClean}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected RunStreamerPump to return after ConnectionTerminated")
	}

	_, ok := b.Room(h.room.ID)
	assert.False(t, ok)
}

func TestRunStreamerPumpClosesRoomOnBrokenPipe(t *testing.T) {
	h := newPumpHarness()
	b := New(&stubValidator{}, &catSpawner{}, model.CodecH264High8_444)
	b.rooms[h.room.ID] = h.room

	notifications := make(chan ServerMessage, 8)
	done := make(chan struct{})
	go func() {
		b.RunStreamerPump(h.room, func(msg ServerMessage) { notifications <- msg })
		close(done)
	}()

	require.NoError(t, h.toRoomPipe.Close())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected RunStreamerPump to return once the ipc link breaks")
	}
}
