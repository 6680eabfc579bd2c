package broker

import (
	"log/slog"

	"github.com/streambridge/streambridge/internal/ipc"
	"github.com/streambridge/streambridge/internal/model"
)

// RunStreamerPump reads every envelope the room's streamer child process
// emits and applies it: media units are fanned out to subscribed
// guests, terminal events close the room. It runs for the lifetime of
// the room's streamer process; when the IPC link breaks it closes the
// room itself and notifies EventRoomClosed before returning (spec §4.C:
// "the broker treats a crashed streamer as room-closure").
func (b *Broker) RunStreamerPump(room *Room, notify func(ServerMessage)) {
	proc := room.Process()
	for {
		env, err := proc.Reader.ReadEnvelope()
		if err != nil {
			slog.Warn("broker: streamer ipc closed, closing room", "room_id", room.ID, "error", err)
			b.CloseRoom(room)
			notify(ServerMessage{Event: EventRoomClosed})
			return
		}

		switch env.Kind {
		case ipc.KindMediaOut:
			var msg ipc.MediaOut
			if err := ipc.DecodePayload(env, &msg); err != nil {
				continue
			}
			room.broadcastMedia(msg.ChannelID, msg.Bytes, msg.FrameType == model.FrameTypeKey)

		case ipc.KindSetup:
			var msg ipc.Setup
			ipc.DecodePayload(env, &msg)
			notify(ServerMessage{Event: EventSetup, Payload: msg})

		case ipc.KindConnectionComplete:
			var msg ipc.ConnectionComplete
			ipc.DecodePayload(env, &msg)
			room.SetStreaming(true)
			notify(ServerMessage{Event: EventConnectionComplete, Payload: msg})

		case ipc.KindConnectionTerminated:
			var msg ipc.ConnectionTerminated
			ipc.DecodePayload(env, &msg)
			room.SetStreaming(false)
			notify(ServerMessage{Event: EventConnectionTerminated, Payload: msg})
			b.CloseRoom(room)
			return

		case ipc.KindDebugLog:
			var msg ipc.DebugLog
			ipc.DecodePayload(env, &msg)
			notify(ServerMessage{Event: EventDebugLog, Payload: msg})

		case ipc.KindUpdateApp:
			var msg ipc.UpdateApp
			ipc.DecodePayload(env, &msg)
			notify(ServerMessage{Event: EventUpdateApp, Payload: msg})
		}
	}
}

// HandleInput arbitrates and forwards a single input event from p to
// room's streamer, per spec §4.E's input arbitration rules. Rejected
// events are silently dropped and not propagated to the game host; no
// counter records them.
func (room *Room) HandleInput(p *Participant, e model.InputEvent) {
	rewritten, ok := allowInput(e, p.Role(), p.Slot(), room.guestsKBMEnabled())
	if !ok {
		return
	}
	rewritten.Origin = p.ID
	room.Process().Writer.Write(ipc.KindInput, ipc.Input{Event: rewritten})
}
