package broker

import (
	"errors"
	"sync"

	"github.com/streambridge/streambridge/internal/ipc"
	"github.com/streambridge/streambridge/internal/model"
)

// ErrRoomFull is never returned for a Guest join (a full room silently
// assigns Spectator per the Open Question resolution in SPEC_FULL.md);
// it exists for RequestPlayerSlot, where no slot is available to grant.
var ErrRoomFull = errors.New("broker: no player slot available")

// Room is one live session: a host, up to three players, and any number
// of spectators, plus the child streamer process backing it. Exported
// methods take mu themselves; only helpers documented as such (bump)
// expect the caller to hold it.
type Room struct {
	ID    model.RoomID
	AppID string

	mu         sync.Mutex
	revision   uint64
	guestsKBM  bool
	slots      [model.MaxSlot + 1]*Participant
	spectators map[model.ParticipantID]*Participant

	// videoCodec is the codec the room's streamer encodes in, checked
	// against a peer's capability bitmask to decide whether its WebRTC
	// transport gets the RTP track plane or the data-channel fallback
	// (spec §4.B). Set once by Broker.CreateRoom.
	videoCodec model.VideoCodec

	// streaming latches true once the streamer has reached StateStreaming
	// (RunStreamerPump observing ipc.KindConnectionComplete), gating the
	// Open Question resolution that a Guest's WebRTC upgrade request
	// arriving before the Host's transport is ready is rejected fatally.
	streaming bool

	proc *ipc.Process

	onClose func(model.RoomID)
}

// NewRoom constructs an empty Room with the Host occupying slot 0.
// onClose is stored but not invoked by Room; Broker.CloseRoom evicts the
// room from the registry itself.
func NewRoom(id model.RoomID, appID string, host *Participant, proc *ipc.Process, onClose func(model.RoomID)) *Room {
	r := &Room{
		ID:         id,
		AppID:      appID,
		spectators: make(map[model.ParticipantID]*Participant),
		proc:       proc,
		onClose:    onClose,
	}
	host.setSlotLocked(model.RoleHost, model.SlotHost)
	r.slots[model.SlotHost] = host
	r.revision = 1
	return r
}

// Revision reports the room's current monotonic revision counter.
func (r *Room) Revision() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revision
}

// bump increments the revision. Callers must hold mu.
func (r *Room) bump() { r.revision++ }

// Host returns the room's Host participant. A Room always has exactly
// one, for its entire lifetime.
func (r *Room) Host() *Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[model.SlotHost]
}

// JoinAsGuest assigns g the first free slot in 1..3; if none is free it
// becomes a Spectator instead (never rejected), per spec §4.E.
func (r *Room) JoinAsGuest(g *Participant) (slot *model.SlotIndex, asSpectator bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for s := model.SlotHost + 1; s <= model.MaxSlot; s++ {
		if r.slots[s] == nil {
			g.setSlotLocked(model.RolePlayer, s)
			r.slots[s] = g
			r.bump()
			got := s
			return &got, false
		}
	}

	g.setSlotLocked(model.RoleSpectator, 0)
	r.spectators[g.ID] = g
	r.bump()
	return nil, true
}

// RequestPlayerSlot grants sp the first free slot, atomically under the
// room lock, per spec §4.E's RequestPlayerSlot handling.
func (r *Room) RequestPlayerSlot(sp *Participant) (model.SlotIndex, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for s := model.SlotHost + 1; s <= model.MaxSlot; s++ {
		if r.slots[s] == nil {
			delete(r.spectators, sp.ID)
			sp.setSlotLocked(model.RolePlayer, s)
			r.slots[s] = sp
			r.bump()
			return s, nil
		}
	}
	return 0, ErrRoomFull
}

// ReleasePlayerSlot demotes a Player back to Spectator and frees their
// slot, per spec §4.E.
func (r *Room) ReleasePlayerSlot(p *Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := p.Slot()
	if slot == model.SlotHost || r.slots[slot] != p {
		return
	}
	r.slots[slot] = nil
	p.setSlotLocked(model.RoleSpectator, 0)
	r.spectators[p.ID] = p
	r.bump()
}

// RemoveParticipant evicts p from whatever role it holds. If p was the
// Host, the room is considered closed by the caller
// (Server.handleDisconnect checks wasHost and calls Broker.CloseRoom).
// Returns the freed slot, if any.
func (r *Room) RemoveParticipant(p *Participant) (freedSlot *model.SlotIndex, wasHost bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slots[model.SlotHost] == p {
		return nil, true
	}
	delete(r.spectators, p.ID)
	for s := model.SlotHost + 1; s <= model.MaxSlot; s++ {
		if r.slots[s] == p {
			r.slots[s] = nil
			r.bump()
			got := s
			return &got, false
		}
	}
	r.bump()
	return nil, false
}

// SetGuestsKBM updates the room's guests-may-use-keyboard-and-mouse
// flag, bumping the revision.
func (r *Room) SetGuestsKBM(enabled bool) {
	r.mu.Lock()
	r.guestsKBM = enabled
	r.bump()
	r.mu.Unlock()
}

func (r *Room) guestsKBMEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.guestsKBM
}

// Participants returns every currently connected Participant (Host,
// Players, Spectators) for broadcast fan-out.
func (r *Room) Participants() []*Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Participant, 0, len(r.spectators)+model.MaxSlot+1)
	for _, s := range r.slots {
		if s != nil {
			out = append(out, s)
		}
	}
	for _, sp := range r.spectators {
		out = append(out, sp)
	}
	return out
}

// Snapshot produces the copy-on-write, serialisable room view broadcast
// to every participant, per spec §4.E's state distribution rule.
func (r *Room) Snapshot() RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := RoomSnapshot{RoomID: r.ID, AppID: r.AppID, Revision: r.revision, GuestsKBM: r.guestsKBM}
	for i, s := range r.slots {
		if s != nil {
			ps := s.snapshot()
			snap.Slots[i] = &ps
		}
	}
	for _, sp := range r.spectators {
		snap.Spectators = append(snap.Spectators, sp.snapshot())
	}
	return snap
}

// Process returns the IPC handle to this room's streamer child process.
func (r *Room) Process() *ipc.Process { return r.proc }

// VideoCodec returns the codec this room's streamer encodes in.
func (r *Room) VideoCodec() model.VideoCodec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.videoCodec
}

// SetStreaming records whether the room's streamer has reached
// StateStreaming. Called by RunStreamerPump.
func (r *Room) SetStreaming(streaming bool) {
	r.mu.Lock()
	r.streaming = streaming
	r.mu.Unlock()
}

// IsStreaming reports whether the Host's streamer has reached
// StateStreaming, i.e. produced its first ConnectionComplete.
func (r *Room) IsStreaming() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streaming
}
