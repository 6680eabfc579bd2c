package broker

import (
	"container/list"
	"sync"

	"github.com/streambridge/streambridge/internal/model"
	"github.com/streambridge/streambridge/internal/transport"
)

// Participant is one connected peer: a Host, a Player occupying a slot
// 1-3, or a Spectator. It owns its Transport for the duration of its
// membership; the broker holds a Participant by id in the Room's slot
// table and spectator set.
type Participant struct {
	ID          model.ParticipantID
	DisplayName string
	IdentityToken string // optional external identity, e.g. an OAuth subject

	mu        sync.Mutex
	role      model.Role
	slot      model.SlotIndex // meaningful only when role == RolePlayer or RoleHost
	transport transport.Transport

	// subscribed marks whether this participant's video/audio fan-out
	// subscription is initialised (set once its transport reports
	// connected); videoKeyframePending requests the next keyframe be
	// flushed to it first, per spec §4.E's fan-out rule.
	subscribed           bool
	videoKeyframePending bool
	fanout               *fanout

	drawOrderElement *list.Element
}

// NewParticipant constructs a Participant in the given starting role.
func NewParticipant(id model.ParticipantID, displayName string, role model.Role, tr transport.Transport) *Participant {
	return &Participant{
		ID:          id,
		DisplayName: displayName,
		role:        role,
		transport:   tr,
	}
}

func (p *Participant) Role() model.Role {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.role
}

func (p *Participant) Slot() model.SlotIndex {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slot
}

func (p *Participant) Transport() transport.Transport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transport
}

// setSlotLocked assigns role/slot. Callers must hold the owning Room's lock.
func (p *Participant) setSlotLocked(role model.Role, slot model.SlotIndex) {
	p.mu.Lock()
	p.role = role
	p.slot = slot
	p.mu.Unlock()
}

// markSubscribed flips subscribed on, requests a keyframe flush, and
// starts the per-channel forwarder goroutines, called once when the
// participant's transport reports connected.
func (p *Participant) markSubscribed(videoQueueSize, audioQueueSize int) {
	p.mu.Lock()
	p.subscribed = true
	p.videoKeyframePending = true
	f := newFanout(videoQueueSize, audioQueueSize)
	p.fanout = f
	tr := p.transport
	p.mu.Unlock()

	if tr != nil {
		f.run(p.ID, tr)
	}
}

// replaceMediaTransport swaps in a newly negotiated transport (e.g. a
// WebRTC upgrade completing after the participant joined over plain
// WebSocket) and re-runs the fan-out forwarders against it.
func (p *Participant) replaceMediaTransport(tr transport.Transport) {
	p.mu.Lock()
	p.transport = tr
	p.videoKeyframePending = true
	f := p.fanout
	p.mu.Unlock()

	if f != nil {
		f.run(p.ID, tr)
	}
}

func (p *Participant) fanoutQueue() *fanout {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fanout
}

func (p *Participant) isSubscribed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribed
}

// consumeKeyframePending reports whether the next video unit sent to
// this participant must be a keyframe, clearing the flag afterwards.
func (p *Participant) consumeKeyframePending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pending := p.videoKeyframePending
	p.videoKeyframePending = false
	return pending
}

func (p *Participant) snapshot() ParticipantSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	kind := model.TransportWebSocket
	if p.transport != nil {
		kind = p.transport.Kind()
	}
	return ParticipantSnapshot{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Role:        p.role,
		Transport:   kind,
	}
}
