package broker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/streambridge/streambridge/internal/model"
	"github.com/streambridge/streambridge/internal/transport"
)

// mediaUnit is a single encoded access unit or audio packet queued for
// delivery to one participant's transport channel.
type mediaUnit struct {
	channel  model.ChannelID
	bytes    []byte
	keyframe bool
}

// fanout owns one bounded per-participant queue per media channel and
// the goroutine draining it onto the participant's Transport, applying
// spec §4.B's drop_policy when that participant's queue is full without
// ever blocking the Host path or any other guest.
type fanout struct {
	mu            sync.Mutex
	video         chan mediaUnit
	audio         chan mediaUnit
	videoDropping bool
}

func newFanout(videoQueueSize, audioQueueSize int) *fanout {
	if videoQueueSize < 1 {
		videoQueueSize = 3
	}
	if audioQueueSize < 1 {
		audioQueueSize = 20
	}
	return &fanout{
		video: make(chan mediaUnit, videoQueueSize),
		audio: make(chan mediaUnit, audioQueueSize),
	}
}

// offerVideo implements drop_policy=keyframe: once the queue has been
// found full, videoDropping latches so every subsequent delta is
// discarded on arrival (not just the one that found the queue full)
// until a keyframe arrives. The queue itself is drained at the moment it
// is found full; a keyframe that finds it full is admitted into the
// emptied queue, so the first frame delivered after a drop is always a
// keyframe (spec §8 testable property 5).
func (f *fanout) offerVideo(u mediaUnit) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.videoDropping {
		if !u.keyframe {
			return
		}
		f.videoDropping = false
	}

	select {
	case f.video <- u:
		return
	default:
	}

	for {
		select {
		case <-f.video:
			continue
		default:
		}
		break
	}
	if u.keyframe {
		select {
		case f.video <- u:
		default:
		}
		return
	}
	f.videoDropping = true
}

func (f *fanout) offerAudio(u mediaUnit) {
	select {
	case f.audio <- u:
		return
	default:
		select {
		case <-f.audio:
		default:
		}
		select {
		case f.audio <- u:
		default:
		}
	}
}

// run drains both queues onto tr until tr closes, two goroutines per
// participant (one per media channel), satisfying the
// single-writer-per-channel invariant.
func (f *fanout) run(participantID model.ParticipantID, tr transport.Transport) {
	videoCh, err := tr.Open(model.ChannelVideo)
	if err != nil {
		slog.Error("broker: open video channel failed", "participant", participantID, "error", err)
		return
	}
	audioCh, err := tr.Open(model.ChannelAudio)
	if err != nil {
		slog.Error("broker: open audio channel failed", "participant", participantID, "error", err)
		return
	}

	go forwardQueue(f.video, videoCh, tr.Closed())
	go forwardQueue(f.audio, audioCh, tr.Closed())
}

func forwardQueue(q chan mediaUnit, ch transport.Channel, closed <-chan struct{}) {
	ctx := context.Background()
	for {
		select {
		case u, ok := <-q:
			if !ok {
				return
			}
			if err := ch.Send(ctx, u.bytes); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// broadcastMedia tees a media unit produced by the Host's streamer to
// every participant currently subscribed to that channel, flushing the
// pending keyframe-first unit before steady-state forwarding when a
// participant has just subscribed.
func (r *Room) broadcastMedia(channel model.ChannelID, bytes []byte, keyframe bool) {
	for _, p := range r.Participants() {
		if p == r.Host() {
			continue
		}
		if !p.isSubscribed() {
			continue
		}
		f := p.fanoutQueue()
		if f == nil {
			continue
		}
		u := mediaUnit{channel: channel, bytes: bytes, keyframe: keyframe}
		switch channel {
		case model.ChannelVideo:
			if !keyframe {
				p.mu.Lock()
				pending := p.videoKeyframePending
				p.mu.Unlock()
				if pending {
					continue // waiting for the first keyframe after subscribe
				}
			} else {
				p.consumeKeyframePending()
			}
			f.offerVideo(u)
		case model.ChannelAudio:
			f.offerAudio(u)
		}
	}
}
