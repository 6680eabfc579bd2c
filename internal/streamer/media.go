package streamer

import (
	"log/slog"

	"github.com/streambridge/streambridge/internal/ipc"
	"github.com/streambridge/streambridge/internal/model"
)

// OnVideoFrame implements upstream.Callbacks. It must not block: frames
// are enqueued into a bounded ring and a separate forwarder goroutine
// drains it onto the IPC link, per spec §5's rule that upstream
// callbacks never suspend.
func (s *Session) OnVideoFrame(data []byte, keyframe bool) {
	s.mu.Lock()
	q := s.videoQueue
	dropping := s.videoDropping
	s.mu.Unlock()
	if q == nil {
		return
	}

	if dropping {
		if !keyframe {
			return
		}
		s.mu.Lock()
		s.videoDropping = false
		s.mu.Unlock()
	}

	f := frame{bytes: data, keyframe: keyframe}
	select {
	case q <- f:
	default:
		s.dropVideoUntilKeyframe(q, f)
	}
}

// dropVideoUntilKeyframe implements drop_policy=keyframe: when the video
// queue is full, drain it entirely and latch videoDropping so every
// subsequent delta frame is discarded on arrival (not just the one that
// found the queue full) until a keyframe arrives, so the first frame
// delivered after a drop is always a keyframe (spec §8 testable
// property 5).
func (s *Session) dropVideoUntilKeyframe(q chan frame, f frame) {
	for {
		select {
		case <-q:
			continue
		default:
		}
		break
	}
	if f.keyframe {
		select {
		case q <- f:
		default:
		}
		return
	}
	s.mu.Lock()
	s.videoDropping = true
	s.mu.Unlock()
}

// OnAudioPacket implements upstream.Callbacks. Audio uses drop_policy=packet:
// when full, the oldest queued packet is simply discarded to make room.
func (s *Session) OnAudioPacket(data []byte, timestampMicros, durationMicros int64) {
	s.mu.Lock()
	q := s.audioQueue
	s.mu.Unlock()
	if q == nil {
		return
	}

	f := frame{bytes: data, timestamp: timestampMicros, duration: durationMicros}
	select {
	case q <- f:
	default:
		select {
		case <-q:
		default:
		}
		select {
		case q <- f:
		default:
		}
	}
}

// OnTerminated implements upstream.Callbacks: the game host closed the
// session or the upstream library reported a fatal error. This always
// terminates the streamer session.
func (s *Session) OnTerminated(errorCode int) {
	slog.Warn("streamer: upstream reported termination", "error_code", errorCode)
	s.terminate(ipc.ErrorCodeUpstreamConnectFail)
}

// forwardMediaLoops drains the video/audio queues onto the IPC link as
// MediaOut envelopes. Called once per session, after Init, so the
// broker fans each unit out to every subscribed guest's transport
// channel without the streamer knowing about peers at all.
func (s *Session) forwardMediaLoops() {
	go func() {
		for f := range s.videoQueue {
			ft := model.FrameTypeDelta
			if f.keyframe {
				ft = model.FrameTypeKey
			}
			s.send(ipc.KindMediaOut, ipc.MediaOut{ChannelID: model.ChannelVideo, Bytes: f.bytes, FrameType: ft})
		}
	}()
	go func() {
		for f := range s.audioQueue {
			s.send(ipc.KindMediaOut, ipc.MediaOut{ChannelID: model.ChannelAudio, Bytes: f.bytes})
		}
	}()
}
