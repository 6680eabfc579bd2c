// Package streamer implements the child-process session that terminates
// the upstream game-streaming protocol and relays media/input across the
// IPC link to the broker. One Session exists per live room, for the
// lifetime of the Host participant.
//
// State machine: Idle -> Initializing -> Negotiating -> Streaming -> Terminating.
// Idle moves to Initializing on Init; Initializing moves to Negotiating once
// the upstream client connects; Negotiating moves to Streaming once
// StartStream has been processed after transport is up; any state moves to
// Terminating on Stop, transport death, or upstream error.
package streamer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streambridge/streambridge/internal/ipc"
	"github.com/streambridge/streambridge/internal/model"
	"github.com/streambridge/streambridge/internal/upstream"
)

// State is the session's lifecycle stage.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateNegotiating
	StateStreaming
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateNegotiating:
		return "negotiating"
	case StateStreaming:
		return "streaming"
	case StateTerminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// ErrProtocolViolation names the failure of a message arriving out of the
// order spec §4.C requires (e.g. StartStream before Init is acked).
// Session does not return it: on such a message it emits a fatal
// DebugLog and terminates with ipc.ErrorCodeProtocol.
var ErrProtocolViolation = fmt.Errorf("streamer: protocol violation")

// Session owns one game-host connection and forwards media/input across
// w/r, the IPC link to the parent broker process.
type Session struct {
	client upstream.Client
	w      *ipc.Writer
	r      *ipc.Reader

	mu    sync.Mutex
	state State

	stream      upstream.Stream
	params      ipc.SessionParams
	hostID      string
	appID       string
	colorspace  model.Colorspace

	videoDropping bool

	videoQueue chan frame
	audioQueue chan frame

	// inputQueue carries keyboard/mouse/touch/text events, which spec
	// §4.B requires are never dropped. gamepadQueue is separate so that
	// a full gamepad queue's latest-wins coalescing (see
	// coalesceGamepad) can never evict an unrelated never-drop event.
	inputQueue   chan model.InputEvent
	gamepadQueue chan model.InputEvent

	outbound chan ipc.Envelope
	done     chan struct{}
}

type frame struct {
	bytes     []byte
	keyframe  bool
	timestamp int64
	duration  int64
}

// New constructs a Session bound to the given upstream client and IPC
// codec endpoints (typically stdin/stdout of the streamer process).
func New(client upstream.Client, w *ipc.Writer, r *ipc.Reader) *Session {
	s := &Session{
		client:   client,
		w:        w,
		r:        r,
		state:    StateIdle,
		outbound: make(chan ipc.Envelope, 256),
		done:     make(chan struct{}),
	}
	go s.writerLoop()
	return s
}

// send enqueues an outbound envelope. w is a single io.Writer shared by
// the media forwarder, the input loop, and the main Run goroutine; this
// channel is the one writer that ever touches it, per the
// single-writer-per-channel concurrency invariant.
func (s *Session) send(kind ipc.Kind, payload any) {
	select {
	case s.outbound <- ipc.Envelope{Kind: kind, Payload: payload}:
	case <-s.done:
	}
}

func (s *Session) writerLoop() {
	for env := range s.outbound {
		if err := s.w.WriteEnvelope(env); err != nil {
			slog.Error("streamer: ipc write failed", "error", err)
			return
		}
	}
}

// Run drives the session's read loop until Stop, transport death, or a
// fatal upstream error, emitting ConnectionTerminated before returning.
// The caller (cmd/streamer's main) exits the process with the matching
// code once Run returns.
func (s *Session) Run(ctx context.Context) int {
	for {
		env, err := s.r.ReadEnvelope()
		if err != nil {
			slog.Error("streamer: ipc read failed, terminating", "error", err)
			return s.terminate(ipc.ErrorCodeProtocol)
		}

		code, done := s.handle(ctx, env)
		if done {
			return code
		}
	}
}

// handle dispatches a single inbound envelope, returning (exitCode, true)
// when the session should stop.
func (s *Session) handle(ctx context.Context, env ipc.Envelope) (int, bool) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch env.Kind {
	case ipc.KindInit:
		if state != StateIdle {
			return s.protocolViolation("init", state)
		}
		var msg ipc.Init
		if err := ipc.DecodePayload(env, &msg); err != nil {
			return s.protocolViolation("init: decode", state)
		}
		return s.handleInit(ctx, msg)

	case ipc.KindStartStream:
		if state != StateNegotiating {
			return s.protocolViolation("start_stream", state)
		}
		var msg ipc.StartStream
		if err := ipc.DecodePayload(env, &msg); err != nil {
			return s.protocolViolation("start_stream: decode", state)
		}
		return s.handleStartStream(msg)

	case ipc.KindInput:
		if state != StateStreaming {
			return 0, false // input before streaming is dropped, not fatal
		}
		var msg ipc.Input
		if err := ipc.DecodePayload(env, &msg); err != nil {
			slog.Warn("streamer: malformed input event, ignoring")
			return 0, false
		}
		s.forwardInput(msg.Event)
		return 0, false

	case ipc.KindUpdatePermissions:
		// Permission state lives in the broker; the streamer itself does
		// not gate input (the broker has already filtered it), so this
		// message is accepted but carries no local effect.
		return 0, false

	case ipc.KindSetTransport:
		return 0, false

	case ipc.KindStop:
		return s.terminate(ipc.ErrorCodeClean), true

	default:
		return s.protocolViolation(string(env.Kind), state)
	}
}

func (s *Session) protocolViolation(op string, state State) (int, bool) {
	slog.Error("streamer: protocol violation", "op", op, "state", state.String())
	s.send(ipc.KindDebugLog, ipc.DebugLog{Ty: model.DebugFatal, Message: fmt.Sprintf("protocol violation: %s in state %s", op, state)})
	return s.terminate(ipc.ErrorCodeProtocol), true
}

func (s *Session) handleInit(ctx context.Context, msg ipc.Init) (int, bool) {
	s.mu.Lock()
	s.state = StateInitializing
	s.hostID = msg.HostID
	s.appID = msg.AppID
	s.params = msg.SessionParams
	s.videoQueue = make(chan frame, max(1, msg.SessionParams.VideoFrameQueueSize))
	s.audioQueue = make(chan frame, max(1, msg.SessionParams.AudioSampleQueueSize))
	s.videoDropping = false
	s.inputQueue = make(chan model.InputEvent, 64)
	s.gamepadQueue = make(chan model.InputEvent, 8)
	s.mu.Unlock()

	stream, err := s.client.Connect(ctx, msg.HostID, 0, upstream.Config{
		AppID:  msg.AppID,
		Width:  msg.SessionParams.Width,
		Height: msg.SessionParams.Height,
		FPS:    msg.SessionParams.FPS,
	}, s)
	if err != nil {
		slog.Error("streamer: upstream connect failed", "error", err)
		s.send(ipc.KindDebugLog, ipc.DebugLog{Ty: model.DebugFatal, Message: "cannot reach game host"})
		return s.terminate(ipc.ErrorCodeUpstreamConnectFail), true
	}

	s.mu.Lock()
	s.stream = stream
	s.state = StateNegotiating
	s.mu.Unlock()

	s.send(ipc.KindSetup, ipc.Setup{})
	s.forwardMediaLoops()
	go s.forwardInputLoop()
	return 0, false
}

func (s *Session) handleStartStream(msg ipc.StartStream) (int, bool) {
	s.mu.Lock()
	s.colorspace = msg.Colorspace
	s.state = StateStreaming
	s.mu.Unlock()

	s.send(ipc.KindConnectionComplete, ipc.ConnectionComplete{
		NegotiatedFormat: s.params.VideoCodec,
		Width:            msg.Width,
		Height:           msg.Height,
		FPS:              msg.FPS,
	})
	return 0, false
}

// terminate moves the session to Terminating, releases the upstream
// stream if one exists, and emits the terminal IPC event. It is safe to
// call more than once; only the first call's code is reported to the
// caller's exit status.
func (s *Session) terminate(code int) int {
	s.mu.Lock()
	if s.state == StateTerminating {
		s.mu.Unlock()
		return code
	}
	s.state = StateTerminating
	stream := s.stream
	videoQueue, audioQueue, inputQueue, gamepadQueue := s.videoQueue, s.audioQueue, s.inputQueue, s.gamepadQueue
	s.mu.Unlock()

	if stream != nil {
		stream.Close()
	}
	s.send(ipc.KindConnectionTerminated, ipc.ConnectionTerminated{ErrorCode: code})
	close(s.done)
	close(s.outbound)

	if videoQueue != nil {
		close(videoQueue)
	}
	if audioQueue != nil {
		close(audioQueue)
	}
	if inputQueue != nil {
		close(inputQueue)
	}
	if gamepadQueue != nil {
		close(gamepadQueue)
	}
	return code
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
