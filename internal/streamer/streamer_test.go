package streamer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streambridge/streambridge/internal/ipc"
	"github.com/streambridge/streambridge/internal/model"
	"github.com/streambridge/streambridge/internal/upstream"
)

// harness wires a Session to a pair of in-memory buffers so a test can
// feed it inbound envelopes and observe outbound ones without a real
// child process. Session.Run reads toSess until it is empty, so every
// inbound envelope is pushed before Run is called.
type harness struct {
	session  *Session
	toSess   *bytes.Buffer // parent -> streamer, drained by Session.Run
	fromSess *bytes.Buffer // streamer -> parent, written by Session
}

func newHarness(client upstream.Client) *harness {
	in := &bytes.Buffer{}
	out := &bytes.Buffer{}
	w := ipc.NewWriter(out)
	r := ipc.NewReader(in)
	return &harness{session: New(client, w, r), toSess: in, fromSess: out}
}

func (h *harness) push(kind ipc.Kind, payload any) {
	w := ipc.NewWriter(h.toSess)
	w.Write(kind, payload)
}

func TestSessionRejectsStartStreamBeforeInit(t *testing.T) {
	client := &upstream.FakeClient{}
	h := newHarness(client)
	h.push(ipc.KindStartStream, ipc.StartStream{})
	h.push(ipc.KindStop, ipc.Stop{})

	code := h.session.Run(context.Background())
	assert.Equal(t, ipc.ErrorCodeProtocol, code)
}

func TestSessionHappyPathReachesStreaming(t *testing.T) {
	client := &upstream.FakeClient{}
	h := newHarness(client)

	h.push(ipc.KindInit, ipc.Init{HostID: "17", AppID: "42", SessionParams: ipc.SessionParams{
		VideoFrameQueueSize: 3, AudioSampleQueueSize: 20,
	}})
	h.push(ipc.KindStartStream, ipc.StartStream{Width: 1920, Height: 1080, FPS: 60})
	h.push(ipc.KindStop, ipc.Stop{})

	code := h.session.Run(context.Background())
	assert.Equal(t, ipc.ErrorCodeClean, code)

	require.Len(t, client.Streams, 1)
}

func TestForwardInputDispatchesToUpstreamStream(t *testing.T) {
	client := &upstream.FakeClient{}
	s := New(client, ipc.NewWriter(&bytes.Buffer{}), ipc.NewReader(&bytes.Buffer{}))

	s.mu.Lock()
	s.inputQueue = make(chan model.InputEvent, 4)
	s.mu.Unlock()

	stream, err := client.Connect(context.Background(), "h", 0, upstream.Config{}, s)
	require.NoError(t, err)
	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()

	go s.forwardInputLoop()
	s.forwardInput(model.InputEvent{Kind: model.InputKeyDown, Scancode: 0x1E})

	fs := stream.(*upstream.FakeStream)
	require.Eventually(t, func() bool { return len(fs.Submissions()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "SendKeyboard", fs.Submissions()[0].Method)

	close(s.inputQueue)
}

func TestForwardInputGamepadCoalescingNeverEvictsKeyboardEvents(t *testing.T) {
	s := New(&upstream.FakeClient{}, ipc.NewWriter(&bytes.Buffer{}), ipc.NewReader(&bytes.Buffer{}))
	s.mu.Lock()
	s.inputQueue = make(chan model.InputEvent, 4)
	s.gamepadQueue = make(chan model.InputEvent, 1)
	s.mu.Unlock()

	s.forwardInput(model.InputEvent{Kind: model.InputKeyDown, Scancode: 0x1E})

	// Fill the gamepad queue, then offer two more snapshots: each must
	// coalesce within the gamepad queue only, never touching the
	// keyboard event already queued on the never-drop queue.
	s.forwardInput(model.InputEvent{Kind: model.InputGamepadState, TargetSlot: 1, Gamepad: &model.GamepadState{Buttons: 1}})
	s.forwardInput(model.InputEvent{Kind: model.InputGamepadState, TargetSlot: 1, Gamepad: &model.GamepadState{Buttons: 2}})
	s.forwardInput(model.InputEvent{Kind: model.InputGamepadState, TargetSlot: 1, Gamepad: &model.GamepadState{Buttons: 3}})

	require.Len(t, s.inputQueue, 1)
	keyEvent := <-s.inputQueue
	assert.Equal(t, model.InputKeyDown, keyEvent.Kind)

	require.Len(t, s.gamepadQueue, 1)
	padEvent := <-s.gamepadQueue
	assert.Equal(t, uint32(3), padEvent.Gamepad.Buttons)
}

func TestOnVideoFrameDropsToNextKeyframeWhenQueueFull(t *testing.T) {
	s := New(&upstream.FakeClient{}, ipc.NewWriter(&bytes.Buffer{}), ipc.NewReader(&bytes.Buffer{}))
	s.mu.Lock()
	s.videoQueue = make(chan frame, 3)
	s.mu.Unlock()

	for i := 0; i < 3; i++ {
		s.OnVideoFrame([]byte("fill"), false)
	}
	require.Len(t, s.videoQueue, 3)

	// Sustained drop: every delta arriving while the queue stays full is
	// dropped on sight, not just the one call that found it full, and
	// nothing is ever re-admitted until a keyframe shows up (spec §4.B,
	// §8 testable property 5). Nothing drains s.videoQueue concurrently
	// here, so any re-admission would be directly observable.
	s.OnVideoFrame([]byte("delta-1"), false)
	s.OnVideoFrame([]byte("delta-2"), false)
	s.OnVideoFrame([]byte("delta-3"), false)
	assert.Empty(t, s.videoQueue)
	s.mu.Lock()
	assert.True(t, s.videoDropping)
	s.mu.Unlock()

	s.OnVideoFrame([]byte("key-1"), true) // keyframe lands once it arrives

	require.Len(t, s.videoQueue, 1)
	got := <-s.videoQueue
	assert.True(t, got.keyframe)
	assert.Equal(t, []byte("key-1"), got.bytes)
}
