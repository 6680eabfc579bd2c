package upstream

import (
	"context"
	"sync"
)

// FakeClient is a reference Client implementation used by streamer
// tests: Connect always succeeds and returns a FakeStream that records
// every submission call instead of talking to a real game host.
type FakeClient struct {
	mu      sync.Mutex
	Streams []*FakeStream

	// ConnectErr, when set, is returned by Connect instead of succeeding.
	ConnectErr error
}

func (f *FakeClient) Connect(ctx context.Context, host string, port int, cfg Config, cb Callbacks) (Stream, error) {
	if f.ConnectErr != nil {
		return nil, f.ConnectErr
	}
	s := &FakeStream{cb: cb, cfg: cfg}
	f.mu.Lock()
	f.Streams = append(f.Streams, s)
	f.mu.Unlock()
	return s, nil
}

// Submission records a single call made through the Stream interface,
// for assertions in streamer tests.
type Submission struct {
	Method string
	Args   []any
}

// FakeStream records every submission it receives and lets tests drive
// Callbacks directly via EmitVideoFrame/EmitAudioPacket/EmitTerminated.
type FakeStream struct {
	cb  Callbacks
	cfg Config

	mu          sync.Mutex
	submissions []Submission
	closed      bool
}

func (s *FakeStream) record(method string, args ...any) {
	s.mu.Lock()
	s.submissions = append(s.submissions, Submission{Method: method, Args: args})
	s.mu.Unlock()
}

func (s *FakeStream) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Submission, len(s.submissions))
	copy(out, s.submissions)
	return out
}

func (s *FakeStream) SendKeyboard(scancode int, modifiers []string, down bool) error {
	s.record("SendKeyboard", scancode, modifiers, down)
	return nil
}

func (s *FakeStream) SendMouseButton(button int, down bool) error {
	s.record("SendMouseButton", button, down)
	return nil
}

func (s *FakeStream) SendMouseMove(mode MouseMoveMode, dx, dy float64) error {
	s.record("SendMouseMove", mode, dx, dy)
	return nil
}

func (s *FakeStream) SendMouseScroll(deltaX, deltaY float64) error {
	s.record("SendMouseScroll", deltaX, deltaY)
	return nil
}

func (s *FakeStream) SendController(slot int, state ControllerState) error {
	s.record("SendController", slot, state)
	return nil
}

func (s *FakeStream) SendTouch(phase TouchPhase, touchID int, x, y float64) error {
	s.record("SendTouch", phase, touchID, x, y)
	return nil
}

func (s *FakeStream) SendText(text string) error {
	s.record("SendText", text)
	return nil
}

func (s *FakeStream) SendKeycode(keycode int, down bool) error {
	s.record("SendKeycode", keycode, down)
	return nil
}

func (s *FakeStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *FakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// EmitVideoFrame drives the Callbacks.OnVideoFrame path as if the game
// host had produced an access unit.
func (s *FakeStream) EmitVideoFrame(data []byte, keyframe bool) { s.cb.OnVideoFrame(data, keyframe) }

// EmitAudioPacket drives the Callbacks.OnAudioPacket path.
func (s *FakeStream) EmitAudioPacket(data []byte, tsMicros, durMicros int64) {
	s.cb.OnAudioPacket(data, tsMicros, durMicros)
}

// EmitTerminated drives the Callbacks.OnTerminated path.
func (s *FakeStream) EmitTerminated(errorCode int) { s.cb.OnTerminated(errorCode) }
