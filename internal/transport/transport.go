// Package transport defines the polymorphic channel contract that lets
// the broker and streamer treat a WebRTC peer and a WebSocket peer
// identically: open(channel_id) -> Channel, where Channel supports a
// backpressure-aware send, an inbound callback, and a one-shot
// connect/close lifecycle.
//
// Two concrete implementations satisfy Transport: internal/transport/webrtcx
// (SCTP data channels + RTP media tracks) and internal/transport/wsx
// (a single duplex byte stream multiplexed by internal/framing). Upper
// layers (broker, streamer) depend only on this package's interfaces.
package transport

import (
	"context"
	"errors"

	"github.com/streambridge/streambridge/internal/model"
)

// ErrChannelClosed is returned by Send/Receive operations against a
// Channel whose underlying peer has disconnected.
var ErrChannelClosed = errors.New("transport: channel closed")

// State is the one-shot connect/close lifecycle of a Transport.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateClosed
)

// Channel is a named endpoint carrying media, control, or input over
// whichever Transport opened it. Implementations do not apply the
// drop_policy of spec §4.B themselves; the broker's fan-out queues do,
// before calling Send.
type Channel interface {
	// Send enqueues payload for delivery, applying the channel's
	// backpressure policy. It returns ErrChannelClosed if the peer has
	// disconnected.
	Send(ctx context.Context, payload []byte) error

	// Receive returns the channel over which inbound payloads arrive.
	// It is closed when the owning Transport closes.
	Receive() <-chan []byte

	// Close is idempotent. In wsx and webrtcx it is a no-op: the
	// owning Transport controls the channel's lifecycle.
	Close() error

	// ID reports which logical channel (video/audio/input/control/stats)
	// this Channel instance carries.
	ID() model.ChannelID
}

// Transport is the peer-facing abstraction a participant owns: it opens
// Channels on demand and reports its own connect/close lifecycle.
type Transport interface {
	// Open returns the Channel for the given logical channel id, creating
	// it on first use. Calling Open on a transport in StateClosed returns
	// ErrChannelClosed; Open while StateConnecting succeeds.
	Open(id model.ChannelID) (Channel, error)

	// State reports the current lifecycle state.
	State() State

	// Closed returns a channel closed exactly once, when the transport
	// tears down (peer disconnect, negotiation failure, explicit Close).
	Closed() <-chan struct{}

	// Close tears down every channel and the underlying peer connection.
	// Idempotent.
	Close() error

	// Kind reports which concrete variant backs this Transport, mainly
	// for logging and for the broker's fan-out bookkeeping.
	Kind() model.TransportKind
}

// Config carries the negotiation policy and timeouts of spec §4.B/§5.
type Config struct {
	Mode               model.TransportKind // auto | webrtc | websocket
	NegotiationTimeout  int64               // seconds, default 8
	ICEServers          []ICEServer
}

// ICEServer mirrors webrtc.ice_servers[] from spec §6.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// DefaultNegotiationTimeoutSeconds is the spec-recommended deadline for
// WebRTC negotiation before falling back to WebSocket under `auto`.
const DefaultNegotiationTimeoutSeconds = 8
