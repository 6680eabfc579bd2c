// Package wsx implements the WebSocket transport variant: a single TCP
// connection carrying every logical channel multiplexed by
// internal/framing. JSON control messages ride as framed control-channel
// payloads; media frames are length-prefixed binary. This variant is
// always available and is the mandatory fallback when WebRTC negotiation
// fails or is not requested.
//
// The read/write pump split is grounded on the teacher's Client
// (internal/v1/session/client.go): one goroutine drains the socket into
// per-channel Go channels, another drains a single outbound queue onto
// the socket, so a single writer owns the connection at all times.
package wsx

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/streambridge/streambridge/internal/framing"
	"github.com/streambridge/streambridge/internal/model"
	"github.com/streambridge/streambridge/internal/transport"
)

// conn is the subset of *websocket.Conn that Transport depends on,
// mirrored from the teacher's wsConnection interface so tests can
// substitute a fake connection.
type conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Transport multiplexes model.ChannelID-addressed Channels over a
// single WebSocket connection via the framing codec.
type Transport struct {
	conn conn

	mu       sync.Mutex
	channels map[model.ChannelID]*channel
	state    transport.State

	outbound chan []byte
	closed   chan struct{}
	closeOnce sync.Once

	maxFrameSize int
}

// New wraps an established WebSocket connection. The caller has already
// completed the HTTP upgrade; New starts the read/write pumps and
// returns immediately with the transport in StateConnected, since a
// WebSocket's "connected" state is the completed upgrade itself.
func New(c conn) *Transport {
	t := &Transport{
		conn:         c,
		channels:     make(map[model.ChannelID]*channel),
		state:        transport.StateConnected,
		outbound:     make(chan []byte, 256),
		closed:       make(chan struct{}),
		maxFrameSize: framing.MaxFrameSize,
	}
	go t.writePump()
	go t.readPump()
	return t
}

func (t *Transport) Kind() model.TransportKind { return model.TransportWebSocket }

func (t *Transport) State() transport.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) Closed() <-chan struct{} { return t.closed }

// Open returns (creating if necessary) the Channel for id. Every
// logical channel shares the same underlying socket; Open simply hands
// back a demultiplexed view keyed by channel id.
func (t *Transport) Open(id model.ChannelID) (transport.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == transport.StateClosed {
		return nil, transport.ErrChannelClosed
	}

	if ch, ok := t.channels[id]; ok {
		return ch, nil
	}

	ch := &channel{
		id:     id,
		parent: t,
		recv:   make(chan []byte, 64),
	}
	t.channels[id] = ch
	return ch, nil
}

func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.state = transport.StateClosed
		for _, ch := range t.channels {
			close(ch.recv)
		}
		t.mu.Unlock()
		close(t.closed)
		close(t.outbound)
		t.conn.Close()
	})
	return nil
}

// writePump drains the single outbound queue onto the socket. Exactly
// one writer goroutine ever touches the connection, satisfying the
// single-writer-per-channel concurrency invariant of spec §5.
func (t *Transport) writePump() {
	for frame := range t.outbound {
		if err := t.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			slog.Error("wsx: write error, closing transport", "error", err)
			t.Close()
			return
		}
	}
}

// readPump decodes frames and demultiplexes them to the matching
// per-channel receive queue. An unknown channel id or oversized frame
// is a protocol error (spec §4.A) and closes the transport.
func (t *Transport) readPump() {
	defer t.Close()

	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("wsx: unexpected close", "error", err)
			}
			return
		}

		decoder := framing.NewDecoder(newBytesReader(raw), t.maxFrameSize)
		id, payload, err := decoder.Next()
		if err != nil {
			slog.Error("wsx: malformed frame, terminating transport", "error", err)
			return
		}

		t.mu.Lock()
		ch, ok := t.channels[id]
		t.mu.Unlock()
		if !ok {
			slog.Error("wsx: frame for unopened channel", "channel", id)
			continue
		}

		select {
		case ch.recv <- payload:
		default:
			slog.Warn("wsx: receive queue full, dropping payload", "channel", id)
		}
	}
}

type channel struct {
	id     model.ChannelID
	parent *Transport
	recv   chan []byte
}

func (c *channel) ID() model.ChannelID { return c.id }

func (c *channel) Send(ctx context.Context, payload []byte) error {
	frame := framing.Encode(c.id, payload)
	select {
	case c.parent.outbound <- frame:
		return nil
	case <-c.parent.closed:
		return transport.ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *channel) Receive() <-chan []byte { return c.recv }

func (c *channel) Close() error { return nil } // lifecycle owned by the Transport

// bytesReader adapts a single already-read message into an io.Reader so
// the shared framing.Decoder can parse it (framing.NewDecoder still wraps
// it in its own bufio.Reader for each message).
type bytesReader struct {
	buf []byte
	pos int
}

func newBytesReader(buf []byte) *bytesReader { return &bytesReader{buf: buf} }

func (b *bytesReader) Read(p []byte) (int, error) {
	if b.pos >= len(b.buf) {
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.pos:])
	b.pos += n
	return n, nil
}
