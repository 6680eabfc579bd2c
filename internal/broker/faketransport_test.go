package broker

import (
	"context"
	"sync"

	"github.com/streambridge/streambridge/internal/model"
	"github.com/streambridge/streambridge/internal/transport"
)

// fakeChannel records every payload sent to it, standing in for a real
// wsx/webrtcx Channel in broker-package unit tests.
type fakeChannel struct {
	id   model.ChannelID
	mu   sync.Mutex
	sent [][]byte
	recv chan []byte
}

func newFakeChannel(id model.ChannelID) *fakeChannel {
	return &fakeChannel{id: id, recv: make(chan []byte, 16)}
}

func (c *fakeChannel) Send(_ context.Context, payload []byte) error {
	c.mu.Lock()
	c.sent = append(c.sent, payload)
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) Receive() <-chan []byte { return c.recv }
func (c *fakeChannel) Close() error           { close(c.recv); return nil }
func (c *fakeChannel) ID() model.ChannelID    { return c.id }

func (c *fakeChannel) sentPayloads() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// fakeTransport is a minimal transport.Transport backed by fakeChannels,
// one per logical channel id opened.
type fakeTransport struct {
	mu       sync.Mutex
	channels map[model.ChannelID]*fakeChannel
	closed   chan struct{}
	kind     model.TransportKind
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		channels: make(map[model.ChannelID]*fakeChannel),
		closed:   make(chan struct{}),
		kind:     model.TransportWebSocket,
	}
}

func (t *fakeTransport) Open(id model.ChannelID) (transport.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.channels[id]
	if !ok {
		ch = newFakeChannel(id)
		t.channels[id] = ch
	}
	return ch, nil
}

func (t *fakeTransport) State() transport.State { return transport.StateConnected }

func (t *fakeTransport) Closed() <-chan struct{} { return t.closed }

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.closed:
	default:
		close(t.closed)
	}
	return nil
}

func (t *fakeTransport) Kind() model.TransportKind { return t.kind }

func (t *fakeTransport) channelFor(id model.ChannelID) *fakeChannel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channels[id]
}
