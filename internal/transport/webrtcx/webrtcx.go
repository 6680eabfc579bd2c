// Package webrtcx implements the WebRTC transport variant: SCTP data
// channels for control and input, RTP media tracks for video and audio
// when the peer negotiates the matching codec, falling back to an
// unordered-reliable data channel carrying length-prefixed NAL units or
// raw Opus packets otherwise.
//
// Grounded on the server-terminated pion/webrtc pattern in
// sab307-Flask_server_trial/webrtc_go/webrtc_server.go (OnTrack,
// OnICECandidate, OnConnectionStateChange, SetRemoteDescription,
// CreateAnswer, AddTrack) and the ICE server / TURN credential plumbing
// in n0remac-robot-webrtc/videoconference.go.
package webrtcx

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/streambridge/streambridge/internal/model"
	"github.com/streambridge/streambridge/internal/transport"
)

// Sample durations for the RTP track plane. The Channel interface only
// carries encoded bytes, not per-frame timing, so WriteSample is given a
// fixed duration per media kind rather than one derived from the
// upstream capture rate; pion uses this solely to advance the RTP
// timestamp and tolerates it not matching the source frame cadence
// exactly.
const (
	videoSampleDuration = time.Second / 60
	audioSampleDuration = 20 * time.Millisecond
)

// dataChannelLabels maps the stable channel ids of spec §6 onto the
// numeric data channel labels/ids WebRTC opens them with.
var dataChannelLabels = map[model.ChannelID]string{
	model.ChannelControl: "0",
	model.ChannelVideo:   "1",
	model.ChannelAudio:   "2",
	model.ChannelInput:   "3",
	model.ChannelStats:   "4",
}

// SignalSink receives trickled ICE candidates and the local answer/offer
// for the control channel to relay to the remote peer. The broker wires
// this to the participant's control WebSocket (the signalling channel).
type SignalSink interface {
	OnICECandidate(candidate webrtc.ICECandidateInit)
	OnClose(err error)
}

// Transport is a single peer's WebRTC connection. It satisfies
// transport.Transport by lazily opening one data channel per logical
// channel id, plus RTP tracks for video/audio when Config.UseTracks is
// set.
type Transport struct {
	pc   *webrtc.PeerConnection
	sink SignalSink

	mu       sync.Mutex
	channels map[model.ChannelID]*channel
	state    transport.State

	closed    chan struct{}
	closeOnce sync.Once

	videoTrack *webrtc.TrackLocalStaticSample
	audioTrack *webrtc.TrackLocalStaticSample
	useTracks  bool // negotiated RTP media plane vs. data-channel fallback
}

// Config bundles the ICE server list and codec/track preference used to
// construct the underlying PeerConnection.
type Config struct {
	ICEServers []transport.ICEServer
	UseTracks  bool // true when the peer advertised the required codec on an RTP track
}

// New creates a PeerConnection configured per cfg and wires lifecycle
// callbacks to sink. The caller drives SDP exchange with
// HandleOffer and ICE with AddICECandidate.
func New(cfg Config, sink SignalSink) (*Transport, error) {
	iceServers := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, s := range cfg.ICEServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("webrtcx: new peer connection: %w", err)
	}

	t := &Transport{
		pc:        pc,
		sink:      sink,
		channels:  make(map[model.ChannelID]*channel),
		state:     transport.StateConnecting,
		closed:    make(chan struct{}),
		useTracks: cfg.UseTracks,
	}

	if cfg.UseTracks {
		if err := t.addMediaTracks(); err != nil {
			pc.Close()
			return nil, err
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return // end-of-candidates
		}
		t.sink.OnICECandidate(c.ToJSON())
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		slog.Info("webrtcx: connection state changed", "state", s)
		switch s {
		case webrtc.PeerConnectionStateConnected:
			t.mu.Lock()
			t.state = transport.StateConnected
			t.mu.Unlock()
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			t.Close()
		}
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		t.bindDataChannel(dc)
	})

	return t, nil
}

func (t *Transport) addMediaTracks() error {
	videoTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264},
		"video", "streambridge-video",
	)
	if err != nil {
		return fmt.Errorf("webrtcx: new video track: %w", err)
	}
	if _, err := t.pc.AddTrack(videoTrack); err != nil {
		return fmt.Errorf("webrtcx: add video track: %w", err)
	}
	t.videoTrack = videoTrack

	audioTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "streambridge-audio",
	)
	if err != nil {
		return fmt.Errorf("webrtcx: new audio track: %w", err)
	}
	if _, err := t.pc.AddTrack(audioTrack); err != nil {
		return fmt.Errorf("webrtcx: add audio track: %w", err)
	}
	t.audioTrack = audioTrack

	return nil
}

// HandleOffer applies a remote SDP offer and returns the local answer.
func (t *Transport) HandleOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := t.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("webrtcx: set remote description: %w", err)
	}
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("webrtcx: create answer: %w", err)
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("webrtcx: set local description: %w", err)
	}
	return answer, nil
}

// AddICECandidate applies a trickled remote ICE candidate.
func (t *Transport) AddICECandidate(c webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(c)
}

func (t *Transport) Kind() model.TransportKind { return model.TransportWebRTC }

func (t *Transport) State() transport.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) Closed() <-chan struct{} { return t.closed }

// Open returns the Channel for id, creating its backing data channel on
// first use (video/audio use RTP tracks instead when UseTracks is set).
func (t *Transport) Open(id model.ChannelID) (transport.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == transport.StateClosed {
		return nil, transport.ErrChannelClosed
	}
	if ch, ok := t.channels[id]; ok {
		return ch, nil
	}

	if t.useTracks && (id == model.ChannelVideo || id == model.ChannelAudio) {
		ch := &channel{id: id, transport: t, recv: make(chan []byte, 64)}
		t.channels[id] = ch
		return ch, nil
	}

	label, ok := dataChannelLabels[id]
	if !ok {
		return nil, fmt.Errorf("webrtcx: no data channel label for channel id %d", id)
	}

	ordered := id != model.ChannelVideo && id != model.ChannelAudio
	dc, err := t.pc.CreateDataChannel(label, &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return nil, fmt.Errorf("webrtcx: create data channel %q: %w", label, err)
	}

	t.mu.Unlock()
	ch := t.bindDataChannel(dc) // registers ch in t.channels under t.mu
	t.mu.Lock()
	return ch, nil
}

// bindDataChannel wires a pion DataChannel's OnMessage callback to a
// Channel's receive queue, either for a channel we created locally
// (CreateDataChannel) or one the remote peer opened (OnDataChannel).
func (t *Transport) bindDataChannel(dc *webrtc.DataChannel) *channel {
	id := channelIDForLabel(dc.Label())
	ch := &channel{id: id, transport: t, dc: dc, recv: make(chan []byte, 64)}

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		select {
		case ch.recv <- msg.Data:
		default:
			slog.Warn("webrtcx: receive queue full, dropping payload", "channel", id)
		}
	})

	t.mu.Lock()
	t.channels[id] = ch
	t.mu.Unlock()
	return ch
}

func channelIDForLabel(label string) model.ChannelID {
	for id, l := range dataChannelLabels {
		if l == label {
			return id
		}
	}
	return model.ChannelControl
}

func (t *Transport) VideoTrack() *webrtc.TrackLocalStaticSample { return t.videoTrack }
func (t *Transport) AudioTrack() *webrtc.TrackLocalStaticSample { return t.audioTrack }

func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.state = transport.StateClosed
		for _, ch := range t.channels {
			close(ch.recv)
		}
		t.mu.Unlock()
		close(t.closed)
		t.pc.Close()
		t.sink.OnClose(nil)
	})
	return nil
}

type channel struct {
	id        model.ChannelID
	transport *Transport
	dc        *webrtc.DataChannel
	recv      chan []byte
}

func (c *channel) ID() model.ChannelID { return c.id }

func (c *channel) Send(ctx context.Context, payload []byte) error {
	if c.dc == nil {
		return c.writeTrackSample(payload)
	}
	if c.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return transport.ErrChannelClosed
	}
	return c.dc.Send(payload)
}

// writeTrackSample is the RTP track plane's Send: payload is handed to
// pion as one complete sample on the track matching c.id. Reached only
// when the transport negotiated UseTracks, so c.transport's track
// fields are populated by addMediaTracks.
func (c *channel) writeTrackSample(payload []byte) error {
	switch c.id {
	case model.ChannelVideo:
		if c.transport.videoTrack == nil {
			return fmt.Errorf("webrtcx: channel %d has no RTP video track", c.id)
		}
		return c.transport.videoTrack.WriteSample(media.Sample{Data: payload, Duration: videoSampleDuration})
	case model.ChannelAudio:
		if c.transport.audioTrack == nil {
			return fmt.Errorf("webrtcx: channel %d has no RTP audio track", c.id)
		}
		return c.transport.audioTrack.WriteSample(media.Sample{Data: payload, Duration: audioSampleDuration})
	default:
		return fmt.Errorf("webrtcx: channel %d has no data channel (RTP track plane)", c.id)
	}
}

func (c *channel) Receive() <-chan []byte { return c.recv }

func (c *channel) Close() error { return nil } // lifecycle owned by the Transport
