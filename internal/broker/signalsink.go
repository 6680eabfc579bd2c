package broker

import (
	"encoding/json"
	"log/slog"

	"github.com/pion/webrtc/v4"
)

// participantSignalSink relays a Participant's WebRTC PeerConnection
// lifecycle events back over its control channel, implementing
// webrtcx.SignalSink. ICE candidates are trickled as webrtc events; a
// peer connection close is logged but does not by itself tear down the
// participant (the WebSocket control channel may still be live, or the
// fallback transport may already have taken over).
type participantSignalSink struct {
	send func(ServerMessage) error
}

func (s *participantSignalSink) OnICECandidate(candidate webrtc.ICECandidateInit) {
	body, err := json.Marshal(candidate)
	if err != nil {
		slog.Error("broker: marshal ice candidate failed", "error", err)
		return
	}
	s.send(ServerMessage{Event: EventWebRtcServer, Payload: json.RawMessage(body)})
}

func (s *participantSignalSink) OnClose(err error) {
	if err != nil {
		slog.Warn("broker: webrtc transport closed with error", "error", err)
	}
}
