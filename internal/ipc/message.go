// Package ipc implements the parent-streamer wire protocol of spec §4.C:
// length-prefixed JSON lines over the streamer child process's stdin and
// stdout. One request/response pair per message; no pipelining.
//
// The message kinds mirror spec §6's signalling WebSocket vocabulary
// closely (Init, WebRtcSignal, StartStream, ...) since both the browser
// control channel and this IPC link carry the same underlying session
// protocol, just over different transports.
package ipc

import "github.com/streambridge/streambridge/internal/model"

// Kind tags the envelope's payload type so the receiver can dispatch
// without sniffing the JSON body.
type Kind string

// Parent -> streamer.
const (
	KindInit              Kind = "init"
	KindStartStream       Kind = "start_stream"
	KindWebRtcSignal       Kind = "webrtc_signal"
	KindSetTransport      Kind = "set_transport"
	KindInput             Kind = "input"
	KindUpdatePermissions Kind = "update_permissions"
	KindStop              Kind = "stop"
)

// Streamer -> parent.
const (
	KindDebugLog             Kind = "debug_log"
	KindUpdateApp            Kind = "update_app"
	KindSetup                Kind = "setup"
	KindConnectionComplete   Kind = "connection_complete"
	KindConnectionTerminated Kind = "connection_terminated"
	KindMediaOut             Kind = "media_out"
)

// Envelope is the outer JSON object written on each length-prefixed
// line. Payload is re-marshalled/unmarshalled by the caller once Kind is
// known, mirroring the discriminated-union pattern used for the control
// WebSocket's client/server message types.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload any `json:"payload"`
}

// Init is the first message a broker sends a freshly spawned streamer.
type Init struct {
	HostID        string          `json:"host_id"`
	AppID         string          `json:"app_id"`
	SessionParams SessionParams   `json:"session_params"`
}

// SessionParams carries the default stream settings of spec §6.
type SessionParams struct {
	Bitrate                int                    `json:"bitrate"`
	PacketSize             int                    `json:"packet_size"`
	FPS                    int                    `json:"fps"`
	Width                  int                    `json:"width"`
	Height                 int                    `json:"height"`
	VideoCodec             model.VideoCodec       `json:"video_codec"`
	MouseScrollMode        model.ScrollMode       `json:"mouse_scroll_mode"`
	ControllerConfig       model.ControllerRemap  `json:"controller_config"`
	VideoFrameQueueSize    int                    `json:"video_frame_queue_size"`
	AudioSampleQueueSize   int                    `json:"audio_sample_queue_size"`
	PlayAudioLocal         bool                   `json:"play_audio_local"`
}

// StartStream configures the encoder parameters once negotiation with
// the peer transport has produced a connected channel.
type StartStream struct {
	Bitrate                  int              `json:"bitrate"`
	PacketSize               int              `json:"packet_size"`
	FPS                      int              `json:"fps"`
	Width                    int              `json:"width"`
	Height                   int              `json:"height"`
	AudioLocal               bool             `json:"audio_local"`
	SupportedFormatsBitmask  uint32           `json:"supported_formats_bitmask"`
	Colorspace               model.Colorspace `json:"colorspace"`
	FullRange                bool             `json:"full_range"`
}

// WebRtcSignal carries offer/answer/ice_candidate payloads verbatim
// between the browser peer and the streamer's own PeerConnection, when
// the streamer terminates WebRTC directly rather than the broker doing
// so on its behalf.
type WebRtcSignal struct {
	SignalType string `json:"signal_type"` // offer | answer | ice_candidate
	SDP        string `json:"sdp,omitempty"`
	Candidate  string `json:"candidate,omitempty"`
}

// SetTransport tells the streamer which transport variant the peer
// ultimately negotiated, so it can route MediaOut/Input accordingly.
type SetTransport struct {
	Transport model.TransportKind `json:"transport"`
}

// Input forwards a single validated input event to the streamer.
type Input struct {
	Event model.InputEvent `json:"event"`
}

// UpdatePermissions mirrors a change to the room's guests-KBM flag.
type UpdatePermissions struct {
	GuestsKBM bool `json:"guests_kbm"`
}

// Stop requests a clean shutdown; the streamer must emit
// ConnectionTerminated{error_code: 0} and exit status 0.
type Stop struct{}

// DebugLog mirrors the ty field names from spec §7's propagation policy.
type DebugLog struct {
	Ty      model.DebugLogType `json:"ty"`
	Message string             `json:"message"`
}

// UpdateApp reports metadata about the running application discovered
// post-connect (title, box art, etc.) for display in the room UI.
type UpdateApp struct {
	AppInfo map[string]any `json:"app_info"`
}

// Setup is emitted once the streamer has connected to the upstream game
// host and is ready to begin transport negotiation.
type Setup struct {
	ICEServers []model.ICEServerConfig `json:"ice_servers"`
}

// ConnectionComplete reports the negotiated stream parameters once the
// transport is up and StartStream has been processed.
type ConnectionComplete struct {
	NegotiatedFormat model.VideoCodec `json:"negotiated_format"`
	Width            int              `json:"width"`
	Height           int              `json:"height"`
	FPS              int              `json:"fps"`
	AudioConfig      map[string]any   `json:"audio_cfg"`
	Capabilities     []string         `json:"capabilities"`
}

// ConnectionTerminated exit codes, mirroring spec §6's child IPC exit
// code table.
const (
	ErrorCodeClean               = 0
	ErrorCodeProtocol            = 1
	ErrorCodeUpstreamConnectFail = 2
	ErrorCodeTransportSetupFail  = 3
)

// ConnectionTerminated is the streamer's terminal event; once emitted
// the process exits with the matching code.
type ConnectionTerminated struct {
	ErrorCode int `json:"error_code"`
}

// MediaOut carries a media unit across the IPC link, used only when the
// streamer does not hold its own peer transport directly and instead
// relays encoded bytes to the broker for fan-out.
type MediaOut struct {
	ChannelID model.ChannelID `json:"channel_id"`
	Bytes     []byte          `json:"bytes"`
	FrameType model.FrameType `json:"frame_type,omitempty"`
}
