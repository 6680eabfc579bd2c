// Package broker is the central authoritative component of spec §4.E: it
// owns the map from room id to room state, and for each room, the set of
// connected participants. It assigns player slots, arbitrates input
// permissions, fans media out to subscribed guests, and supervises the
// per-room streamer child process over internal/ipc.
//
// Architecture mirrors the teacher's session package: Broker plays the
// role of Hub (registry + auth), Room is Room, Participant is Client,
// and internal/broker/permissions.go generalizes the teacher's
// permissions.go role-gating helpers from a meeting's four roles to this
// domain's Host/Player/Spectator slots.
package broker

import "github.com/streambridge/streambridge/internal/model"

// ClientMessage is the top-level envelope for every JSON message a peer
// sends over the signalling WebSocket (spec §6), analogous to the
// teacher's Message{Event, Payload}.
type ClientMessage struct {
	Event   ClientEvent `json:"event"`
	Payload any         `json:"payload"`
}

// ClientEvent enumerates the client -> broker message kinds of spec §6.
type ClientEvent string

const (
	EventInit                         ClientEvent = "init"
	EventJoinRoom                     ClientEvent = "join_room"
	EventSetTransport                 ClientEvent = "set_transport"
	EventWebRtc                       ClientEvent = "webrtc"
	EventStartStream                  ClientEvent = "start_stream"
	EventSetGuestsKeyboardMouseEnabled ClientEvent = "set_guests_keyboard_mouse_enabled"
	EventRequestPlayerSlot            ClientEvent = "request_player_slot"
	EventReleasePlayerSlot            ClientEvent = "release_player_slot"
	EventInput                        ClientEvent = "input"
)

// ServerEvent enumerates the broker -> client message kinds of spec §6.
type ServerEvent string

const (
	EventSetup                     ServerEvent = "setup"
	EventConnectionComplete        ServerEvent = "connection_complete"
	EventConnectionTerminated      ServerEvent = "connection_terminated"
	EventRoomCreated               ServerEvent = "room_created"
	EventRoomJoined                ServerEvent = "room_joined"
	EventRoomUpdated               ServerEvent = "room_updated"
	EventRoomJoinFailed            ServerEvent = "room_join_failed"
	EventPlayerLeft                ServerEvent = "player_left"
	EventRoomClosed                ServerEvent = "room_closed"
	EventGuestsKeyboardMouseEnabled ServerEvent = "guests_keyboard_mouse_enabled"
	EventUpdateApp                 ServerEvent = "update_app"
	EventDebugLog                  ServerEvent = "debug_log"
	EventWebRtcServer               ServerEvent = "webrtc"
)

// ServerMessage wraps a ServerEvent payload for JSON encoding.
type ServerMessage struct {
	Event   ServerEvent `json:"event"`
	Payload any         `json:"payload"`
}

// InitPayload is sent by the Host to create a room.
type InitPayload struct {
	HostID     string         `json:"host_id"`
	AppID      string         `json:"app_id"`
	QueueSizes QueueSizes     `json:"queue_sizes"`
}

// JoinRoomPayload is sent by a Guest to join an existing room.
type JoinRoomPayload struct {
	RoomID     model.RoomID `json:"room_id"`
	PlayerName string       `json:"player_name"`
	QueueSizes QueueSizes   `json:"queue_sizes"`
}

// QueueSizes mirrors the per-peer transport queue depth knobs a client
// may request at connect time.
type QueueSizes struct {
	VideoFrameQueueSize  int `json:"video_frame_queue_size"`
	AudioSampleQueueSize int `json:"audio_sample_queue_size"`
}

// WebRtcSignalPayload is sent by a peer under EventWebRtc to negotiate
// (or renegotiate) its WebRTC transport. SupportedFormatsBitmask is the
// capability exchange of spec §4.B: a bitmask of model.VideoCodec bits
// the peer can decode on an RTP track. A zero bitmask (or one that
// doesn't cover the room's negotiated codec) keeps the NAL/Opus
// data-channel fallback instead of opening RTP tracks.
type WebRtcSignalPayload struct {
	SDP                     string `json:"sdp"`
	SupportedFormatsBitmask uint32 `json:"supported_formats_bitmask"`
}

// RoomCreatedPayload acknowledges a Host's Init.
type RoomCreatedPayload struct {
	RoomID     model.RoomID    `json:"room_id"`
	PlayerSlot model.SlotIndex `json:"player_slot"`
}

// RoomJoinedPayload acknowledges a Guest's JoinRoom. PlayerSlot is nil
// when the joiner became a Spectator (room full).
type RoomJoinedPayload struct {
	RoomID     model.RoomID     `json:"room_id"`
	PlayerSlot *model.SlotIndex `json:"player_slot"`
}

// RoomJoinFailedPayload is emitted only for failures unrelated to slot
// capacity (e.g. unknown room id); a full room silently assigns
// Spectator instead, per the Open Question resolution in SPEC_FULL.md.
type RoomJoinFailedPayload struct {
	Reason string `json:"reason"`
}

// PlayerLeftPayload announces a slot becoming free.
type PlayerLeftPayload struct {
	Slot model.SlotIndex `json:"slot"`
}

// RoomSnapshot is the copy-on-write, fully-serialisable view of a Room
// broadcast to every participant on any visible change.
type RoomSnapshot struct {
	RoomID     model.RoomID        `json:"room_id"`
	AppID      string              `json:"app_id"`
	Revision   uint64              `json:"revision"`
	GuestsKBM  bool                `json:"guests_kbm"`
	Slots      [model.MaxSlot + 1]*ParticipantSnapshot `json:"slots"`
	Spectators []ParticipantSnapshot `json:"spectators"`
}

// ParticipantSnapshot is the externally visible view of one Participant.
type ParticipantSnapshot struct {
	ID          model.ParticipantID `json:"id"`
	DisplayName string              `json:"display_name"`
	Role        model.Role          `json:"role"`
	Transport   model.TransportKind `json:"transport"`
}

// RoomUpdatedPayload wraps a broadcast snapshot.
type RoomUpdatedPayload struct {
	Room RoomSnapshot `json:"room"`
}
