// Package model provides the core types shared across the broker, the
// streamer, the transport layer, and the IPC protocol.
//
// The main components include:
//   - RoomID, ParticipantID, SlotIndex: room and participant identity
//   - Role: the permission level of a participant (Host, Player, Spectator)
//   - ChannelID: the stable small integer selecting a logical transport stream
//   - Media and input wire types exchanged between peers and the streamer
//
// These types are serialised verbatim over both the IPC boundary and the
// control WebSocket; a mismatch between peers is treated as an
// incompatible version.
package model

import "errors"

// RoomID identifies a room with a short opaque string (6 alphanumeric
// characters, base-36 uniform by convention).
type RoomID string

// ParticipantID identifies a single connected peer for the lifetime of
// its participation in a room.
type ParticipantID string

// SlotIndex is a player slot 0-3. Slot 0 is always the Host.
type SlotIndex int

const (
	SlotHost SlotIndex = 0
	MaxSlot  SlotIndex = 3
)

// Role defines the permission level of a participant within a room.
// The hierarchy is Spectator < Player < Host; Host is always slot 0.
type Role string

const (
	RoleHost      Role = "host"
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// TransportKind selects which polymorphic channel carrier a peer uses.
type TransportKind string

const (
	TransportAuto      TransportKind = "auto"
	TransportWebRTC     TransportKind = "webrtc"
	TransportWebSocket TransportKind = "websocket"
)

// ChannelID is the stable small integer selecting a logical stream
// within a transport. The WebSocket framing codec uses these directly;
// WebRTC data channels are opened with the same numeric label.
type ChannelID byte

const (
	ChannelControl ChannelID = 0
	ChannelVideo   ChannelID = 1
	ChannelAudio   ChannelID = 2
	ChannelInput   ChannelID = 3
	ChannelStats   ChannelID = 4
)

// VideoCodec enumerates the codec profiles negotiable between the
// streamer and a peer.
type VideoCodec string

const (
	CodecH264Baseline  VideoCodec = "h264_baseline"
	CodecH264High8_444 VideoCodec = "h264_high8_444"
	CodecH265Main      VideoCodec = "h265_main"
	CodecH265Main10    VideoCodec = "h265_main10"
	CodecH265Rext8_444 VideoCodec = "h265_rext8_444"
	CodecH265Rext10_444 VideoCodec = "h265_rext10_444"
	CodecAV1Main8      VideoCodec = "av1_main8"
	CodecAV1Main10     VideoCodec = "av1_main10"
	CodecAV1Rext8_444  VideoCodec = "av1_rext8_444"
	CodecAV1Rext10_444 VideoCodec = "av1_rext10_444"
)

// codecBits assigns each VideoCodec a bit position within the
// capability bitmask the control channel's webrtc signal carries (spec
// §4.B's "peer returns a bitmask of supported codec profiles before
// media flow begins"). Order matches the VideoCodec constants above;
// stable once published, since a peer's cached bitmask must keep
// meaning the same codec across a reconnect.
var codecBits = map[VideoCodec]uint32{
	CodecH264Baseline:   1 << 0,
	CodecH264High8_444:  1 << 1,
	CodecH265Main:       1 << 2,
	CodecH265Main10:     1 << 3,
	CodecH265Rext8_444:  1 << 4,
	CodecH265Rext10_444: 1 << 5,
	CodecAV1Main8:       1 << 6,
	CodecAV1Main10:      1 << 7,
	CodecAV1Rext8_444:   1 << 8,
	CodecAV1Rext10_444:  1 << 9,
}

// VideoCodecBit returns c's bit within a SupportedFormatsBitmask, or 0
// for an unrecognised codec.
func VideoCodecBit(c VideoCodec) uint32 { return codecBits[c] }

// BitmaskSupportsCodec reports whether bitmask advertises c.
func BitmaskSupportsCodec(bitmask uint32, c VideoCodec) bool {
	bit := VideoCodecBit(c)
	return bit != 0 && bitmask&bit != 0
}

// Colorspace enumerates the supported video colorspaces.
type Colorspace string

const (
	ColorspaceRec601  Colorspace = "rec601"
	ColorspaceRec709  Colorspace = "rec709"
	ColorspaceRec2020 Colorspace = "rec2020"
)

// ScrollMode selects the mouse wheel reporting resolution.
type ScrollMode string

const (
	ScrollHighRes ScrollMode = "highres"
	ScrollNormal  ScrollMode = "normal"
)

// DropPolicy describes how a transport channel sheds load under
// backpressure. Video drops to the next keyframe; audio and control
// drop individually; input never drops (it coalesces instead).
type DropPolicy string

const (
	DropPolicyKeyframe DropPolicy = "keyframe"
	DropPolicyPacket   DropPolicy = "packet"
	DropPolicyNever    DropPolicy = "never"
)

// ControllerRemap carries per-room gamepad remapping configuration.
type ControllerRemap struct {
	InvertAB           bool  `json:"invertAB"`
	InvertXY           bool  `json:"invertXY"`
	SendIntervalOverride *int `json:"sendIntervalOverride,omitempty"`
}

// FrameType distinguishes a keyframe (IDR) access unit from a delta
// frame; used by the keyframe drop policy and by fan-out subscription.
type FrameType int

const (
	FrameTypeDelta FrameType = iota
	FrameTypeKey
)

// Sentinel errors shared by model validation helpers.
var (
	ErrSlotTaken    = errors.New("model: slot already assigned")
	ErrSlotOutOfRange = errors.New("model: slot out of range")
	ErrInvalidRole  = errors.New("model: invalid role for operation")
)

// ValidSlot reports whether s is a legal player slot (0-3).
func ValidSlot(s SlotIndex) bool {
	return s >= SlotHost && s <= MaxSlot
}

// ICEServerConfig mirrors webrtc.ice_servers[] as carried over the wire
// (config file, IPC Setup message, control WebSocket Setup message).
type ICEServerConfig struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}
