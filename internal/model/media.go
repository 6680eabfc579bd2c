package model

// MediaUnit is a single encoded unit produced by the upstream streaming
// library: either a video access unit or an Opus audio packet. Media
// units are read-only and borrowed through the forwarding pipeline; they
// are copied only at the transport boundary when the underlying channel
// cannot accept a borrowed slice.
type MediaUnit struct {
	Channel   ChannelID
	Bytes     []byte
	FrameType FrameType // meaningful for video only
	Timestamp int64     // microseconds, meaningful for audio only
	Duration  int64     // microseconds, meaningful for audio only
}

// IsKeyframe reports whether this is a video keyframe access unit.
func (m MediaUnit) IsKeyframe() bool {
	return m.Channel == ChannelVideo && m.FrameType == FrameTypeKey
}
