// Package framing implements the length-prefixed frame codec that lets
// the WebSocket transport carry the same logical channels WebRTC gets
// natively through separate data channels and tracks.
//
// Frame layout: 1-byte channel id, 4-byte big-endian length, payload.
// A malformed frame (length exceeds MaxFrameSize, unknown channel id)
// is a protocol error and shuts the transport down; the decoder itself
// is restartable and holds no state across frames beyond its buffer.
package framing

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/streambridge/streambridge/internal/model"
)

// HeaderSize is the fixed 1-byte channel id + 4-byte length prefix.
const HeaderSize = 5

// MaxFrameSize bounds the payload length accepted by Decode; frames
// exceeding it are a protocol error, not merely dropped.
const MaxFrameSize = 8 << 20 // 8 MiB, generous for a 4K keyframe

var (
	// ErrFrameTooLarge is returned when a decoded length exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("framing: frame exceeds max frame size")
	// ErrUnknownChannel is returned when a decoded channel id is not one
	// of the stable channel ids declared in model.ChannelID.
	ErrUnknownChannel = errors.New("framing: unknown channel id")
)

func validChannel(id model.ChannelID) bool {
	switch id {
	case model.ChannelControl, model.ChannelVideo, model.ChannelAudio, model.ChannelInput, model.ChannelStats:
		return true
	default:
		return false
	}
}

// Encode returns a single frame ready to be written to the stream.
func Encode(channelID model.ChannelID, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = byte(channelID)
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(payload)))
	copy(buf[5:], payload)
	return buf
}

// Decoder reads a restartable stream of frames from an underlying
// io.Reader. It carries no state across a call to Next beyond what it
// needs to assemble the frame currently in flight.
type Decoder struct {
	r       *bufio.Reader
	maxSize int
}

// NewDecoder wraps r with a Decoder. maxSize of 0 uses MaxFrameSize.
func NewDecoder(r io.Reader, maxSize int) *Decoder {
	if maxSize <= 0 {
		maxSize = MaxFrameSize
	}
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024), maxSize: maxSize}
}

// Next reads and returns the next frame's channel id and payload. It
// returns io.EOF when the underlying stream is exhausted cleanly between
// frames, and a protocol error (ErrFrameTooLarge / ErrUnknownChannel) when
// the frame is malformed.
func (d *Decoder) Next() (model.ChannelID, []byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(d.r, header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil, fmt.Errorf("framing: truncated header: %w", io.ErrUnexpectedEOF)
		}
		return 0, nil, err
	}

	channelID := model.ChannelID(header[0])
	if !validChannel(channelID) {
		return 0, nil, ErrUnknownChannel
	}

	length := binary.BigEndian.Uint32(header[1:5])
	if int(length) > d.maxSize {
		return 0, nil, ErrFrameTooLarge
	}

	var payload []byte
	if length > 0 {
		payload = make([]byte, length)
		if _, err := io.ReadFull(d.r, payload); err != nil {
			return 0, nil, fmt.Errorf("framing: truncated payload: %w", err)
		}
	}

	return channelID, payload, nil
}

// DecodeAll decodes every well-formed frame in buf, stopping at the
// first decode error (which is returned alongside whatever frames were
// already decoded). Primarily used by the bijection property test.
func DecodeAll(buf []byte) ([]struct {
	ChannelID model.ChannelID
	Payload   []byte
}, error) {
	var frames []struct {
		ChannelID model.ChannelID
		Payload   []byte
	}
	d := NewDecoder(newSliceReader(buf), 0)
	for {
		id, payload, err := d.Next()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, struct {
			ChannelID model.ChannelID
			Payload   []byte
		}{id, payload})
	}
}

type sliceReader struct {
	buf []byte
	pos int
}

func newSliceReader(buf []byte) *sliceReader { return &sliceReader{buf: buf} }

func (s *sliceReader) Read(p []byte) (int, error) {
	if s.pos >= len(s.buf) {
		return 0, io.EOF
	}
	n := copy(p, s.buf[s.pos:])
	s.pos += n
	return n, nil
}
