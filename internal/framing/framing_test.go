package framing

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streambridge/streambridge/internal/model"
)

// TestEncodeDecodeRoundTrip exercises the bijection property from
// spec.md's testable properties: encode then decode yields the
// original (channel id, payload) pair.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		channel model.ChannelID
		payload []byte
	}{
		{"control empty", model.ChannelControl, nil},
		{"video small", model.ChannelVideo, []byte{0x00, 0x01, 0x02, 0x03}},
		{"audio opus packet", model.ChannelAudio, bytes.Repeat([]byte{0xAB}, 160)},
		{"input", model.ChannelInput, []byte(`{"kind":"key_down"}`)},
		{"stats", model.ChannelStats, []byte("ok")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame := Encode(tc.channel, tc.payload)
			dec := NewDecoder(bytes.NewReader(frame), 0)
			gotChannel, gotPayload, err := dec.Next()
			require.NoError(t, err)
			assert.Equal(t, tc.channel, gotChannel)
			assert.Equal(t, tc.payload, gotPayload)
		})
	}
}

func TestDecodeMultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Encode(model.ChannelControl, []byte("one")))
	buf.Write(Encode(model.ChannelVideo, []byte("two")))
	buf.Write(Encode(model.ChannelAudio, []byte("three")))

	dec := NewDecoder(&buf, 0)

	id, payload, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, model.ChannelControl, id)
	assert.Equal(t, []byte("one"), payload)

	id, payload, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, model.ChannelVideo, id)
	assert.Equal(t, []byte("two"), payload)

	id, payload, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, model.ChannelAudio, id)
	assert.Equal(t, []byte("three"), payload)

	_, _, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodeUnknownChannel(t *testing.T) {
	frame := Encode(model.ChannelControl, []byte("hi"))
	frame[0] = 0xFF // not a declared channel id

	dec := NewDecoder(bytes.NewReader(frame), 0)
	_, _, err := dec.Next()
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestDecodeFrameTooLarge(t *testing.T) {
	frame := Encode(model.ChannelVideo, []byte("hi"))
	dec := NewDecoder(bytes.NewReader(frame), 1) // max 1 byte payload
	_, _, err := dec.Next()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDecoderIsRestartable(t *testing.T) {
	// Decoding a second, independent stream with a fresh Decoder must not
	// be affected by a prior Decoder's state.
	frameA := Encode(model.ChannelControl, []byte("a"))
	frameB := Encode(model.ChannelVideo, []byte("b"))

	decA := NewDecoder(bytes.NewReader(frameA), 0)
	idA, payloadA, err := decA.Next()
	require.NoError(t, err)

	decB := NewDecoder(bytes.NewReader(frameB), 0)
	idB, payloadB, err := decB.Next()
	require.NoError(t, err)

	assert.Equal(t, model.ChannelControl, idA)
	assert.Equal(t, []byte("a"), payloadA)
	assert.Equal(t, model.ChannelVideo, idB)
	assert.Equal(t, []byte("b"), payloadB)
}

func TestDecodeAllBijection(t *testing.T) {
	var buf bytes.Buffer
	want := []struct {
		ChannelID model.ChannelID
		Payload   []byte
	}{
		{model.ChannelControl, []byte("x")},
		{model.ChannelInput, []byte("y")},
	}
	for _, w := range want {
		buf.Write(Encode(w.ChannelID, w.Payload))
	}

	got, err := DecodeAll(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ChannelID, got[i].ChannelID)
		assert.Equal(t, want[i].Payload, got[i].Payload)
	}
}
