package upstream

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCallbacks struct {
	frames      [][]byte
	terminated  *int
}

func (c *recordingCallbacks) OnVideoFrame(data []byte, keyframe bool) {
	c.frames = append(c.frames, data)
}
func (c *recordingCallbacks) OnAudioPacket(data []byte, ts, dur int64) {}
func (c *recordingCallbacks) OnTerminated(code int)                    { c.terminated = &code }

func TestFakeClientConnectAndSubmit(t *testing.T) {
	client := &FakeClient{}
	cb := &recordingCallbacks{}

	stream, err := client.Connect(context.Background(), "192.168.1.5", 48010, Config{AppID: "42"}, cb)
	require.NoError(t, err)

	require.NoError(t, stream.SendKeyboard(0x1E, nil, true))
	require.NoError(t, stream.SendController(2, ControllerState{Buttons: 1}))

	fs := stream.(*FakeStream)
	subs := fs.Submissions()
	require.Len(t, subs, 2)
	assert.Equal(t, "SendKeyboard", subs[0].Method)
	assert.Equal(t, "SendController", subs[1].Method)
}

func TestFakeClientConnectErr(t *testing.T) {
	client := &FakeClient{ConnectErr: errors.New("pairing not found")}
	_, err := client.Connect(context.Background(), "host", 1, Config{}, &recordingCallbacks{})
	assert.Error(t, err)
}

func TestFakeStreamEmitsCallbacks(t *testing.T) {
	client := &FakeClient{}
	cb := &recordingCallbacks{}
	stream, err := client.Connect(context.Background(), "host", 1, Config{}, cb)
	require.NoError(t, err)

	fs := stream.(*FakeStream)
	fs.EmitVideoFrame([]byte("au-bytes"), true)
	fs.EmitTerminated(0)

	require.Len(t, cb.frames, 1)
	assert.Equal(t, []byte("au-bytes"), cb.frames[0])
	require.NotNil(t, cb.terminated)
	assert.Equal(t, 0, *cb.terminated)
}
