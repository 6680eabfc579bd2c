package ipc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSpawnRoundTripsThroughCat uses the real RealCommander against the
// system `cat` binary as a stand-in streamer: whatever we write to its
// stdin it echoes back on stdout, letting us exercise Spawn/Writer/Reader
// end-to-end without a purpose-built test binary.
func TestSpawnRoundTripsThroughCat(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc, err := Spawn(ctx, RealCommander{}, "cat")
	require.NoError(t, err)

	require.NoError(t, proc.Writer.Write(KindStop, Stop{}))

	done := make(chan struct{})
	var env Envelope
	var readErr error
	go func() {
		env, readErr = proc.Reader.ReadEnvelope()
		close(done)
	}()

	select {
	case <-done:
		require.NoError(t, readErr)
		assert.Equal(t, KindStop, env.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed envelope")
	}

	require.NoError(t, proc.Kill())
}

func TestSpawnUnknownBinaryFails(t *testing.T) {
	_, err := Spawn(context.Background(), RealCommander{}, "streambridge-definitely-not-a-real-binary")
	assert.Error(t, err)
}
