package broker

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipantSignalSinkRelaysIceCandidate(t *testing.T) {
	var sent []ServerMessage
	sink := &participantSignalSink{send: func(msg ServerMessage) error {
		sent = append(sent, msg)
		return nil
	}}

	candidate := webrtc.ICECandidateInit{Candidate: "candidate:1 1 UDP 2130706431 10.0.0.1 54321 typ host"}
	sink.OnICECandidate(candidate)

	require.Len(t, sent, 1)
	assert.Equal(t, EventWebRtcServer, sent[0].Event)
}

func TestParticipantSignalSinkOnCloseDoesNotPanicWithoutError(t *testing.T) {
	sink := &participantSignalSink{send: func(ServerMessage) error { return nil }}
	assert.NotPanics(t, func() { sink.OnClose(nil) })
}
