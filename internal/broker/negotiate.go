package broker

import (
	"context"
	"time"

	"github.com/streambridge/streambridge/internal/model"
	"github.com/streambridge/streambridge/internal/transport"
	"github.com/streambridge/streambridge/internal/transport/webrtcx"
)

// Negotiator implements spec §4.B's negotiation policy: under `auto`,
// WebRTC is attempted first with a deadline; if it fails to connect in
// time the partial PeerConnection is torn down and the existing
// WebSocket transport (already open on the signalling socket) is used
// instead. Explicit modes never fall back.
type Negotiator struct {
	ICEServers         []transport.ICEServer
	NegotiationTimeout time.Duration
}

// NewNegotiator applies the spec-recommended default timeout when none
// is given.
func NewNegotiator(iceServers []transport.ICEServer, timeout time.Duration) *Negotiator {
	if timeout <= 0 {
		timeout = transport.DefaultNegotiationTimeoutSeconds * time.Second
	}
	return &Negotiator{ICEServers: iceServers, NegotiationTimeout: timeout}
}

// Negotiate selects the media/input transport for one participant. mode
// is the peer's requested policy; wsFallback is the already-open
// WebSocket transport to fall back to (or use directly, under explicit
// `websocket`). For explicit `webrtc`, attemptWebRTC's result is returned
// as is: its error reaches the caller and there is no fallback.
func (n *Negotiator) Negotiate(
	ctx context.Context,
	mode model.TransportKind,
	wsFallback transport.Transport,
	attemptWebRTC func(ctx context.Context) (transport.Transport, error),
) (transport.Transport, error) {
	switch mode {
	case model.TransportWebSocket:
		return wsFallback, nil

	case model.TransportWebRTC:
		return attemptWebRTC(ctx)

	default: // auto
		timeoutCtx, cancel := context.WithTimeout(ctx, n.NegotiationTimeout)
		defer cancel()

		tr, err := attemptWebRTC(timeoutCtx)
		if err != nil {
			return wsFallback, nil
		}
		return tr, nil
	}
}

// newWebRTCTransport builds a WebRTC transport with the Negotiator's ICE
// servers and waits for the PeerConnection to report connected before
// returning. handleWebRtcSignal calls it directly rather than through
// Negotiate, so NegotiationTimeout does not apply; only ctx bounds the
// wait.
func (n *Negotiator) newWebRTCTransport(ctx context.Context, sink webrtcx.SignalSink, useTracks bool) (transport.Transport, error) {
	tr, err := webrtcx.New(webrtcx.Config{ICEServers: n.ICEServers, UseTracks: useTracks}, sink)
	if err != nil {
		return nil, err
	}

	select {
	case <-tr.Closed():
		return nil, context.DeadlineExceeded
	case <-ctx.Done():
		tr.Close()
		return nil, ctx.Err()
	case <-waitConnected(tr):
		return tr, nil
	}
}

func waitConnected(tr *webrtcx.Transport) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for {
			if tr.State() == transport.StateConnected {
				close(done)
				return
			}
			select {
			case <-tr.Closed():
				return
			case <-time.After(25 * time.Millisecond):
			}
		}
	}()
	return done
}
