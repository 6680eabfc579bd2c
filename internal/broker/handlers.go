package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/streambridge/streambridge/internal/ipc"
	"github.com/streambridge/streambridge/internal/model"
	"github.com/streambridge/streambridge/internal/transport"
	"github.com/streambridge/streambridge/internal/transport/wsx"
)

// Server wires a Broker to gin's HTTP surface, accepting the signalling
// WebSocket upgrade for both Host and Guest peers. Grounded on the
// teacher's Hub.ServeWs, generalised from a single conferencing endpoint
// to the Host/Guest dual entry point of spec §6.
type Server struct {
	broker     *Broker
	negotiator *Negotiator
	upgrader   websocket.Upgrader
}

// NewServer constructs a Server. allowedOrigins mirrors the teacher's
// GetAllowedOriginsFromEnv-backed CheckOrigin policy.
func NewServer(b *Broker, negotiator *Negotiator, allowedOrigins []string) *Server {
	return &Server{
		broker:     b,
		negotiator: negotiator,
		upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin(allowedOrigins),
		},
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// ServeWs authenticates the query-string bearer token, upgrades the
// request to a WebSocket, wraps it in a wsx Transport, and reads exactly
// one Init or JoinRoom control message before handing the connection off
// to its steady-state control/input loops. Grounded on the teacher's
// Hub.ServeWs token-then-upgrade ordering.
func (s *Server) ServeWs(c *gin.Context) {
	if s.broker.validator != nil {
		if _, err := s.broker.validator.ValidateToken(c.Query("token")); err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("broker: websocket upgrade failed", "error", err)
		return
	}

	wsTransport := wsx.New(conn)
	controlCh, err := wsTransport.Open(model.ChannelControl)
	if err != nil {
		wsTransport.Close()
		return
	}

	var first ClientMessage
	select {
	case payload, ok := <-controlCh.Receive():
		if !ok || json.Unmarshal(payload, &first) != nil {
			wsTransport.Close()
			return
		}
	case <-wsTransport.Closed():
		return
	}

	ctx := c.Request.Context()
	switch first.Event {
	case EventInit:
		s.handleHostInit(ctx, wsTransport, controlCh, first.Payload)
	case EventJoinRoom:
		s.handleGuestJoin(ctx, wsTransport, controlCh, first.Payload)
	default:
		sendControl(controlCh, ServerMessage{Event: EventRoomJoinFailed, Payload: RoomJoinFailedPayload{Reason: "expected init or join_room"}})
		wsTransport.Close()
	}
}

func sendControl(ch transport.Channel, msg ServerMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ch.Send(context.Background(), body)
}

func decodePayload(raw any, dst any) error {
	body, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

func (s *Server) handleHostInit(ctx context.Context, wsT transport.Transport, controlCh transport.Channel, rawPayload any) {
	var payload InitPayload
	if err := decodePayload(rawPayload, &payload); err != nil {
		wsT.Close()
		return
	}

	host := NewParticipant(model.ParticipantID(payload.HostID), "Host", model.RoleHost, wsT)
	room, err := s.broker.CreateRoom(ctx, payload.AppID, host)
	if err != nil {
		sendControl(controlCh, ServerMessage{Event: EventRoomJoinFailed, Payload: RoomJoinFailedPayload{Reason: err.Error()}})
		wsT.Close()
		return
	}

	host.markSubscribed(payload.QueueSizes.VideoFrameQueueSize, payload.QueueSizes.AudioSampleQueueSize)
	sendControl(controlCh, ServerMessage{Event: EventRoomCreated, Payload: RoomCreatedPayload{RoomID: room.ID, PlayerSlot: model.SlotHost}})

	if err := room.Process().Writer.Write(ipc.KindInit, ipc.Init{HostID: payload.HostID, AppID: payload.AppID}); err != nil {
		slog.Error("broker: write init to streamer failed", "room_id", room.ID, "error", err)
	}

	go s.broker.RunStreamerPump(room, func(msg ServerMessage) { sendControl(controlCh, msg) })
	s.runParticipantLoops(ctx, room, host, wsT, controlCh)
}

func (s *Server) handleGuestJoin(ctx context.Context, wsT transport.Transport, controlCh transport.Channel, rawPayload any) {
	var payload JoinRoomPayload
	if err := decodePayload(rawPayload, &payload); err != nil {
		wsT.Close()
		return
	}

	room, ok := s.broker.Room(payload.RoomID)
	if !ok {
		sendControl(controlCh, ServerMessage{Event: EventRoomJoinFailed, Payload: RoomJoinFailedPayload{Reason: "unknown room"}})
		wsT.Close()
		return
	}

	guest := NewParticipant(model.ParticipantID(payload.PlayerName), payload.PlayerName, model.RoleSpectator, wsT)
	slot, _ := room.JoinAsGuest(guest)
	guest.markSubscribed(payload.QueueSizes.VideoFrameQueueSize, payload.QueueSizes.AudioSampleQueueSize)

	sendControl(controlCh, ServerMessage{Event: EventRoomJoined, Payload: RoomJoinedPayload{RoomID: room.ID, PlayerSlot: slot}})
	s.broadcastRoomUpdated(room)
	s.runParticipantLoops(ctx, room, guest, wsT, controlCh)
}

// broadcastRoomUpdated sends the current snapshot to every participant's
// control channel, per spec §4.E's state distribution rule.
func (s *Server) broadcastRoomUpdated(room *Room) {
	snap := room.Snapshot()
	for _, p := range room.Participants() {
		if tr := p.Transport(); tr != nil {
			if ch, err := tr.Open(model.ChannelControl); err == nil {
				sendControl(ch, ServerMessage{Event: EventRoomUpdated, Payload: RoomUpdatedPayload{Room: snap}})
			}
		}
	}
}

// runParticipantLoops drives one participant's control-message loop for
// the lifetime of its signalling WebSocket (wsT), which always carries
// control messages even after the participant's media/input channels
// move to a negotiated WebRTC transport (see handleWebRtcSignal). The
// participant is removed from the room when wsT closes, tearing the
// room down too if it was the Host.
func (s *Server) runParticipantLoops(ctx context.Context, room *Room, p *Participant, wsT transport.Transport, controlCh transport.Channel) {
	s.startInputLoop(room, p, wsT)

	for {
		select {
		case payload, ok := <-controlCh.Receive():
			if !ok {
				s.handleDisconnect(room, p)
				return
			}
			var msg ClientMessage
			if json.Unmarshal(payload, &msg) != nil {
				continue
			}
			s.routeControl(ctx, room, p, controlCh, msg)
		case <-wsT.Closed():
			s.handleDisconnect(room, p)
			return
		}
	}
}

// startInputLoop opens the Input channel on tr and begins reading from
// it. Called once at join time against the signalling WebSocket, and
// again against a freshly negotiated WebRTC transport once it replaces
// the participant's media transport.
func (s *Server) startInputLoop(room *Room, p *Participant, tr transport.Transport) {
	inputCh, err := tr.Open(model.ChannelInput)
	if err != nil {
		slog.Error("broker: open input channel failed", "participant", p.ID, "error", err)
		return
	}
	go s.runInputLoop(room, p, inputCh)
}

func (s *Server) runInputLoop(room *Room, p *Participant, inputCh transport.Channel) {
	for payload := range inputCh.Receive() {
		var e model.InputEvent
		if json.Unmarshal(payload, &e) != nil {
			continue
		}
		room.HandleInput(p, e)
	}
}

func (s *Server) routeControl(ctx context.Context, room *Room, p *Participant, controlCh transport.Channel, msg ClientMessage) {
	switch msg.Event {
	case EventSetGuestsKeyboardMouseEnabled:
		if p.Role() != model.RoleHost {
			return
		}
		var enabled bool
		if decodePayload(msg.Payload, &enabled) != nil {
			return
		}
		room.SetGuestsKBM(enabled)
		s.broadcastRoomUpdated(room)

	case EventRequestPlayerSlot:
		if _, err := room.RequestPlayerSlot(p); err == nil {
			s.broadcastRoomUpdated(room)
		}

	case EventReleasePlayerSlot:
		room.ReleasePlayerSlot(p)
		s.broadcastRoomUpdated(room)

	case EventStartStream:
		var payload ipc.StartStream
		if decodePayload(msg.Payload, &payload) != nil {
			return
		}
		if err := room.Process().Writer.Write(ipc.KindStartStream, payload); err != nil {
			slog.Error("broker: write start_stream to streamer failed", "room_id", room.ID, "error", err)
		}

	case EventWebRtc:
		s.handleWebRtcSignal(ctx, room, p, controlCh, msg.Payload)
	}
}

// handleWebRtcSignal upgrades p's media transport to WebRTC on request,
// using the Negotiator's ICE servers. Failure leaves
// p on its existing WebSocket transport rather than tearing the
// connection down, mirroring the `auto` fallback behaviour even when
// invoked for an explicit request.
//
// A Guest (any non-Host participant) requesting WebRTC before the
// Host's streamer has reached StateStreaming is rejected fatally: there
// is no media to negotiate a track plane for yet, and allowing the
// upgrade early would race the Host's own first negotiation.
func (s *Server) handleWebRtcSignal(ctx context.Context, room *Room, p *Participant, controlCh transport.Channel, rawPayload any) {
	if p.Role() != model.RoleHost && !room.IsStreaming() {
		slog.Warn("broker: guest webrtc request before host is streaming, rejecting", "participant", p.ID, "room_id", room.ID)
		sendControl(controlCh, ServerMessage{Event: EventDebugLog, Payload: ipc.DebugLog{
			Ty:      model.DebugFatal,
			Message: "webrtc requested before host transport is streaming",
		}})
		if tr := p.Transport(); tr != nil {
			tr.Close()
		}
		return
	}

	var offer WebRtcSignalPayload
	decodePayload(rawPayload, &offer) // zero bitmask on decode failure just keeps the data-channel fallback

	useTracks := model.BitmaskSupportsCodec(offer.SupportedFormatsBitmask, room.VideoCodec())

	sink := &participantSignalSink{send: func(msg ServerMessage) error { sendControl(controlCh, msg); return nil }}
	tr, err := s.negotiator.newWebRTCTransport(ctx, sink, useTracks)
	if err != nil {
		slog.Warn("broker: webrtc negotiation failed, staying on websocket", "participant", p.ID, "error", err)
		return
	}

	p.replaceMediaTransport(tr)
	s.startInputLoop(room, p, tr)
}

func (s *Server) handleDisconnect(room *Room, p *Participant) {
	freedSlot, wasHost := room.RemoveParticipant(p)
	if wasHost {
		s.broker.CloseRoom(room)
		return
	}
	if freedSlot != nil {
		s.broadcastRoomUpdated(room)
	}
}

