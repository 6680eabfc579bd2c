package streamer

import (
	"log/slog"

	"github.com/streambridge/streambridge/internal/model"
	"github.com/streambridge/streambridge/internal/upstream"
)

// forwardInput enqueues a broker-validated input event for submission to
// the upstream library. Gamepad snapshots coalesce to latest-wins (spec
// §4.B's drop_policy for input) on their own queue; every other kind,
// including text, goes on the never-drop queue so gamepad backpressure
// can never evict an unrelated keyboard/mouse/touch/text event.
func (s *Session) forwardInput(e model.InputEvent) {
	s.mu.Lock()
	q := s.inputQueue
	gq := s.gamepadQueue
	s.mu.Unlock()
	if q == nil {
		return
	}

	if !e.IsGamepad() {
		q <- e
		return
	}

	select {
	case gq <- e:
	default:
		s.coalesceGamepad(gq, e)
	}
}

// coalesceGamepad drains one stale queued event to make room for e when
// the gamepad queue is momentarily full, implementing latest-wins for
// gamepad axis/button state without ever blocking the caller. Safe to
// evict blindly because gq carries gamepad events exclusively.
func (s *Session) coalesceGamepad(gq chan model.InputEvent, e model.InputEvent) {
	select {
	case <-gq:
	default:
	}
	select {
	case gq <- e:
	default:
	}
}

// forwardInputLoop is the streamer's single dedicated worker that
// serialises all submissions to the upstream stream handle, satisfying
// its monotonic single-threaded-calls-per-handle requirement. It
// services both the never-drop queue and the gamepad queue until both
// are closed by terminate.
func (s *Session) forwardInputLoop() {
	s.mu.Lock()
	input, gamepad := s.inputQueue, s.gamepadQueue
	s.mu.Unlock()

	for input != nil || gamepad != nil {
		select {
		case e, ok := <-input:
			if !ok {
				input = nil
				continue
			}
			s.dispatch(e)
		case e, ok := <-gamepad:
			if !ok {
				gamepad = nil
				continue
			}
			s.dispatch(e)
		}
	}
}

func (s *Session) dispatch(e model.InputEvent) {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return
	}
	submit(stream, e)
}

func submit(stream upstream.Stream, e model.InputEvent) {
	var err error
	switch e.Kind {
	case model.InputKeyDown:
		err = stream.SendKeyboard(e.Scancode, e.Modifiers, true)
	case model.InputKeyUp:
		err = stream.SendKeyboard(e.Scancode, e.Modifiers, false)
	case model.InputMouseButton:
		err = stream.SendMouseButton(e.Button, e.ButtonDown)
	case model.InputMouseMove:
		mode := upstream.MouseMoveAbsolute
		if e.MoveMode == model.MouseMoveRelative {
			mode = upstream.MouseMoveRelative
		}
		err = stream.SendMouseMove(mode, e.DX, e.DY)
	case model.InputMouseWheel:
		err = stream.SendMouseScroll(e.WheelDeltaX, e.WheelDeltaY)
	case model.InputTouchStart:
		err = stream.SendTouch(upstream.TouchStart, e.TouchID, e.X, e.Y)
	case model.InputTouchMove:
		err = stream.SendTouch(upstream.TouchMove, e.TouchID, e.X, e.Y)
	case model.InputTouchEnd:
		err = stream.SendTouch(upstream.TouchEnd, e.TouchID, e.X, e.Y)
	case model.InputGamepadState:
		if e.Gamepad == nil {
			return
		}
		err = stream.SendController(int(e.TargetSlot), upstream.ControllerState{
			Buttons:  e.Gamepad.Buttons,
			AxisLX:   e.Gamepad.AxisLX,
			AxisLY:   e.Gamepad.AxisLY,
			AxisRX:   e.Gamepad.AxisRX,
			AxisRY:   e.Gamepad.AxisRY,
			TriggerL: e.Gamepad.TriggerL,
			TriggerR: e.Gamepad.TriggerR,
		})
	case model.InputText:
		err = stream.SendText(e.Text)
	}
	if err != nil {
		slog.Warn("streamer: input submission failed", "kind", e.Kind, "error", err)
	}
}
