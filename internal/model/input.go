package model

// InputKind tags the variant carried by an InputEvent.
type InputKind string

const (
	InputKeyDown       InputKind = "key_down"
	InputKeyUp         InputKind = "key_up"
	InputMouseButton   InputKind = "mouse_button"
	InputMouseMove     InputKind = "mouse_move"
	InputMouseWheel    InputKind = "mouse_wheel"
	InputTouchStart    InputKind = "touch_start"
	InputTouchMove     InputKind = "touch_move"
	InputTouchEnd      InputKind = "touch_end"
	InputGamepadState  InputKind = "gamepad_state"
	InputText          InputKind = "text"
)

// MouseMoveMode selects absolute vs relative mouse movement reporting.
type MouseMoveMode string

const (
	MouseMoveAbsolute MouseMoveMode = "absolute"
	MouseMoveRelative MouseMoveMode = "relative"
)

// InputEvent is the tagged union of input the broker arbitrates and the
// streamer forwards to the game host. Exactly one of the payload fields
// is meaningful, selected by Kind.
type InputEvent struct {
	Kind   InputKind     `json:"kind"`
	Origin ParticipantID `json:"-"` // set by the broker, never trusted from the wire

	// key down/up
	Scancode  int      `json:"scancode,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`

	// mouse button
	Button     int  `json:"button,omitempty"`
	ButtonDown bool `json:"buttonDown,omitempty"`

	// mouse move
	MoveMode MouseMoveMode `json:"moveMode,omitempty"`
	DX       float64       `json:"dx,omitempty"`
	DY       float64       `json:"dy,omitempty"`

	// mouse wheel
	WheelDeltaX float64 `json:"wheelDeltaX,omitempty"`
	WheelDeltaY float64 `json:"wheelDeltaY,omitempty"`

	// touch
	TouchID int     `json:"touchId,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`

	// gamepad
	TargetSlot SlotIndex      `json:"targetSlot,omitempty"`
	Gamepad    *GamepadState  `json:"gamepad,omitempty"`

	// text
	Text string `json:"text,omitempty"`
}

// GamepadState is a single controller state snapshot.
type GamepadState struct {
	Buttons uint32     `json:"buttons"`
	AxisLX  float32    `json:"axisLX"`
	AxisLY  float32    `json:"axisLY"`
	AxisRX  float32    `json:"axisRX"`
	AxisRY  float32    `json:"axisRY"`
	TriggerL float32   `json:"triggerL"`
	TriggerR float32   `json:"triggerR"`
}

// IsKeyboardMouse reports whether this event kind is gated by the
// guests-KBM permission flag rather than by slot ownership.
func (e InputEvent) IsKeyboardMouse() bool {
	switch e.Kind {
	case InputKeyDown, InputKeyUp, InputMouseButton, InputMouseMove, InputMouseWheel,
		InputTouchStart, InputTouchMove, InputTouchEnd, InputText:
		return true
	default:
		return false
	}
}

// IsGamepad reports whether this event kind is the gamepad snapshot
// variant, which the broker rewrites to the sender's own slot.
func (e InputEvent) IsGamepad() bool {
	return e.Kind == InputGamepadState
}
