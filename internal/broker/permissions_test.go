package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streambridge/streambridge/internal/model"
)

func TestHasKeyboardMousePermissionTogglesOnGuestsKBM(t *testing.T) {
	assert.True(t, HasKeyboardMousePermission(false).Has(model.RoleHost))
	assert.False(t, HasKeyboardMousePermission(false).Has(model.RolePlayer))
	assert.False(t, HasKeyboardMousePermission(false).Has(model.RoleSpectator))

	assert.True(t, HasKeyboardMousePermission(true).Has(model.RolePlayer))
	assert.False(t, HasKeyboardMousePermission(true).Has(model.RoleSpectator))
}

func TestHasGamepadPermissionExcludesSpectator(t *testing.T) {
	perms := HasGamepadPermission()
	assert.True(t, perms.Has(model.RoleHost))
	assert.True(t, perms.Has(model.RolePlayer))
	assert.False(t, perms.Has(model.RoleSpectator))
}

func TestAllowInputRewritesGamepadToOwnSlot(t *testing.T) {
	e := model.InputEvent{Kind: model.InputGamepadState, Gamepad: &model.GamepadState{}}
	rewritten, ok := allowInput(e, model.RolePlayer, model.SlotIndex(2), false)
	assert.True(t, ok)
	assert.Equal(t, model.SlotIndex(2), rewritten.TargetSlot)
}

func TestAllowInputRejectsGamepadFromSpectator(t *testing.T) {
	e := model.InputEvent{Kind: model.InputGamepadState, Gamepad: &model.GamepadState{}}
	_, ok := allowInput(e, model.RoleSpectator, model.SlotIndex(0), false)
	assert.False(t, ok)
}

func TestAllowInputGatesKeyboardByGuestsKBM(t *testing.T) {
	e := model.InputEvent{Kind: model.InputKeyDown, Scancode: 0x1E}

	_, ok := allowInput(e, model.RolePlayer, model.SlotIndex(1), false)
	assert.False(t, ok, "player keyboard input rejected when guestsKBM is off")

	rewritten, ok := allowInput(e, model.RolePlayer, model.SlotIndex(1), true)
	assert.True(t, ok)
	assert.Equal(t, 0x1E, rewritten.Scancode)
}

func TestAllowInputHostAlwaysAllowedKeyboard(t *testing.T) {
	e := model.InputEvent{Kind: model.InputMouseMove, DX: 1, DY: 2}
	_, ok := allowInput(e, model.RoleHost, model.SlotHost, false)
	assert.True(t, ok)
}

func TestAllowInputRejectsUnknownKind(t *testing.T) {
	e := model.InputEvent{Kind: model.InputKind("unknown")}
	_, ok := allowInput(e, model.RoleHost, model.SlotHost, true)
	assert.False(t, ok)
}
