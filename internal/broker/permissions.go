package broker

import (
	"k8s.io/utils/set"

	"github.com/streambridge/streambridge/internal/model"
)

// HasKeyboardMousePermission returns the set of roles allowed to submit
// keyboard, mouse, and text input for the given guests-KBM flag: Host
// only when it is false, Host and Player when it is true. Spectators
// never are.
func HasKeyboardMousePermission(guestsKBM bool) set.Set[model.Role] {
	if guestsKBM {
		return set.New(model.RoleHost, model.RolePlayer)
	}
	return set.New(model.RoleHost)
}

// HasGamepadPermission returns the set of roles allowed to submit
// gamepad state. Only Host and Player hold a slot to forward it for;
// Spectators are always excluded regardless of guests-KBM.
func HasGamepadPermission() set.Set[model.Role] {
	return set.New(model.RoleHost, model.RolePlayer)
}

// HasPermission checks role membership in permissions, mirroring the
// teacher's HasPermission(role, set) call shape.
func HasPermission(role model.Role, permissions set.Set[model.Role]) bool {
	return permissions.Has(role)
}

// allowInput applies spec §4.E's input arbitration policy to a single
// event from participant p: gamepad snapshots are rewritten to p's own
// slot then allowed for Host/Player; keyboard/mouse/touch/text are
// gated by guestsKBM for non-Host participants and always rejected for
// Spectators.
func allowInput(e model.InputEvent, role model.Role, slot model.SlotIndex, guestsKBM bool) (model.InputEvent, bool) {
	if e.IsGamepad() {
		if !HasPermission(role, HasGamepadPermission()) {
			return e, false
		}
		e.TargetSlot = slot
		return e, true
	}
	if e.IsKeyboardMouse() {
		if !HasPermission(role, HasKeyboardMousePermission(guestsKBM)) {
			return e, false
		}
		return e, true
	}
	return e, false
}
