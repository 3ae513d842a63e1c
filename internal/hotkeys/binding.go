package hotkeys

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
)

// Action is the work bound to a shortcut. The registry never calls Run
// itself; callers invoke it after Handle returns a match.
type Action interface {
	Run() error
}

// Binding describes a registered shortcut.
// Bindings are created only by Registry.Add.
type Binding struct {
	origin    string
	modifiers ModMask
	key       xproto.Keysym
	action    Action
}

// Origin returns the shortcut text exactly as passed to Add.
func (b *Binding) Origin() string { return b.origin }

// Modifiers returns the modifier bitmask.
func (b *Binding) Modifiers() ModMask { return b.modifiers }

// Key returns the resolved keysym.
func (b *Binding) Key() xproto.Keysym { return b.key }

// Action returns the action owned by the binding.
func (b *Binding) Action() Action { return b.action }

// String omits the action, which may not be printable.
func (b *Binding) String() string {
	return fmt.Sprintf("Binding{modifiers: %s, key: 0x%x}", b.modifiers, uint32(b.key))
}
