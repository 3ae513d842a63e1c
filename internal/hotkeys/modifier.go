package hotkeys

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
)

// ModMask is an X11 modifier bitmask as found in the state field of key events.
type ModMask uint16

const (
	ModNone     ModMask = 0
	ModShift    ModMask = xproto.ModMaskShift
	ModCapsLock ModMask = xproto.ModMaskLock
	ModControl  ModMask = xproto.ModMaskControl
	ModMod1     ModMask = xproto.ModMask1 // Alt
	ModMod2     ModMask = xproto.ModMask2 // NumLock
	ModMod3     ModMask = xproto.ModMask3 // AltGr on most layouts
	ModMod4     ModMask = xproto.ModMask4 // Super/Win/Cmd
	ModMod5     ModMask = xproto.ModMask5 // ScrollLock
	ModAny      ModMask = xproto.ModMaskAny

	ModAlt        = ModMod1
	ModNumLock    = ModMod2
	ModAltGr      = ModMod3
	ModSuper      = ModMod4
	ModScrollLock = ModMod5
)

// DefaultGhostModifiers are the lock modifiers ignored by NewDefault.
const DefaultGhostModifiers = ModNumLock | ModScrollLock | ModCapsLock

// Or returns the union of m and o.
func (m ModMask) Or(o ModMask) ModMask { return m | o }

// And returns the intersection of m and o.
func (m ModMask) And(o ModMask) ModMask { return m & o }

// Set adds the flags of o to m in place.
func (m *ModMask) Set(o ModMask) { *m |= o }

// Has reports whether every flag of o is set in m.
func (m ModMask) Has(o ModMask) bool { return m&o == o }

// Uint8 returns the low byte of the mask. ModAny does not survive the conversion.
func (m ModMask) Uint8() uint8 { return uint8(m) }

// Uint16 returns the mask as sent on the wire.
func (m ModMask) Uint16() uint16 { return uint16(m) }

// Uint32 widens the mask.
func (m ModMask) Uint32() uint32 { return uint32(m) }

// ModMaskFromUint8 converts a raw byte into a ModMask.
func ModMaskFromUint8(v uint8) ModMask { return ModMask(v) }

// ModMaskFromUint16 converts a raw event state into a ModMask.
func ModMaskFromUint16(v uint16) ModMask { return ModMask(v) }

// ModMaskFromUint32 narrows v to 16 bits. Bits above 15 are dropped; callers
// that care must check before converting.
func ModMaskFromUint32(v uint32) ModMask { return ModMask(uint16(v)) }

var modMaskNames = []struct {
	mask ModMask
	name string
}{
	{ModShift, "Shift"},
	{ModCapsLock, "Lock"},
	{ModControl, "Control"},
	{ModMod1, "Mod1"},
	{ModMod2, "Mod2"},
	{ModMod3, "Mod3"},
	{ModMod4, "Mod4"},
	{ModMod5, "Mod5"},
	{ModAny, "Any"},
}

// String renders the set flags joined by "+", e.g. "Control+Mod4".
func (m ModMask) String() string {
	if m == ModNone {
		return "None"
	}
	var parts []string
	for _, n := range modMaskNames {
		if m&n.mask != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		// Only unnamed bits (8..14) are set.
		return fmt.Sprintf("ModMask(0x%04x)", uint16(m))
	}
	return strings.Join(parts, "+")
}
