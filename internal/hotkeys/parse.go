package hotkeys

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
)

// modifierByName maps lower-cased modifier aliases to their flag.
// Lock modifiers are deliberately absent: they cannot appear in a binding.
var modifierByName = map[string]ModMask{
	"super":   ModSuper,
	"mod4":    ModSuper,
	"win":     ModSuper,
	"windows": ModSuper,
	"cmd":     ModSuper,
	"command": ModSuper,

	"alt":    ModAlt,
	"mod1":   ModAlt,
	"meta":   ModAlt,
	"alt_l":  ModAlt,
	"alt_r":  ModAlt,
	"meta_l": ModAlt,
	"meta_r": ModAlt,

	"alt_gr":  ModAltGr,
	"mod3":    ModAltGr,
	"altgr":   ModAltGr,
	"meta_gr": ModAltGr,
	"metagr":  ModAltGr,

	"ctrl":    ModControl,
	"control": ModControl,
	"ctrl_l":  ModControl,
	"ctrl_r":  ModControl,

	"shift":   ModShift,
	"shift_l": ModShift,
	"shift_r": ModShift,
}

// lockByName holds the extra names accepted when configuring ghost modifiers.
var lockByName = map[string]ModMask{
	"numlock":     ModNumLock,
	"num_lock":    ModNumLock,
	"mod2":        ModNumLock,
	"scrolllock":  ModScrollLock,
	"scroll_lock": ModScrollLock,
	"mod5":        ModScrollLock,
	"capslock":    ModCapsLock,
	"caps_lock":   ModCapsLock,
	"lock":        ModCapsLock,
}

// ModifierFromName returns the flag for a binding modifier alias
// (case-insensitive). Lock names are not accepted.
func ModifierFromName(name string) (ModMask, bool) {
	m, ok := modifierByName[strings.ToLower(name)]
	return m, ok
}

// ParseGhostModifiers combines modifier and lock names into one mask.
// An empty list yields ModNone.
func ParseGhostModifiers(names []string) (ModMask, error) {
	var mask ModMask
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if m, ok := lockByName[name]; ok {
			mask.Set(m)
			continue
		}
		if m, ok := modifierByName[name]; ok {
			mask.Set(m)
			continue
		}
		return ModNone, fmt.Errorf("unknown ghost modifier %q", raw)
	}
	return mask, nil
}

// ParseModifierList parses a delimiter-separated list such as "super,shift"
// describing a live modifier state. Unlike Add, lock names are accepted.
func ParseModifierList(list string, delimiter rune) (ModMask, error) {
	if strings.TrimSpace(list) == "" {
		return ModNone, nil
	}
	return ParseGhostModifiers(strings.Split(list, string(delimiter)))
}

// tokenize splits spec on delimiter and trims every token. A spec made only
// of whitespace has no tokens.
func tokenize(spec string, delimiter rune) []string {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	parts := strings.Split(spec, string(delimiter))
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// resolveKey runs the relaxed lookup first and lets a strict hit override it.
// Code 0 (NoSymbol) never counts as a match.
func resolveKey(r KeysymResolver, name string) (xproto.Keysym, bool) {
	var key xproto.Keysym
	if code, ok := r.LookupRelaxed(name); ok {
		key = code
	}
	if code, ok := r.LookupStrict(name); ok {
		key = code
	}
	return key, key != 0
}

// resolveModifiers consumes tokens right to left.
func resolveModifiers(spec string, tokens []string) (ModMask, error) {
	var mask ModMask
	for i := len(tokens) - 1; i >= 0; i-- {
		m, ok := ModifierFromName(tokens[i])
		if !ok {
			return ModNone, &ParseError{Spec: spec, Token: tokens[i], Err: ErrInvalidModifier}
		}
		mask.Set(m)
	}
	return mask, nil
}
