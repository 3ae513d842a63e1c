package hotkeys

import (
	"errors"
	"fmt"
)

// Parse errors returned by Registry.Add. Match them with errors.Is.
var (
	ErrDuplicateBinding = errors.New("duplicate keybinding")
	ErrMissingKey       = errors.New("no key provided")
	ErrUnknownKey       = errors.New("key not found")
	ErrInvalidModifier  = errors.New("invalid modifier")
	ErrNilAction        = errors.New("action is required")
)

// ParseError reports why a shortcut string was rejected.
type ParseError struct {
	Spec  string // shortcut text as passed to Add
	Token string // offending token, empty when the whole spec is at fault
	Err   error  // one of the Err* sentinels
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("%s: %q", e.Err, e.Spec)
	}
	return fmt.Sprintf("%s %q in %q", e.Err, e.Token, e.Spec)
}

func (e *ParseError) Unwrap() error { return e.Err }
