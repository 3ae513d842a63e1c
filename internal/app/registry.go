// Package app wires configuration, the shortcut registry, the dispatch
// worker and the WebSocket endpoint into the wmkeys daemon.
package app

import (
	"errors"
	"fmt"

	"wmkeys/internal/action"
	"wmkeys/internal/config"
	"wmkeys/internal/hotkeys"
)

// BindingError reports a config entry that could not be registered.
type BindingError struct {
	Index int
	Keys  string
	Err   error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("bindings[%d] %q: %v", e.Index, e.Keys, e.Err)
}

func (e *BindingError) Unwrap() error { return e.Err }

// BuildRegistry creates a registry from cfg and adds every binding. Entries
// that fail are reported as joined *BindingError values while the remaining
// entries are still registered. The registry is nil only when the delimiter
// or ghost modifiers are unusable.
func BuildRegistry(cfg config.Config, opts ...hotkeys.Option) (*hotkeys.Registry, error) {
	ghost, err := cfg.GhostMask()
	if err != nil {
		return nil, fmt.Errorf("ghost_modifiers: %w", err)
	}
	if cfg.Delimiter == "" {
		return nil, errors.New("delimiter is required")
	}
	reg := hotkeys.New(cfg.DelimiterRune(), ghost, opts...)

	var errs []error
	for i, b := range cfg.Bindings {
		act, err := action.FromConfig(b)
		if err == nil {
			err = reg.Add(b.Keys, act)
		}
		if err != nil {
			errs = append(errs, &BindingError{Index: i, Keys: b.Keys, Err: err})
		}
	}
	return reg, errors.Join(errs...)
}

// Descriptions maps binding keys to their configured description.
func Descriptions(cfg config.Config) map[string]string {
	out := make(map[string]string, len(cfg.Bindings))
	for _, b := range cfg.Bindings {
		if b.Description != "" {
			out[b.Keys] = b.Description
		}
	}
	return out
}
