package hotkeys

import (
	"log/slog"
	"sync"

	"github.com/BurntSushi/xgb/xproto"

	"wmkeys/internal/workerutil"
)

// Manager wraps a Registry for concurrent use: Add takes the write lock,
// lookups take the read lock.
type Manager struct {
	mu  sync.RWMutex
	reg *Registry
}

// NewManager creates a manager over reg. A nil reg gets a default registry.
func NewManager(reg *Registry) *Manager {
	if reg == nil {
		reg = NewDefault()
	}
	return &Manager{reg: reg}
}

// Add registers a shortcut. See Registry.Add.
func (m *Manager) Add(spec string, action Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reg.Add(spec, action)
}

// Handle looks up a binding. See Registry.Handle.
func (m *Manager) Handle(mods ModMask, key xproto.Keysym) *Binding {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reg.Handle(mods, key)
}

// Bindings returns a snapshot of the registered bindings.
func (m *Manager) Bindings() []*Binding {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reg.Bindings()
}

// GhostModifiers returns the modifiers ignored by Handle.
func (m *Manager) GhostModifiers() ModMask {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reg.GhostModifiers()
}

// Dispatch looks up the binding for the event and runs its action on the
// calling goroutine. It returns (nil, nil) when nothing matches. A panicking
// action is reported as an error. The matched binding is returned even when
// its action fails.
func (m *Manager) Dispatch(mods ModMask, key xproto.Keysym) (*Binding, error) {
	b := m.Handle(mods, key)
	if b == nil {
		return nil, nil
	}
	if err := workerutil.SafeRun(b.origin, b.action.Run); err != nil {
		slog.Warn("[WARN-HOTKEY] action failed", "origin", b.origin, "error", err)
		return b, err
	}
	slog.Debug("[DEBUG-HOTKEY] action completed", "origin", b.origin)
	return b, nil
}
