package workerutil

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// PanicError is returned by SafeRun when fn panicked.
type PanicError struct {
	Name  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Name, e.Value)
}

// SafeRun calls fn and converts a panic into a *PanicError.
func SafeRun(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[DEBUG-PANIC] recovered panic",
				"name", name, "panic", r, "stack", string(debug.Stack()))
			err = &PanicError{Name: name, Value: r}
		}
	}()
	return fn()
}
