package hotkeys

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"wmkeys/internal/workerutil"
)

type funcAction func() error

func (f funcAction) Run() error { return f() }

func TestManagerDispatch(t *testing.T) {
	m := NewManager(nil)
	act := &countAction{}
	if err := m.Add("super + d", act); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	b, err := m.Dispatch(ModSuper|ModCapsLock, ksLowD)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if b.Origin() != "super + d" {
		t.Fatalf("Dispatch() binding = %q", b.Origin())
	}
	if act.calls != 1 {
		t.Fatalf("action calls = %d, want 1", act.calls)
	}

	if b, err := m.Dispatch(ModShift, ksLowD); b != nil || err != nil {
		t.Fatalf("Dispatch(unbound) = (%v, %v), want (nil, nil)", b, err)
	}
}

func TestManagerDispatchActionError(t *testing.T) {
	m := NewManager(nil)
	want := errors.New("boom")
	if err := m.Add("d", funcAction(func() error { return want })); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	b, err := m.Dispatch(ModNone, ksLowD)
	if !errors.Is(err, want) {
		t.Fatalf("Dispatch() error = %v, want %v", err, want)
	}
	if b == nil {
		t.Fatal("Dispatch() binding = nil on action error")
	}
}

func TestManagerDispatchRecoversPanic(t *testing.T) {
	m := NewManager(nil)
	if err := m.Add("d", funcAction(func() error { panic("action exploded") })); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	_, err := m.Dispatch(ModNone, ksLowD)
	var pe *workerutil.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("Dispatch() error = %v, want *workerutil.PanicError", err)
	}
	if pe.Name != "d" {
		t.Fatalf("PanicError.Name = %q, want %q", pe.Name, "d")
	}
}

func TestManagerConcurrentAddAndHandle(t *testing.T) {
	m := NewManager(New('+', ModNone))
	var wg sync.WaitGroup

	for i := range 20 {
		wg.Go(func() {
			spec := fmt.Sprintf("F%d", i+1)
			if err := m.Add(spec, &countAction{}); err != nil {
				t.Errorf("Add(%q) error = %v", spec, err)
			}
		})
		wg.Go(func() {
			_ = m.Handle(ModNone, ksF12)
			_ = m.Bindings()
		})
	}
	wg.Wait()

	if got := len(m.Bindings()); got != 20 {
		t.Fatalf("len(Bindings()) = %d, want 20", got)
	}
	if m.Handle(ModNone, ksF12) == nil {
		t.Fatal("Handle(F12) = nil after concurrent adds")
	}
	if m.GhostModifiers() != ModNone {
		t.Fatalf("GhostModifiers() = %s, want None", m.GhostModifiers())
	}
}
