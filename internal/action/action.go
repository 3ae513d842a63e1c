// Package action implements the work bound to shortcuts: spawning shell
// commands and running Lua snippets.
package action

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"wmkeys/internal/config"
	"wmkeys/internal/hotkeys"
	"wmkeys/internal/procutil"
	"wmkeys/internal/shell"
)

// ErrEmptyCommand is returned by Spawn.Run when there is nothing to execute.
var ErrEmptyCommand = errors.New("empty spawn command")

// Func adapts a plain function to hotkeys.Action.
type Func func() error

// Run calls f.
func (f Func) Run() error { return f() }

// StartFunc starts a prepared command and returns its pid without waiting.
type StartFunc func(cmd *exec.Cmd) (int, error)

// Spawn runs Command through the platform shell as a detached process.
type Spawn struct {
	Command string

	// Start defaults to procutil.StartDetached.
	Start StartFunc
}

// NewSpawn returns a Spawn for command.
func NewSpawn(command string) *Spawn {
	return &Spawn{Command: command}
}

// Run starts the command and returns once it is running.
func (s *Spawn) Run() error {
	_, err := s.run()
	return err
}

func (s *Spawn) run() (int, error) {
	parsed := shell.ParseCommand(s.Command)
	if parsed.Empty() {
		return 0, ErrEmptyCommand
	}

	argv := parsed.Argv()
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = parsed.WorkDir
	if len(parsed.ExtraEnv) > 0 {
		cmd.Env = append(os.Environ(), parsed.Environ()...)
	}

	start := s.Start
	if start == nil {
		start = procutil.StartDetached
	}
	pid, err := start(cmd)
	if err != nil {
		return 0, fmt.Errorf("spawn %q: %w", s.Command, err)
	}
	slog.Debug("[DEBUG-ACTION] spawned", "command", parsed.Command, "workDir", parsed.WorkDir, "pid", pid)
	return pid, nil
}

func (s *Spawn) String() string { return "spawn: " + s.Command }

// FromConfig builds the action described by a binding entry.
func FromConfig(b config.BindingConfig) (hotkeys.Action, error) {
	switch b.Kind() {
	case "spawn":
		return NewSpawn(b.Spawn), nil
	case "lua":
		return NewLua(b.Keys, b.Lua)
	default:
		return nil, fmt.Errorf("binding %q: exactly one of spawn or lua is required", b.Keys)
	}
}
