package procutil

import (
	"fmt"
	"log/slog"
	"os/exec"
)

// StartDetached detaches and starts cmd, then reaps it on a background
// goroutine. It returns the child's pid without waiting for it to exit.
func StartDetached(cmd *exec.Cmd) (int, error) {
	if cmd == nil {
		return 0, fmt.Errorf("start detached: nil command")
	}
	Detach(cmd)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", cmd.Path, err)
	}
	pid := cmd.Process.Pid
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Debug("[DEBUG-SPAWN] child exited with error", "pid", pid, "error", err)
			return
		}
		slog.Debug("[DEBUG-SPAWN] child exited", "pid", pid)
	}()
	return pid, nil
}
