//go:build !windows

package procutil

import (
	"os/exec"
	"syscall"
)

// Detach puts cmd in its own session so it does not receive signals sent to
// the daemon's process group. Existing SysProcAttr fields are preserved.
func Detach(cmd *exec.Cmd) {
	if cmd == nil {
		return
	}
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true
}
