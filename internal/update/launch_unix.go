//go:build !windows

package update

import (
	"os/exec"
	"syscall"
)

// setDetached puts the child in a new session so it outlives this process
// and does not receive the terminal's signals.
func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
