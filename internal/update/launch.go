package update

import (
	"fmt"
	"os/exec"
	"path/filepath"
)

// Launcher starts a program as an independent process.
type Launcher interface {
	// Launch starts path with no arguments and returns once the process has
	// been created. It never waits for the child to exit.
	Launch(path string) (pid int, err error)
}

// ProcessLauncher starts detached child processes: own session or process
// group, no inherited stdio, released immediately after start.
type ProcessLauncher struct{}

// Launch implements Launcher.
func (ProcessLauncher) Launch(path string) (int, error) {
	//nolint:gosec // G204: path is the versioned sibling this process just installed
	cmd := exec.Command(path)
	cmd.Dir = filepath.Dir(path)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	setDetached(cmd)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", path, err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}
