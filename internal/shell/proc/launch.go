package proc

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// LaunchedProcess is a program running attached to the engine's own terminal,
// in its own process group. Used by the `launch` flow where the UI suspends
// and hands the display over.
type LaunchedProcess struct {
	cmd *exec.Cmd
}

// StartAttached spawns argv bound to the inherited standard streams.
func StartAttached(argv []string, dir string) (*LaunchedProcess, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn: %w", err)
	}
	return &LaunchedProcess{cmd: cmd}, nil
}

// PID returns the launched process id.
func (p *LaunchedProcess) PID() int {
	return p.cmd.Process.Pid
}

// Wait blocks until the process exits and returns its exit code.
func (p *LaunchedProcess) Wait() int {
	return exitCode(p.cmd.Wait())
}

// Interrupt signals the whole launched process group.
func (p *LaunchedProcess) Interrupt() error {
	if err := unix.Kill(-p.cmd.Process.Pid, unix.SIGINT); err != nil {
		return fmt.Errorf("failed to interrupt launched process: %w", err)
	}
	return nil
}
