// Package proc launches, tracks and reaps subprocesses in foreground and
// background modes, and delivers interrupts to the foreground process group.
package proc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/handterm/handterm/internal/infrastructure/logging"
	"github.com/handterm/handterm/internal/infrastructure/monitoring"
	"github.com/handterm/handterm/internal/shared/id"
	"github.com/handterm/handterm/internal/shell/output"
	"github.com/handterm/handterm/internal/shell/term"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Job tracks one background process.
type Job struct {
	ID       id.JobID
	PID      int
	Command  string
	cmd      *exec.Cmd
	finished atomic.Bool
}

// JobStatus is the `jobs` built-in view of a background process.
type JobStatus struct {
	PID     int
	Command string
	Running bool
}

// Supervisor owns every managed subprocess. At most one foreground process
// is active at a time; any number of background jobs may coexist. The job
// table and the output log are the only structures shared with workers.
type Supervisor struct {
	out     *output.Log
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu         sync.Mutex
	jobs       []*Job
	foreground *exec.Cmd
}

// New creates a supervisor writing captured output to out.
func New(out *output.Log, logger *logging.Logger, metrics *monitoring.Metrics) *Supervisor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Supervisor{out: out, log: logger, metrics: metrics}
}

// StartForeground spawns argv in its own process group, captures stdout and
// stderr, and occupies the foreground slot until the process exits. One
// reader worker forwards completed lines to the output log; a nonzero exit
// appends an exit-code line. Spawn failures are returned, not fatal.
func (s *Supervisor) StartForeground(argv []string, dir string) error {
	s.mu.Lock()
	if s.foreground != nil {
		s.mu.Unlock()
		return fmt.Errorf("a foreground process is already running")
	}
	s.mu.Unlock()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("spawn: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn: %w", err)
	}

	s.mu.Lock()
	s.foreground = cmd
	s.mu.Unlock()

	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			s.out.Append(term.Strip(scanner.Text()))
		}

		err := cmd.Wait()

		for _, line := range strings.Split(strings.TrimRight(stderr.String(), "\n"), "\n") {
			if line = term.Strip(line); line != "" {
				s.out.Append(fmt.Sprintf("[Error] %s", line))
			}
		}
		if code := exitCode(err); code != 0 {
			s.out.Append(fmt.Sprintf("[Exit Code] %d", code))
		}
		s.out.Append(fmt.Sprintf("[%s] Command completed", time.Now().Format("15:04:05")))

		s.mu.Lock()
		if s.foreground == cmd {
			s.foreground = nil
		}
		s.mu.Unlock()
	}()

	return nil
}

// StartBackground spawns argv detached into a new process group with output
// discarded, emits a confirmation line with the PID and tracks the job for
// the `jobs` built-in.
func (s *Supervisor) StartBackground(argv []string, dir, command string) (int, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn: %w", err)
	}

	job := &Job{
		ID:      id.NewJobID(),
		PID:     cmd.Process.Pid,
		Command: command,
		cmd:     cmd,
	}
	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	count := len(s.jobs)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.JobsActive.Set(float64(count))
	}

	// Reap on exit so `jobs` can report state without blocking.
	go func() {
		_ = cmd.Wait()
		job.finished.Store(true)
	}()

	s.out.Append(fmt.Sprintf("[System] Started background process (PID: %d)", job.PID))
	s.log.Info("background process started",
		zap.Int("pid", job.PID), zap.String("command", command))
	return job.PID, nil
}

// Jobs reports every tracked background process with a non-blocking status.
func (s *Supervisor) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		statuses = append(statuses, JobStatus{
			PID:     j.PID,
			Command: j.Command,
			Running: !j.finished.Load(),
		})
	}
	return statuses
}

// ReapFinished drops finished jobs from the table.
func (s *Supervisor) ReapFinished() {
	s.mu.Lock()
	kept := s.jobs[:0]
	for _, j := range s.jobs {
		if !j.finished.Load() {
			kept = append(kept, j)
		}
	}
	s.jobs = kept
	count := len(s.jobs)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.JobsActive.Set(float64(count))
	}
}

// ForegroundActive reports whether the foreground slot is occupied.
func (s *Supervisor) ForegroundActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.foreground != nil
}

// InterruptForeground delivers SIGINT to the foreground process group so
// pipelines are interrupted, not just the leaf. Default signal handling is
// preserved: a process trapping the signal may survive.
func (s *Supervisor) InterruptForeground() error {
	s.mu.Lock()
	cmd := s.foreground
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return fmt.Errorf("no foreground process to interrupt")
	}
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGINT); err != nil {
		return fmt.Errorf("failed to send Ctrl+C: %w", err)
	}
	return nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
