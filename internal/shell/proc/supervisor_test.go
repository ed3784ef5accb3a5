package proc

import (
	"strings"
	"testing"
	"time"

	"github.com/handterm/handterm/internal/shell/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTestSupervisor(t *testing.T) (*Supervisor, *output.Log) {
	t.Helper()
	out := output.New(100)
	return New(out, nil, nil), out
}

func hasLine(out *output.Log, substr string) bool {
	for _, line := range out.Tail(0) {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func TestForegroundCapturesOutput(t *testing.T) {
	s, out := newTestSupervisor(t)

	require.NoError(t, s.StartForeground([]string{"/bin/sh", "-c", "echo captured"}, t.TempDir()))

	require.Eventually(t, func() bool {
		return hasLine(out, "captured") && !s.ForegroundActive()
	}, 5*time.Second, 20*time.Millisecond)
}

func TestForegroundReportsExitCode(t *testing.T) {
	s, out := newTestSupervisor(t)

	require.NoError(t, s.StartForeground([]string{"/bin/sh", "-c", "exit 3"}, t.TempDir()))

	require.Eventually(t, func() bool {
		return hasLine(out, "[Exit Code] 3")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestForegroundStderrPrefixed(t *testing.T) {
	s, out := newTestSupervisor(t)

	require.NoError(t, s.StartForeground([]string{"/bin/sh", "-c", "echo oops >&2"}, t.TempDir()))

	require.Eventually(t, func() bool {
		return hasLine(out, "[Error] oops")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestForegroundSpawnFailure(t *testing.T) {
	s, _ := newTestSupervisor(t)

	err := s.StartForeground([]string{"/definitely/not/a/binary"}, t.TempDir())
	assert.Error(t, err)
	assert.False(t, s.ForegroundActive())
}

func TestBackgroundReturnsImmediately(t *testing.T) {
	s, out := newTestSupervisor(t)

	start := time.Now()
	pid, err := s.StartBackground([]string{"/bin/sh", "-c", "sleep 5"}, t.TempDir(), "sleep 5 &")
	require.NoError(t, err)
	t.Cleanup(func() { _ = unix.Kill(-pid, unix.SIGKILL) })
	assert.Less(t, time.Since(start), time.Second)
	assert.Greater(t, pid, 0)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, pid, jobs[0].PID)
	assert.True(t, jobs[0].Running)

	// Background output is discarded; only the confirmation line appears.
	assert.True(t, hasLine(out, "Started background process"))
	assert.False(t, hasLine(out, "sleep"))
}

func TestBackgroundJobFinishes(t *testing.T) {
	s, _ := newTestSupervisor(t)

	_, err := s.StartBackground([]string{"/bin/sh", "-c", "true"}, t.TempDir(), "true &")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		jobs := s.Jobs()
		return len(jobs) == 1 && !jobs[0].Running
	}, 5*time.Second, 20*time.Millisecond)

	s.ReapFinished()
	assert.Empty(t, s.Jobs())
}

func TestInterruptForegroundTerminatesGroup(t *testing.T) {
	s, _ := newTestSupervisor(t)

	require.NoError(t, s.StartForeground([]string{"/bin/sh", "-c", "sleep 30"}, t.TempDir()))
	require.Eventually(t, func() bool { return s.ForegroundActive() }, time.Second, 10*time.Millisecond)

	require.NoError(t, s.InterruptForeground())

	// The process does not trap SIGINT, so the slot frees up.
	require.Eventually(t, func() bool {
		return !s.ForegroundActive()
	}, 5*time.Second, 20*time.Millisecond)
}

func TestInterruptWithoutForeground(t *testing.T) {
	s, _ := newTestSupervisor(t)
	assert.Error(t, s.InterruptForeground())
}
