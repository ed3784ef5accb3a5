package shell

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/handterm/handterm/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Shell.Path = "/bin/sh"
	cfg.History.File = filepath.Join(t.TempDir(), "history.json")
	cfg.Shell.PTYPollMillis = 20
	cfg.Shell.TeardownMillis = 1000
	e := New(cfg, nil, nil)
	t.Cleanup(e.Quit)
	return e
}

func outputContains(e *Engine, substr string) bool {
	for _, line := range e.GetOutput(0) {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func TestEngineStartupPostsWelcome(t *testing.T) {
	e := newTestEngine(t)
	assert.True(t, outputContains(e, "Terminal ready"))
	assert.True(t, outputContains(e, "Working directory"))
}

func TestEngineRoutesBuiltins(t *testing.T) {
	e := newTestEngine(t)
	e.ExecuteCommand("pwd")
	assert.True(t, outputContains(e, e.Frame().Cwd))
}

func TestFrameSnapshot(t *testing.T) {
	e := newTestEngine(t)
	frame := e.Frame()

	assert.NotEmpty(t, frame.Prompt)
	assert.NotEmpty(t, frame.Cwd)
	assert.NotEmpty(t, frame.ActiveUser)
	assert.False(t, frame.PTYActive)
	assert.False(t, frame.EditorOpen)
	assert.NotEmpty(t, frame.Output)
}

func TestFrameConcurrentWithDispatch(t *testing.T) {
	e := newTestEngine(t)
	dirA := t.TempDir()
	dirB := t.TempDir()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			frame := e.Frame()
			assert.NotEmpty(t, frame.Cwd)
			e.Autocomplete("cat no", 6)
		}
	}()

	// Mutates Cwd on every iteration; the race detector flags any frame
	// poll that reads the session context without the dispatch lock.
	for i := 0; i < 50; i++ {
		e.ExecuteCommand("cd " + dirA)
		e.ExecuteCommand("cd " + dirB)
	}
	<-done

	frame := e.Frame()
	assert.Equal(t, dirB, frame.Cwd)
}

func TestEditorLifecycle(t *testing.T) {
	e := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "notes.txt")

	require.NoError(t, e.OpenEditor(path))
	assert.True(t, e.EditorOpen())
	assert.Error(t, e.OpenEditor(path))

	// Commands are rejected while the editor is open.
	e.ExecuteCommand("pwd")
	assert.True(t, outputContains(e, "Finish the editor session"))

	e.Editor().Insert("hello")
	require.NoError(t, e.CloseEditor(true))
	assert.False(t, e.EditorOpen())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestCloseEditorWithoutSession(t *testing.T) {
	e := newTestEngine(t)
	assert.Error(t, e.CloseEditor(false))
}

func TestSecondPTYRejected(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.StartPTY("cat"))
	assert.True(t, e.PTYActive())

	err := e.StartPTY("cat")
	assert.ErrorContains(t, err, "already running")
}

func TestSendKeyWithoutPTY(t *testing.T) {
	e := newTestEngine(t)
	assert.Error(t, e.SendKeyToPTY("ENTER"))
}

func TestPTYClosedAfterTeardown(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.StartPTY("cat"))
	e.ClosePTY()

	require.Eventually(t, func() bool {
		return !e.PTYActive()
	}, 5*time.Second, 20*time.Millisecond)
	assert.True(t, outputContains(e, "Exited interactive mode"))
}

func TestInterruptWithNothingRunning(t *testing.T) {
	e := newTestEngine(t)
	assert.Error(t, e.InterruptForeground())
}

func TestQuitIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	e.Quit()
	e.Quit()
	select {
	case <-e.Done():
	default:
		t.Fatal("Done not closed after Quit")
	}
}

func TestLaunchRunsHooksAndReportsExit(t *testing.T) {
	e := newTestEngine(t)
	suspended, resumed := 0, 0
	e.SetLaunchHooks(
		func() error { suspended++; return nil },
		func() error { resumed++; return nil },
	)

	e.Launch("exit 3")

	assert.Equal(t, 1, suspended)
	assert.Equal(t, 1, resumed)
	assert.True(t, outputContains(e, "[Exit Code] 3"))
	assert.True(t, outputContains(e, "Returned from: exit 3"))
}

func TestLaunchResumeFailureShutsDown(t *testing.T) {
	e := newTestEngine(t)
	e.SetLaunchHooks(nil, func() error { return errors.New("display lost") })

	e.Launch("true")

	select {
	case <-e.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not shut down after resume failure")
	}
	assert.True(t, outputContains(e, "could not resume display"))
}
