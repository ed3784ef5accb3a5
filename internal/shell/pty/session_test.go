package pty

import (
	"strings"
	"testing"
	"time"

	"github.com/handterm/handterm/internal/shell/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startSession(t *testing.T, argv []string) (*Session, *output.Log) {
	t.Helper()
	out := output.New(100)
	s, err := Start(argv, strings.Join(argv, " "), out, nil, Options{
		Dir:             t.TempDir(),
		PollInterval:    20 * time.Millisecond,
		TeardownTimeout: time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, out
}

func TestSessionCapturesOutput(t *testing.T) {
	s, out := startSession(t, []string{"/bin/sh", "-c", "echo from-pty"})

	require.Eventually(t, func() bool {
		for _, line := range out.Tail(0) {
			if strings.Contains(line, "from-pty") {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not tear down after stream end")
	}
	assert.False(t, s.Active())
}

func TestSessionTeardownKillsChild(t *testing.T) {
	s, out := startSession(t, []string{"/bin/cat"})

	require.True(t, s.Active())
	s.Close()

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("teardown did not complete")
	}

	// Teardown always emits the exit line and rejects further writes.
	found := false
	for _, line := range out.Tail(0) {
		if strings.Contains(line, "Exited interactive mode") {
			found = true
		}
	}
	assert.True(t, found)
	assert.Error(t, s.Write([]byte("x")))
}

func TestRapidRestartDoesNotCrossSessions(t *testing.T) {
	// Closing the master while the previous reader is still polling would
	// let a reused descriptor feed one session's bytes into another. Cycle
	// sessions back to back and check each one only sees its own output.
	for i := 0; i < 5; i++ {
		s, out := startSession(t, []string{"/bin/cat"})
		s.Close()
		select {
		case <-s.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("teardown did not complete")
		}

		next, nextOut := startSession(t, []string{"/bin/sh", "-c", "echo marker-current"})
		require.Eventually(t, func() bool {
			for _, line := range nextOut.Tail(0) {
				if strings.Contains(line, "marker-current") {
					return true
				}
			}
			return false
		}, 5*time.Second, 20*time.Millisecond)
		for _, line := range out.Tail(0) {
			assert.NotContains(t, line, "marker-current")
		}
		next.Close()
		<-next.Done()
	}
}

func TestSessionEchoTracking(t *testing.T) {
	s, _ := startSession(t, []string{"/bin/cat"})

	require.NoError(t, s.Send("h"))
	require.NoError(t, s.Send("i"))
	line, cursor := s.InputLine()
	assert.Equal(t, "hi", line)
	assert.Equal(t, 2, cursor)

	require.NoError(t, s.Send("\n"))
	line, _ = s.InputLine()
	assert.Equal(t, "", line)

	got, ok := s.HistoryPrev()
	assert.True(t, ok)
	assert.Equal(t, "hi", got)
}

func TestSessionRejectsUnknownKey(t *testing.T) {
	s, _ := startSession(t, []string{"/bin/cat"})
	assert.False(t, s.SendKey("NOT_A_KEY"))
	assert.True(t, s.SendKey("TAB"))
}
