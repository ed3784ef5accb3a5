package session

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testState(t *testing.T) *State {
	t.Helper()
	return &State{
		Cwd:        t.TempDir(),
		RealUser:   "player",
		ActiveUser: "player",
		Hostname:   "r36s",
		shellPath:  "/bin/bash",
	}
}

func TestPromptConstruction(t *testing.T) {
	s := testState(t)

	assert.Equal(t, "player@r36s$ ", s.Prompt(true))
	assert.Equal(t, "player@r36s$", s.Prompt(false))

	s.ActiveUser = "root"
	assert.Equal(t, "root@r36s#", s.Prompt(false))

	s.ActiveUser = "player"
	s.Env = ActiveEnv{Name: "proj", Type: EnvVenv}
	assert.Equal(t, "(proj) player@r36s$", s.Prompt(false))
	assert.Equal(t, "player@r36s$ (proj)", s.Header())
}

func TestBuildCommandUsesLoginShell(t *testing.T) {
	s := testState(t)

	argv := s.BuildCommand("echo hi")
	require.Len(t, argv, 3)
	assert.Equal(t, "/bin/bash", argv[0])
	assert.Equal(t, "-lc", argv[1])
	assert.Contains(t, argv[2], "echo hi")
}

func TestBuildCommandPlainShellUsesDashC(t *testing.T) {
	s := testState(t)
	s.shellPath = "/bin/sh"

	argv := s.BuildCommand("true")
	require.Len(t, argv, 3)
	assert.Equal(t, "-c", argv[1])
}

func TestWrapWithEnvExportsPath(t *testing.T) {
	s := testState(t)

	wrapped := s.WrapWithEnv("python3 app.py")
	assert.True(t, strings.HasPrefix(wrapped, "export PATH="))
	assert.True(t, strings.HasSuffix(wrapped, "python3 app.py"))
}

func TestWrapWithEnvExportsVenvVariables(t *testing.T) {
	s := testState(t)
	s.Env = ActiveEnv{Name: "proj", Type: EnvVenv}
	t.Setenv("VIRTUAL_ENV", "/tmp/proj")

	wrapped := s.WrapWithEnv("pip list")
	assert.Contains(t, wrapped, "export VIRTUAL_ENV=/tmp/proj")
}

func TestChangeDirRejectsMissingDirectory(t *testing.T) {
	s := testState(t)
	err := s.ChangeDir("definitely-not-here")
	assert.Error(t, err)
}

func TestChangeDirResolvesRelative(t *testing.T) {
	s := testState(t)
	sub := "child"
	require.NoError(t, os.Mkdir(s.Cwd+"/"+sub, 0o755))
	before := s.Cwd

	require.NoError(t, s.ChangeDir(sub))
	assert.Equal(t, before+"/"+sub, s.Cwd)
}

func TestSwitchUserRejectsEmpty(t *testing.T) {
	s := testState(t)
	_, err := s.SwitchUser("   ")
	assert.Error(t, err)
	assert.Equal(t, "player", s.ActiveUser)
}

func TestSwitchUserResetToRealUser(t *testing.T) {
	s := testState(t)
	s.ActiveUser = "root"

	notes, err := s.SwitchUser("player")
	require.NoError(t, err)
	assert.Equal(t, "player", s.ActiveUser)
	assert.Contains(t, notes[0], "reset")
}

func TestSwitchUserNoopWhenAlreadyActive(t *testing.T) {
	s := testState(t)
	s.RealUser = "other"

	notes, err := s.SwitchUser("player")
	require.NoError(t, err)
	assert.Contains(t, notes[0], "already set")
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "''", Quote(""))
	assert.Equal(t, "plain", Quote("plain"))
	assert.Equal(t, "'has space'", Quote("has space"))
	assert.Equal(t, `'it'"'"'s'`, Quote("it's"))
}
