package envprobe

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrailer(t *testing.T) {
	out := []byte("__PWD__/home/player\nPATH=/usr/bin\x00FOO=bar\x00")

	cwd, table, err := parseTrailer(out)
	require.NoError(t, err)
	assert.Equal(t, "/home/player", cwd)
	assert.Equal(t, "/usr/bin", table["PATH"])
	assert.Equal(t, "bar", table["FOO"])
}

func TestParseTrailerMissingSentinel(t *testing.T) {
	_, _, err := parseTrailer([]byte("no sentinel here\nFOO=bar\x00"))
	assert.Error(t, err)
}

func TestParseTrailerNoNewline(t *testing.T) {
	_, _, err := parseTrailer([]byte("__PWD__/truncated"))
	assert.Error(t, err)
}

func TestParseTrailerValueContainingEquals(t *testing.T) {
	_, table, err := parseTrailer([]byte("__PWD__/x\nLS_COLORS=di=34:ln=36\x00"))
	require.NoError(t, err)
	assert.Equal(t, "di=34:ln=36", table["LS_COLORS"])
}

func TestApplyTableRemovesAbsentKeys(t *testing.T) {
	p := &ShellProber{}
	t.Setenv("HANDTERM_PROBE_TEST", "before")

	// Build the probed table from the live environment so the wholesale
	// replacement only differs by the two keys under test.
	table := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		table[k] = v
	}
	delete(table, "HANDTERM_PROBE_TEST")
	table["HANDTERM_PROBE_OTHER"] = "after"

	p.applyTable(table)
	t.Cleanup(func() { os.Unsetenv("HANDTERM_PROBE_OTHER") })

	_, present := os.LookupEnv("HANDTERM_PROBE_TEST")
	assert.False(t, present)
	assert.Equal(t, "after", os.Getenv("HANDTERM_PROBE_OTHER"))
}
