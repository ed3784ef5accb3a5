// Package envprobe captures shell environment mutations by running snippets
// in a real shell and parsing a sentinel-delimited trailer.
//
// The live shell environment is observable only through side effects:
// sourcing a file or activating a virtual environment happens inside a child
// shell and vanishes with it. The probe wraps the snippet so the shell also
// emits its working directory behind a sentinel prefix followed by a
// NUL-separated dump of its full environment table, then applies that state
// wholesale. The protocol is deliberately narrow so tests can substitute a
// fake without invoking a shell.
package envprobe

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/handterm/handterm/internal/infrastructure/logging"
	"github.com/handterm/handterm/internal/shell/session"
	"go.uber.org/zap"
)

// Sentinel prefixes the working-directory line in the probe trailer.
const Sentinel = "__PWD__"

// Prober applies a shell snippet's environment side effects to the session.
type Prober interface {
	Apply(snippet, description string) error
}

// Error reports a failed probe: nonzero exit or a malformed trailer. No
// partial state is applied on failure.
type Error struct {
	Description string
	Detail      string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s failed", e.Description)
	}
	return fmt.Sprintf("%s failed: %s", e.Description, e.Detail)
}

// ShellProber runs snippets through the session's shell wrapper.
type ShellProber struct {
	state *session.State
	log   *logging.Logger
}

// New creates a prober bound to the session state.
func New(state *session.State, logger *logging.Logger) *ShellProber {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ShellProber{state: state, log: logger}
}

// Apply runs snippet in a fresh shell invocation, then replaces the tracked
// environment with the shell's resulting table and re-enters its working
// directory. Keys absent from the dump are removed; deactivation flows rely
// on that to actually unset variables.
func (p *ShellProber) Apply(snippet, description string) error {
	probe := snippet + ` && printf '` + Sentinel + `%s\n' "$PWD" && env -0`
	argv := p.state.BuildCommand(probe)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = p.state.Cwd
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		p.log.Debug("environment probe failed",
			zap.String("description", description),
			zap.String("detail", detail))
		return &Error{Description: description, Detail: detail}
	}

	newCwd, table, err := parseTrailer(stdout.Bytes())
	if err != nil {
		return &Error{Description: description, Detail: err.Error()}
	}

	p.applyTable(table)
	if newCwd != "" {
		if err := p.state.SetCwd(newCwd); err != nil {
			p.log.Warn("could not enter probed directory",
				zap.String("cwd", newCwd), zap.Error(err))
		}
	}
	p.state.RefreshEnvState()
	return nil
}

// parseTrailer extracts the sentinel cwd line and the NUL-separated
// environment dump that follows it.
func parseTrailer(out []byte) (cwd string, table map[string]string, err error) {
	nl := bytes.IndexByte(out, '\n')
	if nl == -1 {
		return "", nil, fmt.Errorf("unexpected output")
	}
	pwdLine := strings.TrimSpace(string(out[:nl]))
	if !strings.HasPrefix(pwdLine, Sentinel) {
		return "", nil, fmt.Errorf("missing sentinel")
	}
	cwd = strings.TrimPrefix(pwdLine, Sentinel)

	table = make(map[string]string)
	for _, item := range bytes.Split(out[nl+1:], []byte{0}) {
		if len(item) == 0 {
			continue
		}
		k, v, ok := bytes.Cut(item, []byte{'='})
		if !ok {
			continue
		}
		table[string(k)] = string(v)
	}
	return cwd, table, nil
}

// applyTable replaces the process environment wholesale with the probed one.
func (p *ShellProber) applyTable(table map[string]string) {
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := table[key]; !ok {
			os.Unsetenv(key)
		}
	}
	for key, value := range table {
		os.Setenv(key, value)
	}
}
