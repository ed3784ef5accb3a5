// Package session tracks the shell identity and environment context: acting
// user versus real user, hostname, working directory, and the active virtual
// environment. The environment table and working directory are process-wide;
// only the environment probe and the user-switch path mutate them.
package session

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/handterm/handterm/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// EnvType classifies the active virtual environment.
type EnvType string

const (
	EnvNone  EnvType = ""
	EnvVenv  EnvType = "venv"
	EnvConda EnvType = "conda"
)

// ActiveEnv describes the tracked virtual environment, if any.
type ActiveEnv struct {
	Name   string
	Type   EnvType
	Source string // activate script path for venvs
}

// State is the session context consulted by the router and supervisor.
// It belongs to the dispatch thread; workers never touch it.
type State struct {
	Cwd        string
	RealUser   string
	ActiveUser string
	Hostname   string
	Env        ActiveEnv

	shellPath string
	log       *logging.Logger
}

// New builds session state for the given shell, entering the invoking user's
// home directory and scrubbing any inherited virtual environment.
func New(shellPath string, logger *logging.Logger) *State {
	if logger == nil {
		logger = logging.NewNop()
	}
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	s := &State{
		Cwd:        cwd,
		RealUser:   username,
		ActiveUser: username,
		Hostname:   hostname,
		shellPath:  shellPath,
		log:        logger,
	}
	s.enterHome()
	s.scrubInheritedEnv()
	s.ensureBasePaths()
	s.RefreshEnvState()
	return s
}

func (s *State) enterHome() {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return
	}
	if info, err := os.Stat(home); err == nil && info.IsDir() {
		if err := os.Chdir(home); err == nil {
			s.Cwd = home
		} else {
			s.log.Warn("could not enter home directory", zap.String("home", home), zap.Error(err))
		}
	}
}

// scrubInheritedEnv removes any venv/conda context inherited from the process
// that launched the engine, including their PATH entries. The tracked
// environment starts clean; activation goes through the probe.
func (s *State) scrubInheritedEnv() {
	venv := os.Getenv("VIRTUAL_ENV")
	conda := os.Getenv("CONDA_PREFIX")

	parts := filepath.SplitList(os.Getenv("PATH"))
	drop := map[string]bool{}
	for _, prefix := range []string{venv, conda} {
		if prefix == "" {
			continue
		}
		for _, sub := range []string{"bin", "Scripts"} {
			if abs, err := filepath.Abs(filepath.Join(prefix, sub)); err == nil {
				drop[abs] = true
			}
		}
	}
	kept := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err == nil && drop[abs] {
			continue
		}
		kept = append(kept, p)
	}
	os.Setenv("PATH", strings.Join(kept, string(os.PathListSeparator)))

	for _, key := range []string{
		"VIRTUAL_ENV",
		"CONDA_DEFAULT_ENV",
		"CONDA_PREFIX",
		"CONDA_PROMPT_MODIFIER",
		"CONDA_SHLVL",
	} {
		os.Unsetenv(key)
	}
}

// ensureBasePaths appends the common system directories so standard tools
// resolve even when the engine was launched with a minimal PATH.
func (s *State) ensureBasePaths() {
	parts := []string{}
	seen := map[string]bool{}
	for _, p := range filepath.SplitList(os.Getenv("PATH")) {
		if p == "" {
			continue
		}
		parts = append(parts, p)
		if abs, err := filepath.Abs(p); err == nil {
			seen[abs] = true
		}
	}
	for _, p := range []string{
		"/usr/local/sbin",
		"/usr/local/bin",
		"/usr/sbin",
		"/usr/bin",
		"/sbin",
		"/bin",
	} {
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			continue
		}
		if seen[p] {
			continue
		}
		parts = append(parts, p)
		seen[p] = true
	}
	os.Setenv("PATH", strings.Join(parts, string(os.PathListSeparator)))
}

// RefreshEnvState re-derives the active environment from the tracked
// environment table after a probe has applied changes.
func (s *State) RefreshEnvState() {
	if conda := os.Getenv("CONDA_DEFAULT_ENV"); conda != "" {
		s.Env.Name = conda
		s.Env.Type = EnvConda
		return
	}
	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		s.Env.Name = filepath.Base(venv)
		s.Env.Type = EnvVenv
		if s.Env.Source == "" {
			activate := filepath.Join(venv, "bin", "activate")
			if _, err := os.Stat(activate); err == nil {
				s.Env.Source = activate
			}
		}
		return
	}
	s.Env.Name = ""
	s.Env.Type = EnvNone
}

// ClearEnvSource resets the activation bookkeeping after a deactivation.
func (s *State) ClearEnvSource() {
	s.Env.Source = ""
	s.Env.Type = EnvNone
}

// PromptSymbol returns "#" for root, "$" otherwise.
func (s *State) PromptSymbol() string {
	if s.ActiveUser == "root" {
		return "#"
	}
	return "$"
}

// Prompt builds the prompt text, e.g. "(venv) user@host$ ".
func (s *State) Prompt(trailingSpace bool) string {
	prefix := ""
	if s.Env.Name != "" {
		prefix = fmt.Sprintf("(%s) ", s.Env.Name)
	}
	prompt := fmt.Sprintf("%s%s@%s%s", prefix, s.ActiveUser, s.Hostname, s.PromptSymbol())
	if trailingSpace {
		return prompt + " "
	}
	return prompt
}

// Header builds the condensed header shown above the output area.
func (s *State) Header() string {
	suffix := ""
	if s.Env.Name != "" {
		suffix = fmt.Sprintf(" (%s)", s.Env.Name)
	}
	return fmt.Sprintf("%s@%s%s%s", s.ActiveUser, s.Hostname, s.PromptSymbol(), suffix)
}

// ChangeDir resolves dir against the session working directory and enters it.
func (s *State) ChangeDir(dir string) error {
	resolved := expandUser(dir)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(s.Cwd, resolved)
	}
	resolved = filepath.Clean(resolved)
	if err := os.Chdir(resolved); err != nil {
		return err
	}
	s.Cwd = resolved
	return nil
}

// SetCwd records and enters a directory already validated elsewhere (the
// probe's sentinel cwd).
func (s *State) SetCwd(dir string) error {
	s.Cwd = dir
	return os.Chdir(dir)
}

// WrapWithEnv prefixes command with explicit re-exports of the tracked
// environment-specific variables. Elevated and PTY paths start from a
// minimized environment, so inheritance alone is not enough.
func (s *State) WrapWithEnv(command string) string {
	exports := []string{}
	appendExport := func(key string) {
		if value, ok := os.LookupEnv(key); ok {
			exports = append(exports, fmt.Sprintf("export %s=%s", key, Quote(value)))
		}
	}
	appendExport("PATH")
	switch s.Env.Type {
	case EnvVenv:
		appendExport("VIRTUAL_ENV")
	case EnvConda:
		for _, key := range []string{
			"CONDA_DEFAULT_ENV",
			"CONDA_PREFIX",
			"CONDA_PROMPT_MODIFIER",
			"CONDA_SHLVL",
		} {
			appendExport(key)
		}
	}
	if len(exports) == 0 {
		return command
	}
	return strings.Join(exports, " && ") + " && " + command
}

// BuildCommand produces the argv for running command through the configured
// shell, wrapped with env re-exports and, when the acting user differs from
// the real user, a non-interactive sudo prefix.
func (s *State) BuildCommand(command string) []string {
	shellPath := s.shellPath
	if shellPath == "" {
		shellPath = "/bin/sh"
	}
	flag := "-c"
	switch filepath.Base(shellPath) {
	case "bash", "zsh":
		flag = "-lc"
	}
	base := []string{shellPath, flag, s.WrapWithEnv(command)}

	if s.ActiveUser == s.RealUser {
		return base
	}
	sudo, err := exec.LookPath("sudo")
	if err != nil {
		return base
	}
	if s.ActiveUser == "root" {
		return append([]string{sudo, "-n", "-H", "--"}, base...)
	}
	return append([]string{sudo, "-n", "-u", s.ActiveUser, "-H", "--"}, base...)
}

// SwitchUser changes the acting user after a non-interactive elevation check.
// On success it attempts to enter the target's home directory; a permission
// failure there degrades to a warning. The returned notes are display lines.
func (s *State) SwitchUser(target string) ([]string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("user: missing username")
	}
	if target == s.RealUser {
		s.ActiveUser = s.RealUser
		return []string{fmt.Sprintf("[System] User reset to %s", s.RealUser)}, nil
	}
	if target == s.ActiveUser {
		return []string{fmt.Sprintf("[System] User already set to %s", s.ActiveUser)}, nil
	}

	if os.Geteuid() == 0 && target == "root" {
		s.ActiveUser = "root"
		notes := []string{"[System] Switched to root user"}
		notes = append(notes, s.enterUserHome("root")...)
		return notes, nil
	}

	sudo, err := exec.LookPath("sudo")
	if err != nil {
		return nil, fmt.Errorf("user: sudo not available to switch users")
	}
	check := exec.Command(sudo, "-n", "-u", target, "-H", "id", "-un")
	out, err := check.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if detail != "" {
			return nil, fmt.Errorf("user: sudo permission denied or user not found: %s", detail)
		}
		return nil, fmt.Errorf("user: sudo permission denied or user not found")
	}

	s.ActiveUser = target
	notes := []string{fmt.Sprintf("[System] User switched to %s", s.ActiveUser)}
	notes = append(notes, s.enterUserHome(target)...)
	return notes, nil
}

// enterUserHome attempts to change into target's home directory, degrading
// to a warning when the directory is missing or inaccessible.
func (s *State) enterUserHome(target string) []string {
	home := homeDirOf(target)
	if home == "" {
		return nil
	}
	info, err := os.Stat(home)
	if err != nil || !info.IsDir() {
		return nil
	}
	if err := os.Chdir(home); err != nil {
		return []string{fmt.Sprintf("[Warning] No permission to access '%s'. Staying in: %s", home, s.Cwd)}
	}
	s.Cwd = home
	return []string{fmt.Sprintf("[System] Changed directory to: %s", s.Cwd)}
}

func homeDirOf(username string) string {
	if u, err := user.Lookup(username); err == nil {
		return u.HomeDir
	}
	if username == "root" {
		return "/root"
	}
	return ""
}

func expandUser(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// ExpandUser resolves a leading ~ against the invoking user's home.
func ExpandUser(path string) string { return expandUser(path) }

// Quote wraps s in single quotes with embedded quotes escaped, matching
// POSIX shell quoting rules.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n\"'`$\\|&;<>()*?[]#~=%!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
