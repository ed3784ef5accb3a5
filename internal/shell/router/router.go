// Package router classifies submitted command lines and dispatches them to
// built-ins, the environment probe, or the process supervisor.
//
// Classification is strict-priority: an open editor rejects everything, an
// open PTY session receives the raw line, history references expand before
// anything executes, built-ins resolve through a name lookup table, and only
// then does the line reach alias resolution, login-shell detection, the
// interactive allow-list, and generic execution.
package router

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/handterm/handterm/internal/infrastructure/logging"
	"github.com/handterm/handterm/internal/infrastructure/monitoring"
	"github.com/handterm/handterm/internal/shell/envprobe"
	"github.com/handterm/handterm/internal/shell/history"
	"github.com/handterm/handterm/internal/shell/output"
	"github.com/handterm/handterm/internal/shell/proc"
	"github.com/handterm/handterm/internal/shell/session"
	"go.uber.org/zap"
)

// Host is the engine surface the router drives: session-level modes it
// cannot own itself.
type Host interface {
	// PTYActive reports whether a PTY session is open.
	PTYActive() bool
	// ForwardToPTY sends a submitted line verbatim as terminal input.
	ForwardToPTY(line string)
	// StartPTY opens a PTY session for command (already shell-wrapped by
	// the router's session state).
	StartPTY(command string) error
	// StartExportShell opens an interactive shell and types line into it.
	StartExportShell(line string) error
	// EditorOpen reports whether the text editor is open.
	EditorOpen() bool
	// OpenEditor opens the built-in editor on path.
	OpenEditor(path string) error
	// Launch suspends the UI and runs command attached to the terminal.
	Launch(command string)
	// Quit requests engine shutdown.
	Quit()
}

// interactivePrograms is the fixed allow-list of program names that need a
// real terminal.
var interactivePrograms = map[string]bool{
	"nano": true, "vim": true, "vi": true, "emacs": true,
	"top": true, "htop": true, "less": true, "more": true, "man": true,
	"python": true, "python3": true, "ipython": true, "ipython3": true,
	"bash": true, "sh": true, "zsh": true, "fish": true,
	"sudo": true, "su": true, "doas": true,
}

// commandAliases maps bare short names to full interpreter names. A short
// name resolves only when it is absent from PATH and the target is present.
var commandAliases = map[string]string{
	"py":      "python3",
	"python":  "python3",
	"ipy":     "ipython3",
	"ipython": "ipython3",
}

// Router is the top-level dispatcher. It runs entirely on the dispatch
// thread; workers it spawns communicate only through the output log and the
// supervisor's process table.
type Router struct {
	state    *session.State
	hist     *history.Store
	probe    envprobe.Prober
	sup      *proc.Supervisor
	out      *output.Log
	host     Host
	log      *logging.Logger
	metrics  *monitoring.Metrics
	builtins map[string]func(command string)
}

// New wires a router. metrics may be nil.
func New(state *session.State, hist *history.Store, probe envprobe.Prober, sup *proc.Supervisor, out *output.Log, host Host, logger *logging.Logger, metrics *monitoring.Metrics) *Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Router{
		state:   state,
		hist:    hist,
		probe:   probe,
		sup:     sup,
		out:     out,
		host:    host,
		log:     logger,
		metrics: metrics,
	}
	r.builtins = map[string]func(string){
		"help":       r.builtinHelp,
		"clear":      r.builtinClear,
		"history":    r.builtinHistory,
		"pwd":        r.builtinPwd,
		"jobs":       r.builtinJobs,
		"cd":         r.builtinCd,
		"quit":       r.builtinQuit,
		"user":       r.builtinUser,
		"root":       r.builtinRoot,
		"deactivate": r.builtinDeactivate,
		"venv":       r.builtinVenv,
		"conda":      r.builtinConda,
		"launch":     r.builtinLaunch,
		"edit":       r.builtinEdit,
	}
	return r
}

// Dispatch routes one submitted line.
func (r *Router) Dispatch(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	if r.host.EditorOpen() {
		r.out.Append("[System] Finish the editor session before running commands.")
		r.metrics.RecordCommand("rejected")
		return
	}

	if r.host.PTYActive() {
		r.host.ForwardToPTY(line)
		r.metrics.RecordCommand("pty-input")
		return
	}

	command, ok := r.resolveHistoryReference(line)
	if !ok {
		return
	}

	entry := r.hist.Add(command)
	r.log.Debug("command dispatched",
		zap.Int("history_index", entry.Index),
		zap.String("command", command))

	r.out.Append(fmt.Sprintf("[%s] %s %s",
		time.Now().Format("15:04:05"), r.state.Prompt(false), command))

	r.route(strings.TrimSpace(command))
}

// route classifies an already-recorded command. Separated from Dispatch so
// `history N` can re-execute an entry without recording it twice.
func (r *Router) route(trimmed string) {
	first := strings.ToLower(firstWord(trimmed))

	if handler, ok := r.builtins[first]; ok {
		r.metrics.RecordCommand("builtin")
		handler(trimmed)
		return
	}

	// Environment-mutating special forms.
	if strings.HasPrefix(trimmed, "source ") || strings.HasPrefix(trimmed, ". ") {
		r.metrics.RecordCommand("probe")
		r.sourceFile(trimmed)
		return
	}
	if strings.HasPrefix(trimmed, "export ") {
		r.metrics.RecordCommand("probe")
		r.exportVariable(trimmed)
		return
	}

	trimmed = strings.TrimSpace(r.resolveAlias(trimmed))

	if r.handleLoginShell(trimmed) {
		r.metrics.RecordCommand("user-switch")
		return
	}

	if interactivePrograms[firstWord(trimmed)] {
		r.metrics.RecordCommand("pty")
		r.startPTY(trimmed)
		return
	}

	if strings.HasSuffix(trimmed, "&") {
		r.metrics.RecordCommand("background")
		r.startBackground(strings.TrimSpace(strings.TrimSuffix(trimmed, "&")))
		return
	}

	r.metrics.RecordCommand("foreground")
	r.startForeground(trimmed)
}

// resolveHistoryReference expands `!N` into the stored command text, or
// reports a missing index without executing anything.
func (r *Router) resolveHistoryReference(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "!") {
		return line, true
	}
	digits := trimmed[1:]
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return line, true
	}
	index, err := strconv.Atoi(digits)
	if err != nil {
		r.out.Append(fmt.Sprintf("[Error] history: no entry at index %s", digits))
		return "", false
	}
	entry, ok := r.hist.Get(index)
	if !ok {
		r.out.Append(fmt.Sprintf("[Error] history: no entry at index %d", index))
		return "", false
	}
	r.out.Append(fmt.Sprintf("[History] Recalled [%d] %s", entry.Index, entry.Command))
	return entry.Command, true
}

// resolveAlias rewrites a bare short interpreter name to its full name when
// the short name is missing from PATH and the target exists.
func (r *Router) resolveAlias(command string) string {
	stripped := strings.TrimLeft(command, " \t")
	if stripped == "" || stripped[0] == '\'' || stripped[0] == '"' {
		return command
	}
	parts, err := shlex.Split(stripped)
	if err != nil || len(parts) == 0 {
		return command
	}
	first := parts[0]
	target, ok := commandAliases[first]
	if !ok {
		return command
	}
	if _, err := exec.LookPath(first); err == nil {
		return command
	}
	if _, err := exec.LookPath(target); err != nil {
		return command
	}
	leading := command[:len(command)-len(stripped)]
	replaced := leading + target + stripped[len(first):]
	r.out.Append(fmt.Sprintf("[System] Alias applied: %s → %s", first, target))
	return replaced
}

// handleLoginShell recognizes sudo/su invocations with login-shell flags and
// switches the acting user instead of opening a PTY. Returns true when the
// line was consumed.
func (r *Router) handleLoginShell(command string) bool {
	parts, err := shlex.Split(command)
	if err != nil || len(parts) == 0 {
		return false
	}
	first := parts[0]
	if first != "sudo" && first != "su" {
		return false
	}

	targetUser := ""
	isLogin := false

	switch first {
	case "sudo":
		args := parts[1:]
		for i := 0; i < len(args); i++ {
			arg := args[i]
			if arg == "--" {
				break
			}
			switch {
			case arg == "-i" || arg == "-s" || arg == "--login":
				isLogin = true
			case arg == "-u" || arg == "--user":
				if i+1 < len(args) {
					targetUser = args[i+1]
					i++
				}
			case strings.HasPrefix(arg, "-") && len(arg) > 1:
				flags := arg[1:]
				if strings.ContainsAny(flags, "is") {
					isLogin = true
				}
				if strings.Contains(flags, "u") && i+1 < len(args) {
					targetUser = args[i+1]
					i++
				}
			}
		}
		if isLogin && targetUser == "" {
			targetUser = "root"
		}
	case "su":
		for _, arg := range parts[1:] {
			if arg == "-" || arg == "-l" {
				isLogin = true
			}
		}
		if len(parts) > 1 && parts[1] != "-" && parts[1] != "-l" {
			targetUser = parts[1]
		} else {
			targetUser = "root"
		}
	}

	if !isLogin || targetUser == "" {
		return false
	}

	r.switchUser(targetUser)
	return true
}

func (r *Router) switchUser(target string) {
	notes, err := r.state.SwitchUser(target)
	if err != nil {
		r.out.Append(fmt.Sprintf("[Error] %v", err))
		return
	}
	r.out.Append(notes...)
}

func (r *Router) startForeground(command string) {
	argv := r.state.BuildCommand(command)
	if err := r.sup.StartForeground(argv, r.state.Cwd); err != nil {
		r.out.Append(fmt.Sprintf("[Error] %v", err))
	}
}

func (r *Router) startBackground(command string) {
	if command == "" {
		r.out.Append("[Error] empty background command")
		return
	}
	argv := r.state.BuildCommand(command)
	if _, err := r.sup.StartBackground(argv, r.state.Cwd, command); err != nil {
		r.out.Append(fmt.Sprintf("[Error] %v", err))
	}
}

func (r *Router) startPTY(command string) {
	if err := r.host.StartPTY(command); err != nil {
		r.out.Append(fmt.Sprintf("[Error] %v", err))
	}
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
