package router

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/handterm/handterm/internal/shell/session"
)

var helpLines = []string{
	"[System] Built-in commands:",
	"  help                  Show this help",
	"  clear                 Clear the output area",
	"  history [-c|N]        Show history, clear it, or run entry N",
	"  pwd                   Print the working directory",
	"  jobs                  List background processes",
	"  cd <dir>              Change directory",
	"  user [name]           Switch the acting user",
	"  root                  Switch the acting user to root",
	"  venv <path>|off       Activate or deactivate a Python venv",
	"  conda activate <env>  Activate a conda environment",
	"  deactivate            Deactivate the active environment",
	"  source <file>         Source a file and keep its environment",
	"  export NAME=value     Set a variable in an interactive shell",
	"  edit <file>           Open the built-in text editor",
	"  launch <command>      Suspend the UI and run on the terminal",
	"  quit                  Exit",
	"Anything else runs through the shell; append & to run in the background.",
}

func (r *Router) builtinHelp(string) {
	r.out.Append(helpLines...)
}

func (r *Router) builtinClear(string) {
	r.out.Clear()
	r.out.Append(fmt.Sprintf("[System] Working directory: %s", r.state.Cwd))
}

func (r *Router) builtinHistory(command string) {
	args := strings.Fields(command)[1:]
	if len(args) == 0 {
		r.out.Append(r.hist.Lines()...)
		return
	}
	switch {
	case args[0] == "-c":
		r.hist.Clear()
		r.out.Append("[System] History cleared.")
	default:
		index, err := strconv.Atoi(args[0])
		if err != nil {
			r.out.Append(fmt.Sprintf("[Error] history: invalid argument %q", args[0]))
			return
		}
		entry, ok := r.hist.Get(index)
		if !ok {
			r.out.Append(fmt.Sprintf("[Error] history: no entry at index %d", index))
			return
		}
		r.out.Append(fmt.Sprintf("[History] Recalled [%d] %s", entry.Index, entry.Command))
		r.route(strings.TrimSpace(entry.Command))
	}
}

func (r *Router) builtinPwd(string) {
	r.out.Append(r.state.Cwd)
}

func (r *Router) builtinJobs(string) {
	jobs := r.sup.Jobs()
	if len(jobs) == 0 {
		r.out.Append("[System] No background jobs.")
		return
	}
	for i, job := range jobs {
		status := "Running"
		if !job.Running {
			status = "Done"
		}
		r.out.Append(fmt.Sprintf("[%d] %-7s PID %-6d %s", i+1, status, job.PID, job.Command))
	}
	r.sup.ReapFinished()
}

func (r *Router) builtinCd(command string) {
	dir := restOf(command)
	if dir == "" {
		dir = "~"
	}
	if err := r.state.ChangeDir(dir); err != nil {
		r.out.Append(fmt.Sprintf("[Error] cd: %v", err))
	}
}

func (r *Router) builtinQuit(string) {
	r.host.Quit()
}

func (r *Router) builtinUser(command string) {
	args := strings.Fields(command)[1:]
	if len(args) == 0 {
		r.out.Append(fmt.Sprintf("[System] Active user: %s (real: %s)",
			r.state.ActiveUser, r.state.RealUser))
		return
	}
	r.switchUser(args[0])
}

func (r *Router) builtinRoot(string) {
	r.switchUser("root")
}

func (r *Router) builtinDeactivate(string) {
	r.deactivateEnv()
}

func (r *Router) deactivateEnv() {
	env := r.state.Env
	switch env.Type {
	case session.EnvConda:
		if err := r.probe.Apply("conda deactivate", "conda deactivate"); err != nil {
			r.out.Append(fmt.Sprintf("[Error] %v", err))
			return
		}
	case session.EnvVenv:
		if env.Source == "" {
			r.out.Append("[Error] deactivate: activation script unknown; run `venv off` from the venv directory")
			return
		}
		snippet := fmt.Sprintf(". %s && deactivate", session.Quote(env.Source))
		if err := r.probe.Apply(snippet, "deactivate"); err != nil {
			r.out.Append(fmt.Sprintf("[Error] %v", err))
			return
		}
	default:
		r.out.Append("[System] No virtual environment is active.")
		return
	}
	r.state.ClearEnvSource()
	r.state.RefreshEnvState()
	r.out.Append(fmt.Sprintf("[System] Deactivated %s", env.Name))
}

func (r *Router) builtinVenv(command string) {
	args := strings.Fields(command)[1:]
	if len(args) == 0 {
		if r.state.Env.Type == session.EnvVenv {
			r.out.Append(fmt.Sprintf("[System] Active venv: %s", r.state.Env.Name))
		} else {
			r.out.Append("[System] Usage: venv <path> | venv off")
		}
		return
	}
	if args[0] == "off" {
		r.deactivateEnv()
		return
	}

	path := session.ExpandUser(args[0])
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.state.Cwd, path)
	}
	activate := path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		activate = filepath.Join(path, "bin", "activate")
	}
	if _, err := os.Stat(activate); err != nil {
		r.out.Append(fmt.Sprintf("[Error] venv: no activate script at %s", activate))
		return
	}

	snippet := ". " + session.Quote(activate)
	if err := r.probe.Apply(snippet, "venv activation"); err != nil {
		r.out.Append(fmt.Sprintf("[Error] %v", err))
		return
	}
	r.state.Env.Source = activate
	r.state.RefreshEnvState()
	r.out.Append(fmt.Sprintf("[System] Activated venv: %s", r.state.Env.Name))
}

func (r *Router) builtinConda(command string) {
	args, err := shlex.Split(command)
	if err != nil || len(args) < 2 {
		r.startForeground(command)
		return
	}
	switch args[1] {
	case "activate":
		if err := r.probe.Apply(command, "conda activation"); err != nil {
			r.out.Append(fmt.Sprintf("[Error] %v", err))
			return
		}
		r.state.RefreshEnvState()
		r.out.Append(fmt.Sprintf("[System] Activated conda env: %s", r.state.Env.Name))
	case "deactivate":
		r.deactivateEnv()
	default:
		// Ordinary conda subcommands (install, list, ...) run like any
		// other foreground command.
		r.startForeground(command)
	}
}

func (r *Router) builtinLaunch(command string) {
	rest := restOf(command)
	if rest == "" {
		r.out.Append("[Error] launch: missing command")
		return
	}
	r.host.Launch(rest)
}

func (r *Router) builtinEdit(command string) {
	rest := restOf(command)
	if rest == "" {
		r.out.Append("[Error] edit: missing file path")
		return
	}
	parts, err := shlex.Split(rest)
	if err != nil || len(parts) == 0 {
		r.out.Append(fmt.Sprintf("[Error] edit: %q is not a valid path", rest))
		return
	}
	path := session.ExpandUser(parts[0])
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.state.Cwd, path)
	}
	if err := r.host.OpenEditor(path); err != nil {
		r.out.Append(fmt.Sprintf("[Error] %v", err))
	}
}

// sourceFile applies `source file` / `. file` through the environment probe so
// variables and directory changes persist in the session.
func (r *Router) sourceFile(command string) {
	if err := r.probe.Apply(command, "source"); err != nil {
		r.out.Append(fmt.Sprintf("[Error] %v", err))
		return
	}
	r.state.RefreshEnvState()
	r.out.Append("[System] Environment updated.")
}

// exportVariable types the export into a fresh interactive shell so shell
// initialization runs and the assignment lands in a live session.
func (r *Router) exportVariable(command string) {
	if err := r.host.StartExportShell(command); err != nil {
		r.out.Append(fmt.Sprintf("[Error] %v", err))
	}
}

// restOf returns everything after a command's first word.
func restOf(command string) string {
	i := strings.IndexAny(command, " \t")
	if i == -1 {
		return ""
	}
	return strings.TrimSpace(command[i:])
}
