// Package shell assembles the execution engine: supervisor, router, history,
// session state, environment probe and output log behind one façade consumed
// by the rendering collaborator.
package shell

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/handterm/handterm/internal/infrastructure/config"
	"github.com/handterm/handterm/internal/infrastructure/logging"
	"github.com/handterm/handterm/internal/infrastructure/monitoring"
	"github.com/handterm/handterm/internal/shell/editor"
	"github.com/handterm/handterm/internal/shell/envprobe"
	"github.com/handterm/handterm/internal/shell/history"
	"github.com/handterm/handterm/internal/shell/output"
	"github.com/handterm/handterm/internal/shell/proc"
	"github.com/handterm/handterm/internal/shell/pty"
	"github.com/handterm/handterm/internal/shell/router"
	"github.com/handterm/handterm/internal/shell/session"
	"go.uber.org/zap"
)

// exportShellDelay gives the interactive shell time to finish its startup
// files before the export line is typed into it.
const exportShellDelay = 200 * time.Millisecond

// Frame is the per-poll snapshot the rendering collaborator consumes.
type Frame struct {
	Output     []string `json:"output"`
	Partial    string   `json:"partial,omitempty"`
	PTYInput   string   `json:"pty_input"`
	PTYCursor  int      `json:"pty_cursor"`
	Prompt     string   `json:"prompt"`
	Header     string   `json:"header"`
	Cwd        string   `json:"cwd"`
	ActiveUser string   `json:"active_user"`
	PTYActive  bool     `json:"pty_active"`
	EditorOpen bool     `json:"editor_open"`
}

// Engine owns every execution component. Command dispatch is serialized, and
// readers of the session context (Frame, Autocomplete) take the same lock so
// a cd or user switch is never observed half-applied; process workers report
// back only through the output log and the job table.
type Engine struct {
	cfg     *config.Config
	log     *logging.Logger
	metrics *monitoring.Metrics

	out    *output.Log
	state  *session.State
	hist   *history.Store
	probe  envprobe.Prober
	sup    *proc.Supervisor
	router *router.Router

	dispatchMu sync.Mutex

	mu     sync.Mutex
	pty    *pty.Session
	editor *editor.Editor

	launchMu      sync.Mutex
	launchProcess *proc.LaunchedProcess
	suspendHook   func() error
	resumeHook    func() error

	quitOnce sync.Once
	done     chan struct{}
}

// New assembles an engine from configuration. metrics may be nil.
func New(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	out := output.New(cfg.Shell.OutputLines)
	if metrics != nil {
		out.OnAppend(func(n int) {
			metrics.OutputLines.Add(float64(n))
		})
	}

	state := session.New(cfg.Shell.Path, logger)

	histPath := cfg.History.File
	if histPath != "" && !filepath.IsAbs(histPath) {
		histPath = filepath.Join(state.Cwd, histPath)
	}
	hist := history.NewStore(histPath, cfg.History.Max, logger)

	e := &Engine{
		cfg:     cfg,
		log:     logger,
		metrics: metrics,
		out:     out,
		state:   state,
		hist:    hist,
		probe:   envprobe.New(state, logger),
		sup:     proc.New(out, logger, metrics),
		done:    make(chan struct{}),
	}
	e.router = router.New(state, hist, e.probe, e.sup, out, e, logger, metrics)

	out.Append(
		"[System] Terminal ready. Type 'help' for built-in commands.",
		fmt.Sprintf("[System] Working directory: %s", state.Cwd),
	)
	logger.Info("engine assembled",
		zap.String("shell", cfg.Shell.Path),
		zap.String("user", state.RealUser),
		zap.String("cwd", state.Cwd))
	return e
}

// ExecuteCommand routes one submitted line. Calls are serialized; workers the
// dispatch spawns run concurrently but never dispatch themselves.
func (e *Engine) ExecuteCommand(line string) {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()
	e.router.Dispatch(line)
}

// Autocomplete completes the word under the cursor in the input line. It
// reads the session working directory, so it serializes with dispatch.
func (e *Engine) Autocomplete(text string, cursor int) (string, int) {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()
	return e.router.Autocomplete(text, cursor)
}

// GetOutput returns the last n output lines (all lines when n <= 0).
func (e *Engine) GetOutput(n int) []string {
	return e.out.Tail(n)
}

// Jobs reports the tracked background processes.
func (e *Engine) Jobs() []proc.JobStatus {
	return e.sup.Jobs()
}

// Frame snapshots everything the rendering loop needs for one draw. The
// dispatch lock is held while the session context is read, so concurrent
// polls never see a directory change or user switch mid-mutation.
func (e *Engine) Frame() Frame {
	e.dispatchMu.Lock()
	frame := Frame{
		Output:     e.out.Tail(0),
		Prompt:     e.state.Prompt(true),
		Header:     e.state.Header(),
		Cwd:        e.state.Cwd,
		ActiveUser: e.state.ActiveUser,
		EditorOpen: e.EditorOpen(),
	}
	e.dispatchMu.Unlock()

	e.mu.Lock()
	s := e.pty
	e.mu.Unlock()
	if s != nil && s.Active() {
		frame.PTYActive = true
		frame.Partial = s.Partial()
		frame.PTYInput, frame.PTYCursor = s.InputLine()
	}
	return frame
}

// InterruptForeground delivers an interrupt to whatever currently owns the
// terminal: the PTY child, a launched program, or the foreground process
// group.
func (e *Engine) InterruptForeground() error {
	e.mu.Lock()
	s := e.pty
	e.mu.Unlock()
	if s != nil && s.Active() {
		return s.Interrupt()
	}
	if e.interruptLaunch() {
		return nil
	}
	return e.sup.InterruptForeground()
}

// SendKeyToPTY translates a logical key for the open PTY session. UP and
// DOWN recall the in-session input history; everything else maps to its
// terminal byte sequence.
func (e *Engine) SendKeyToPTY(key string) error {
	e.mu.Lock()
	s := e.pty
	e.mu.Unlock()
	if s == nil || !s.Active() {
		return fmt.Errorf("no interactive session is open")
	}

	switch key {
	case "UP", "DOWN":
		return e.recallPTYInput(s, key)
	}
	if !s.SendKey(key) {
		return fmt.Errorf("unknown key %q", key)
	}
	return nil
}

// recallPTYInput erases the in-flight line with backspaces and types the
// recalled entry, keeping the echo mirror in sync without disturbing the
// recall cursor.
func (e *Engine) recallPTYInput(s *pty.Session, key string) error {
	var recalled string
	var ok bool
	if key == "UP" {
		recalled, ok = s.HistoryPrev()
	} else {
		recalled, ok = s.HistoryNext()
	}
	if !ok {
		return nil
	}

	current, _ := s.InputLine()
	var seq strings.Builder
	for range current {
		seq.WriteString("\x7f")
	}
	seq.WriteString(recalled)
	if err := s.Write([]byte(seq.String())); err != nil {
		return err
	}
	s.SetInputLine(recalled)
	return nil
}

// PTYActive reports whether a PTY session is open.
func (e *Engine) PTYActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pty != nil && e.pty.Active()
}

// ForwardToPTY submits a full line as terminal input.
func (e *Engine) ForwardToPTY(line string) {
	e.mu.Lock()
	s := e.pty
	e.mu.Unlock()
	if s == nil {
		return
	}
	if err := s.SendLine(line); err != nil {
		e.out.Append(fmt.Sprintf("[Error] %v", err))
	}
}

// StartPTY opens a PTY session for an interactive command. Only one session
// may be open at a time.
func (e *Engine) StartPTY(command string) error {
	e.mu.Lock()
	if e.pty != nil && e.pty.Active() {
		e.mu.Unlock()
		return fmt.Errorf("an interactive session is already running")
	}
	e.mu.Unlock()

	argv := e.state.BuildCommand(command)
	s, err := pty.Start(argv, command, e.out, e.log, pty.Options{
		Dir:             e.state.Cwd,
		Rows:            e.cfg.Shell.TermRows,
		Cols:            e.cfg.Shell.TermCols,
		PollInterval:    time.Duration(e.cfg.Shell.PTYPollMillis) * time.Millisecond,
		TeardownTimeout: time.Duration(e.cfg.Shell.TeardownMillis) * time.Millisecond,
	}, func() {
		e.mu.Lock()
		e.pty = nil
		e.mu.Unlock()
		if e.metrics != nil {
			e.metrics.PTYActive.Set(0)
		}
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.pty = s
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.PTYSessionsTotal.Inc()
		e.metrics.PTYActive.Set(1)
	}
	e.out.Append("[System] Interactive mode. Press Ctrl+X to exit.")
	return nil
}

// ClosePTY tears down the open PTY session, if any.
func (e *Engine) ClosePTY() {
	e.mu.Lock()
	s := e.pty
	e.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// StartExportShell opens an interactive shell session and, once the shell
// has settled, types the export line into it so the assignment lands in a
// live session with startup files applied.
func (e *Engine) StartExportShell(line string) error {
	shellName := filepath.Base(e.cfg.Shell.Path)
	if err := e.StartPTY(shellName); err != nil {
		return err
	}
	go func() {
		time.Sleep(exportShellDelay)
		e.mu.Lock()
		s := e.pty
		e.mu.Unlock()
		if s != nil && s.Active() {
			if err := s.SendLine(line); err != nil {
				e.out.Append(fmt.Sprintf("[Error] %v", err))
			}
		}
	}()
	return nil
}

// EditorOpen reports whether an editor session is open.
func (e *Engine) EditorOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editor != nil
}

// OpenEditor starts an editor session on path.
func (e *Engine) OpenEditor(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.editor != nil {
		return fmt.Errorf("an editor session is already open")
	}
	ed, err := editor.Open(path)
	if err != nil {
		return err
	}
	e.editor = ed
	e.out.Append(fmt.Sprintf("[System] Editing %s", path))
	return nil
}

// Editor returns the open editor session, or nil.
func (e *Engine) Editor() *editor.Editor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editor
}

// CloseEditor ends the editor session, saving first when requested. A failed
// save keeps the session open.
func (e *Engine) CloseEditor(save bool) error {
	e.mu.Lock()
	ed := e.editor
	e.mu.Unlock()
	if ed == nil {
		return fmt.Errorf("no editor session is open")
	}
	if save {
		if err := ed.Save(); err != nil {
			e.out.Append(fmt.Sprintf("[Error] %v", err))
			return err
		}
		e.out.Append(fmt.Sprintf("[System] Saved %s", ed.FilePath))
	}
	e.mu.Lock()
	e.editor = nil
	e.mu.Unlock()
	e.out.Append("[System] Editor closed")
	return nil
}

// Quit requests shutdown: the PTY session is torn down and Done is closed.
func (e *Engine) Quit() {
	e.quitOnce.Do(func() {
		e.ClosePTY()
		e.log.Info("engine shutting down")
		close(e.done)
	})
}

// Done is closed once Quit has run.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}
