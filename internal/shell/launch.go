package shell

import (
	"fmt"
	"time"

	"github.com/handterm/handterm/internal/shell/proc"
	"go.uber.org/zap"
)

const (
	resumeAttempts = 3
	resumeBackoff  = 200 * time.Millisecond
)

// SetLaunchHooks registers the callbacks run around an external launch: the
// suspend hook releases the display before the program starts, the resume
// hook reclaims it after the program exits. Either may be nil.
func (e *Engine) SetLaunchHooks(suspend, resume func() error) {
	e.launchMu.Lock()
	defer e.launchMu.Unlock()
	e.suspendHook = suspend
	e.resumeHook = resume
}

// Launch runs command attached to the engine's own terminal, suspending the
// rendering collaborator for the duration. The call blocks until the program
// exits and the display is reclaimed. A resume failure is the one
// unrecoverable path: the engine shuts down rather than run blind.
func (e *Engine) Launch(command string) {
	argv := e.state.BuildCommand(command)

	e.launchMu.Lock()
	suspend, resume := e.suspendHook, e.resumeHook
	e.launchMu.Unlock()

	if suspend != nil {
		if err := suspend(); err != nil {
			e.out.Append(fmt.Sprintf("[Error] launch: could not suspend display: %v", err))
			return
		}
	}

	p, err := proc.StartAttached(argv, e.state.Cwd)
	if err != nil {
		e.out.Append(fmt.Sprintf("[Error] launch: %v", err))
		e.resumeDisplay(resume)
		return
	}

	e.launchMu.Lock()
	e.launchProcess = p
	e.launchMu.Unlock()
	e.log.Info("external program launched",
		zap.String("command", command), zap.Int("pid", p.PID()))

	code := p.Wait()

	e.launchMu.Lock()
	e.launchProcess = nil
	e.launchMu.Unlock()

	if code != 0 {
		e.out.Append(fmt.Sprintf("[Exit Code] %d", code))
	}
	e.out.Append(fmt.Sprintf("[System] Returned from: %s", command))
	e.resumeDisplay(resume)
}

// interruptLaunch signals the launched process group, reporting whether a
// launch was in flight.
func (e *Engine) interruptLaunch() bool {
	e.launchMu.Lock()
	p := e.launchProcess
	e.launchMu.Unlock()
	if p == nil {
		return false
	}
	if err := p.Interrupt(); err != nil {
		e.out.Append(fmt.Sprintf("[Error] %v", err))
	}
	return true
}

// resumeDisplay retries the resume hook; if the display cannot be reclaimed
// the engine shuts down.
func (e *Engine) resumeDisplay(resume func() error) {
	if resume == nil {
		return
	}
	var err error
	for attempt := 0; attempt < resumeAttempts; attempt++ {
		if err = resume(); err == nil {
			return
		}
		time.Sleep(resumeBackoff)
	}
	e.out.Append(fmt.Sprintf("[Error] launch: could not resume display: %v", err))
	e.log.Error("display resume failed, shutting down", zap.Error(err))
	e.Quit()
}
