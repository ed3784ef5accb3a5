// Package pty runs interactive programs on a pseudo-terminal pair.
//
// One session is active at a time. The child is spawned as session leader
// with all three standard streams bound to the slave side; a single reader
// worker polls the master with a short bounded timeout so teardown is
// observed within one poll interval instead of blocking indefinitely.
package pty

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/handterm/handterm/internal/infrastructure/logging"
	"github.com/handterm/handterm/internal/shared/id"
	"github.com/handterm/handterm/internal/shell/output"
	"github.com/handterm/handterm/internal/shell/term"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Options configures a PTY session.
type Options struct {
	Dir             string
	Rows            int
	Cols            int
	PollInterval    time.Duration
	TeardownTimeout time.Duration
}

func (o *Options) fill() {
	if o.Rows <= 0 {
		o.Rows = 20
	}
	if o.Cols <= 0 {
		o.Cols = 80
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 100 * time.Millisecond
	}
	if o.TeardownTimeout <= 0 {
		o.TeardownTimeout = 2 * time.Second
	}
}

// Session is one interactive program attached to a PTY master.
type Session struct {
	ID      id.SessionID
	Command string

	cmd    *exec.Cmd
	master *os.File
	filter *term.LineFilter
	out    *output.Log
	log    *logging.Logger
	opts   Options

	mu     sync.Mutex
	closed bool

	input   inputEcho
	history inputHistory

	teardownOnce sync.Once
	readerDone   chan struct{}
	done         chan struct{}
	onClose      func()
}

// Start launches argv on a new PTY and begins the reader worker. The command
// string is only used for display.
func Start(argv []string, command string, out *output.Log, logger *logging.Logger, opts Options, onClose func()) (*Session, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	opts.fill()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(),
		"TERM=xterm",
		fmt.Sprintf("LINES=%d", opts.Rows),
		fmt.Sprintf("COLUMNS=%d", opts.Cols),
		"PYTHONDONTWRITEBYTECODE=1",
		"PYTHON_BASIC_REPL=1",
		"BASH_SILENCE_DEPRECATION_WARNING=1",
		"IGNOREEOF=10",
	)

	master, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(opts.Rows),
		Cols: uint16(opts.Cols),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	s := &Session{
		ID:      id.NewSessionID(),
		Command: command,
		cmd:     cmd,
		master:  master,
		out:     out,
		log:     logger,
		opts:       opts,
		readerDone: make(chan struct{}),
		done:       make(chan struct{}),
		onClose:    onClose,
	}
	s.filter = term.NewLineFilter(func(line string) {
		out.Append(line)
	})

	go s.readLoop()

	logger.Info("pty session started",
		zap.String("session", string(s.ID)),
		zap.String("command", command),
		zap.Int("pid", cmd.Process.Pid))
	return s, nil
}

// readLoop polls the master descriptor and feeds bytes to the line filter.
// It exits when the stream ends or the session is closed, then tears down.
func (s *Session) readLoop() {
	fd := int32(s.master.Fd())
	pollMillis := int(s.opts.PollInterval / time.Millisecond)
	buf := make([]byte, 1024)

	for !s.isClosed() {
		fds := []unix.PollFd{{Fd: fd, Events: unix.POLLIN}}
		n, err := unix.Poll(fds, pollMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			break
		}
		if n == 0 {
			continue
		}
		rn, err := s.master.Read(buf)
		if rn > 0 {
			s.filter.Write(buf[:rn])
		}
		if err != nil {
			break
		}
	}

	s.filter.Flush()
	close(s.readerDone)
	s.teardown()
}

// Write sends raw bytes to the PTY master.
func (s *Session) Write(p []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("session is closed")
	}
	_, err := s.master.Write(p)
	return err
}

// Send writes text to the PTY and mirrors it into the local input echo so
// the rendering loop can display the in-flight line.
func (s *Session) Send(text string) error {
	if err := s.Write([]byte(text)); err != nil {
		return err
	}
	s.trackInput(text)
	return nil
}

// SendLine submits a full line followed by a newline.
func (s *Session) SendLine(line string) error {
	return s.Send(line + "\n")
}

// Interrupt translates an interrupt request to a single ETX byte.
func (s *Session) Interrupt() error {
	return s.Send("\x03")
}

// Partial returns the stripped in-progress output row.
func (s *Session) Partial() string {
	return s.filter.Partial()
}

// Active reports whether the session is still open.
func (s *Session) Active() bool {
	return !s.isClosed()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close requests teardown: terminate, bounded wait, then force-kill. The
// master descriptor is always closed, even on abnormal exit.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	// The reader observes closed within one poll interval and finishes
	// teardown; force it here as well in case the reader is gone.
	s.teardown()
}

func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if s.cmd.Process != nil {
			_ = s.cmd.Process.Signal(unix.SIGTERM)
			done := make(chan struct{})
			go func() {
				_ = s.cmd.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(s.opts.TeardownTimeout):
				_ = s.cmd.Process.Kill()
				<-done
			}
		}
		// The reader polls the master fd with a bounded timeout; once it
		// observes closed it exits within one interval. Closing the fd
		// only after it is gone avoids handing a reused descriptor to a
		// still-running Poll.
		<-s.readerDone
		_ = s.master.Close()

		s.input.reset()
		s.history.reset()

		s.out.Append("[System] Exited interactive mode")
		s.log.Info("pty session ended", zap.String("session", string(s.ID)))
		close(s.done)
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// Done is closed once teardown completes.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
