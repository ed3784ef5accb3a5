package pty

import (
	"strings"
	"sync"
)

// Key codes accepted from the rendering collaborator while a PTY session is
// open, mapped to the byte sequences an interactive program expects.
var keyMap = map[string]string{
	"UP":        "\x1b[A",
	"DOWN":      "\x1b[B",
	"RIGHT":     "\x1b[C",
	"LEFT":      "\x1b[D",
	"CTRL_C":    "\x03",
	"CTRL_X":    "\x18",
	"CTRL_D":    "\x04",
	"CTRL_Z":    "\x1a",
	"BACKSPACE": "\x7f",
	"ENTER":     "\n",
	"TAB":       "\t",
	"ESC":       "\x1b",
}

// SendKey translates a logical key to its terminal byte sequence and sends
// it. Unknown keys are ignored.
func (s *Session) SendKey(key string) bool {
	seq, ok := keyMap[key]
	if !ok {
		return false
	}
	return s.Send(seq) == nil
}

// InputLine returns the mirrored in-flight input line and cursor position.
func (s *Session) InputLine() (string, int) {
	return s.input.snapshot()
}

// HistoryPrev recalls the previous in-session input line, or "" when there
// is none.
func (s *Session) HistoryPrev() (string, bool) {
	return s.history.prev()
}

// HistoryNext recalls the next in-session input line; past the newest it
// returns an empty line.
func (s *Session) HistoryNext() (string, bool) {
	return s.history.next()
}

// SetInputLine replaces the mirrored input (used when recalling history into
// the input line).
func (s *Session) SetInputLine(text string) {
	s.input.set(text)
}

// trackInput mirrors sent bytes into the local echo buffer. Only what the
// user appears to be typing is tracked; program output never touches it.
func (s *Session) trackInput(text string) {
	switch text {
	case "\r\n", "\n", "\r":
		line, _ := s.input.snapshot()
		s.history.add(line)
		s.input.reset()
	case "\x7f", "\b":
		if s.input.backspace() {
			s.history.resetCursor()
		}
	case "\x15": // Ctrl+U clears the line
		s.input.reset()
		s.history.resetCursor()
	case "\x01": // Ctrl+A
		s.input.home()
	case "\x05": // Ctrl+E
		s.input.end()
	case "\x1b[D":
		s.input.left()
	case "\x1b[C":
		s.input.right()
	case "\x03", "\x04", "\x18", "\x1a":
		s.input.reset()
	default:
		runes := []rune(text)
		if len(runes) == 1 && runes[0] >= ' ' {
			s.input.insert(runes[0])
			s.history.resetCursor()
		}
	}
}

// inputEcho is the cursor-aware mirror of what the user is typing into the
// PTY. It exists purely for display; the program on the slave side keeps its
// own line state.
type inputEcho struct {
	mu     sync.Mutex
	line   []rune
	cursor int
}

func (e *inputEcho) snapshot() (string, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return string(e.line), e.cursor
}

func (e *inputEcho) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.line = e.line[:0]
	e.cursor = 0
}

func (e *inputEcho) set(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.line = []rune(text)
	e.cursor = len(e.line)
}

func (e *inputEcho) insert(r rune) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.line = append(e.line, 0)
	copy(e.line[e.cursor+1:], e.line[e.cursor:])
	e.line[e.cursor] = r
	e.cursor++
}

func (e *inputEcho) backspace() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cursor == 0 {
		return false
	}
	e.line = append(e.line[:e.cursor-1], e.line[e.cursor:]...)
	e.cursor--
	return true
}

func (e *inputEcho) home() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cursor = 0
}

func (e *inputEcho) end() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cursor = len(e.line)
}

func (e *inputEcho) left() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cursor > 0 {
		e.cursor--
	}
}

func (e *inputEcho) right() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cursor < len(e.line) {
		e.cursor++
	}
}

// inputHistory is the in-session recall list, separate from the persistent
// command history. It resets when the session ends.
type inputHistory struct {
	mu      sync.Mutex
	entries []string
	cursor  int
}

func (h *inputHistory) add(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == trimmed {
		h.cursor = n
		return
	}
	h.entries = append(h.entries, trimmed)
	h.cursor = len(h.entries)
}

func (h *inputHistory) prev() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return "", false
	}
	if h.cursor > 0 {
		h.cursor--
	}
	if h.cursor >= 0 && h.cursor < len(h.entries) {
		return h.entries[h.cursor], true
	}
	return "", false
}

func (h *inputHistory) next() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return "", false
	}
	if h.cursor < len(h.entries)-1 {
		h.cursor++
		return h.entries[h.cursor], true
	}
	h.cursor = len(h.entries)
	return "", true
}

func (h *inputHistory) resetCursor() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cursor = len(h.entries)
}

func (h *inputHistory) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.cursor = 0
}

