// Package term reconstructs display lines from a raw PTY byte stream.
//
// A LineFilter interprets a minimal subset of cursor-control escapes (CSI
// cursor left/right and erase-to-end-of-line) against an in-progress row and
// discards everything else. It is not a terminal emulator: there is no screen
// grid, no colors, no alternate screen.
package term

import (
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// LineFilter consumes raw PTY bytes and commits completed display lines.
// One filter serves one PTY session; Write is called only by the session's
// reader worker, while Partial may be read concurrently by the dispatch
// thread.
type LineFilter struct {
	mu      sync.Mutex
	line    []rune
	cursor  int
	esc     []rune
	inEsc   bool
	pending []byte // incomplete UTF-8 sequence held across reads
	commit  func(line string)
}

// NewLineFilter creates a filter committing completed non-blank lines to fn.
func NewLineFilter(fn func(line string)) *LineFilter {
	return &LineFilter{commit: fn}
}

// Write feeds raw bytes into the filter. Multi-byte sequences split across
// read boundaries are buffered until the next read rather than decoded
// lossily.
func (f *LineFilter) Write(p []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data := p
	if len(f.pending) > 0 {
		data = append(f.pending, p...)
		f.pending = nil
	}

	for len(data) > 0 {
		if !utf8.FullRune(data) {
			// Tail of the buffer is an incomplete sequence; hold it
			// for the next read.
			f.pending = append([]byte(nil), data...)
			return
		}
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			r = unicode.ReplacementChar
		}
		data = data[size:]
		f.processRune(r)
	}
}

// Partial returns the stripped in-progress row so interactive prompts can be
// shown before a newline arrives.
func (f *LineFilter) Partial() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Strip(string(f.line))
}

// Flush commits any non-blank partial line. Called once at stream end.
func (f *LineFilter) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for range f.pending {
		f.processRune(unicode.ReplacementChar)
	}
	f.pending = nil
	if len(f.line) > 0 {
		f.commitLine()
	}
	f.esc = nil
	f.inEsc = false
}

func (f *LineFilter) processRune(r rune) {
	if f.inEsc {
		f.esc = append(f.esc, r)
		if unicode.IsLetter(r) || r == '~' {
			f.applyEscape(string(f.esc))
			f.esc = nil
			f.inEsc = false
		}
		return
	}

	switch {
	case r == 0x1b:
		f.inEsc = true
		f.esc = append(f.esc[:0], r)
	case r == '\n':
		f.commitLine()
	case r == '\r':
		f.cursor = 0
	case r == '\b' || r == 0x7f:
		if f.cursor > 0 {
			f.cursor--
		}
	default:
		// Terminal replace semantics: overwrite at the cursor when
		// inside the row, append at the end.
		if f.cursor < len(f.line) {
			f.line[f.cursor] = r
		} else {
			f.line = append(f.line, r)
		}
		f.cursor++
	}
}

// applyEscape interprets cursor-left/right and erase-to-end-of-line; every
// other sequence is dropped with no visual effect.
func (f *LineFilter) applyEscape(seq string) {
	switch seq {
	case "\x1b[D", "\x1bOD":
		if f.cursor > 0 {
			f.cursor--
		}
		return
	case "\x1b[C", "\x1bOC":
		if f.cursor < len(f.line) {
			f.cursor++
		}
		return
	}

	if !strings.HasPrefix(seq, "\x1b[") || len(seq) < 3 {
		return
	}
	final := seq[len(seq)-1]
	if final != 'D' && final != 'C' && final != 'K' {
		return
	}
	amount := 1
	if params := seq[2 : len(seq)-1]; params != "" {
		if n, err := strconv.Atoi(params); err == nil {
			amount = n
		}
	}
	switch final {
	case 'D':
		f.cursor -= amount
		if f.cursor < 0 {
			f.cursor = 0
		}
	case 'C':
		f.cursor += amount
		if f.cursor > len(f.line) {
			f.cursor = len(f.line)
		}
	case 'K':
		f.line = f.line[:f.cursor]
	}
}

// commitLine strips any still-embedded control codes and commits the row if
// non-blank, then resets the row and cursor. Caller holds f.mu.
func (f *LineFilter) commitLine() {
	clean := Strip(string(f.line))
	if strings.TrimSpace(clean) != "" {
		f.commit(clean)
	}
	f.line = f.line[:0]
	f.cursor = 0
}
