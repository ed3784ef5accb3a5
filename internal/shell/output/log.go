// Package output provides the bounded, thread-safe display line log shared
// between process workers and the rendering loop.
package output

import "sync"

// DefaultCapacity bounds the log when no capacity is configured.
const DefaultCapacity = 500

// Log is an append-only bounded sequence of display lines. The oldest line is
// evicted on overflow. Process workers append; the rendering loop reads a tail
// snapshot each frame.
type Log struct {
	mu       sync.Mutex
	lines    []string
	capacity int
	onAppend func(n int)
}

// New creates a log holding at most capacity lines.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		lines:    make([]string, 0, capacity),
		capacity: capacity,
	}
}

// OnAppend registers a callback invoked with the number of lines appended.
// Used for metrics; must not block.
func (l *Log) OnAppend(fn func(n int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onAppend = fn
}

// Append adds lines to the log, evicting the oldest on overflow.
func (l *Log) Append(lines ...string) {
	if len(lines) == 0 {
		return
	}
	l.mu.Lock()
	l.lines = append(l.lines, lines...)
	if over := len(l.lines) - l.capacity; over > 0 {
		l.lines = append(l.lines[:0], l.lines[over:]...)
	}
	fn := l.onAppend
	l.mu.Unlock()
	if fn != nil {
		fn(len(lines))
	}
}

// Tail returns the last n lines, or all lines when n <= 0 or exceeds the
// current length. The returned slice is a copy.
func (l *Log) Tail(n int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.lines) {
		n = len(l.lines)
	}
	out := make([]string, n)
	copy(out, l.lines[len(l.lines)-n:])
	return out
}

// Len returns the number of stored lines.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// Clear removes all stored lines.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = l.lines[:0]
}
