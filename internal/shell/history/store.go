// Package history provides the append-only, index-addressed command history.
//
// Indices are assigned from a monotonically increasing counter persisted with
// the entries, so they stay stable and unique across trims. Disk failures
// degrade silently to an empty or unchanged history; they are never surfaced
// to the user.
package history

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/handterm/handterm/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// Entry is one submitted command with its permanent index.
type Entry struct {
	Index   int    `json:"index"`
	Command string `json:"command"`
}

// document is the persisted form. Invariant: NextIndex exceeds every stored
// index.
type document struct {
	NextIndex int     `json:"next_index"`
	Entries   []Entry `json:"entries"`
}

// Store holds command history with JSON persistence and two independent
// navigation modes: a sequential recall cursor and direct index lookup.
type Store struct {
	path    string
	max     int
	entries []Entry
	next    int
	cursor  int
	log     *logging.Logger
}

// NewStore creates a store backed by path, retaining at most max entries.
// A missing or corrupt file yields an empty history.
func NewStore(path string, max int, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Store{
		path: path,
		max:  max,
		next: 1,
		log:  logger,
	}
	s.load()
	s.cursor = len(s.entries)
	return s
}

func (s *Store) load() {
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Debug("history load failed", zap.Error(err))
		}
		return
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.log.Debug("history file corrupt, starting empty", zap.Error(err))
		return
	}
	entries := doc.Entries
	if s.max > 0 && len(entries) > s.max {
		entries = entries[len(entries)-s.max:]
	}
	s.entries = entries
	if doc.NextIndex > 0 {
		s.next = doc.NextIndex
	} else if n := len(entries); n > 0 {
		s.next = entries[n-1].Index + 1
	}
	// Repair: next must exceed every stored index.
	for _, e := range s.entries {
		if e.Index >= s.next {
			s.next = e.Index + 1
		}
	}
}

func (s *Store) save() {
	if s.path == "" {
		return
	}
	doc := document{NextIndex: s.next, Entries: s.entries}
	if doc.Entries == nil {
		doc.Entries = []Entry{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.log.Debug("history save failed", zap.Error(err))
	}
}

// Add appends a command, assigns the next index, trims the oldest entries
// past the retention cap and persists. The recall cursor resets past the end.
func (s *Store) Add(command string) Entry {
	entry := Entry{Index: s.next, Command: command}
	s.next++
	s.entries = append(s.entries, entry)
	if s.max > 0 && len(s.entries) > s.max {
		s.entries = s.entries[len(s.entries)-s.max:]
	}
	s.cursor = len(s.entries)
	s.save()
	return entry
}

// Clear drops all entries and resets the index counter.
func (s *Store) Clear() {
	s.entries = nil
	s.cursor = 0
	s.next = 1
	s.save()
}

// Get returns the entry at a stored index.
func (s *Store) Get(index int) (Entry, bool) {
	for _, e := range s.entries {
		if e.Index == index {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries returns a copy of the stored entries in insertion order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of retained entries.
func (s *Store) Len() int { return len(s.entries) }

// NextIndex returns the index the next added entry will receive.
func (s *Store) NextIndex() int { return s.next }

// Lines formats the history for display.
func (s *Store) Lines() []string {
	if len(s.entries) == 0 {
		return []string{"[System] History is empty."}
	}
	lines := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		lines = append(lines, fmt.Sprintf("%4d  %s", e.Index, e.Command))
	}
	return lines
}

// Prev moves the recall cursor back and returns that command, for arrow-key
// recall. Direct index lookups do not move this cursor.
func (s *Store) Prev() string {
	if len(s.entries) == 0 {
		return ""
	}
	if s.cursor > 0 {
		s.cursor--
	}
	if s.cursor >= 0 && s.cursor < len(s.entries) {
		return s.entries[s.cursor].Command
	}
	return ""
}

// Next moves the recall cursor forward; past the newest entry it returns an
// empty string, restoring the blank input line.
func (s *Store) Next() string {
	if len(s.entries) == 0 {
		return ""
	}
	if s.cursor < len(s.entries)-1 {
		s.cursor++
		return s.entries[s.cursor].Command
	}
	s.cursor = len(s.entries)
	return ""
}
