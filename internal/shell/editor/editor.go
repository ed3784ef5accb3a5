// Package editor implements the built-in line-buffer text editor behind the
// `edit` command. It is an ordinary buffer editor, independent of process
// management; while a session is open the router rejects command input.
package editor

import (
	"fmt"
	"os"
	"strings"
)

// Position is a cursor location in the buffer.
type Position struct {
	Line int
	Col  int
}

// Editor holds one file's lines plus cursor, selection and clipboard state.
type Editor struct {
	FilePath string
	Modified bool

	lines     []string
	cursor    Position
	selecting bool
	anchor    Position
	clipboard string
}

// Open loads path into a new editor session. A missing file starts an empty
// buffer that will be created on save.
func Open(path string) (*Editor, error) {
	e := &Editor{
		FilePath: path,
		lines:    []string{""},
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return e, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	e.lines = strings.Split(text, "\n")
	if len(e.lines) == 0 {
		e.lines = []string{""}
	}
	return e, nil
}

// Save writes the buffer back to disk.
func (e *Editor) Save() error {
	data := strings.Join(e.lines, "\n")
	if err := os.WriteFile(e.FilePath, []byte(data), 0o644); err != nil {
		return fmt.Errorf("failed to save %s: %w", e.FilePath, err)
	}
	e.Modified = false
	return nil
}

// Lines returns the buffer contents.
func (e *Editor) Lines() []string {
	out := make([]string, len(e.lines))
	copy(out, e.lines)
	return out
}

// Cursor returns the current cursor position.
func (e *Editor) Cursor() Position { return e.cursor }

func (e *Editor) clampCursor() {
	if e.cursor.Line < 0 {
		e.cursor.Line = 0
	}
	if e.cursor.Line >= len(e.lines) {
		e.cursor.Line = len(e.lines) - 1
	}
	if e.cursor.Col < 0 {
		e.cursor.Col = 0
	}
	if n := len([]rune(e.lines[e.cursor.Line])); e.cursor.Col > n {
		e.cursor.Col = n
	}
}

// HasSelection reports whether a non-empty selection exists.
func (e *Editor) HasSelection() bool {
	return e.selecting && e.anchor != e.cursor
}

// SelectionRange returns the ordered selection bounds.
func (e *Editor) SelectionRange() (Position, Position) {
	a, b := e.anchor, e.cursor
	if a.Line > b.Line || (a.Line == b.Line && a.Col > b.Col) {
		a, b = b, a
	}
	return a, b
}

// Insert places text at the cursor, replacing any selection first.
func (e *Editor) Insert(text string) {
	if e.HasSelection() {
		e.DeleteSelection()
	}
	e.selecting = false
	line := []rune(e.lines[e.cursor.Line])
	before := string(line[:e.cursor.Col])
	after := string(line[e.cursor.Col:])
	e.lines[e.cursor.Line] = before + text + after
	e.cursor.Col += len([]rune(text))
	e.Modified = true
}

// InsertNewline splits the current line at the cursor.
func (e *Editor) InsertNewline() {
	if e.HasSelection() {
		e.DeleteSelection()
	}
	e.selecting = false
	line := []rune(e.lines[e.cursor.Line])
	before := string(line[:e.cursor.Col])
	after := string(line[e.cursor.Col:])
	e.lines[e.cursor.Line] = before
	rest := append([]string{after}, e.lines[e.cursor.Line+1:]...)
	e.lines = append(e.lines[:e.cursor.Line+1], rest...)
	e.cursor.Line++
	e.cursor.Col = 0
	e.Modified = true
}

// Backspace deletes the rune before the cursor, joining lines at column 0.
func (e *Editor) Backspace() {
	if e.HasSelection() {
		e.DeleteSelection()
		return
	}
	e.selecting = false
	if e.cursor.Col > 0 {
		line := []rune(e.lines[e.cursor.Line])
		e.lines[e.cursor.Line] = string(line[:e.cursor.Col-1]) + string(line[e.cursor.Col:])
		e.cursor.Col--
		e.Modified = true
		return
	}
	if e.cursor.Line > 0 {
		prev := e.lines[e.cursor.Line-1]
		e.cursor.Col = len([]rune(prev))
		e.lines[e.cursor.Line-1] = prev + e.lines[e.cursor.Line]
		e.lines = append(e.lines[:e.cursor.Line], e.lines[e.cursor.Line+1:]...)
		e.cursor.Line--
		e.Modified = true
	}
}

// DeleteForward deletes the rune under the cursor, joining lines at EOL.
func (e *Editor) DeleteForward() {
	if e.HasSelection() {
		e.DeleteSelection()
		return
	}
	e.selecting = false
	line := []rune(e.lines[e.cursor.Line])
	if e.cursor.Col < len(line) {
		e.lines[e.cursor.Line] = string(line[:e.cursor.Col]) + string(line[e.cursor.Col+1:])
		e.Modified = true
		return
	}
	if e.cursor.Line < len(e.lines)-1 {
		e.lines[e.cursor.Line] = string(line) + e.lines[e.cursor.Line+1]
		e.lines = append(e.lines[:e.cursor.Line+1], e.lines[e.cursor.Line+2:]...)
		e.Modified = true
	}
}

// Move shifts the cursor, extending the selection when selecting is set.
func (e *Editor) Move(deltaLine, deltaCol int, selecting bool) {
	if selecting && !e.selecting {
		e.selecting = true
		e.anchor = e.cursor
	}
	if !selecting {
		e.selecting = false
	}
	e.cursor.Line += deltaLine
	e.cursor.Col += deltaCol
	e.clampCursor()
}

// MoveHome places the cursor at column 0.
func (e *Editor) MoveHome(selecting bool) {
	e.Move(0, -e.cursor.Col, selecting)
}

// MoveEnd places the cursor at end of line.
func (e *Editor) MoveEnd(selecting bool) {
	n := len([]rune(e.lines[e.cursor.Line]))
	e.Move(0, n-e.cursor.Col, selecting)
}

// SelectAll selects the whole buffer.
func (e *Editor) SelectAll() {
	e.selecting = true
	e.anchor = Position{}
	last := len(e.lines) - 1
	e.cursor = Position{Line: last, Col: len([]rune(e.lines[last]))}
}

// SelectedText returns the selection contents.
func (e *Editor) SelectedText() string {
	if !e.HasSelection() {
		return ""
	}
	a, b := e.SelectionRange()
	if a.Line == b.Line {
		line := []rune(e.lines[a.Line])
		return string(line[a.Col:b.Col])
	}
	parts := []string{string([]rune(e.lines[a.Line])[a.Col:])}
	for i := a.Line + 1; i < b.Line; i++ {
		parts = append(parts, e.lines[i])
	}
	parts = append(parts, string([]rune(e.lines[b.Line])[:b.Col]))
	return strings.Join(parts, "\n")
}

// DeleteSelection removes the selected text.
func (e *Editor) DeleteSelection() {
	if !e.HasSelection() {
		return
	}
	a, b := e.SelectionRange()
	head := string([]rune(e.lines[a.Line])[:a.Col])
	tail := string([]rune(e.lines[b.Line])[b.Col:])
	e.lines = append(e.lines[:a.Line], append([]string{head + tail}, e.lines[b.Line+1:]...)...)
	e.cursor = a
	e.selecting = false
	e.Modified = true
}

// CopySelection copies the selection into the internal clipboard.
func (e *Editor) CopySelection() {
	if text := e.SelectedText(); text != "" {
		e.clipboard = text
	}
}

// CutSelection copies then deletes the selection.
func (e *Editor) CutSelection() {
	if !e.HasSelection() {
		return
	}
	e.CopySelection()
	e.DeleteSelection()
}

// Paste inserts the clipboard at the cursor, handling embedded newlines.
func (e *Editor) Paste() {
	if e.clipboard == "" {
		return
	}
	parts := strings.Split(e.clipboard, "\n")
	for i, part := range parts {
		if i > 0 {
			e.InsertNewline()
		}
		e.Insert(part)
	}
}
