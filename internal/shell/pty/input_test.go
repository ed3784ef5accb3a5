package pty

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInputEchoInsertAndBackspace(t *testing.T) {
	var e inputEcho

	for _, r := range "abc" {
		e.insert(r)
	}
	line, cursor := e.snapshot()
	assert.Equal(t, "abc", line)
	assert.Equal(t, 3, cursor)

	e.backspace()
	line, cursor = e.snapshot()
	assert.Equal(t, "ab", line)
	assert.Equal(t, 2, cursor)
}

func TestInputEchoCursorInsert(t *testing.T) {
	var e inputEcho

	for _, r := range "ac" {
		e.insert(r)
	}
	e.left()
	e.insert('b')

	line, cursor := e.snapshot()
	assert.Equal(t, "abc", line)
	assert.Equal(t, 2, cursor)
}

func TestInputEchoHomeEnd(t *testing.T) {
	var e inputEcho
	e.set("hello")

	e.home()
	_, cursor := e.snapshot()
	assert.Equal(t, 0, cursor)

	e.end()
	_, cursor = e.snapshot()
	assert.Equal(t, 5, cursor)
}

func TestInputHistoryRecall(t *testing.T) {
	var h inputHistory
	h.add("first")
	h.add("second")

	got, ok := h.prev()
	assert.True(t, ok)
	assert.Equal(t, "second", got)

	got, _ = h.prev()
	assert.Equal(t, "first", got)

	got, _ = h.next()
	assert.Equal(t, "second", got)

	// Past the newest entry the recall yields a blank line.
	got, ok = h.next()
	assert.True(t, ok)
	assert.Equal(t, "", got)
}

func TestInputHistorySkipsBlankAndDuplicate(t *testing.T) {
	var h inputHistory
	h.add("   ")
	h.add("ls")
	h.add("ls")

	assert.Len(t, h.entries, 1)
}

func TestKeyMapCoversLogicalKeys(t *testing.T) {
	for _, key := range []string{
		"UP", "DOWN", "LEFT", "RIGHT",
		"CTRL_C", "CTRL_X", "CTRL_D", "CTRL_Z",
		"BACKSPACE", "ENTER", "TAB", "ESC",
	} {
		_, ok := keyMap[key]
		assert.True(t, ok, key)
	}
	assert.Equal(t, "\x03", keyMap["CTRL_C"])
}
