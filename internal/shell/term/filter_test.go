package term

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(committed *[]string) func(string) {
	return func(line string) {
		*committed = append(*committed, line)
	}
}

func TestLineFilterCursorAndErase(t *testing.T) {
	var committed []string
	f := NewLineFilter(collect(&committed))

	f.Write([]byte("hello"))
	assert.Equal(t, "hello", f.Partial())

	// Cursor left by 2, erase to end, then overwrite from position 3.
	f.Write([]byte("\x1b[2D"))
	f.Write([]byte("\x1b[K"))
	assert.Equal(t, "hel", f.Partial())

	f.Write([]byte("hi\n"))
	require.Len(t, committed, 1)
	assert.Equal(t, "helhi", committed[0])
	assert.Equal(t, "", f.Partial())
}

func TestLineFilterStripsColorCodes(t *testing.T) {
	var committed []string
	f := NewLineFilter(collect(&committed))

	f.Write([]byte("\x1b[31mERROR\x1b[0m\n"))
	require.Len(t, committed, 1)
	assert.Equal(t, "ERROR", committed[0])
}

func TestLineFilterCarriageReturnOverwrites(t *testing.T) {
	var committed []string
	f := NewLineFilter(collect(&committed))

	// Progress-style output: only the last state before the newline commits.
	f.Write([]byte("10%\r20%\r100%\n"))
	require.Len(t, committed, 1)
	assert.Equal(t, "100%", committed[0])
}

func TestLineFilterBackspaceMovesCursor(t *testing.T) {
	var committed []string
	f := NewLineFilter(collect(&committed))

	f.Write([]byte("abc\x7fX\n"))
	require.Len(t, committed, 1)
	assert.Equal(t, "abX", committed[0])
}

func TestLineFilterBlankLinesNotCommitted(t *testing.T) {
	var committed []string
	f := NewLineFilter(collect(&committed))

	f.Write([]byte("\n   \n\t\n"))
	assert.Empty(t, committed)
}

func TestLineFilterFlushCommitsPartial(t *testing.T) {
	var committed []string
	f := NewLineFilter(collect(&committed))

	f.Write([]byte("no newline"))
	f.Flush()
	require.Len(t, committed, 1)
	assert.Equal(t, "no newline", committed[0])
}

func TestLineFilterUTF8SplitAcrossReads(t *testing.T) {
	var committed []string
	f := NewLineFilter(collect(&committed))

	// "héllo\n" with the two-byte é split across reads.
	full := []byte("h\xc3\xa9llo\n")
	f.Write(full[:2])
	f.Write(full[2:])
	require.Len(t, committed, 1)
	assert.Equal(t, "héllo", committed[0])
}

func TestLineFilterInvalidByteReplaced(t *testing.T) {
	var committed []string
	f := NewLineFilter(collect(&committed))

	f.Write([]byte{'a', 0xff, 'b', '\n'})
	require.Len(t, committed, 1)
	assert.Equal(t, "a�b", committed[0])
}

func TestLineFilterUnknownEscapeDiscarded(t *testing.T) {
	var committed []string
	f := NewLineFilter(collect(&committed))

	// Cursor-up has no line-level meaning and must not leak bytes.
	f.Write([]byte("abc\x1b[2Adef\n"))
	require.Len(t, committed, 1)
	assert.Equal(t, "abcdef", committed[0])
}

func TestStripRemovesControlSequences(t *testing.T) {
	assert.Equal(t, "ERROR", Strip("\x1b[31mERROR\x1b[0m"))
	assert.Equal(t, "title", Strip("\x1b]0;ignored\x07title"))
	assert.Equal(t, "keep\ttabs\nand newlines", Strip("keep\ttabs\nand\x07 newlines\r"))
}
