package output

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendAndTail(t *testing.T) {
	l := New(10)
	l.Append("one", "two", "three")

	assert.Equal(t, []string{"two", "three"}, l.Tail(2))
	assert.Equal(t, []string{"one", "two", "three"}, l.Tail(0))
	assert.Equal(t, 3, l.Len())
}

func TestEvictsOldestOnOverflow(t *testing.T) {
	l := New(3)
	for i := 1; i <= 5; i++ {
		l.Append(fmt.Sprintf("line-%d", i))
	}
	assert.Equal(t, []string{"line-3", "line-4", "line-5"}, l.Tail(0))
}

func TestClear(t *testing.T) {
	l := New(10)
	l.Append("a", "b")
	l.Clear()
	assert.Zero(t, l.Len())
}

func TestOnAppendCallback(t *testing.T) {
	l := New(10)
	total := 0
	l.OnAppend(func(n int) { total += n })

	l.Append("a")
	l.Append("b", "c")
	assert.Equal(t, 3, total)
}
