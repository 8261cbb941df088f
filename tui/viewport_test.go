package tui

import (
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
)

func numbered(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i+1)
	}
	return lines
}

func TestViewportPadsShortContent(t *testing.T) {
	v := NewViewport(20, 4)
	v.SetContentLines([]string{"a", "b"})

	out := strings.Split(v.Render(), "\n")
	assert.Len(t, out, 4)
	assert.Equal(t, "a", out[0])
	assert.True(t, v.AtBottom())
}

func TestViewportScrollsAndClamps(t *testing.T) {
	v := NewViewport(30, 5)
	v.SetContentLines(numbered(20))

	out := strings.Split(v.Render(), "\n")
	assert.Len(t, out, 5)
	assert.Equal(t, "line 1", out[0])
	assert.Contains(t, out[4], "(1/20)")

	v.ScrollDown(3)
	assert.Equal(t, "line 4", strings.Split(v.Render(), "\n")[0])

	v.End()
	out = strings.Split(v.Render(), "\n")
	assert.Equal(t, "line 20", out[3])
	assert.True(t, v.AtBottom())

	v.ScrollDown(100)
	assert.Equal(t, "line 17", strings.Split(v.Render(), "\n")[0])

	v.ScrollUp(100)
	assert.Equal(t, "line 1", strings.Split(v.Render(), "\n")[0])

	v.PageDown()
	assert.Equal(t, "line 6", strings.Split(v.Render(), "\n")[0])
	v.Home()
	assert.Equal(t, "line 1", strings.Split(v.Render(), "\n")[0])
}

func TestViewportWrapsLongLines(t *testing.T) {
	v := NewViewport(10, 5)
	v.SetContentLines([]string{strings.Repeat("x", 25)})

	out := strings.Split(v.Render(), "\n")
	assert.Equal(t, strings.Repeat("x", 10), out[0])
	assert.Equal(t, strings.Repeat("x", 10), out[1])
	assert.Equal(t, strings.Repeat("x", 5), out[2])
}

func TestViewportHorizontalScrollKeepsStyling(t *testing.T) {
	v := NewViewport(5, 2)
	v.ToggleWrap()
	v.SetContentLines([]string{"\x1b[1mabcdefghij\x1b[0m"})

	v.ScrollRight(3)
	first := strings.Split(v.Render(), "\n")[0]
	assert.Equal(t, "defgh", ansi.Strip(first))
	assert.Equal(t, 5, ansi.StringWidth(first))

	v.ScrollLeft(10)
	assert.Equal(t, "abcde", ansi.Strip(strings.Split(v.Render(), "\n")[0]))
}

func TestViewportScrollRightIgnoredWhileWrapping(t *testing.T) {
	v := NewViewport(5, 2)
	v.SetContentLines([]string{"abcdefghij"})

	v.ScrollRight(3)
	assert.Equal(t, "abcde", strings.Split(v.Render(), "\n")[0])
}

func TestViewportEmpty(t *testing.T) {
	v := NewViewport(10, 3)
	assert.Equal(t, "", v.Render())
}
