// viewport.go provides a reusable scrollable viewport component
// with both vertical and horizontal scrolling, pagination, and text wrapping.
//
// Lines may carry ANSI styling (glamour output, lipgloss tables); all
// slicing and measuring goes through charmbracelet/x/ansi so escape
// sequences are never cut in half.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Viewport is a scrollable text area with pagination.
type Viewport struct {
	width    int
	height   int
	content  []string // lines of content
	scrollY  int      // vertical scroll offset (line index)
	scrollX  int      // horizontal scroll offset (cell index)
	wrapText bool     // whether to wrap text instead of horizontal scroll
}

// NewViewport creates a viewport with the given dimensions.
func NewViewport(width, height int) *Viewport {
	return &Viewport{
		width:    width,
		height:   height,
		wrapText: true,
	}
}

// SetContent replaces the viewport content.
func (v *Viewport) SetContent(content string) {
	v.SetContentLines(strings.Split(content, "\n"))
}

// SetContentLines replaces the viewport content with pre-split lines.
func (v *Viewport) SetContentLines(lines []string) {
	v.content = lines
	v.clampScroll()
}

// SetSize updates viewport dimensions.
func (v *Viewport) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.clampScroll()
}

// ToggleWrap toggles text wrapping.
func (v *Viewport) ToggleWrap() {
	v.wrapText = !v.wrapText
	v.scrollX = 0
	v.clampScroll()
}

// ScrollUp moves the viewport up by n lines.
func (v *Viewport) ScrollUp(n int) {
	v.scrollY -= n
	v.clampScroll()
}

// ScrollDown moves the viewport down by n lines.
func (v *Viewport) ScrollDown(n int) {
	v.scrollY += n
	v.clampScroll()
}

// ScrollLeft moves the viewport left.
func (v *Viewport) ScrollLeft(n int) {
	if v.wrapText {
		return
	}
	v.scrollX -= n
	if v.scrollX < 0 {
		v.scrollX = 0
	}
}

// ScrollRight moves the viewport right.
func (v *Viewport) ScrollRight(n int) {
	if !v.wrapText {
		v.scrollX += n
	}
}

// PageUp scrolls up by one page.
func (v *Viewport) PageUp() {
	v.ScrollUp(v.height)
}

// PageDown scrolls down by one page.
func (v *Viewport) PageDown() {
	v.ScrollDown(v.height)
}

// Home scrolls to the top.
func (v *Viewport) Home() {
	v.scrollY = 0
	v.scrollX = 0
}

// End scrolls to the bottom.
func (v *Viewport) End() {
	v.scrollY = v.maxScrollY()
}

// AtBottom reports whether the last line is visible.
func (v *Viewport) AtBottom() bool {
	return v.scrollY >= v.maxScrollY()
}

// Render returns the visible portion of the content.
func (v *Viewport) Render() string {
	if len(v.content) == 0 {
		return ""
	}

	lines := v.lines()
	rows := v.height
	indicator := v.scrollIndicator(len(lines))
	if indicator != "" && rows > 1 {
		rows-- // indicator takes the last row
	}
	end := v.scrollY + rows
	if end > len(lines) {
		end = len(lines)
	}
	var visible []string
	if v.scrollY < len(lines) {
		visible = append(visible, lines[v.scrollY:end]...)
	}
	if !v.wrapText {
		for i, line := range visible {
			visible[i] = ansi.Cut(line, v.scrollX, v.scrollX+v.width)
		}
	}

	// Pad to fill viewport height
	for len(visible) < rows {
		visible = append(visible, "")
	}
	if indicator != "" && rows < v.height {
		visible = append(visible, indicator)
	}
	return strings.Join(visible, "\n")
}

// lines returns the content as displayed: wrapped to width, or raw.
func (v *Viewport) lines() []string {
	if !v.wrapText || v.width <= 0 {
		return v.content
	}
	var wrapped []string
	for _, line := range v.content {
		if ansi.StringWidth(line) <= v.width {
			wrapped = append(wrapped, line)
			continue
		}
		wrapped = append(wrapped, strings.Split(ansi.Hardwrap(line, v.width, true), "\n")...)
	}
	return wrapped
}

func (v *Viewport) clampScroll() {
	maxY := v.maxScrollY()
	if v.scrollY > maxY {
		v.scrollY = maxY
	}
	if v.scrollY < 0 {
		v.scrollY = 0
	}
}

func (v *Viewport) maxScrollY() int {
	total := len(v.lines())
	rows := v.height
	if total > v.height && rows > 1 {
		rows--
	}
	max := total - rows
	if max < 0 {
		return 0
	}
	return max
}

func (v *Viewport) scrollIndicator(total int) string {
	if total <= v.height {
		return ""
	}
	pct := (v.scrollY * 100) / total
	label := fmt.Sprintf(" %d%% (%d/%d)", pct, v.scrollY+1, total)
	rule := v.width - ansi.StringWidth(label)
	if rule < 0 {
		rule = 0
	}
	return StyleDimmed.Render(strings.Repeat("─", rule) + label)
}
