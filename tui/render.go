// render.go turns conversation messages into display lines.
//
// Assistant prose and code go through glamour; result rows use the
// same compact box table the results pane has always used.
package tui

import (
	"fmt"
	"strings"

	"github.com/DachengChen/querybot/api"
	"github.com/DachengChen/querybot/config"
	"github.com/DachengChen/querybot/conversation"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"
)

const (
	maxCellWidth   = 40
	maxTableRows   = 50
	previewColumns = 8
)

// Renderer caches a glamour renderer per width and theme.
type Renderer struct {
	width   int
	theme   string
	md      *glamour.TermRenderer
	resolve func(ref string) string // plot references to URLs
}

// NewRenderer returns a renderer for the current theme.
func NewRenderer() *Renderer {
	return &Renderer{theme: config.UI().Theme}
}

// SetWidth sets the wrap width used for the next render.
func (r *Renderer) SetWidth(width int) {
	if width != r.width {
		r.width = width
		r.md = nil
	}
}

// SetTheme switches the glamour style.
func (r *Renderer) SetTheme(theme string) {
	if theme != r.theme {
		r.theme = theme
		r.md = nil
	}
}

// SetResolver sets how plot references are turned into links.
func (r *Renderer) SetResolver(resolve func(ref string) string) {
	r.resolve = resolve
}

// Markdown renders s, falling back to the raw text if glamour fails.
func (r *Renderer) Markdown(s string) string {
	if r.md == nil {
		style := "dark"
		if r.theme == config.ThemeLight {
			style = "light"
		}
		width := r.width
		if width <= 0 {
			width = 80
		}
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return s
		}
		r.md = md
	}
	out, err := r.md.Render(s)
	if err != nil {
		return s
	}
	return strings.Trim(out, "\n")
}

// Code renders src as a highlighted fenced block.
func (r *Renderer) Code(lang, src string) string {
	return r.Markdown("```" + lang + "\n" + strings.TrimRight(src, "\n") + "\n```")
}

// Messages renders a whole log.
func (r *Renderer) Messages(msgs []conversation.Message) []string {
	var lines []string
	for _, m := range msgs {
		lines = append(lines, r.Message(m)...)
		lines = append(lines, "")
	}
	return lines
}

// Message renders one log entry.
func (r *Renderer) Message(m conversation.Message) []string {
	if m.Role == conversation.RoleUser {
		if m.Kind == conversation.KindFile && m.File != nil {
			return fileCard(m.File)
		}
		return []string{StyleUser.Render("You: ") + m.Content}
	}

	lines := []string{StyleAssistant.Render("Assistant:")}
	if m.Content != "" {
		if m.Failed() {
			lines = append(lines, StyleError.Render(m.Content))
		} else {
			lines = append(lines, splitLines(r.Markdown(m.Content))...)
		}
	}

	switch m.Kind {
	case conversation.KindSQLAnswer:
		if m.SQL.Query != "" {
			lines = append(lines, splitLines(r.Code("sql", m.SQL.Query))...)
		}
		if len(m.SQL.Results) > 0 {
			lines = append(lines, "")
			lines = append(lines, formatRows(m.SQL.Results, maxTableRows)...)
		}
	case conversation.KindAnalysis:
		a := m.Analysis
		if a.Code != "" {
			lines = append(lines, splitLines(r.Code("python", a.Code))...)
		}
		if a.Stdout != "" {
			lines = append(lines, StyleDimmed.Render("Output:"))
			for _, l := range strings.Split(strings.TrimRight(a.Stdout, "\n"), "\n") {
				lines = append(lines, "  "+l)
			}
		}
		if a.Error != "" {
			lines = append(lines, StyleError.Render("Error: "+a.Error))
		}
		for _, p := range a.Plots {
			if r.resolve != nil {
				p = r.resolve(p)
			}
			lines = append(lines, StyleWarning.Render("📊 "+p))
		}
	}
	return lines
}

func fileCard(f *conversation.FileData) []string {
	lines := []string{StyleUser.Render("📎 " + f.DisplayName())}
	if !f.Degraded() {
		lines = append(lines, StyleDimmed.Render(fmt.Sprintf("   %s rows × %d columns", f.RowCount, len(f.Columns))))
	}
	return lines
}

// PreviewHeader is the summary line shown above an eda conversation.
func PreviewHeader(f *conversation.FileData, width int) string {
	if f == nil {
		return StyleDimmed.Render("No file loaded. Use :upload <path> to analyze a CSV.")
	}
	title := StyleBold.Render("📄 " + f.DisplayName())
	if f.Degraded() {
		return title + StyleDimmed.Render("  (restored session; rows and columns unknown)")
	}
	cols := f.Columns
	more := ""
	if len(cols) > previewColumns {
		cols = cols[:previewColumns]
		more = ", ..."
	}
	line := fmt.Sprintf("%s  %s rows  %s", title, f.RowCount, StyleDimmed.Render(strings.Join(cols, ", ")+more))
	return ansi.Truncate(line, width, "…")
}

// formatRows draws rows as a table in the order the backend returned
// them. Columns come from the first row plus any later ones.
func formatRows(rows []api.Row, limit int) []string {
	var cols []string
	seen := map[string]bool{}
	for _, row := range rows {
		for _, c := range row.Columns {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	if len(cols) == 0 {
		return []string{StyleDimmed.Render("(no columns)")}
	}

	shown := rows
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	cells := make([][]string, len(shown))
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = ansi.StringWidth(c)
	}
	for r, row := range shown {
		cells[r] = make([]string, len(cols))
		for i, c := range cols {
			cell := ""
			if v, ok := row.Get(c); ok {
				cell = formatCell(v)
			}
			cells[r][i] = cell
			if w := ansi.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		if widths[i] > maxCellWidth {
			widths[i] = maxCellWidth
		}
	}

	var lines []string
	header := ""
	sep := ""
	for i, c := range cols {
		header += " " + pad(c, widths[i]) + " │"
		sep += strings.Repeat("─", widths[i]+2) + "┼"
	}
	lines = append(lines, StyleBold.Render(strings.TrimSuffix(header, "│")))
	lines = append(lines, strings.TrimSuffix(sep, "┼"))
	for _, row := range cells {
		line := ""
		for i, cell := range row {
			line += " " + pad(cell, widths[i]) + " │"
		}
		lines = append(lines, strings.TrimSuffix(line, "│"))
	}

	status := fmt.Sprintf("(%d rows)", len(rows))
	if len(rows) == 1 {
		status = "(1 row)"
	}
	if len(shown) < len(rows) {
		status = fmt.Sprintf("(%d rows, showing first %d)", len(rows), len(shown))
	}
	return append(lines, StyleDimmed.Render(status))
}

func formatCell(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return strings.ReplaceAll(v, "\n", " ")
	default:
		return fmt.Sprint(v)
	}
}

func pad(s string, width int) string {
	s = ansi.Truncate(s, width, "…")
	if w := ansi.StringWidth(s); w < width {
		s += strings.Repeat(" ", width-w)
	}
	return s
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

func repeat(s string, n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(s, n)
}
