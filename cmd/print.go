package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/DachengChen/querybot/api"
	"github.com/DachengChen/querybot/conversation"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	roleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))
)

func printSessions(w io.Writer, sessions []conversation.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, headerStyle.Render("📋 No sessions found"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("📋 Found %d session(s)", len(sessions))))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, titleStyle.Render("ID")+"\t"+titleStyle.Render("MODE")+"\t"+
		titleStyle.Render("TITLE")+"\t"+titleStyle.Render("CREATED"))
	for _, s := range sessions {
		title := s.Title
		if title == "" {
			title = "Untitled Chat"
		}
		if r := []rune(title); len(r) > 50 {
			title = string(r[:47]) + "..."
		}
		created := "—"
		if !s.CreatedAt.IsZero() {
			created = s.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Mode, title, created)
	}
	tw.Flush() //nolint:errcheck
}

// printMessage writes one log entry as plain text. Plot references are
// passed through link.
func printMessage(w io.Writer, m conversation.Message, link func(ref string) string) {
	switch {
	case m.Kind == conversation.KindFile && m.File != nil:
		fmt.Fprintf(w, "%s %s\n", roleStyle.Render("file:"), m.File.DisplayName())
		if !m.File.Degraded() {
			fmt.Fprintf(w, "  %s rows, columns: %s\n", m.File.RowCount, strings.Join(m.File.Columns, ", "))
		}
		return
	case m.Failed():
		fmt.Fprintln(w, errorStyle.Render(m.Content))
		return
	}

	fmt.Fprintf(w, "%s %s\n", roleStyle.Render(string(m.Role)+":"), m.Content)
	if m.SQL != nil {
		if m.SQL.Query != "" {
			fmt.Fprintln(w)
			fmt.Fprintln(w, indent(m.SQL.Query))
		}
		if len(m.SQL.Results) > 0 {
			fmt.Fprintln(w)
			printRows(w, m.SQL.Results)
		}
	}
	if a := m.Analysis; a != nil {
		if a.Code != "" {
			fmt.Fprintln(w)
			fmt.Fprintln(w, indent(a.Code))
		}
		if a.Stdout != "" {
			fmt.Fprintln(w, dateStyle.Render("output:"))
			fmt.Fprintln(w, indent(strings.TrimRight(a.Stdout, "\n")))
		}
		if a.Error != "" {
			fmt.Fprintln(w, errorStyle.Render("error: "+a.Error))
		}
		for _, p := range a.Plots {
			fmt.Fprintln(w, "plot: "+link(p))
		}
	}
}

// printRows writes result rows as an aligned table, columns in backend order.
func printRows(w io.Writer, rows []api.Row) {
	var cols []string
	seen := map[string]bool{}
	for _, r := range rows {
		for _, c := range r.Columns {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  "+strings.Join(cols, "\t"))
	for _, r := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			v, ok := r.Get(c)
			switch {
			case !ok:
			case v == nil:
				cells[i] = "NULL"
			default:
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(tw, "  "+strings.Join(cells, "\t"))
	}
	tw.Flush() //nolint:errcheck
	if len(rows) == 1 {
		fmt.Fprintln(w, "(1 row)")
	} else {
		fmt.Fprintf(w, "(%d rows)\n", len(rows))
	}
}

func indent(s string) string {
	return "    " + strings.ReplaceAll(s, "\n", "\n    ")
}
