package export

import (
	"fmt"
	"io"
	"strings"
)

// MarkdownExporter exports sessions in Markdown format
type MarkdownExporter struct{}

// Export exports a session to Markdown format
func (e *MarkdownExporter) Export(doc *Document, w io.Writer) error {
	s := doc.Session
	_, _ = fmt.Fprintf(w, "# %s\n\n", s.Title)
	_, _ = fmt.Fprintf(w, "**Session:** %s  \n", s.ID)
	_, _ = fmt.Fprintf(w, "**Mode:** %s  \n", s.Mode)
	if !s.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "**Created:** %s  \n", s.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if doc.File != nil {
		_, _ = fmt.Fprintf(w, "**File:** %s (%s rows)  \n", fileLabel(doc.File), doc.File.RowCount)
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(doc.Messages))
	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, m := range doc.Messages {
		writeEntry(w, m)
		if i < len(doc.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}
	return nil
}

func fileLabel(f *FileInfo) string {
	if f.OriginalFilename != "" {
		return f.OriginalFilename
	}
	return f.Filename
}

func writeEntry(w io.Writer, m Entry) {
	_, _ = fmt.Fprintf(w, "**%s:**\n\n", m.Role)
	if m.Kind == "file" {
		_, _ = fmt.Fprintf(w, "_Attached file: %s_\n\n", m.File)
		return
	}
	if m.Content != "" {
		_, _ = fmt.Fprintf(w, "%s\n\n", m.Content)
	}
	if m.SQLQuery != "" {
		writeFence(w, "sql", m.SQLQuery)
	}
	if len(m.Results) > 0 {
		writeTable(w, m.Results)
	}
	if m.Code != "" {
		writeFence(w, "python", m.Code)
	}
	if m.Stdout != "" {
		writeFence(w, "text", m.Stdout)
	}
	if m.Error != "" {
		_, _ = fmt.Fprintf(w, "> **Error:** %s\n\n", m.Error)
	}
	for _, p := range m.Plots {
		_, _ = fmt.Fprintf(w, "![plot](%s)\n\n", p)
	}
}

func writeFence(w io.Writer, lang, body string) {
	_, _ = fmt.Fprintf(w, "```%s\n%s\n```\n\n", lang, strings.TrimRight(body, "\n"))
}

// writeTable renders rows as a pipe table; columns come from the first
// row, then any new ones in order of appearance.
func writeTable(w io.Writer, rows []Row) {
	var cols []string
	seen := make(map[string]bool)
	for _, r := range rows {
		for _, c := range r.Columns {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}

	cells := make([]string, len(cols))
	for i, c := range cols {
		cells[i] = escapeCell(c)
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	for i := range cells {
		cells[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))

	for _, r := range rows {
		for i, c := range cols {
			v, ok := r.Get(c)
			if !ok || v == nil {
				cells[i] = ""
				continue
			}
			cells[i] = escapeCell(fmt.Sprint(v))
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
	_, _ = fmt.Fprintln(w)
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
