package tui

import (
	"strings"
	"testing"

	"github.com/DachengChen/querybot/api"
	"github.com/DachengChen/querybot/conversation"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plain(lines []string) string {
	return ansi.Strip(strings.Join(lines, "\n"))
}

func TestFormatRowsKeepsBackendOrder(t *testing.T) {
	rows := []api.Row{
		api.NewRow("zeta", 1, "alpha", "b"),
		api.NewRow("zeta", 2, "alpha", nil),
	}

	lines := formatRows(rows, 0)
	require.Len(t, lines, 5)

	header := ansi.Strip(lines[0])
	assert.Less(t, strings.Index(header, "zeta"), strings.Index(header, "alpha"))
	assert.Contains(t, lines[1], "┼")
	assert.Contains(t, lines[3], "NULL")
	assert.Equal(t, "(2 rows)", ansi.Strip(lines[4]))
}

func TestFormatRowsAddsLateColumns(t *testing.T) {
	rows := []api.Row{
		api.NewRow("id", 1),
		api.NewRow("id", 2, "note", "late"),
	}

	out := plain(formatRows(rows, 0))
	assert.Contains(t, out, "note")
	assert.Contains(t, out, "late")
}

func TestFormatRowsTruncatesWideCellsAndLongResults(t *testing.T) {
	var rows []api.Row
	for i := 0; i < 60; i++ {
		rows = append(rows, api.NewRow("text", strings.Repeat("w", 100)))
	}

	lines := formatRows(rows, maxTableRows)

	assert.Len(t, lines, 2+maxTableRows+1)
	assert.Contains(t, lines[2], "…")
	assert.LessOrEqual(t, ansi.StringWidth(lines[2]), maxCellWidth+3)
	assert.Equal(t, "(60 rows, showing first 50)", ansi.Strip(lines[len(lines)-1]))
}

func TestFormatRowsSingleRow(t *testing.T) {
	lines := formatRows([]api.Row{api.NewRow("n", 1)}, 0)
	assert.Equal(t, "(1 row)", ansi.Strip(lines[len(lines)-1]))
}

func TestPreviewHeader(t *testing.T) {
	cols := []string{"c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8", "c9", "c10"}
	f := &conversation.FileData{Filename: "k_sales.csv", OriginalFilename: "sales.csv", RowCount: 120, Columns: cols}

	out := ansi.Strip(PreviewHeader(f, 200))
	assert.Contains(t, out, "sales.csv")
	assert.Contains(t, out, "120 rows")
	assert.Contains(t, out, "c8, ...")
	assert.NotContains(t, out, "c9")
}

func TestPreviewHeaderDegradedAndMissing(t *testing.T) {
	f := &conversation.FileData{Filename: "abc_sales.csv", OriginalFilename: "sales.csv", RowCount: conversation.UnknownRowCount}
	assert.Contains(t, ansi.Strip(PreviewHeader(f, 200)), "rows and columns unknown")

	assert.Contains(t, ansi.Strip(PreviewHeader(nil, 200)), ":upload")
}

func TestRenderMessageKinds(t *testing.T) {
	r := NewRenderer()
	r.SetWidth(80)

	user := plain(r.Message(conversation.UserText("how many?")))
	assert.Contains(t, user, "You: how many?")

	sql := plain(r.Message(conversation.AssistantSQL("Three.", "SELECT count(*) FROM t;",
		[]api.Row{api.NewRow("count", 3)})))
	assert.Contains(t, sql, "Assistant:")
	assert.Contains(t, sql, "Three.")
	assert.Contains(t, sql, "count(*)")
	assert.Contains(t, sql, "(1 row)")

	analysis := plain(r.Message(conversation.AssistantAnalysis("Done.", conversation.Analysis{
		Code:   "df.head()",
		Stdout: "   a  b",
		Error:  "KeyError: 'x'",
		Plots:  []string{"/static/plots/p.png"},
	})))
	assert.Contains(t, analysis, "df.head()")
	assert.Contains(t, analysis, "Output:")
	assert.Contains(t, analysis, "Error: KeyError: 'x'")
	assert.Contains(t, analysis, "/static/plots/p.png")

	failed := plain(r.Message(conversation.AssistantText("Error: boom")))
	assert.Contains(t, failed, "Error: boom")
}

func TestRenderFileCard(t *testing.T) {
	r := NewRenderer()
	f := &conversation.FileData{Filename: "k_sales.csv", OriginalFilename: "sales.csv", RowCount: 3, Columns: []string{"a", "b"}}

	out := plain(r.Message(conversation.FileCard(*f)))
	assert.Contains(t, out, "📎 sales.csv")
	assert.Contains(t, out, "3 rows × 2 columns")
}

func TestRenderPlotsAsBackendLinks(t *testing.T) {
	r := NewRenderer()
	r.SetWidth(80)
	r.SetResolver(api.NewClient("http://localhost:8000", 0).ResolveURL)

	out := plain(r.Message(conversation.AssistantAnalysis("Plotted.", conversation.Analysis{
		Plots: []string{"/static/plots/p.png"},
	})))
	assert.Contains(t, out, "📊 http://localhost:8000/static/plots/p.png")
}
