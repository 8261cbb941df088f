package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DachengChen/querybot/api"
	"github.com/DachengChen/querybot/api/apitest"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags puts every flag back to its default so runs don't leak
// into each other through the package-level command tree.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue) //nolint:errcheck
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("QUERYBOT_HOME", t.TempDir())
	t.Setenv("QUERYBOT_API_URL", "")
	t.Setenv("QUERYBOT_DB_URI", "")
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionFlag(t *testing.T) {
	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

func TestUnknownCommand(t *testing.T) {
	_, err := run(t, "nonexistent-command")
	assert.Error(t, err)
}

func TestInvalidModeFlag(t *testing.T) {
	srv := apitest.New(t)
	_, err := run(t, "sessions", "--api-url", srv.URL, "--mode", "spreadsheet")
	assert.Error(t, err)
}

func TestSessionsListsNewestFirst(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed("first question", "chat", "")
	srv.Seed("sales.csv", "eda", "k_sales.csv")

	out, err := run(t, "sessions", "--api-url", srv.URL)
	require.NoError(t, err)

	assert.Contains(t, out, "Found 2 session(s)")
	assert.Less(t, strings.Index(out, "sales.csv"), strings.Index(out, "first question"))
	assert.Contains(t, out, "eda")
}

func TestSessionsEmpty(t *testing.T) {
	srv := apitest.New(t)

	out, err := run(t, "sessions", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found")
}

func TestSessionsListFailure(t *testing.T) {
	srv := apitest.New(t)
	srv.Fail("GET /api/sessions", 500, "database locked")

	_, err := run(t, "sessions", "--api-url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database locked")
}

func TestSessionsClearNeedsConfirmation(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed("one", "chat", "")
	srv.Seed("two", "chat", "")

	_, err := run(t, "sessions", "clear", "--api-url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without --yes")
	assert.Len(t, srv.Sessions(), 2)
	assert.Equal(t, 0, srv.Calls("DELETE /api/sessions"))

	out, err := run(t, "sessions", "clear", "--yes", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 2 session(s)")
	assert.Empty(t, srv.Sessions())
}

func seedRevenue(srv *apitest.Server) api.Session {
	return srv.Seed("revenue", "chat", "",
		api.Message{Role: "user", Content: "total revenue?"},
		api.Message{Role: "assistant", Content: "It is 42.", SQLQuery: "SELECT 42 AS total;",
			Results: []api.Row{api.NewRow("total", 42)}},
	)
}

func TestHistoryPrintsMessages(t *testing.T) {
	srv := apitest.New(t)
	s := seedRevenue(srv)

	out, err := run(t, "history", s.ID, "--api-url", srv.URL)
	require.NoError(t, err)

	assert.Contains(t, out, "revenue (SQL Chat)")
	assert.Contains(t, out, "user: total revenue?")
	assert.Contains(t, out, "assistant: It is 42.")
	assert.Contains(t, out, "SELECT 42 AS total;")
	assert.Contains(t, out, "(1 row)")
}

func TestHistoryUnknownSession(t *testing.T) {
	srv := apitest.New(t)

	_, err := run(t, "history", "99", "--api-url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `session "99" not found`)
}

func TestExportToStdout(t *testing.T) {
	srv := apitest.New(t)
	s := seedRevenue(srv)

	out, err := run(t, "export", s.ID, "--format", "json", "--out", "-", "--api-url", srv.URL)
	require.NoError(t, err)

	var doc struct {
		Session struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"session"`
		Messages []map[string]any `json:"messages"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, s.ID, doc.Session.ID)
	assert.Equal(t, "revenue", doc.Session.Title)
	assert.Len(t, doc.Messages, 2)
}

func TestExportToFile(t *testing.T) {
	srv := apitest.New(t)
	s := seedRevenue(srv)
	path := filepath.Join(t.TempDir(), "revenue.md")

	out, err := run(t, "export", s.ID, "--out", path, "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 message(s)")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SELECT 42 AS total;")
}

func TestExportInvalidFormat(t *testing.T) {
	srv := apitest.New(t)
	s := seedRevenue(srv)

	_, err := run(t, "export", s.ID, "--format", "invalid", "--api-url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestSchemaFromBackend(t *testing.T) {
	srv := apitest.New(t)

	out, err := run(t, "schema", "--api-url", srv.URL, "--db-uri", "postgres://reports")
	require.NoError(t, err)

	assert.Contains(t, out, "students")
	assert.Contains(t, out, "marks")
	assert.Contains(t, out, "VARCHAR(50)")
	assert.Equal(t, "postgres://reports", srv.LastSchemaURI())
}

func TestSchemaDirectNeedsURI(t *testing.T) {
	srv := apitest.New(t)

	_, err := run(t, "schema", "--direct", "--api-url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database URI")
	assert.Equal(t, 0, srv.Calls("GET /api/schema"))
}

func TestAskCreatesSession(t *testing.T) {
	srv := apitest.New(t)

	out, err := run(t, "ask", "show", "users", "--api-url", srv.URL)
	require.NoError(t, err)

	sessions := srv.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "show users", sessions[0].Title)
	assert.Equal(t, "show users", srv.LastChat().Message)

	assert.Contains(t, out, "Here are the matching rows.")
	assert.Contains(t, out, "SELECT id, name FROM users;")
	assert.Contains(t, out, "Linus")
	assert.Contains(t, out, "(2 rows)")
	assert.Contains(t, out, "session "+sessions[0].ID)
}

func TestAskContinuesSession(t *testing.T) {
	srv := apitest.New(t)
	s := seedRevenue(srv)

	_, err := run(t, "ask", "--session", s.ID, "and last year?", "--api-url", srv.URL)
	require.NoError(t, err)

	assert.Len(t, srv.Sessions(), 1)
	assert.Equal(t, s.ID, srv.LastChat().ChatID)
	assert.Len(t, srv.Messages(s.ID), 4)
}

func TestAskIntoAnalysisSessionIsRefused(t *testing.T) {
	srv := apitest.New(t)
	s := srv.Seed("sales.csv", "eda", "k_sales.csv")

	_, err := run(t, "ask", "--session", s.ID, "hello", "--api-url", srv.URL)
	require.Error(t, err)
	assert.Equal(t, 0, srv.Calls("POST /api/chat"))
}

func TestAskBackendError(t *testing.T) {
	srv := apitest.New(t)
	srv.Fail("POST /api/chat", 500, "model overloaded")

	out, err := run(t, "ask", "count orders", "--api-url", srv.URL)
	require.ErrorIs(t, err, errRequestFailed)
	assert.Contains(t, out, "Error: model overloaded")
}

func TestAskCreateFailure(t *testing.T) {
	srv := apitest.New(t)
	srv.Fail("POST /api/sessions", 503, "read-only mode")

	_, err := run(t, "ask", "count orders", "--api-url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not create session: read-only mode")
	assert.Equal(t, 0, srv.Calls("POST /api/chat"))
}

func TestAnalyzeUploadsAndAsks(t *testing.T) {
	srv := apitest.New(t)
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte("region,units\nnorth,3\nsouth,5\neast,1\n"), 0600))

	out, err := run(t, "analyze", "--file", path, "what sells best?", "--api-url", srv.URL)
	require.NoError(t, err)

	assert.Contains(t, out, "sales.csv: 3 rows, 2 columns")
	assert.Contains(t, out, "print(df.describe())")
	assert.Contains(t, out, "count    120.0")
	assert.Contains(t, out, "plot: "+srv.URL+"/static/plots/plot_1.png")

	sessions := srv.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "eda", sessions[0].SessionType)
	assert.Equal(t, "what sells best?", srv.LastEDA().Message)
	assert.Equal(t, sessions[0].Filename, srv.LastEDA().Filename)
}

func TestAnalyzeRejectsNonCSV(t *testing.T) {
	srv := apitest.New(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0600))

	_, err := run(t, "analyze", "--file", path, "anything?", "--api-url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Only CSV files are supported")
	assert.Empty(t, srv.Sessions())
}

func TestAnalyzeMissingFile(t *testing.T) {
	srv := apitest.New(t)

	_, err := run(t, "analyze", "--file", filepath.Join(t.TempDir(), "nope.csv"), "q", "--api-url", srv.URL)
	assert.Error(t, err)
	assert.Equal(t, 0, srv.Calls("POST /api/upload_csv"))
}

func TestConfigFileSuppliesBackend(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed("from config", "chat", "")
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"backend":{"url":"`+srv.URL+`"}}`), 0600))

	out, err := run(t, "sessions", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "from config")
}

func seedAnalysis(srv *apitest.Server) api.Session {
	return srv.Seed("sales.csv", "eda", "k_sales.csv",
		api.Message{Role: "user", Content: "plot units"},
		api.Message{Role: "assistant", Content: "Done.", Code: "df.plot()",
			Plots: []string{"/static/plots/units.png", "/static/plots/units.png"}},
	)
}

func TestHistoryLinksPlotsToBackend(t *testing.T) {
	srv := apitest.New(t)
	s := seedAnalysis(srv)

	out, err := run(t, "history", s.ID, "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "plot: "+srv.URL+"/static/plots/units.png")
}

func TestExportDownloadsPlots(t *testing.T) {
	srv := apitest.New(t)
	s := seedAnalysis(srv)
	dir := filepath.Join(t.TempDir(), "plots")

	out, err := run(t, "export", s.ID, "--out", filepath.Join(t.TempDir(), "s.md"),
		"--plots", dir, "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved 1 plot(s) to "+dir)

	data, err := os.ReadFile(filepath.Join(dir, "units.png"))
	require.NoError(t, err)
	assert.Equal(t, apitest.PlotPNG, data)
	assert.Equal(t, 1, srv.Calls("GET /static/plots/:name"))
}

func TestExportPlotsWithoutPlots(t *testing.T) {
	srv := apitest.New(t)
	s := seedRevenue(srv)

	out, err := run(t, "export", s.ID, "--out", filepath.Join(t.TempDir(), "s.md"),
		"--plots", t.TempDir(), "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "No plots to download")
}
