package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DachengChen/querybot/api"
	"github.com/DachengChen/querybot/api/apitest"
	"github.com/DachengChen/querybot/config"
	"github.com/DachengChen/querybot/conversation"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var enter = tea.KeyMsg{Type: tea.KeyEnter}

func newTestApp(t *testing.T) (*App, *apitest.Server) {
	t.Helper()
	config.SetUI(config.UISettings{Theme: config.ThemeDark, SidebarOpen: true})
	t.Cleanup(func() { config.SetUI(config.UISettings{Theme: config.ThemeDark, SidebarOpen: true}) })

	srv := apitest.New(t)
	client := api.NewClient(srv.URL, 5*time.Second)
	engine := conversation.New(client, conversation.Options{})
	a := NewApp(Options{
		Engine: engine,
		Schema: func(ctx context.Context) (*api.Schema, error) {
			return client.Schema(ctx, "")
		},
		Backend: srv.URL,
		Plots:   client,
		Clipboard: func(string) error {
			return errors.New("no clipboard in tests")
		},
	})
	a.Update(tea.WindowSizeMsg{Width: 140, Height: 45})
	return a, srv
}

func start(t *testing.T, a *App) {
	t.Helper()
	drive(t, a, a.Init())
}

// drive runs cmds and feeds every message of this package back into the
// app until nothing is left. Timer-driven messages (cursor blink,
// spinner ticks) are dropped.
func drive(t *testing.T, a *App, cmds ...tea.Cmd) {
	t.Helper()
	queue := cmds
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 200, "command loop did not settle")
		cmd := queue[0]
		queue = queue[1:]
		if cmd == nil {
			continue
		}
		switch msg := cmd().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case EngineResultMsg, SchemaLoadedMsg, StatusMsg, SendMsg,
			SelectSessionMsg, NewChatMsg, RefreshSessionsMsg:
			_, next := a.Update(msg)
			queue = append(queue, next)
		}
	}
}

func press(t *testing.T, a *App, keys ...tea.KeyMsg) {
	t.Helper()
	for _, k := range keys {
		_, cmd := a.Update(k)
		drive(t, a, cmd)
	}
}

func typeText(t *testing.T, a *App, s string) {
	t.Helper()
	press(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func command(t *testing.T, a *App, line string) {
	t.Helper()
	typeText(t, a, ":")
	require.Equal(t, ModeCommand, a.mode)
	typeText(t, a, line)
	press(t, a, enter)
}

func screen(a *App) string {
	return ansi.Strip(a.View())
}

func writeCSV(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestStartupLoadsSessions(t *testing.T) {
	a, srv := newTestApp(t)
	srv.Seed("monthly revenue", "chat", "")
	srv.Seed("sales.csv", "eda", "abc_sales.csv")

	start(t, a)

	assert.Len(t, a.engine.Sessions(), 2)
	out := screen(a)
	assert.Contains(t, out, "querybot")
	assert.Contains(t, out, "monthly revenue")
	assert.Contains(t, out, "sales.csv")
}

func TestFirstMessageCreatesSessionAndShowsAnswer(t *testing.T) {
	a, srv := newTestApp(t)
	start(t, a)

	typeText(t, a, "show users")
	press(t, a, enter)

	sessions := srv.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "show users", sessions[0].Title)
	assert.True(t, a.conv.InputEmpty())
	assert.False(t, a.engine.Busy())

	out := screen(a)
	assert.Contains(t, out, "You: show users")
	assert.Contains(t, out, "Ada")
	assert.Contains(t, out, "Linus")
	assert.Contains(t, out, "(2 rows)")
	assert.Contains(t, out, "Created session: show users")
}

func TestChatFailureAppearsAsAssistantError(t *testing.T) {
	a, srv := newTestApp(t)
	start(t, a)
	srv.Fail("POST /api/chat", 500, "database is down")

	typeText(t, a, "count orders")
	press(t, a, enter)

	msgs := a.engine.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Error: database is down", msgs[1].Content)
	assert.Contains(t, screen(a), "Error: database is down")
}

func TestEmptyEnterDoesNothing(t *testing.T) {
	a, srv := newTestApp(t)
	start(t, a)

	typeText(t, a, "   ")
	press(t, a, enter)

	assert.Equal(t, 0, srv.Calls("POST /api/sessions"))
	assert.Contains(t, screen(a), "Type a message first")
}

func TestSecondSendIgnoredWhileWaiting(t *testing.T) {
	a, srv := newTestApp(t)
	start(t, a)

	_, pending := a.Update(SendMsg{Text: "first"})
	require.True(t, a.engine.Busy())
	assert.Contains(t, screen(a), "waiting for response...")

	typeText(t, a, "second")
	press(t, a, enter)
	assert.Equal(t, 0, srv.Calls("POST /api/chat"))

	drive(t, a, pending)
	assert.False(t, a.engine.Busy())
	assert.Equal(t, 1, srv.Calls("POST /api/chat"))
	assert.Equal(t, "first", srv.LastChat().Message)
}

func TestModeCommandAndUpload(t *testing.T) {
	a, srv := newTestApp(t)
	start(t, a)
	path := writeCSV(t, "sales.csv", "region,units\nnorth,3\nsouth,5\neast,1\n")

	command(t, a, "mode eda")
	require.Equal(t, conversation.ModeEDA, a.engine.Mode())

	command(t, a, "upload "+path)

	sessions := srv.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "sales.csv", sessions[0].Title)
	cur, ok := a.engine.Current()
	require.True(t, ok)
	assert.Equal(t, sessions[0].ID, cur.ID)

	file := a.engine.FileData()
	require.NotNil(t, file)
	assert.Equal(t, conversation.RowCount(3), file.RowCount)
	assert.Equal(t, []string{"region", "units"}, file.Columns)

	out := screen(a)
	assert.Contains(t, out, "📄 sales.csv")
	assert.Contains(t, out, "region, units")

	typeText(t, a, "describe it")
	press(t, a, enter)
	assert.Equal(t, file.Filename, srv.LastEDA().Filename)
	assert.Contains(t, screen(a), "count    120.0")
}

func TestUploadRefusedInChatMode(t *testing.T) {
	a, srv := newTestApp(t)
	start(t, a)
	path := writeCSV(t, "sales.csv", "a,b\n1,2\n")

	command(t, a, "upload "+path)

	assert.Equal(t, 0, srv.Calls("POST /api/upload_csv"))
	assert.Contains(t, screen(a), "Not available in SQL Chat mode")
}

func TestUploadOfNonCSVShowsNotice(t *testing.T) {
	a, srv := newTestApp(t)
	start(t, a)
	path := writeCSV(t, "notes.txt", "hello")

	press(t, a, tea.KeyMsg{Type: tea.KeyF2})
	command(t, a, "upload "+path)

	assert.Empty(t, srv.Sessions())
	assert.Nil(t, a.engine.FileData())
	assert.Contains(t, screen(a), "Upload failed: Only CSV files are supported")
}

func TestClearAsksForConfirmation(t *testing.T) {
	a, srv := newTestApp(t)
	srv.Seed("one", "chat", "")
	srv.Seed("two", "chat", "")
	start(t, a)

	command(t, a, "clear")
	require.Equal(t, ModeConfirm, a.mode)
	assert.Contains(t, screen(a), "(y/n)")
	typeText(t, a, "n")
	assert.Len(t, srv.Sessions(), 2)
	assert.Contains(t, screen(a), "Clear cancelled")

	command(t, a, "clear")
	typeText(t, a, "y")
	assert.Empty(t, srv.Sessions())
	assert.Empty(t, a.engine.Sessions())
	assert.Empty(t, a.engine.Messages())
}

func TestSidebarSelectsSession(t *testing.T) {
	a, srv := newTestApp(t)
	srv.Seed("older", "chat", "")
	srv.Seed("revenue", "chat", "",
		api.Message{Role: "user", Content: "total revenue?"},
		api.Message{Role: "assistant", Content: "It is 42.", SQLQuery: "SELECT 42;"},
	)
	start(t, a)

	press(t, a, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, focusSidebar, a.focus)
	press(t, a, enter)

	cur, ok := a.engine.Current()
	require.True(t, ok)
	assert.Equal(t, "revenue", cur.Title)
	assert.Equal(t, focusInput, a.focus)
	assert.Len(t, a.engine.Messages(), 2)
	assert.Contains(t, screen(a), "You: total revenue?")
}

func TestNewChatShortcut(t *testing.T) {
	a, srv := newTestApp(t)
	start(t, a)

	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlN})

	sessions := srv.Sessions()
	require.Len(t, sessions, 1)
	assert.True(t, strings.HasPrefix(sessions[0].Title, "New Chat "))
	cur, ok := a.engine.Current()
	require.True(t, ok)
	assert.Equal(t, sessions[0].ID, cur.ID)
}

func TestF2TogglesMode(t *testing.T) {
	a, _ := newTestApp(t)
	start(t, a)

	press(t, a, tea.KeyMsg{Type: tea.KeyF2})
	assert.Equal(t, conversation.ModeEDA, a.engine.Mode())
	assert.Contains(t, screen(a), "Data Analysis")

	press(t, a, tea.KeyMsg{Type: tea.KeyF2})
	assert.Equal(t, conversation.ModeChat, a.engine.Mode())
}

func TestSidebarToggle(t *testing.T) {
	a, _ := newTestApp(t)
	start(t, a)
	require.Contains(t, screen(a), "History")

	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlB})

	assert.False(t, config.UI().SidebarOpen)
	assert.NotContains(t, screen(a), "History")
}

func TestThemeToggle(t *testing.T) {
	a, _ := newTestApp(t)
	start(t, a)

	command(t, a, "theme")
	assert.Equal(t, config.ThemeLight, config.UI().Theme)
	assert.Equal(t, lightPalette.Accent, ColorAccent)

	command(t, a, "theme")
	assert.Equal(t, config.ThemeDark, config.UI().Theme)
	assert.Equal(t, darkPalette.Accent, ColorAccent)
}

func TestThemeIsSavedWhenConfigPathSet(t *testing.T) {
	a, _ := newTestApp(t)
	a.appConfig = config.DefaultAppConfig()
	a.configPath = filepath.Join(t.TempDir(), "config.json")
	start(t, a)

	command(t, a, "theme")

	saved, err := config.LoadAppConfig(a.configPath)
	require.NoError(t, err)
	assert.Equal(t, config.ThemeLight, saved.UI.Theme)
}

func TestSchemaTabFetchesOnce(t *testing.T) {
	a, srv := newTestApp(t)
	start(t, a)

	command(t, a, "schema")
	require.Equal(t, TabSchema, a.sidebarTab)
	assert.Equal(t, 1, srv.Calls("GET /api/schema"))
	assert.Contains(t, screen(a), "students")

	press(t, a, enter)
	assert.Contains(t, screen(a), "marks")

	command(t, a, "history")
	command(t, a, "schema")
	assert.Equal(t, 1, srv.Calls("GET /api/schema"))
}

func TestSchemaFailureIsShown(t *testing.T) {
	a, srv := newTestApp(t)
	start(t, a)
	srv.Fail("GET /api/schema", 500, "cannot reach database")

	command(t, a, "schema")

	v := a.sidebar[TabSchema].(*SchemaView)
	require.Error(t, v.err)
	assert.Equal(t, "cannot reach database", api.Detail(v.err))
	assert.Contains(t, screen(a), "Failed to load schema")
}

func TestExportCommandWritesTranscript(t *testing.T) {
	a, _ := newTestApp(t)
	start(t, a)
	typeText(t, a, "show users")
	press(t, a, enter)

	out := filepath.Join(t.TempDir(), "chat.json")
	command(t, a, "export json "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"content": "show users"`)
	assert.Contains(t, screen(a), "Exported to")
}

func TestExportWithoutSession(t *testing.T) {
	a, _ := newTestApp(t)
	start(t, a)

	command(t, a, "export")

	assert.Contains(t, screen(a), "No session selected")
}

func TestUnknownCommand(t *testing.T) {
	a, _ := newTestApp(t)
	start(t, a)

	command(t, a, "frobnicate")

	assert.Contains(t, screen(a), "unknown command: frobnicate")
}

func TestQuitCommand(t *testing.T) {
	a, _ := newTestApp(t)
	start(t, a)

	typeText(t, a, ":")
	typeText(t, a, "q")
	_, cmd := a.Update(enter)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Error(t, a.ctx.Err())
}

func TestColonIsTextWhenInputNotEmpty(t *testing.T) {
	a, _ := newTestApp(t)
	start(t, a)

	typeText(t, a, "ratio")
	typeText(t, a, ":")

	assert.Equal(t, ModeNormal, a.mode)
	assert.Equal(t, "ratio:", a.conv.input.Value())
}

func startAnalysis(t *testing.T, a *App) {
	t.Helper()
	start(t, a)
	command(t, a, "mode eda")
	command(t, a, "upload "+writeCSV(t, "sales.csv", "region,units\nnorth,3\n"))
	typeText(t, a, "plot units by region")
	press(t, a, enter)
}

func TestPlotsAreLinkedToBackend(t *testing.T) {
	a, srv := newTestApp(t)
	startAnalysis(t, a)

	assert.Contains(t, screen(a), "📊 "+srv.URL+"/static/plots/plot_1.png")
}

func TestPlotsCommandSavesImages(t *testing.T) {
	a, srv := newTestApp(t)
	startAnalysis(t, a)
	dir := filepath.Join(t.TempDir(), "plots")

	command(t, a, "plots "+dir)

	data, err := os.ReadFile(filepath.Join(dir, "plot_1.png"))
	require.NoError(t, err)
	assert.Equal(t, apitest.PlotPNG, data)
	assert.Equal(t, 1, srv.Calls("GET /static/plots/:name"))
	assert.Contains(t, screen(a), "Saved 1 plot(s) to "+dir)
}

func TestPlotsCommandWithoutPlots(t *testing.T) {
	a, srv := newTestApp(t)
	start(t, a)
	typeText(t, a, "show users")
	press(t, a, enter)

	command(t, a, "plots")

	assert.Equal(t, 0, srv.Calls("GET /static/plots/:name"))
	assert.Contains(t, screen(a), "No plots in this conversation")
}

func TestCopySQLShortcut(t *testing.T) {
	a, _ := newTestApp(t)
	var copied []string
	a.copyText = func(s string) error {
		copied = append(copied, s)
		return nil
	}
	start(t, a)

	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Empty(t, copied)
	assert.Contains(t, screen(a), "Nothing to copy")

	typeText(t, a, "show users")
	press(t, a, enter)
	press(t, a, tea.KeyMsg{Type: tea.KeyCtrlY})

	assert.Equal(t, []string{"SELECT id, name FROM users;"}, copied)
	assert.Contains(t, screen(a), "Copied SQL to clipboard")
	assert.True(t, a.conv.InputEmpty())
}

func TestCopyCommandReportsClipboardFailure(t *testing.T) {
	a, _ := newTestApp(t)
	start(t, a)
	typeText(t, a, "show users")
	press(t, a, enter)

	command(t, a, "copy")

	assert.Contains(t, screen(a), "Copy failed: no clipboard in tests")
}
