// app.go is the top-level Bubble Tea model that orchestrates all views.
//
// Flow:
//  1. On start the session list is fetched
//  2. Views emit intents (SendMsg, SelectSessionMsg, ...); the App calls
//     the engine and turns every returned effect into a tea.Cmd
//  3. Effects report back as EngineResultMsg, which the App applies
//
// Key design decisions:
//   - Sidebar with History and Schema tabs, toggled with Ctrl+B
//   - Command mode (`:`) for actions: upload, new, clear, export, ...
//   - F2 flips between SQL Chat and Data Analysis
//   - Help overlay (`?`) toggled on/off
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DachengChen/querybot/api"
	"github.com/DachengChen/querybot/applog"
	"github.com/DachengChen/querybot/config"
	"github.com/DachengChen/querybot/conversation"
	"github.com/DachengChen/querybot/export"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const appVersion = "0.1.0"

// Sidebar tab indices.
const (
	TabSessions = iota
	TabSchema
)

// InputMode determines what keystrokes do.
type InputMode int

const (
	ModeNormal InputMode = iota
	ModeCommand
	ModeConfirm // waiting for y/n before clearing history
)

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

var errNoSchemaSource = errors.New("no schema source configured")

// PlotStore links and downloads the plots the backend serves.
// *api.Client implements it.
type PlotStore interface {
	ResolveURL(ref string) string
	export.Downloader
}

// Options wires the App to its collaborators.
type Options struct {
	Engine  *conversation.Engine
	Schema  SchemaLoader
	Backend string // backend URL shown in the header
	Plots   PlotStore

	// Clipboard receives copied SQL; the system clipboard when nil.
	Clipboard func(text string) error

	// Config and ConfigPath persist UI changes (theme, sidebar). An
	// empty ConfigPath keeps them in memory only.
	Config     *config.AppConfig
	ConfigPath string
}

// App is the root Bubble Tea model.
type App struct {
	engine     *conversation.Engine
	ctx        context.Context
	cancel     context.CancelFunc
	backend    string
	appConfig  *config.AppConfig
	configPath string
	plots      PlotStore
	copyText   func(text string) error

	conv       *ConversationView
	sidebar    []View
	sidebarTab int
	focus      focusArea
	spinning   bool

	// UI state
	width     int
	height    int
	mode      InputMode
	cmdInput  string
	showHelp  bool
	statusMsg string
}

// NewApp creates the application around an engine.
func NewApp(opts Options) *App {
	ApplyTheme(config.UI().Theme)
	ctx, cancel := context.WithCancel(context.Background())
	copyText := opts.Clipboard
	if copyText == nil {
		copyText = clipboard.WriteAll
	}
	a := &App{
		engine:     opts.Engine,
		ctx:        ctx,
		cancel:     cancel,
		backend:    opts.Backend,
		appConfig:  opts.Config,
		configPath: opts.ConfigPath,
		conv:       NewConversationView(opts.Engine),
		sidebar: []View{
			NewSessionsView(opts.Engine),
			NewSchemaView(opts.Schema),
		},
		sidebarTab: TabSessions,
		plots:      opts.Plots,
		copyText:   copyText,
	}
	if opts.Plots != nil {
		a.conv.renderer.SetResolver(opts.Plots.ResolveURL)
	}
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	applog.Info("tui started (backend %s)", a.backend)
	return tea.Batch(a.conv.Init(), a.dispatch(a.engine.LoadSessions()))
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case EngineResultMsg:
		return a, a.dispatch(a.engine.Apply(msg.Result))

	case SendMsg:
		u, err := a.engine.Send(msg.Text)
		if err != nil {
			a.fail(err)
			return a, nil
		}
		return a, a.dispatch(u)

	case SelectSessionMsg:
		u, err := a.engine.SelectSession(msg.ID)
		if err != nil {
			a.fail(err)
			return a, nil
		}
		a.focus = focusInput
		return a, a.dispatch(u)

	case NewChatMsg:
		return a, a.newChat()

	case RefreshSessionsMsg:
		a.statusMsg = StyleDimmed.Render("refreshing sessions...")
		return a, a.dispatch(a.engine.LoadSessions())

	case SchemaLoadedMsg:
		if msg.Err != nil {
			applog.Warn("schema: %v", msg.Err)
		}
		_, cmd := a.sidebar[TabSchema].Update(msg)
		return a, cmd

	case StatusMsg:
		a.statusMsg = string(msg)
		return a, nil

	case spinner.TickMsg:
		if !a.engine.Busy() {
			a.spinning = false
			return a, nil
		}
		_, cmd := a.conv.Update(msg)
		return a, cmd
	}

	// Cursor blink and the like belong to the input line.
	_, cmd := a.conv.Update(msg)
	return a, cmd
}

// dispatch folds an engine Update into the UI and schedules its effect.
func (a *App) dispatch(u conversation.Update) tea.Cmd {
	if u.InputConsumed {
		a.conv.ResetInput()
	}
	if u.Created != nil {
		a.statusMsg = StyleSuccess.Render("Created session: " + u.Created.Title)
	}
	if u.Notice != "" {
		a.statusMsg = StyleWarning.Render(u.Notice)
	}
	if u.Stale {
		applog.Debug("tui: stale result discarded")
	}
	a.conv.Refresh()

	var cmds []tea.Cmd
	if u.Next != nil {
		cmds = append(cmds, a.run(u.Next))
	}
	if a.engine.Busy() && !a.spinning {
		a.spinning = true
		cmds = append(cmds, a.conv.Tick)
	}
	return tea.Batch(cmds...)
}

func (a *App) run(next conversation.Effect) tea.Cmd {
	ctx := a.ctx
	return func() tea.Msg {
		return EngineResultMsg{Result: next(ctx)}
	}
}

func (a *App) fail(err error) {
	a.statusMsg = StyleError.Render(a.describe(err))
}

// describe turns an action error into a status line.
func (a *App) describe(err error) string {
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		return "Type a message first"
	case errors.Is(err, conversation.ErrBusy):
		return "Still waiting for the previous request"
	case errors.Is(err, conversation.ErrNoFile):
		return "No file loaded: use :upload <path> first"
	case errors.Is(err, conversation.ErrNoSession):
		return "No session selected"
	case errors.Is(err, conversation.ErrModeMismatch):
		return "Not available in " + a.engine.Mode().Label() + " mode (F2 switches mode)"
	case errors.Is(err, conversation.ErrUnknownSession):
		return "That session no longer exists; try :refresh"
	default:
		return api.Detail(err)
	}
}

func (a *App) quit() tea.Cmd {
	a.cancel()
	applog.Info("tui stopped")
	return tea.Quit
}

// handleKey processes keyboard input.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, a.quit()
	}
	switch a.mode {
	case ModeCommand:
		return a.handleCommandMode(msg)
	case ModeConfirm:
		return a.handleConfirmMode(msg)
	default:
		return a.handleNormalMode(msg)
	}
}

func (a *App) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.statusMsg = ""
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch msg.String() {
	case "f2":
		return a, a.toggleMode()
	case "ctrl+b":
		a.toggleSidebar()
		return a, nil
	case "ctrl+t":
		a.toggleTheme()
		return a, nil
	case "ctrl+n":
		return a, a.newChat()
	case "ctrl+y":
		a.copyLast()
		return a, nil
	case "tab", "shift+tab":
		if !config.UI().SidebarOpen {
			return a, nil
		}
		if a.focus == focusInput {
			a.focus = focusSidebar
			return a, a.sidebar[a.sidebarTab].Init()
		}
		a.focus = focusInput
		return a, nil
	case "esc":
		a.focus = focusInput
		return a, nil
	}

	// When the input line has focus, only an empty line gives ':' and
	// '?' their global meaning. Everything else is typed.
	if a.focus == focusInput {
		if a.conv.InputEmpty() {
			switch msg.String() {
			case ":":
				a.mode = ModeCommand
				a.cmdInput = ""
				return a, nil
			case "?":
				a.showHelp = true
				return a, nil
			}
		}
		_, cmd := a.conv.Update(msg)
		return a, cmd
	}

	switch msg.String() {
	case ":":
		a.mode = ModeCommand
		a.cmdInput = ""
		return a, nil
	case "?":
		a.showHelp = true
		return a, nil
	case "left", "h", "[":
		return a, a.switchSidebarTab(a.sidebarTab - 1)
	case "right", "l", "]":
		return a, a.switchSidebarTab(a.sidebarTab + 1)
	case "D":
		a.askClear()
		return a, nil
	}
	_, cmd := a.sidebar[a.sidebarTab].Update(msg)
	return a, cmd
}

func (a *App) handleCommandMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		input := a.cmdInput
		a.mode = ModeNormal
		a.cmdInput = ""
		return a, a.executeCommand(input)

	case tea.KeyEsc:
		a.mode = ModeNormal
		a.cmdInput = ""
		return a, nil

	case tea.KeyBackspace:
		if r := []rune(a.cmdInput); len(r) > 0 {
			a.cmdInput = string(r[:len(r)-1])
		}
		return a, nil

	case tea.KeySpace:
		a.cmdInput += " "
		return a, nil

	case tea.KeyRunes:
		a.cmdInput += string(msg.Runes)
		return a, nil
	}
	return a, nil
}

func (a *App) handleConfirmMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.mode = ModeNormal
	confirmed := msg.String() == "y" || msg.String() == "Y"
	u, err := a.engine.ClearAll(confirmed)
	if err != nil {
		if errors.Is(err, conversation.ErrNotConfirmed) {
			a.statusMsg = StyleDimmed.Render("Clear cancelled")
			return a, nil
		}
		a.fail(err)
		return a, nil
	}
	a.statusMsg = StyleDimmed.Render("clearing history...")
	return a, a.dispatch(u)
}

func (a *App) executeCommand(input string) tea.Cmd {
	input = strings.TrimSpace(input)
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(input, name))

	switch name {
	case "q", "quit":
		return a.quit()
	case "new":
		return a.newChat()
	case "upload":
		if rest == "" {
			a.statusMsg = StyleError.Render("usage: upload <path to .csv>")
			return nil
		}
		return a.upload(rest)
	case "close":
		if err := a.engine.CloseFile(); err != nil {
			a.fail(err)
			return nil
		}
		a.statusMsg = StyleDimmed.Render("File closed")
		a.conv.Refresh()
		return nil
	case "clear":
		a.askClear()
		return nil
	case "mode":
		if len(args) == 0 {
			return a.toggleMode()
		}
		m, err := conversation.ParseMode(args[0])
		if err != nil {
			a.fail(err)
			return nil
		}
		if err := a.engine.SetMode(m); err != nil {
			a.fail(err)
			return nil
		}
		a.statusMsg = StyleDimmed.Render("Switched to " + m.Label())
		return a.dispatch(conversation.Update{})
	case "refresh":
		return a.dispatch(a.engine.LoadSessions())
	case "export":
		return a.export(args)
	case "copy":
		a.copyLast()
		return nil
	case "plots":
		return a.savePlots(args)
	case "theme":
		a.toggleTheme()
		return nil
	case "sidebar":
		a.toggleSidebar()
		return nil
	case "schema":
		return a.openSidebar(TabSchema)
	case "history", "sessions":
		return a.openSidebar(TabSessions)
	case "help":
		a.showHelp = true
		return nil
	default:
		a.statusMsg = StyleError.Render("unknown command: " + name)
		return nil
	}
}

func (a *App) newChat() tea.Cmd {
	u, err := a.engine.NewChat()
	if err != nil {
		a.fail(err)
		return nil
	}
	a.focus = focusInput
	return a.dispatch(u)
}

func (a *App) upload(path string) tea.Cmd {
	path = expandHome(path)
	f, err := os.Open(path)
	if err != nil {
		a.statusMsg = StyleError.Render("Upload failed: " + err.Error())
		return nil
	}
	name := filepath.Base(path)
	u, err := a.engine.Upload(name, f)
	if err != nil {
		a.fail(err)
		return nil
	}
	a.statusMsg = StyleDimmed.Render("uploading " + name + "...")
	return a.dispatch(u)
}

func (a *App) askClear() {
	a.mode = ModeConfirm
}

func (a *App) toggleMode() tea.Cmd {
	m := a.engine.ToggleMode()
	a.statusMsg = StyleDimmed.Render("Switched to " + m.Label())
	return a.dispatch(conversation.Update{})
}

func (a *App) toggleSidebar() {
	if !config.ToggleSidebar() {
		a.focus = focusInput
	}
	a.layout()
	a.saveUI()
}

func (a *App) toggleTheme() {
	theme := config.ToggleTheme()
	ApplyTheme(theme)
	a.conv.SetTheme(theme)
	a.saveUI()
	a.statusMsg = StyleDimmed.Render("Theme: " + theme)
}

func (a *App) openSidebar(tab int) tea.Cmd {
	if !config.UI().SidebarOpen {
		a.toggleSidebar()
	}
	a.focus = focusSidebar
	return a.switchSidebarTab(tab)
}

func (a *App) switchSidebarTab(idx int) tea.Cmd {
	n := len(a.sidebar)
	a.sidebarTab = ((idx % n) + n) % n
	return a.sidebar[a.sidebarTab].Init()
}

// saveUI writes the UI settings back to the config file, if there is one.
func (a *App) saveUI() {
	if a.appConfig == nil || a.configPath == "" {
		return
	}
	a.appConfig.UI = config.UI()
	if err := config.SaveAppConfig(a.configPath, a.appConfig); err != nil {
		applog.Warn("save ui settings: %v", err)
	}
}

func (a *App) export(args []string) tea.Cmd {
	sess, ok := a.engine.Current()
	if !ok {
		a.fail(conversation.ErrNoSession)
		return nil
	}
	format := "md"
	if len(args) > 0 {
		format = args[0]
	}
	ex, err := export.NewExporter(format)
	if err != nil {
		a.fail(err)
		return nil
	}
	doc := export.NewDocument(sess, a.engine.FileData(), a.engine.Messages(), time.Now())
	path := export.Filename(doc, ex.Extension())
	if len(args) > 1 {
		path = expandHome(args[1])
	}
	return func() tea.Msg {
		if err := writeExport(ex, doc, path); err != nil {
			return StatusMsg(StyleError.Render("Export failed: " + err.Error()))
		}
		return StatusMsg(StyleSuccess.Render("Exported to " + path))
	}
}

// copyLast puts the most recent SQL query, or analysis code, on the
// clipboard.
func (a *App) copyLast() {
	msgs := a.engine.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		var text, what string
		switch m := msgs[i]; {
		case m.SQL != nil && m.SQL.Query != "":
			text, what = m.SQL.Query, "SQL"
		case m.Analysis != nil && m.Analysis.Code != "":
			text, what = m.Analysis.Code, "code"
		default:
			continue
		}
		if err := a.copyText(text); err != nil {
			applog.Warn("clipboard: %v", err)
			a.statusMsg = StyleError.Render("Copy failed: " + err.Error())
			return
		}
		a.statusMsg = StyleSuccess.Render("Copied " + what + " to clipboard")
		return
	}
	a.statusMsg = StyleDimmed.Render("Nothing to copy")
}

// savePlots downloads every plot of the conversation into a directory.
func (a *App) savePlots(args []string) tea.Cmd {
	refs := export.PlotRefs(a.engine.Messages())
	if len(refs) == 0 {
		a.statusMsg = StyleDimmed.Render("No plots in this conversation")
		return nil
	}
	if a.plots == nil {
		a.statusMsg = StyleError.Render("Plot download is not available")
		return nil
	}
	dir := "."
	if len(args) > 0 {
		dir = expandHome(args[0])
	}
	a.statusMsg = StyleDimmed.Render(fmt.Sprintf("downloading %d plot(s)...", len(refs)))
	ctx, plots := a.ctx, a.plots
	return func() tea.Msg {
		paths, err := export.SavePlots(ctx, plots, refs, dir)
		if err != nil {
			applog.Warn("save plots: %v", err)
			return StatusMsg(StyleError.Render(fmt.Sprintf("Saved %d of %d plot(s): %v", len(paths), len(refs), err)))
		}
		return StatusMsg(StyleSuccess.Render(fmt.Sprintf("Saved %d plot(s) to %s", len(paths), dir)))
	}
}

func writeExport(ex export.Exporter, doc *export.Document, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ex.Export(doc, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func (a *App) sidebarWidth() int {
	w := (a.width - 2) / 4
	if w < 24 {
		w = 24
	}
	return w
}

// layout hands every view its share of the frame.
func (a *App) layout() {
	if a.width == 0 {
		return
	}
	// Header(1) + Status(1) + Borders(2) = 4 lines chrome
	innerW := a.width - 2
	innerH := a.height - 4
	convW := innerW
	if config.UI().SidebarOpen {
		sw := a.sidebarWidth()
		convW = innerW - sw - 1
		for _, v := range a.sidebar {
			v.SetSize(sw, innerH-1) // tab row
		}
	}
	a.conv.SetSize(convW, innerH)
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "loading..."
	}

	header := a.renderHeader()

	frameHeight := a.height - 4
	if frameHeight < 0 {
		frameHeight = 0
	}

	var inner string
	if a.showHelp {
		inner = a.renderHelp()
	} else {
		inner = a.renderBody(frameHeight)
	}

	frame := StyleBorder.
		Width(a.width - 2).
		Height(frameHeight).
		Render(inner)

	statusBar := a.renderStatusBar()

	return header + "\n" + frame + "\n" + statusBar
}

func (a *App) renderBody(height int) string {
	conv := a.conv.View()
	if !config.UI().SidebarOpen {
		return conv
	}

	sw := a.sidebarWidth()
	var tabs []string
	for i, v := range a.sidebar {
		if i == a.sidebarTab {
			tabs = append(tabs, StyleTabActive.Render(v.Name()))
		} else {
			tabs = append(tabs, StyleTabInactive.Render(v.Name()))
		}
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, tabs...),
		a.sidebar[a.sidebarTab].View())

	borderColor := ColorDim
	if a.focus == focusSidebar {
		borderColor = ColorAccent
	}
	sidebar := lipgloss.NewStyle().
		Width(sw).
		Height(height).
		MaxHeight(height).
		Border(lipgloss.NormalBorder(), false, true, false, false).
		BorderForeground(borderColor).
		Render(content)

	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, conv)
}

// renderHeader draws a simple text bar: logo + version + session info.
func (a *App) renderHeader() string {
	logo := StyleBold.Render("🗄 querybot")
	version := StyleDimmed.Render(" v" + appVersion)

	mode := "  " + StyleBadge.Render(a.engine.Mode().Label())
	var sessInfo string
	if s, ok := a.engine.Current(); ok {
		sessInfo = StyleSuccess.Render(fmt.Sprintf("  ⚡ %s", s.Title))
	}

	content := logo + version + mode + sessInfo

	right := StyleDimmed.Render(a.backend)
	gap := a.width - lipgloss.Width(content) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	filler := strings.Repeat(" ", gap)

	return lipgloss.NewStyle().
		Width(a.width).
		MaxHeight(1).
		Render(content + filler + right)
}

func (a *App) renderStatusBar() string {
	var content string

	switch a.mode {
	case ModeCommand:
		content = StylePrompt.Render(":") + a.cmdInput + "█"
	case ModeConfirm:
		content = StyleWarning.Render("Delete ALL sessions and their messages? (y/n)")
	default:
		if a.statusMsg != "" {
			content = a.statusMsg
		} else {
			var parts []string
			for _, h := range a.getHelpItems() {
				parts = append(parts,
					StyleHelpKey.Render(h.Key)+" "+StyleHelpDesc.Render(h.Desc))
			}
			content = strings.Join(parts, "  │  ")
		}
	}

	return StyleStatusBar.Width(a.width).MaxHeight(1).Render(content)
}

func (a *App) getHelpItems() []KeyBinding {
	global := []KeyBinding{
		{Key: "?", Desc: "help"},
		{Key: "Ctrl+C", Desc: "quit"},
	}
	if a.focus == focusSidebar {
		return append(a.sidebar[a.sidebarTab].ShortHelp(), global...)
	}
	return append(a.conv.ShortHelp(), global...)
}

func (a *App) renderHelp() string {
	help := []string{
		StyleTitle.Render("⌨ querybot Keyboard Shortcuts"),
		"",
		StyleHelpKey.Render("Enter") + "            Send the message",
		StyleHelpKey.Render("F2") + "               Toggle SQL Chat / Data Analysis",
		StyleHelpKey.Render("Tab") + "              Move focus between input and sidebar",
		StyleHelpKey.Render("Ctrl+B") + "           Show or hide the sidebar",
		StyleHelpKey.Render("Ctrl+N") + "           New chat",
		StyleHelpKey.Render("Ctrl+T") + "           Toggle dark / light theme",
		StyleHelpKey.Render("Ctrl+Y") + "           Copy the last SQL query",
		StyleHelpKey.Render("PgUp / PgDn") + "      Scroll the conversation",
		StyleHelpKey.Render("Ctrl+W") + "           Toggle line wrap",
		StyleHelpKey.Render("?") + "                Toggle this help",
		StyleHelpKey.Render("Ctrl+C") + "           Quit",
		"",
		StyleTitle.Render("Commands"),
		"",
		StyleHelpKey.Render(":upload <path>") + "   Analyze a CSV file (Data Analysis)",
		StyleHelpKey.Render(":close") + "           Close the loaded file",
		StyleHelpKey.Render(":new") + "             Start a new chat (SQL Chat)",
		StyleHelpKey.Render(":mode [chat|eda]") + " Switch mode",
		StyleHelpKey.Render(":refresh") + "         Reload the session list",
		StyleHelpKey.Render(":export [fmt] [path]") + " Save this session (md, json, yaml)",
		StyleHelpKey.Render(":plots [dir]") + "     Download this session's plots",
		StyleHelpKey.Render(":copy") + "            Copy the last SQL query",
		StyleHelpKey.Render(":schema") + "          Browse the database schema",
		StyleHelpKey.Render(":clear") + "           Delete all history",
		StyleHelpKey.Render(":theme") + "           Toggle theme",
		StyleHelpKey.Render(":q") + "               Quit",
		"",
		StyleDimmed.Render("Press any key to close"),
	}
	return strings.Join(help, "\n")
}
