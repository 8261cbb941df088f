package tui

import (
	"context"
	"strings"

	"github.com/DachengChen/querybot/api"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
)

// SchemaLoader fetches the table listing shown in the schema tab.
type SchemaLoader func(ctx context.Context) (*api.Schema, error)

// SchemaView is the sidebar tab showing tables and their columns. It
// fetches once, the first time it is shown.
type SchemaView struct {
	load     SchemaLoader
	schema   *api.Schema
	err      error
	loading  bool
	expanded map[string]bool
	cursor   int
	width    int
	height   int
}

func NewSchemaView(load SchemaLoader) *SchemaView {
	return &SchemaView{load: load, expanded: make(map[string]bool)}
}

func (v *SchemaView) Name() string         { return "Schema" }
func (v *SchemaView) WantsTextInput() bool { return false }

func (v *SchemaView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

func (v *SchemaView) ShortHelp() []KeyBinding {
	return []KeyBinding{
		{Key: "↑↓", Desc: "move"},
		{Key: "Enter", Desc: "expand"},
		{Key: "r", Desc: "reload"},
	}
}

// Init starts the fetch unless the schema is already loaded or loading.
func (v *SchemaView) Init() tea.Cmd {
	if v.schema != nil || v.loading {
		return nil
	}
	return v.fetch()
}

func (v *SchemaView) fetch() tea.Cmd {
	if v.load == nil {
		v.err = errNoSchemaSource
		return nil
	}
	v.loading = true
	v.err = nil
	load := v.load
	return func() tea.Msg {
		s, err := load(context.Background())
		return SchemaLoadedMsg{Schema: s, Err: err}
	}
}

func (v *SchemaView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case SchemaLoadedMsg:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.schema = msg.Schema
		}
		return v, nil

	case tea.KeyMsg:
		n := v.tableCount()
		switch msg.String() {
		case "up", "k":
			if v.cursor > 0 {
				v.cursor--
			}
		case "down", "j":
			if v.cursor < n-1 {
				v.cursor++
			}
		case "enter", " ":
			if v.cursor < n {
				name := v.schema.Tables[v.cursor].Name
				v.expanded[name] = !v.expanded[name]
			}
		case "r":
			if !v.loading {
				v.schema = nil
				v.cursor = 0
				return v, v.fetch()
			}
		}
	}
	return v, nil
}

func (v *SchemaView) tableCount() int {
	if v.schema == nil {
		return 0
	}
	return len(v.schema.Tables)
}

func (v *SchemaView) View() string {
	switch {
	case v.loading:
		return StyleDimmed.Render(" Loading schema...")
	case v.err != nil:
		return StyleError.Render(ansi.Wrap(" Failed to load schema: "+api.Detail(v.err), v.width, ""))
	case v.tableCount() == 0:
		return StyleDimmed.Render(" No tables found")
	}

	var lines []string
	cursorLine := 0
	for i, t := range v.schema.Tables {
		arrow := "▸ "
		if v.expanded[t.Name] {
			arrow = "▾ "
		}
		line := ansi.Truncate(arrow+"🗂 "+t.Name, v.width, "…")
		if i == v.cursor {
			cursorLine = len(lines)
			line = StyleListItemActive.Render(line)
		} else {
			line = StyleNormal.Render(line)
		}
		lines = append(lines, line)
		if !v.expanded[t.Name] {
			continue
		}
		for _, c := range t.Columns {
			col := ansi.Truncate("    "+c.Name+" "+StyleDimmed.Render(c.Type), v.width, "…")
			lines = append(lines, col)
		}
	}

	start := 0
	if v.height > 0 && cursorLine >= v.height {
		start = cursorLine - v.height + 1
	}
	end := len(lines)
	if v.height > 0 && end > start+v.height {
		end = start + v.height
	}
	return strings.Join(lines[start:end], "\n")
}
