package conversation

import (
	"testing"
	"time"

	"github.com/DachengChen/querybot/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBootstrap(t *testing.T) {
	up := api.UploadResponse{
		Filename:         "k_sales.csv",
		OriginalFilename: "sales.csv",
		RowCount:         120,
		Columns:          []string{"a", "b", "c", "d", "e"},
		Preview:          []api.Row{api.NewRow("a", "1")},
	}

	b := NewBootstrap(up)

	assert.Equal(t, api.CreateSessionRequest{Title: "sales.csv", SessionType: "eda", Filename: "k_sales.csv"}, b.Request)
	assert.Equal(t, RowCount(120), b.File.RowCount)
	assert.Len(t, b.File.Preview, 1)

	require.Len(t, b.Opening, 2)
	card, welcome := b.Opening[0], b.Opening[1]
	assert.Equal(t, KindFile, card.Kind)
	assert.Equal(t, "sales.csv", card.Content)
	assert.True(t, card.Ephemeral)

	assert.Equal(t, RoleAssistant, welcome.Role)
	assert.Equal(t, KindText, welcome.Kind)
	assert.True(t, welcome.Ephemeral)
	assert.Equal(t, "I've loaded **sales.csv** successfully!\n\n"+
		"It has **120 rows** and **5 columns**.\n\n"+
		"You can ask me to analyze this data, create visualizations, or perform statistical tests.",
		welcome.Content)

	for _, m := range b.Opening {
		assert.NoError(t, check(ModeEDA, m))
	}
}

func TestBootstrapWithoutOriginalName(t *testing.T) {
	b := NewBootstrap(api.UploadResponse{Filename: "stored.csv"})
	assert.Equal(t, "stored.csv", b.Request.Title)
	assert.Contains(t, b.Opening[1].Content, "**0 columns**")
}

func TestOriginalName(t *testing.T) {
	assert.Equal(t, "sales_2024.csv", originalName("0b7d3c1e-2f4a-4a8b-9c6d-1e2f3a4b5c6d_sales_2024.csv"))
	assert.Equal(t, "my_file.csv", originalName("my_file.csv"))
	assert.Equal(t, "plain.csv", originalName("plain.csv"))
}

func TestRestoredFileData(t *testing.T) {
	assert.Nil(t, restoredFileData(Session{ID: "1", Mode: ModeEDA}))

	fd := restoredFileData(Session{ID: "1", Mode: ModeEDA, Filename: "x.csv"})
	require.NotNil(t, fd)
	assert.Equal(t, UnknownRowCount, fd.RowCount)
	assert.Empty(t, fd.Columns)
	assert.Equal(t, "x.csv", fd.DisplayName())
}

func TestChatTitle(t *testing.T) {
	assert.Equal(t, "show all users", chatTitle("  show all users "))
	assert.Equal(t, "multi line", chatTitle("multi\n  line"))
	assert.Equal(t, "ääääääääääääääääääääääääääääää...", chatTitle("äääääääääääääääääääääääääääääääää"))
	exact := "123456789012345678901234567890"
	assert.Equal(t, exact, chatTitle(exact))
}

func TestNewChatTitle(t *testing.T) {
	assert.Equal(t, "New Chat 09:03:07", newChatTitle(time.Date(2024, 1, 2, 9, 3, 7, 0, time.UTC)))
}

func TestRowCountString(t *testing.T) {
	assert.Equal(t, "Unknown", UnknownRowCount.String())
	assert.Equal(t, "0", RowCount(0).String())
	assert.Equal(t, "42", RowCount(42).String())
}
