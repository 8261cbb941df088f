package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/DachengChen/querybot/api"
	"github.com/google/uuid"
)

const titleRunes = 30

// Bootstrap is everything a successful upload turns into: the session
// to create, the file to bind, and the opening lines of its log.
type Bootstrap struct {
	Request api.CreateSessionRequest
	File    FileData
	Opening []Message
}

// NewBootstrap derives a Bootstrap from an upload response.
func NewBootstrap(up api.UploadResponse) Bootstrap {
	fd := FileData{
		Filename:         up.Filename,
		OriginalFilename: up.OriginalFilename,
		RowCount:         RowCount(up.RowCount),
		Columns:          append([]string(nil), up.Columns...),
		Preview:          append([]api.Row(nil), up.Preview...),
	}
	welcome := AssistantText(welcomeText(fd))
	welcome.Ephemeral = true

	return Bootstrap{
		Request: api.CreateSessionRequest{
			Title:       fd.DisplayName(),
			SessionType: string(ModeEDA),
			Filename:    fd.Filename,
		},
		File:    fd,
		Opening: []Message{FileCard(fd), welcome},
	}
}

func welcomeText(fd FileData) string {
	return fmt.Sprintf("I've loaded **%s** successfully!\n\n"+
		"It has **%s rows** and **%d columns**.\n\n"+
		"You can ask me to analyze this data, create visualizations, or perform statistical tests.",
		fd.DisplayName(), fd.RowCount, len(fd.Columns))
}

// restoredFileData rebuilds the file binding of a reloaded eda session.
// Only the storage key survives a reload.
func restoredFileData(s Session) *FileData {
	if s.Filename == "" {
		return nil
	}
	return &FileData{
		Filename:         s.Filename,
		OriginalFilename: originalName(s.Filename),
		RowCount:         UnknownRowCount,
	}
}

// originalName strips the "<uuid>_" prefix the backend puts on stored
// uploads.
func originalName(stored string) string {
	prefix, rest, ok := strings.Cut(stored, "_")
	if !ok || rest == "" {
		return stored
	}
	if _, err := uuid.Parse(prefix); err != nil {
		return stored
	}
	return rest
}

// chatTitle names a session after the first message sent in it.
func chatTitle(input string) string {
	s := strings.Join(strings.Fields(input), " ")
	r := []rune(s)
	if len(r) <= titleRunes {
		return s
	}
	return string(r[:titleRunes]) + "..."
}

func newChatTitle(now time.Time) string {
	return "New Chat " + now.Format("15:04:05")
}
