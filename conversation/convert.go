package conversation

import "github.com/DachengChen/querybot/api"

// historyFromAPI converts stored messages into log entries legal for
// mode. Entries with an unknown role are dropped.
func historyFromAPI(mode Mode, msgs []api.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		role := Role(m.Role)
		if role != RoleUser && role != RoleAssistant {
			continue
		}
		out = append(out, messageFromAPI(mode, role, m))
	}
	return out
}

func messageFromAPI(mode Mode, role Role, m api.Message) Message {
	if m.Type == string(KindFile) && mode == ModeEDA {
		card := FileCard(FileData{OriginalFilename: m.Content, RowCount: UnknownRowCount})
		card.Role = role
		card.Ephemeral = false
		return card
	}
	if role == RoleUser {
		return UserText(m.Content)
	}
	switch mode {
	case ModeChat:
		if m.SQLQuery != "" || len(m.Results) > 0 {
			return AssistantSQL(m.Content, m.SQLQuery, m.Results)
		}
	case ModeEDA:
		if m.Code != "" || m.Stdout != "" || m.Error != "" || len(m.Plots) > 0 {
			return AssistantAnalysis(m.Content, Analysis{
				Code:   m.Code,
				Stdout: m.Stdout,
				Error:  m.Error,
				Plots:  m.Plots,
			})
		}
	}
	return AssistantText(m.Content)
}

func chatReply(resp *api.ChatResponse) Message {
	if resp.SQLQuery == "" && len(resp.Results) == 0 {
		return AssistantText(resp.Answer)
	}
	return AssistantSQL(resp.Answer, resp.SQLQuery, resp.Results)
}

func edaReply(resp *api.EDAResponse) Message {
	return AssistantAnalysis(resp.Answer, Analysis{
		Code:   resp.Code,
		Stdout: resp.Stdout,
		Error:  resp.Error,
		Plots:  resp.Plots,
	})
}

// historyEntries is the context sent with an EDA question. File cards
// are presentation-only and never sent.
func historyEntries(msgs []Message) []api.HistoryEntry {
	out := make([]api.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		if m.Kind == KindFile {
			continue
		}
		out = append(out, api.HistoryEntry{Role: string(m.Role), Content: m.Content})
	}
	return out
}
