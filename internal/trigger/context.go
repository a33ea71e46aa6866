package trigger

import (
	"sort"
	"strings"
	"time"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/state"
)

const (
	maxRecentJournals   = 3
	maxRecentUtterances = 8
	journalExcerptRunes = 160
)

// Context is the trigger data merged with a live view of the user's state.
type Context struct {
	Data             map[string]any
	PendingTodos     int
	CompletedTodos   int
	TotalEvents      int
	RecentJournals   []string
	RecentUtterances []string
}

// Enrich merges data with counts and recent excerpts taken from snap.
func Enrich(snap state.Snapshot, data map[string]any) Context {
	c := Context{Data: map[string]any{}, TotalEvents: len(snap.Events)}
	for k, v := range data {
		c.Data[k] = v
	}
	for _, t := range snap.Todos {
		if t.Completed {
			c.CompletedTodos++
		} else {
			c.PendingTodos++
		}
	}

	entries := append([]model.JournalEntry(nil), snap.JournalEntries...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	for _, e := range entries {
		if len(c.RecentJournals) == maxRecentJournals {
			break
		}
		text := strings.TrimSpace(e.Title + " " + clip(e.Content, journalExcerptRunes))
		if text != "" {
			c.RecentJournals = append(c.RecentJournals, text)
		}
	}

	type utterance struct {
		at   time.Time
		text string
	}
	var us []utterance
	for _, s := range snap.ChatSessions {
		for _, m := range s.Messages {
			if m.Role == model.RoleUser && strings.TrimSpace(m.Content) != "" {
				us = append(us, utterance{m.Timestamp, strings.TrimSpace(m.Content)})
			}
		}
	}
	sort.SliceStable(us, func(i, j int) bool { return us[i].at.After(us[j].at) })
	for i := 0; i < len(us) && i < maxRecentUtterances; i++ {
		c.RecentUtterances = append(c.RecentUtterances, us[i].text)
	}
	return c
}

func clip(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "…"
}
