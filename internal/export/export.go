// Package export serialises every collection into one backup document.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/state"
)

// Version is the backup document format version.
const Version = 1

// Document is the backup file layout. Field names match the collection
// cache keys.
type Document struct {
	ExportedAt        string                  `json:"exportedAt"`
	Version           int                     `json:"version"`
	Events            []model.Event           `json:"events"`
	Todos             []model.Todo            `json:"todos"`
	TodoLists         []model.TodoList        `json:"todoLists"`
	JournalEntries    []model.JournalEntry    `json:"journalEntries"`
	JournalCategories []model.JournalCategory `json:"journalCategories"`
	CommunityPosts    []model.CommunityPost   `json:"communityPosts"`
	Personas          []model.Persona         `json:"personas"`
	ChatSessions      []model.ChatSession     `json:"chatSessions"`
	ActivityLog       []model.ActivityItem    `json:"activityLog"`
	CalendarTags      []model.CalendarTag     `json:"calendarTags"`
	Settings          model.Settings          `json:"settings"`
}

// Build assembles the backup document for snap. API keys are kept so the
// backup restores working connections.
func Build(snap state.Snapshot, now time.Time) Document {
	return Document{
		ExportedAt:        now.UTC().Format(time.RFC3339),
		Version:           Version,
		Events:            orEmpty(snap.Events),
		Todos:             orEmpty(snap.Todos),
		TodoLists:         orEmpty(snap.TodoLists),
		JournalEntries:    orEmpty(snap.JournalEntries),
		JournalCategories: orEmpty(snap.JournalCategories),
		CommunityPosts:    orEmpty(snap.CommunityPosts),
		Personas:          orEmpty(snap.Personas),
		ChatSessions:      orEmpty(snap.ChatSessions),
		ActivityLog:       orEmpty(snap.ActivityLog),
		CalendarTags:      orEmpty(snap.CalendarTags),
		Settings:          snap.Settings,
	}
}

// FileName is the suggested download name, e.g. lifesync-backup-2026-10-15.json.
func FileName(now time.Time) string {
	return fmt.Sprintf("lifesync-backup-%s.json", now.Format("2006-01-02"))
}

// Write encodes doc as indented JSON.
func Write(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}

func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
