package export

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/state"
)

func TestBuildAndWrite(t *testing.T) {
	st := state.New()
	st.SetTodos([]model.Todo{{ID: "t1", Text: "Buy milk"}})
	st.SetPersonas([]model.Persona{{ID: "p1", Name: "하나"}})

	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.FixedZone("KST", 9*3600))
	doc := Build(st.Snapshot(), now)
	assert.Equal(t, "2026-10-15T00:30:00Z", doc.ExportedAt)
	assert.Equal(t, Version, doc.Version)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, doc))

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	for _, key := range []string{
		"exportedAt", "version", "events", "todos", "todoLists", "journalEntries", "journalCategories",
		"communityPosts", "personas", "chatSessions", "activityLog", "calendarTags", "settings",
	} {
		assert.Contains(t, raw, key)
	}
	assert.JSONEq(t, `[]`, string(raw["events"]), "empty collections encode as arrays")

	var back Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, "Buy milk", back.Todos[0].Text)
	assert.Len(t, back.TodoLists, 1)
	assert.Len(t, back.JournalCategories, 3)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "lifesync-backup-2026-10-15.json", FileName(time.Date(2026, 10, 15, 23, 0, 0, 0, time.UTC)))
}
