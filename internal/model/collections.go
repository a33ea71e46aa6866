package model

import (
	"time"

	"github.com/google/uuid"
)

// Collection names one logical state collection.
type Collection string

const (
	CollectionEvents            Collection = "events"
	CollectionTodos             Collection = "todos"
	CollectionTodoLists         Collection = "todoLists"
	CollectionJournalEntries    Collection = "journalEntries"
	CollectionJournalCategories Collection = "journalCategories"
	CollectionCommunityPosts    Collection = "communityPosts"
	CollectionPersonas          Collection = "personas"
	CollectionChatSessions      Collection = "chatSessions"
	CollectionActivityLog       Collection = "activityLog"
	CollectionSettings          Collection = "settings"
	CollectionCalendarTags      Collection = "calendarTags"

	// CollectionUI is not persisted; it carries flag change notifications.
	CollectionUI Collection = "ui"
)

// Collections lists every persisted collection in boot order.
var Collections = []Collection{
	CollectionEvents,
	CollectionTodos,
	CollectionTodoLists,
	CollectionJournalEntries,
	CollectionJournalCategories,
	CollectionCommunityPosts,
	CollectionPersonas,
	CollectionChatSessions,
	CollectionActivityLog,
	CollectionSettings,
	CollectionCalendarTags,
}

// CacheKeyPrefix prefixes every local cache key.
const CacheKeyPrefix = "lifesync."

// CacheKey is the local cache key holding the collection snapshot.
func (c Collection) CacheKey() string { return CacheKeyPrefix + string(c) }

// Remote table names.
const (
	TableEvents            = "events"
	TableTodos             = "todos"
	TableTodoLists         = "todo_lists"
	TableJournalEntries    = "journal_entries"
	TableJournalCategories = "journal_categories"
	TableCommunityPosts    = "community_posts"
	TablePersonas          = "personas"
	TableUserData          = "user_data"
	TableProfiles          = "profiles"
)

// Tables lists every remote table.
var Tables = []string{
	TableEvents,
	TableTodos,
	TableTodoLists,
	TableJournalEntries,
	TableJournalCategories,
	TableCommunityPosts,
	TablePersonas,
	TableUserData,
	TableProfiles,
}

// Table returns the remote table backing the collection.
func (c Collection) Table() string {
	switch c {
	case CollectionEvents:
		return TableEvents
	case CollectionTodos:
		return TableTodos
	case CollectionTodoLists:
		return TableTodoLists
	case CollectionJournalEntries:
		return TableJournalEntries
	case CollectionJournalCategories:
		return TableJournalCategories
	case CollectionCommunityPosts:
		return TableCommunityPosts
	case CollectionPersonas:
		return TablePersonas
	case CollectionChatSessions, CollectionActivityLog, CollectionSettings, CollectionCalendarTags:
		return TableUserData
	default:
		return ""
	}
}

// InUserData reports whether the collection lives inside the user_data row.
func (c Collection) InUserData() bool { return c.Table() == TableUserData }

// TriggerKind names a semantic event the trigger scheduler reacts to.
type TriggerKind string

const (
	TriggerEventAdded      TriggerKind = "event_added"
	TriggerTodoAdded       TriggerKind = "todo_added"
	TriggerTodoCompleted   TriggerKind = "todo_completed"
	TriggerJournalAdded    TriggerKind = "journal_added"
	TriggerScheduledDigest TriggerKind = "scheduled_digest"
)

// NewID returns a fresh client-generated identifier.
func NewID() string { return uuid.NewString() }

// DefaultTodoListTitle is the title of the seed todo list.
const DefaultTodoListTitle = "할 일"

// DefaultTodoLists is the seed value for todo lists.
func DefaultTodoLists() []TodoList {
	return []TodoList{{ID: NewID(), Title: DefaultTodoListTitle, CreatedAt: time.Now().UTC()}}
}

// DefaultJournalCategories is the seed value for journal categories.
func DefaultJournalCategories() []JournalCategory {
	return []JournalCategory{
		{ID: NewID(), Name: "일상", Color: "#6366f1"},
		{ID: NewID(), Name: "업무", Color: "#f59e0b"},
		{ID: NewID(), Name: "아이디어", Color: "#10b981"},
	}
}

// DefaultSettings is the seed value for settings.
func DefaultSettings() Settings {
	return Settings{APIConnections: []APIConnection{}, AutoAIReactions: true}
}

// DefaultPersonaID identifies the persona used when the roster is empty.
const DefaultPersonaID = "default-assistant"

// DefaultPersona stands in for an empty persona pool.
func DefaultPersona() Persona {
	return Persona{
		ID:          DefaultPersonaID,
		Name:        "라이프싱크",
		Role:        "생활 기록 도우미",
		Personality: "차분하고 관찰력이 좋다",
		Tone:        "따뜻한 존댓말",
	}
}
