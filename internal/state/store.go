// Package state holds the single in-memory copy of every collection and
// notifies observers after each change.
//
// Getters return copies of the top-level slice. Nested slices (messages,
// comments) are shared and must be treated as immutable: replace the owning
// record instead of editing them in place.
package state

import (
	"slices"
	"sync"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
)

// Observer is called after the named collection changed. It runs on the
// goroutine that made the change, after the store lock is released.
type Observer func(c model.Collection)

// SyncStatus is the user-visible sync indicator.
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncSyncing SyncStatus = "syncing"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

// Store is the process-wide state container. The zero value is not usable;
// call New.
type Store struct {
	mu sync.RWMutex

	events            []model.Event
	todos             []model.Todo
	todoLists         []model.TodoList
	journalEntries    []model.JournalEntry
	journalCategories []model.JournalCategory
	communityPosts    []model.CommunityPost
	personas          []model.Persona
	chatSessions      []model.ChatSession
	activityLog       []model.ActivityItem
	calendarTags      []model.CalendarTag
	settings          model.Settings

	syncStatus          SyncStatus
	dataLoaded          bool
	activeChatSessionID string
	displayedAgentIDs   []string

	obsMu     sync.RWMutex
	observers map[model.Collection]map[int]Observer
	nextObs   int
}

// New returns a store seeded with defaults.
func New() *Store {
	return &Store{
		todoLists:         model.DefaultTodoLists(),
		journalCategories: model.DefaultJournalCategories(),
		settings:          model.DefaultSettings(),
		syncStatus:        SyncIdle,
		observers:         map[model.Collection]map[int]Observer{},
	}
}

// Subscribe registers obs for changes to c and returns a function that
// removes it.
func (s *Store) Subscribe(c model.Collection, obs Observer) (unsubscribe func()) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	id := s.nextObs
	s.nextObs++
	if s.observers[c] == nil {
		s.observers[c] = map[int]Observer{}
	}
	s.observers[c][id] = obs
	return func() {
		s.obsMu.Lock()
		delete(s.observers[c], id)
		s.obsMu.Unlock()
	}
}

func (s *Store) notify(c model.Collection) {
	s.obsMu.RLock()
	ids := make([]int, 0, len(s.observers[c]))
	for id := range s.observers[c] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	obs := make([]Observer, 0, len(ids))
	for _, id := range ids {
		obs = append(obs, s.observers[c][id])
	}
	s.obsMu.RUnlock()

	for _, o := range obs {
		o(c)
	}
}

func get[T any](s *Store, p *[]T) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(*p)
}

func set[T any](s *Store, c model.Collection, p *[]T, v []T) {
	s.mu.Lock()
	*p = slices.Clone(v)
	s.mu.Unlock()
	s.notify(c)
}

// update applies fn to a copy and stores its result, returning the previous
// value. fn runs under the store lock and must not call back into the store.
func update[T any](s *Store, c model.Collection, p *[]T, fn func([]T) []T) (prev []T) {
	s.mu.Lock()
	prev = slices.Clone(*p)
	*p = fn(slices.Clone(*p))
	s.mu.Unlock()
	s.notify(c)
	return prev
}

func (s *Store) Events() []model.Event {
	return get(s, &s.events)
}

func (s *Store) SetEvents(v []model.Event) {
	set(s, model.CollectionEvents, &s.events, v)
}

func (s *Store) Todos() []model.Todo {
	return get(s, &s.todos)
}

func (s *Store) SetTodos(v []model.Todo) {
	set(s, model.CollectionTodos, &s.todos, v)
}

func (s *Store) TodoLists() []model.TodoList {
	return get(s, &s.todoLists)
}

func (s *Store) SetTodoLists(v []model.TodoList) {
	set(s, model.CollectionTodoLists, &s.todoLists, v)
}

func (s *Store) JournalEntries() []model.JournalEntry {
	return get(s, &s.journalEntries)
}

func (s *Store) SetJournalEntries(v []model.JournalEntry) {
	set(s, model.CollectionJournalEntries, &s.journalEntries, v)
}

func (s *Store) JournalCategories() []model.JournalCategory {
	return get(s, &s.journalCategories)
}

func (s *Store) SetJournalCategories(v []model.JournalCategory) {
	set(s, model.CollectionJournalCategories, &s.journalCategories, v)
}

func (s *Store) CommunityPosts() []model.CommunityPost {
	return get(s, &s.communityPosts)
}

func (s *Store) SetCommunityPosts(v []model.CommunityPost) {
	set(s, model.CollectionCommunityPosts, &s.communityPosts, v)
}

func (s *Store) Personas() []model.Persona {
	return get(s, &s.personas)
}

func (s *Store) SetPersonas(v []model.Persona) {
	set(s, model.CollectionPersonas, &s.personas, v)
}

func (s *Store) ChatSessions() []model.ChatSession {
	return get(s, &s.chatSessions)
}

func (s *Store) SetChatSessions(v []model.ChatSession) {
	set(s, model.CollectionChatSessions, &s.chatSessions, v)
}

func (s *Store) ActivityLog() []model.ActivityItem {
	return get(s, &s.activityLog)
}

func (s *Store) SetActivityLog(v []model.ActivityItem) {
	set(s, model.CollectionActivityLog, &s.activityLog, v)
}

func (s *Store) CalendarTags() []model.CalendarTag {
	return get(s, &s.calendarTags)
}

func (s *Store) SetCalendarTags(v []model.CalendarTag) {
	set(s, model.CollectionCalendarTags, &s.calendarTags, v)
}

func (s *Store) UpdateEvents(fn func([]model.Event) []model.Event) []model.Event {
	return update(s, model.CollectionEvents, &s.events, fn)
}

func (s *Store) UpdateTodos(fn func([]model.Todo) []model.Todo) []model.Todo {
	return update(s, model.CollectionTodos, &s.todos, fn)
}

func (s *Store) UpdateTodoLists(fn func([]model.TodoList) []model.TodoList) []model.TodoList {
	return update(s, model.CollectionTodoLists, &s.todoLists, fn)
}

func (s *Store) UpdateJournalEntries(fn func([]model.JournalEntry) []model.JournalEntry) []model.JournalEntry {
	return update(s, model.CollectionJournalEntries, &s.journalEntries, fn)
}

func (s *Store) UpdateJournalCategories(fn func([]model.JournalCategory) []model.JournalCategory) []model.JournalCategory {
	return update(s, model.CollectionJournalCategories, &s.journalCategories, fn)
}

func (s *Store) UpdateCommunityPosts(fn func([]model.CommunityPost) []model.CommunityPost) []model.CommunityPost {
	return update(s, model.CollectionCommunityPosts, &s.communityPosts, fn)
}

func (s *Store) UpdatePersonas(fn func([]model.Persona) []model.Persona) []model.Persona {
	return update(s, model.CollectionPersonas, &s.personas, fn)
}

func (s *Store) UpdateChatSessions(fn func([]model.ChatSession) []model.ChatSession) []model.ChatSession {
	return update(s, model.CollectionChatSessions, &s.chatSessions, fn)
}

func (s *Store) UpdateActivityLog(fn func([]model.ActivityItem) []model.ActivityItem) []model.ActivityItem {
	return update(s, model.CollectionActivityLog, &s.activityLog, fn)
}

func (s *Store) UpdateCalendarTags(fn func([]model.CalendarTag) []model.CalendarTag) []model.CalendarTag {
	return update(s, model.CollectionCalendarTags, &s.calendarTags, fn)
}

// Settings returns a copy of the settings record.
func (s *Store) Settings() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSettings(s.settings)
}

func (s *Store) SetSettings(v model.Settings) {
	s.mu.Lock()
	s.settings = cloneSettings(v)
	s.mu.Unlock()
	s.notify(model.CollectionSettings)
}

// UpdateSettings applies fn under the lock and returns the previous value.
func (s *Store) UpdateSettings(fn func(model.Settings) model.Settings) model.Settings {
	s.mu.Lock()
	prev := cloneSettings(s.settings)
	s.settings = cloneSettings(fn(cloneSettings(s.settings)))
	s.mu.Unlock()
	s.notify(model.CollectionSettings)
	return prev
}

func cloneSettings(v model.Settings) model.Settings {
	v.APIConnections = slices.Clone(v.APIConnections)
	return v
}

// Snapshot is every collection at one instant.
type Snapshot struct {
	Events            []model.Event
	Todos             []model.Todo
	TodoLists         []model.TodoList
	JournalEntries    []model.JournalEntry
	JournalCategories []model.JournalCategory
	CommunityPosts    []model.CommunityPost
	Personas          []model.Persona
	ChatSessions      []model.ChatSession
	ActivityLog       []model.ActivityItem
	CalendarTags      []model.CalendarTag
	Settings          model.Settings
}

// Snapshot copies every collection under one read lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Events:            slices.Clone(s.events),
		Todos:             slices.Clone(s.todos),
		TodoLists:         slices.Clone(s.todoLists),
		JournalEntries:    slices.Clone(s.journalEntries),
		JournalCategories: slices.Clone(s.journalCategories),
		CommunityPosts:    slices.Clone(s.communityPosts),
		Personas:          slices.Clone(s.personas),
		ChatSessions:      slices.Clone(s.chatSessions),
		ActivityLog:       slices.Clone(s.activityLog),
		CalendarTags:      slices.Clone(s.calendarTags),
		Settings:          cloneSettings(s.settings),
	}
}

// Value returns the current value of collection c as an untyped snapshot,
// suitable for serialisation.
func (s *Store) Value(c model.Collection) any {
	switch c {
	case model.CollectionEvents:
		return s.Events()
	case model.CollectionTodos:
		return s.Todos()
	case model.CollectionTodoLists:
		return s.TodoLists()
	case model.CollectionJournalEntries:
		return s.JournalEntries()
	case model.CollectionJournalCategories:
		return s.JournalCategories()
	case model.CollectionCommunityPosts:
		return s.CommunityPosts()
	case model.CollectionPersonas:
		return s.Personas()
	case model.CollectionChatSessions:
		return s.ChatSessions()
	case model.CollectionActivityLog:
		return s.ActivityLog()
	case model.CollectionCalendarTags:
		return s.CalendarTags()
	case model.CollectionSettings:
		return s.Settings()
	default:
		return nil
	}
}
