package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/localcache"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/remote"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/remote/memstore"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/shardqueue"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/state"
)

const testUser = "user-1"

func newTestCoordinator(t *testing.T, rs remote.Store, tune func(*Options)) (*Coordinator, *state.Store, *localcache.Memory) {
	t.Helper()
	opts := Options{
		CriticalFetchTimeout: 500 * time.Millisecond,
		GateDelay:            10 * time.Millisecond,
		Queue:                shardqueue.Config{MaxAttempts: 2, BaseBackoff: time.Millisecond},
	}
	if tune != nil {
		tune(&opts)
	}
	st := state.New()
	cache := localcache.NewMemory()
	c := New(st, cache, rs, zerolog.Nop(), opts)
	t.Cleanup(func() { _ = c.Close() })
	c.Boot()
	return c, st, cache
}

func mustRow(t *testing.T, v any) remote.Row {
	t.Helper()
	row, err := remote.EncodeRow(testUser, v)
	require.NoError(t, err)
	return row
}

// seedUser fills every table that would otherwise trigger a migration push.
func seedUser(t *testing.T, rs *memstore.Store) {
	t.Helper()
	rs.Seed(model.TableTodoLists, mustRow(t, model.TodoList{ID: "list-1", Title: "할 일"}))
	rs.Seed(model.TableTodos, mustRow(t, model.Todo{ID: "todo-remote", ListID: "list-1", Text: "from remote"}))
	rs.Seed(model.TableEvents, mustRow(t, model.Event{ID: "event-1", Title: "standup", Date: "2026-10-15"}))
	for _, cat := range model.DefaultJournalCategories() {
		rs.Seed(model.TableJournalCategories, mustRow(t, cat))
	}
	ud := mustRow(t, model.UserData{
		Settings:     model.DefaultSettings(),
		ActivityLog:  []model.ActivityItem{},
		CalendarTags: []model.CalendarTag{},
		ChatSessions: []model.ChatSession{},
	})
	ud[remote.ColumnID] = testUser
	rs.Seed(model.TableUserData, ud)
}

func addTodo(st *state.Store, id, text string) {
	st.UpdateTodos(func(v []model.Todo) []model.Todo {
		return append(v, model.Todo{ID: id, ListID: "list-1", Text: text})
	})
}

func todoIDs(todos []model.Todo) []string {
	out := make([]string, 0, len(todos))
	for _, td := range todos {
		out = append(out, td.ID)
	}
	return out
}

func TestBoot_LoadsAndNormalizesCache(t *testing.T) {
	cache := localcache.NewMemory()
	cats := model.DefaultJournalCategories()
	require.NoError(t, localcache.Save(cache, model.CollectionJournalCategories.CacheKey(), cats))
	require.NoError(t, localcache.Save(cache, model.CollectionJournalEntries.CacheKey(), []model.JournalEntry{
		{ID: "j1", Title: "legacy", Category: " 업무 "},
	}))
	require.NoError(t, localcache.Save(cache, model.CollectionChatSessions.CacheKey(), []model.ChatSession{
		{ID: "s1", AgentID: "p1"},
	}))
	require.NoError(t, cache.Set(model.CollectionTodos.CacheKey(), []byte("{not json")))

	st := state.New()
	c := New(st, cache, nil, zerolog.Nop(), Options{})
	defer c.Close()
	c.Boot()

	entries := st.JournalEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, cats[1].ID, entries[0].CategoryID)
	assert.Empty(t, entries[0].Category)

	sessions := st.ChatSessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, []string{"p1"}, sessions[0].AgentIDs)

	assert.Empty(t, st.Todos())
	require.Len(t, st.TodoLists(), 1)
	assert.Equal(t, model.DefaultTodoListTitle, st.TodoLists()[0].Title)
}

func TestSyncGate_NoRemoteWritesUntilOpen(t *testing.T) {
	rs := memstore.New()
	seedUser(t, rs)
	c, st, cache := newTestCoordinator(t, rs, func(o *Options) { o.GateDelay = 300 * time.Millisecond })
	ctx := context.Background()

	addTodo(st, "todo-anon", "before sign in")
	require.NoError(t, c.Flush(ctx))
	assert.Zero(t, rs.Writes())

	c.OnAuthenticated(ctx, testUser)
	require.NoError(t, c.Flush(ctx))
	assert.Zero(t, rs.Writes(), "hydration must not be echoed")
	assert.Equal(t, []string{"todo-remote"}, todoIDs(st.Todos()))
	assert.False(t, c.Warm())

	addTodo(st, "todo-early", "inside gate window")
	require.NoError(t, c.Flush(ctx))
	assert.Zero(t, rs.Writes())
	cached := localcache.Load(cache, model.CollectionTodos.CacheKey(), []model.Todo(nil))
	assert.Contains(t, todoIDs(cached), "todo-early")

	require.Eventually(t, c.Warm, 2*time.Second, 10*time.Millisecond)

	addTodo(st, "todo-late", "after gate")
	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, 1, rs.Writes())
	assert.Equal(t, 1, rs.Calls("insert", model.TableTodos))
	assert.Equal(t, state.SyncSynced, st.SyncStatus())
	assert.True(t, st.DataLoaded())
}

func TestWriteThrough_DiffsUpdatesAndDeletes(t *testing.T) {
	rs := memstore.New()
	seedUser(t, rs)
	c, st, _ := newTestCoordinator(t, rs, nil)
	ctx := context.Background()

	c.OnAuthenticated(ctx, testUser)
	require.Eventually(t, c.Warm, time.Second, 5*time.Millisecond)

	addTodo(st, "todo-2", "write tests")
	st.UpdateTodos(func(v []model.Todo) []model.Todo {
		for i := range v {
			if v[i].ID == "todo-2" {
				v[i].Completed = true
			}
		}
		return v
	})
	require.NoError(t, c.Flush(ctx))

	assert.Equal(t, 1, rs.Calls("insert", model.TableTodos))
	assert.Equal(t, 1, rs.Calls("update", model.TableTodos))
	var found bool
	for _, r := range rs.Rows(model.TableTodos) {
		if remote.RowID(r) == "todo-2" {
			found = true
			assert.Equal(t, true, r["completed"])
			assert.Equal(t, testUser, r[remote.ColumnUserID])
		}
	}
	assert.True(t, found)

	st.UpdateTodos(func(v []model.Todo) []model.Todo { return v[:1] })
	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, 1, rs.Calls("delete", model.TableTodos))
	assert.Len(t, rs.Rows(model.TableTodos), 1)

	st.SetCalendarTags([]model.CalendarTag{{ID: "tag-1", Name: "work", Color: "#000"}})
	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, 1, rs.Calls("upsert", model.TableUserData))
}

func TestOnAuthenticated_DuplicateCallIsNoop(t *testing.T) {
	rs := memstore.New()
	seedUser(t, rs)
	rs.SetLatency(100 * time.Millisecond)
	c, _, _ := newTestCoordinator(t, rs, nil)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		c.OnAuthenticated(ctx, testUser)
		close(done)
	}()
	require.Eventually(t, func() bool { return rs.Calls("select", "") > 0 }, time.Second, time.Millisecond)

	c.OnAuthenticated(ctx, testUser)
	<-done
	assert.Equal(t, 1, rs.Calls("select", model.TableTodos))

	c.OnAuthenticated(ctx, testUser)
	assert.Equal(t, 1, rs.Calls("select", model.TableTodos), "already loaded user")
}

func TestOnAuthenticated_CriticalTimeoutKeepsLocal(t *testing.T) {
	rs := memstore.New()
	seedUser(t, rs)
	rs.SetLatency(time.Second)
	c, st, _ := newTestCoordinator(t, rs, func(o *Options) { o.CriticalFetchTimeout = 50 * time.Millisecond })
	addTodo(st, "todo-local", "offline")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	c.OnAuthenticated(ctx, testUser)

	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.True(t, st.DataLoaded())
	assert.Equal(t, []string{"todo-local"}, todoIDs(st.Todos()))
	assert.NotEqual(t, state.SyncError, st.SyncStatus())
}

func TestOnAuthenticated_AuthorizationFailureFlagsError(t *testing.T) {
	rs := memstore.New()
	seedUser(t, rs)
	rs.SetFault(func(op, table string) error {
		if op == "select" && table == model.TableTodos {
			return &remote.StatusError{StatusCode: 403, Code: remote.CodeInsufficientPrivilege, Message: "rls"}
		}
		return nil
	})
	c, st, _ := newTestCoordinator(t, rs, nil)

	c.OnAuthenticated(context.Background(), testUser)
	assert.Equal(t, state.SyncError, st.SyncStatus())
	assert.True(t, st.DataLoaded())
}

func TestOnAuthenticated_SchemaNotReadyIgnored(t *testing.T) {
	rs := memstore.New()
	seedUser(t, rs)
	rs.SetFault(func(op, table string) error {
		if table == model.TableJournalEntries {
			return &remote.StatusError{StatusCode: 404, Code: remote.CodeUndefinedTable, Message: "relation does not exist"}
		}
		return nil
	})
	c, st, _ := newTestCoordinator(t, rs, nil)
	ctx := context.Background()
	st.SetJournalEntries([]model.JournalEntry{{ID: "j-local", Title: "kept"}})

	c.OnAuthenticated(ctx, testUser)
	assert.Equal(t, state.SyncSynced, st.SyncStatus())
	require.Len(t, st.JournalEntries(), 1)

	require.Eventually(t, c.Warm, time.Second, 5*time.Millisecond)
	st.SetJournalEntries(append(st.JournalEntries(), model.JournalEntry{ID: "j-new", Title: "new"}))
	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, state.SyncSynced, st.SyncStatus())
}

func TestWriteThrough_AuthorizationFailureFlagsError(t *testing.T) {
	rs := memstore.New()
	seedUser(t, rs)
	c, st, _ := newTestCoordinator(t, rs, nil)
	ctx := context.Background()
	c.OnAuthenticated(ctx, testUser)
	require.Eventually(t, c.Warm, time.Second, 5*time.Millisecond)

	rs.SetFault(func(op, table string) error {
		if op == "insert" {
			return &remote.StatusError{StatusCode: 403, Message: "forbidden"}
		}
		return nil
	})
	addTodo(st, "todo-denied", "denied")
	require.NoError(t, c.Flush(ctx))

	assert.Equal(t, state.SyncError, st.SyncStatus())
	assert.Contains(t, todoIDs(st.Todos()), "todo-denied")
}

func TestOnAuthenticated_MigratesLocalDataToEmptyRemote(t *testing.T) {
	rs := memstore.New()
	c, st, _ := newTestCoordinator(t, rs, nil)
	ctx := context.Background()
	addTodo(st, "todo-offline", "made offline")
	st.SetCommunityPosts([]model.CommunityPost{{ID: "post-offline", Author: "p1", Content: "hi", Timestamp: time.Now()}})

	c.OnAuthenticated(ctx, testUser)
	require.NoError(t, c.Flush(ctx))

	todos := rs.Rows(model.TableTodos)
	require.Len(t, todos, 1)
	assert.Equal(t, "todo-offline", remote.RowID(todos[0]))
	assert.Equal(t, testUser, todos[0][remote.ColumnUserID])

	ud := rs.Rows(model.TableUserData)
	require.Len(t, ud, 1)
	assert.Equal(t, testUser, remote.RowID(ud[0]))

	assert.Len(t, rs.Rows(model.TableTodoLists), 1)
	assert.Len(t, rs.Rows(model.TableJournalCategories), 3)
	assert.Len(t, rs.Rows(model.TableCommunityPosts), 1)
	assert.Empty(t, rs.Rows(model.TablePersonas))
	assert.Equal(t, []string{"todo-offline"}, todoIDs(st.Todos()))
}

func TestOnAuthenticated_PartiallyEmptyRemoteIsNotMigrated(t *testing.T) {
	rs := memstore.New()
	rs.Seed(model.TableTodoLists, mustRow(t, model.TodoList{ID: "list-remote", Title: "할 일"}))
	rs.Seed(model.TableEvents, mustRow(t, model.Event{ID: "event-1", Title: "standup", Date: "2026-10-15"}))
	ud := mustRow(t, model.UserData{Settings: model.DefaultSettings()})
	ud[remote.ColumnID] = testUser
	rs.Seed(model.TableUserData, ud)

	c, st, _ := newTestCoordinator(t, rs, nil)
	ctx := context.Background()
	localList := st.TodoLists()[0].ID
	st.SetTodos([]model.Todo{{ID: "todo-local", ListID: localList, Text: "made offline"}})

	c.OnAuthenticated(ctx, testUser)
	require.NoError(t, c.Flush(ctx))

	assert.Empty(t, rs.Rows(model.TableTodos))
	assert.Zero(t, rs.Calls("insert", model.TableTodos))
	assert.Zero(t, rs.Calls("upsert", model.TableTodos))
	assert.Empty(t, st.Todos())
	require.Len(t, st.TodoLists(), 1)
	assert.Equal(t, "list-remote", st.TodoLists()[0].ID)
	assert.Len(t, rs.Rows(model.TableTodoLists), 1)
}

func TestOnAuthenticated_MissingUserDataAloneIsNotMigrated(t *testing.T) {
	rs := memstore.New()
	rs.Seed(model.TableTodos, mustRow(t, model.Todo{ID: "todo-remote", ListID: "list-1", Text: "from remote"}))
	c, st, _ := newTestCoordinator(t, rs, nil)
	ctx := context.Background()

	c.OnAuthenticated(ctx, testUser)
	require.NoError(t, c.Flush(ctx))

	assert.Empty(t, rs.Rows(model.TableUserData))
	assert.Empty(t, rs.Rows(model.TableTodoLists))
	assert.Equal(t, []string{"todo-remote"}, todoIDs(st.Todos()))
}

func TestOnAuthenticated_MergesPostsAndUploadsUnsynced(t *testing.T) {
	rs := memstore.New()
	seedUser(t, rs)
	now := time.Now().UTC()
	rs.Seed(model.TableCommunityPosts, mustRow(t, model.CommunityPost{ID: "p1", Author: "a", Title: "remote title", Content: "remote", Timestamp: now.Add(-time.Hour)}))
	c, st, _ := newTestCoordinator(t, rs, nil)
	st.SetCommunityPosts([]model.CommunityPost{
		{ID: "p1", Author: "a", Content: "local", Timestamp: now.Add(-time.Hour)},
		{ID: "p2", Author: "b", Content: "offline", Timestamp: now},
	})

	c.OnAuthenticated(context.Background(), testUser)
	require.NoError(t, c.Flush(context.Background()))

	posts := st.CommunityPosts()
	require.Len(t, posts, 2)
	assert.Equal(t, "p2", posts[0].ID)
	assert.Equal(t, "local", posts[1].Content)
	assert.Equal(t, "remote title", posts[1].Title)

	assert.Equal(t, 1, rs.Calls("upsert", model.TableCommunityPosts))
	assert.Len(t, rs.Rows(model.TableCommunityPosts), 2)
}

func TestOnSignOut_StopsRemoteWrites(t *testing.T) {
	rs := memstore.New()
	seedUser(t, rs)
	c, st, _ := newTestCoordinator(t, rs, nil)
	ctx := context.Background()
	c.OnAuthenticated(ctx, testUser)
	require.Eventually(t, c.Warm, time.Second, 5*time.Millisecond)

	c.OnSignOut()
	assert.False(t, c.Warm())
	assert.Empty(t, c.UserID())
	assert.Equal(t, state.SyncIdle, st.SyncStatus())

	addTodo(st, "todo-after", "signed out")
	require.NoError(t, c.Flush(ctx))
	assert.Zero(t, rs.Writes())
}

func TestClearAll_RemoteFailureKeepsLocalData(t *testing.T) {
	rs := memstore.New()
	seedUser(t, rs)
	c, st, _ := newTestCoordinator(t, rs, nil)
	ctx := context.Background()
	c.OnAuthenticated(ctx, testUser)

	rs.SetFault(func(op, table string) error {
		if op == "delete" && table == model.TableTodos {
			return &remote.StatusError{StatusCode: 503, Message: "unavailable"}
		}
		return nil
	})
	err := c.ClearAll(ctx)
	require.Error(t, err)
	assert.Equal(t, []string{"todo-remote"}, todoIDs(st.Todos()))
	assert.Len(t, st.Events(), 1)
}

func TestClearAll_ResetsToDefaults(t *testing.T) {
	rs := memstore.New()
	seedUser(t, rs)
	c, st, _ := newTestCoordinator(t, rs, nil)
	ctx := context.Background()
	c.OnAuthenticated(ctx, testUser)
	require.Eventually(t, c.Warm, time.Second, 5*time.Millisecond)
	st.SetPersonas([]model.Persona{{ID: "persona-1", Name: "Mina"}})
	require.NoError(t, c.Flush(ctx))

	require.NoError(t, c.ClearAll(ctx))
	require.NoError(t, c.Flush(ctx))

	assert.Empty(t, st.Todos())
	assert.Empty(t, st.Events())
	require.Len(t, st.TodoLists(), 1)
	assert.Equal(t, model.DefaultTodoListTitle, st.TodoLists()[0].Title)
	assert.Len(t, st.JournalCategories(), 3)
	assert.Len(t, st.Personas(), 1)

	assert.Empty(t, rs.Rows(model.TableTodos))
	assert.Empty(t, rs.Rows(model.TableEvents))
	assert.Len(t, rs.Rows(model.TablePersonas), 1)
	lists := rs.Rows(model.TableTodoLists)
	require.Len(t, lists, 1)
	assert.Equal(t, st.TodoLists()[0].ID, remote.RowID(lists[0]))
}

func TestClearAll_LocalOnly(t *testing.T) {
	c, st, _ := newTestCoordinator(t, nil, nil)
	addTodo(st, "todo-1", "x")

	require.NoError(t, c.ClearAll(context.Background()))
	assert.Empty(t, st.Todos())
}
