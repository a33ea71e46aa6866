package syncer

import (
	"context"
	"fmt"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/remote"
)

// clearedTables are bulk deleted by ClearAll. Personas and profiles survive.
var clearedTables = []string{
	model.TableEvents,
	model.TableTodos,
	model.TableTodoLists,
	model.TableJournalEntries,
	model.TableJournalCategories,
	model.TableCommunityPosts,
	model.TableUserData,
}

// ClearAll deletes the user's remote data and then resets local state to
// its defaults. If any remote delete fails the error is returned and local
// data is left untouched. Settings and personas are kept.
func (c *Coordinator) ClearAll(ctx context.Context) error {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	if c.remote != nil && userID != "" {
		if err := c.Flush(ctx); err != nil {
			return fmt.Errorf("flush pending writes: %w", err)
		}
		for _, table := range clearedTables {
			if err := c.remote.Delete(ctx, table, remote.Filter{remote.ColumnUserID: userID}); err != nil {
				c.log.Error().Err(err).Str("table", table).Msg("clear all aborted, local data kept")
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		c.mu.Lock()
		for _, coll := range model.Collections {
			if coll == model.CollectionPersonas {
				continue
			}
			if coll.InUserData() {
				c.userData = nil
				continue
			}
			c.rows[coll] = map[string]remote.Row{}
		}
		c.mu.Unlock()
	}

	// With the baselines emptied, the defaults below are written back as
	// fresh inserts once the observers run.
	c.state.SetEvents([]model.Event{})
	c.state.SetTodos([]model.Todo{})
	c.state.SetTodoLists(model.DefaultTodoLists())
	c.state.SetJournalEntries([]model.JournalEntry{})
	c.state.SetJournalCategories(model.DefaultJournalCategories())
	c.state.SetCommunityPosts([]model.CommunityPost{})
	c.state.SetChatSessions([]model.ChatSession{})
	c.state.SetActivityLog([]model.ActivityItem{})
	c.state.SetCalendarTags([]model.CalendarTag{})

	c.log.Info().Bool("remote", c.remote != nil && userID != "").Msg("all data cleared")
	return nil
}
