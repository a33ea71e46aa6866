package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/remote"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/state"
)

// ErrCriticalTimeout marks a critical stage that lost the race against
// CriticalFetchTimeout.
var ErrCriticalTimeout = errors.New("syncer: critical fetch timed out")

type criticalRows struct {
	todoLists []remote.Row
	todos     []remote.Row
	events    []remote.Row
	userData  []remote.Row
}

type criticalResult struct {
	rows criticalRows
	err  error
}

// OnAuthenticated runs the staged fetch for userID. A call while a fetch is
// already running, or for the user whose data is already loaded, returns
// immediately. It never returns an error: failures keep the local data
// authoritative and are reported through the log and SyncStatus.
func (c *Coordinator) OnAuthenticated(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	c.mu.Lock()
	if c.loadedUser == userID && c.fetched {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if !c.fetching.CompareAndSwap(false, true) {
		c.log.Debug().Str("user_id", userID).Msg("fetch already in progress")
		return
	}
	defer c.fetching.Store(false)

	c.mu.Lock()
	if c.gateTimer != nil {
		c.gateTimer.Stop()
		c.gateTimer = nil
	}
	c.epoch++
	epoch := c.epoch
	c.userID = userID
	c.fetched = false
	c.gateOpen = false
	c.mu.Unlock()

	log := c.log.With().Str("user_id", userID).Logger()

	if c.remote == nil {
		c.state.SetDataLoaded(true)
		c.finishFetch(epoch, userID)
		log.Info().Msg("no remote store configured, staying local")
		return
	}

	c.state.SetSyncStatus(state.SyncSyncing)

	start := time.Now()
	rows, err := c.raceCritical(userID)
	switch {
	case err != nil:
		fetchDuration.WithLabelValues("critical", "failed").Observe(time.Since(start).Seconds())
		if errors.Is(err, ErrCriticalTimeout) {
			log.Warn().Dur("timeout", c.opts.CriticalFetchTimeout).Msg("critical fetch timed out, keeping local data")
		} else {
			c.handleReadError("critical", err)
		}
	case c.current(epoch):
		fetchDuration.WithLabelValues("critical", "ok").Observe(time.Since(start).Seconds())
		c.applyCritical(epoch, rows)
	}
	c.state.SetDataLoaded(true)

	start = time.Now()
	c.fetchSecondary(ctx, epoch, userID)
	fetchDuration.WithLabelValues("secondary", "done").Observe(time.Since(start).Seconds())

	if c.finishFetch(epoch, userID) {
		if c.state.SyncStatus() != state.SyncError {
			c.state.SetSyncStatus(state.SyncSynced)
		}
		log.Info().Dur("gate_delay", c.opts.GateDelay).Msg("remote fetch complete")
	}
}

// finishFetch marks the fetch done and arms the gate timer, unless a sign-out
// or another sign-in superseded this fetch.
func (c *Coordinator) finishFetch(epoch uint64, userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	c.fetched = true
	c.loadedUser = userID
	c.gateTimer = time.AfterFunc(c.opts.GateDelay, func() { c.openGate(epoch) })
	return true
}

func (c *Coordinator) openGate(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || !c.fetched {
		return
	}
	c.gateOpen = true
	c.log.Debug().Msg("sync gate open")
}

func (c *Coordinator) current(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch == epoch
}

// raceCritical runs the critical fetch against CriticalFetchTimeout. The fetch
// is not cancelled when it loses; its result is discarded.
func (c *Coordinator) raceCritical(userID string) (criticalRows, error) {
	done := make(chan criticalResult, 1)
	go func() {
		rows, err := c.fetchCritical(c.ctx, userID)
		done <- criticalResult{rows: rows, err: err}
	}()

	timer := time.NewTimer(c.opts.CriticalFetchTimeout)
	defer timer.Stop()
	select {
	case res := <-done:
		return res.rows, res.err
	case <-timer.C:
		return criticalRows{}, ErrCriticalTimeout
	}
}

func (c *Coordinator) fetchCritical(ctx context.Context, userID string) (criticalRows, error) {
	var out criticalRows
	byUser := remote.Filter{remote.ColumnUserID: userID}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.todoLists, err = c.remote.Select(gctx, model.TableTodoLists, byUser, nil)
		return err
	})
	g.Go(func() (err error) {
		out.todos, err = c.remote.Select(gctx, model.TableTodos, byUser, nil)
		return err
	})
	g.Go(func() (err error) {
		out.events, err = c.remote.Select(gctx, model.TableEvents, byUser, nil)
		return err
	})
	g.Go(func() (err error) {
		out.userData, err = c.remote.Select(gctx, model.TableUserData, remote.Filter{remote.ColumnID: userID}, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return criticalRows{}, err
	}
	return out, nil
}

// applyCritical hydrates the critical collections. Local data is pushed only
// when every critical table is empty for the user; otherwise the remote
// tables are applied as returned, empty ones included.
func (c *Coordinator) applyCritical(epoch uint64, rows criticalRows) {
	if len(rows.todoLists) == 0 && len(rows.todos) == 0 && len(rows.events) == 0 && len(rows.userData) == 0 {
		c.log.Info().Msg("remote store empty for user, migrating local data")
		for _, coll := range []model.Collection{model.CollectionTodoLists, model.CollectionTodos, model.CollectionEvents, model.CollectionSettings} {
			c.migrate(epoch, coll)
		}
		return
	}

	applyTable(c, epoch, model.CollectionTodoLists, rows.todoLists, false, c.state.SetTodoLists, nil)
	applyTable(c, epoch, model.CollectionTodos, rows.todos, false, c.state.SetTodos, nil)
	applyTable(c, epoch, model.CollectionEvents, rows.events, false, c.state.SetEvents, nil)

	if len(rows.userData) == 0 {
		c.log.Warn().Msg("remote user_data missing, keeping local settings")
		return
	}
	if c.current(epoch) {
		c.applyUserData(rows.userData[0])
	}
}

// applyUserData hydrates the collections stored in the user_data row. Keys
// missing from the document keep their local value.
func (c *Coordinator) applyUserData(row remote.Row) {
	doc, err := remote.DecodeRow[model.UserData](row)
	if err != nil {
		c.log.Warn().Err(err).Msg("decode user_data failed, keeping local data")
		return
	}
	if _, ok := row["settings"]; ok {
		c.state.SetSettings(model.NormalizeSettings(doc.Settings))
	}
	if _, ok := row["activityLog"]; ok {
		c.state.SetActivityLog(nonNil(doc.ActivityLog))
	}
	if _, ok := row["calendarTags"]; ok {
		c.state.SetCalendarTags(nonNil(doc.CalendarTags))
	}
	if _, ok := row["chatSessions"]; ok {
		c.state.SetChatSessions(model.NormalizeChatSessions(nonNil(doc.ChatSessions)))
	}
}

// fetchSecondary loads the less latency sensitive tables. Each table fails
// independently.
func (c *Coordinator) fetchSecondary(ctx context.Context, epoch uint64, userID string) {
	byUser := remote.Filter{remote.ColumnUserID: userID}
	tables := []string{model.TableJournalCategories, model.TableJournalEntries, model.TablePersonas, model.TableCommunityPosts}

	var mu sync.Mutex
	results := make(map[string][]remote.Row, len(tables))
	failed := make(map[string]bool, len(tables))

	var g errgroup.Group
	for _, table := range tables {
		g.Go(func() error {
			var order *remote.Order
			if table == model.TableCommunityPosts {
				order = &remote.Order{Column: "timestamp", Descending: true}
			}
			rows, err := c.remote.Select(ctx, table, byUser, order)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[table] = true
				c.handleReadError("secondary", err)
				return nil
			}
			results[table] = rows
			return nil
		})
	}
	_ = g.Wait()

	if !c.current(epoch) {
		return
	}

	if !failed[model.TableJournalCategories] {
		applyTable(c, epoch, model.CollectionJournalCategories, results[model.TableJournalCategories], true, c.state.SetJournalCategories, nil)
	}
	if !failed[model.TableJournalEntries] {
		applyTable(c, epoch, model.CollectionJournalEntries, results[model.TableJournalEntries], true, c.state.SetJournalEntries,
			func(v []model.JournalEntry) []model.JournalEntry {
				return model.NormalizeJournalEntries(v, c.state.JournalCategories())
			})
	}
	if !failed[model.TablePersonas] {
		applyTable(c, epoch, model.CollectionPersonas, results[model.TablePersonas], true, c.state.SetPersonas, nil)
	}
	if !failed[model.TableCommunityPosts] {
		c.applyPosts(epoch, results[model.TableCommunityPosts])
	}
}

// applyPosts merges remote posts with local ones and uploads the local posts
// the remote store is missing.
func (c *Coordinator) applyPosts(epoch uint64, rows []remote.Row) {
	remotePosts, err := remote.DecodeRows[model.CommunityPost](rows)
	if err != nil {
		c.log.Warn().Err(err).Msg("decode community_posts failed")
		return
	}
	merged, unsynced := MergePosts(c.state.CommunityPosts(), remotePosts)
	c.state.SetCommunityPosts(merged)
	if len(unsynced) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	up, err := remote.EncodeRows(c.userID, unsynced)
	if err != nil {
		c.log.Warn().Err(err).Msg("encode unsynced posts failed")
		return
	}
	c.submitUpsertLocked(model.TableCommunityPosts, up)
	migrationsTotal.WithLabelValues(model.TableCommunityPosts).Add(float64(len(up)))
	c.log.Info().Int("posts", len(up)).Msg("uploading posts created offline")
}

// applyTable replaces the collection with the remote rows. An empty remote
// table pushes the local value instead when migrateEmpty is set.
func applyTable[T any](c *Coordinator, epoch uint64, coll model.Collection, rows []remote.Row, migrateEmpty bool, set func([]T), normalize func([]T) []T) {
	if len(rows) == 0 && migrateEmpty {
		c.migrate(epoch, coll)
		return
	}
	items, err := remote.DecodeRows[T](rows)
	if err != nil {
		c.log.Warn().Err(err).Str("table", coll.Table()).Msg("decode remote rows failed, keeping local data")
		return
	}
	if normalize != nil {
		items = normalize(items)
	}
	if !c.current(epoch) {
		return
	}
	set(items)
}

func (c *Coordinator) migrate(epoch uint64, coll model.Collection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	if n := c.pushAllLocked(coll); n > 0 {
		migrationsTotal.WithLabelValues(coll.Table()).Add(float64(n))
		c.log.Info().Str("table", coll.Table()).Int("rows", n).Msg("pushed local data to empty remote table")
	}
}

// OnSignOut forgets the user and closes the sync gate. Local data is kept.
func (c *Coordinator) OnSignOut() {
	c.mu.Lock()
	c.epoch++
	if c.gateTimer != nil {
		c.gateTimer.Stop()
		c.gateTimer = nil
	}
	c.userID = ""
	c.loadedUser = ""
	c.fetched = false
	c.gateOpen = false
	c.mu.Unlock()

	c.state.SetSyncStatus(state.SyncIdle)
	c.log.Info().Msg("signed out, remote sync stopped")
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
