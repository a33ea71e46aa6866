// Package syncer keeps the state container consistent with the local cache
// and, once warmed, with the remote store.
//
// Every collection has one observer. It always writes the collection to the
// local cache. It writes to the remote store only while warm: a user is
// signed in, the initial fetch finished and the sync gate opened. While not
// warm the remote baseline is advanced to the current value, so data applied
// from a fetch is never echoed back as a write.
package syncer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/localcache"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/remote"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/shardqueue"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/state"
)

// Options tunes the coordinator.
type Options struct {
	// CriticalFetchTimeout bounds the critical fetch stage.
	CriticalFetchTimeout time.Duration
	// GateDelay keeps the sync gate closed after the fetch completes.
	GateDelay time.Duration
	// Queue configures the remote write executor.
	Queue shardqueue.Config
}

// Coordinator owns write-through and the sign-in fetch.
type Coordinator struct {
	state  *state.Store
	cache  localcache.Cache
	remote remote.Store
	log    zerolog.Logger
	opts   Options
	exec   *shardqueue.Executor

	ctx    context.Context
	cancel context.CancelFunc

	fetching atomic.Bool

	mu         sync.Mutex
	booted     bool
	userID     string
	loadedUser string
	fetched    bool
	gateOpen   bool
	gateTimer  *time.Timer
	epoch      uint64
	rows       map[model.Collection]map[string]remote.Row
	userData   remote.Row
	unsubs     []func()
}

// New builds a coordinator. rs may be nil for local-only operation.
func New(st *state.Store, cache localcache.Cache, rs remote.Store, log zerolog.Logger, opts Options) *Coordinator {
	if opts.CriticalFetchTimeout <= 0 {
		opts.CriticalFetchTimeout = 10 * time.Second
	}
	if opts.GateDelay < 0 {
		opts.GateDelay = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		state:  st,
		cache:  cache,
		remote: remote.Instrument(rs),
		log:    log,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		rows:   map[model.Collection]map[string]remote.Row{},
	}
	qcfg := opts.Queue
	qcfg.Name = "remote"
	qcfg.Logger = log
	qcfg.Irrecoverable = remote.IsIrrecoverable
	qcfg.ErrorHandler = c.handleWriteError
	c.exec = shardqueue.New(qcfg)
	return c
}

// Boot loads every collection from the local cache, normalising legacy
// shapes, and registers the write-through observers. It runs once.
func (c *Coordinator) Boot() {
	c.mu.Lock()
	if c.booted {
		c.mu.Unlock()
		return
	}
	c.booted = true
	c.mu.Unlock()

	todoLists := localcache.Load(c.cache, model.CollectionTodoLists.CacheKey(), []model.TodoList(nil))
	if len(todoLists) == 0 {
		todoLists = model.DefaultTodoLists()
	}
	categories := localcache.Load(c.cache, model.CollectionJournalCategories.CacheKey(), []model.JournalCategory(nil))
	if len(categories) == 0 {
		categories = model.DefaultJournalCategories()
	}
	settings := localcache.Load(c.cache, model.CollectionSettings.CacheKey(), model.DefaultSettings())

	c.state.SetEvents(localcache.Load(c.cache, model.CollectionEvents.CacheKey(), []model.Event{}))
	c.state.SetTodos(localcache.Load(c.cache, model.CollectionTodos.CacheKey(), []model.Todo{}))
	c.state.SetTodoLists(todoLists)
	c.state.SetJournalCategories(categories)
	c.state.SetJournalEntries(model.NormalizeJournalEntries(
		localcache.Load(c.cache, model.CollectionJournalEntries.CacheKey(), []model.JournalEntry{}), categories))
	c.state.SetCommunityPosts(localcache.Load(c.cache, model.CollectionCommunityPosts.CacheKey(), []model.CommunityPost{}))
	c.state.SetPersonas(localcache.Load(c.cache, model.CollectionPersonas.CacheKey(), []model.Persona{}))
	c.state.SetChatSessions(model.NormalizeChatSessions(
		localcache.Load(c.cache, model.CollectionChatSessions.CacheKey(), []model.ChatSession{})))
	c.state.SetActivityLog(localcache.Load(c.cache, model.CollectionActivityLog.CacheKey(), []model.ActivityItem{}))
	c.state.SetCalendarTags(localcache.Load(c.cache, model.CollectionCalendarTags.CacheKey(), []model.CalendarTag{}))
	c.state.SetSettings(model.NormalizeSettings(settings))

	c.mu.Lock()
	for _, coll := range model.Collections {
		c.advanceLocked(coll)
		c.unsubs = append(c.unsubs, c.state.Subscribe(coll, c.onChange))
	}
	c.mu.Unlock()
	c.log.Debug().Int("collections", len(model.Collections)).Msg("booted from local cache")
}

// onChange is the per-collection write-through observer. Holding c.mu across
// the read, the cache write and the remote submit keeps cache writes in
// state order and remote submissions FIFO per table.
func (c *Coordinator) onChange(coll model.Collection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := localcache.Save(c.cache, coll.CacheKey(), c.state.Value(coll)); err != nil {
		cacheWriteFailures.WithLabelValues(string(coll)).Inc()
		c.log.Warn().Err(err).Str("collection", string(coll)).Msg("local cache write failed")
	}

	if !c.warmLocked() {
		c.advanceLocked(coll)
		return
	}
	c.pushChangesLocked(coll)
}

// Warm reports whether local changes are currently mirrored remotely.
func (c *Coordinator) Warm() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.warmLocked()
}

func (c *Coordinator) warmLocked() bool {
	return c.remote != nil && c.userID != "" && c.fetched && c.gateOpen
}

// UserID returns the signed-in user, or "".
func (c *Coordinator) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Flush waits until every remote write submitted so far has completed.
func (c *Coordinator) Flush(ctx context.Context) error {
	for _, t := range model.Tables {
		if err := c.exec.Barrier(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// Close detaches the observers and drains pending remote writes.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	if c.gateTimer != nil {
		c.gateTimer.Stop()
	}
	c.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	c.exec.Stop()
	c.cancel()
	return nil
}

// handleWriteError applies the failure policy to a remote write that gave
// up: only authorization failures surface as a sync error.
func (c *Coordinator) handleWriteError(err error) {
	category := remote.Classify(err)
	switch category {
	case remote.Authorization:
		c.log.Error().Stack().Err(err).Msg("remote write rejected by policy")
		c.state.SetSyncStatus(state.SyncError)
	case remote.SchemaNotReady:
		c.log.Debug().Err(err).Msg("remote schema not ready, write ignored")
	case remote.Conflict:
		c.log.Warn().Err(err).Msg("remote write conflict, dropped")
	default:
		c.log.Warn().Err(err).Msg("remote write failed, local state kept")
	}
}

// handleReadError applies the same policy to fetch failures.
func (c *Coordinator) handleReadError(stage string, err error) {
	switch remote.Classify(err) {
	case remote.Authorization:
		c.log.Error().Stack().Err(err).Str("stage", stage).Msg("remote fetch rejected by policy")
		c.state.SetSyncStatus(state.SyncError)
	case remote.SchemaNotReady:
		c.log.Debug().Err(err).Str("stage", stage).Msg("remote schema not ready, fetch skipped")
	default:
		c.log.Warn().Err(err).Str("stage", stage).Msg("remote fetch failed, keeping local data")
	}
}
