// Package engine assembles the state container, the sync coordinator, the
// mutation manager, the AI trigger pipeline and the agent reconciler into
// one runnable unit.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/agents"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/config"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/export"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/llm"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/localcache"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/logger"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/mutation"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/remote"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/remote/postgres"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/shardqueue"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/state"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/status"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/syncer"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/trigger"
)

const healthProbeTimeout = 3 * time.Second

// Deps overrides the components New would otherwise build from config.
type Deps struct {
	// Cache defaults to the SQLite file under the data directory.
	Cache localcache.Cache
	// Remote defaults to Postgres when a DSN is configured, else none.
	Remote remote.Store
	// Generator defaults to an llm.Router over the live settings.
	Generator llm.Generator
	Logger    *zerolog.Logger
	Clock     func() time.Time
}

// Engine is a running lifesync client.
type Engine struct {
	cfg   *config.Config
	log   zerolog.Logger
	clock func() time.Time

	State     *state.Store
	Sync      *syncer.Coordinator
	Mutations *mutation.Manager
	Scheduler *trigger.Scheduler
	Commenter *trigger.Commenter
	Digest    *trigger.Digest
	Agents    *agents.Reconciler

	cache  localcache.Cache
	remote remote.Store
	db     *sql.DB
	health *remote.HealthChecker

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	runCtx context.Context
}

var _ status.Backend = (*Engine)(nil)

// New builds an engine. Nothing runs until Boot.
func New(cfg *config.Config, deps Deps) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine: nil config")
	}
	log := logger.New("lifesync", cfg.LogLevel)
	if deps.Logger != nil {
		log = *deps.Logger
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	e := &Engine{cfg: cfg, log: log, clock: clock, State: state.New()}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	if err := e.openStores(deps); err != nil {
		e.cancel()
		return nil, err
	}

	qcfg, err := shardqueue.LoadConfig()
	if err != nil {
		e.closeStores()
		e.cancel()
		return nil, fmt.Errorf("shard queue config: %w", err)
	}

	e.Sync = syncer.New(e.State, e.cache, e.remote, logger.Component(log, "syncer"), syncer.Options{
		CriticalFetchTimeout: cfg.CriticalFetchTimeout,
		GateDelay:            cfg.SyncGateDelay,
		Queue:                qcfg,
	})

	gen := deps.Generator
	if gen == nil {
		gen = llm.NewRouter(e.State.Settings, llm.ClientConfig{
			BaseURL:     cfg.LLMBaseURL,
			APIKey:      cfg.LLMAPIKey,
			Model:       cfg.LLMModel,
			Temperature: cfg.LLMTemperature,
			MaxTokens:   cfg.LLMMaxTokens,
			Timeout:     cfg.LLMTimeout,
		})
	}

	e.Scheduler = trigger.NewScheduler(e.State, gen, logger.Component(log, "trigger"), trigger.Options{
		ChainLength:            cfg.ChainLength,
		ServerQueueForSignedIn: cfg.ServerQueueForSignedIn,
		SignedIn:               func() bool { return e.Sync.UserID() != "" },
		Temperature:            cfg.LLMTemperature,
		MaxTokens:              cfg.LLMMaxTokens,
		Clock:                  clock,
		Queue:                  qcfg,
	})
	e.Commenter = trigger.NewCommenter(e.Scheduler)
	e.Digest = trigger.NewDigest(e.Scheduler, e.cache, logger.Component(log, "digest"), trigger.DigestOptions{
		Schedule:       cfg.DigestSchedule,
		BucketHours:    cfg.DigestBucketHours,
		ActivityWindow: cfg.DigestActivityWindow,
		ActivityScan:   cfg.DigestActivityScan,
		Clock:          clock,
	})

	e.Mutations = mutation.New(e.State, logger.Component(log, "mutation"), mutation.Options{
		UndoTTL:       cfg.UndoTTL,
		ActivityLimit: cfg.ActivityLogLimit,
		Clock:         clock,
		Reactor:       e.Scheduler,
		Commenter:     e.Commenter,
	})

	e.Agents = agents.NewReconciler(e.State, logger.Component(log, "agents"), nil)

	if e.remote != nil {
		e.health = remote.NewHealthChecker(e.remote, logger.Component(log, "health"), healthProbeTimeout)
	}
	return e, nil
}

func (e *Engine) openStores(deps Deps) error {
	e.cache = deps.Cache
	if e.cache == nil {
		path, err := localcache.DBPath(e.cfg.CacheFile)
		if err != nil {
			return fmt.Errorf("resolve cache path: %w", err)
		}
		c, err := localcache.OpenSQLite(path)
		if err != nil {
			return fmt.Errorf("open local cache: %w", err)
		}
		e.cache = c
	}

	e.remote = deps.Remote
	if e.remote == nil && e.cfg.PostgresDSN != "" {
		db, err := postgres.Open(e.cfg.PostgresDSN)
		if err != nil {
			e.closeStores()
			return fmt.Errorf("open remote store: %w", err)
		}
		pg := postgres.NewWithDB(db)
		ctx, cancel := context.WithTimeout(e.ctx, 10*time.Second)
		defer cancel()
		if err := pg.EnsureSchema(ctx); err != nil {
			// A lagging schema is tolerated: reads and writes against it are
			// classified as schema-not-ready.
			e.log.Warn().Err(err).Msg("remote schema not ensured")
		}
		e.db = db
		e.remote = pg
	}
	return nil
}

func (e *Engine) closeStores() {
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			e.log.Warn().Err(err).Msg("closing local cache")
		}
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.log.Warn().Err(err).Msg("closing remote store")
		}
	}
}

// Boot hydrates state from the local cache and starts the reactive
// observers.
func (e *Engine) Boot() {
	e.Sync.Boot()
	e.Agents.Start()
	e.Agents.ReconcileSessions()
	e.State.SetDataLoaded(true)
	e.log.Info().Bool("remote", e.remote != nil).Msg("engine booted")
}

// Start runs the background loops: remote health probes and the digest
// schedule. They stop when ctx is done or on Close.
func (e *Engine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-e.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	if e.health != nil {
		go e.health.Start(ctx, 30*time.Second)
	}
	e.mu.Lock()
	e.runCtx = ctx
	e.mu.Unlock()
	return e.Digest.Start(ctx)
}

// SignIn runs the sign-in fetch for userID. It returns once the critical
// and secondary stages completed or timed out.
func (e *Engine) SignIn(ctx context.Context, userID string) {
	e.Sync.OnAuthenticated(ctx, userID)
}

// SignOut stops remote writes; local data is kept. The digest schedule is
// torn down with the session and, on a started engine, rearmed for the
// signed-out user.
func (e *Engine) SignOut() {
	e.Sync.OnSignOut()
	e.Digest.Stop()

	e.mu.Lock()
	ctx := e.runCtx
	e.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if err := e.Digest.Start(ctx); err != nil {
		e.log.Warn().Err(err).Msg("digest schedule not restarted after sign-out")
	}
}

// ClearAll deletes every collection remotely and locally. Local data is kept
// if the remote delete fails.
func (e *Engine) ClearAll(ctx context.Context) error {
	return e.Sync.ClearAll(ctx)
}

// Export builds the backup document for the current state.
func (e *Engine) Export(now time.Time) export.Document {
	return export.Build(e.State.Snapshot(), now)
}

// Healthy reports remote reachability; a local-only engine is always healthy.
func (e *Engine) Healthy() bool {
	if e.health == nil {
		return true
	}
	return e.health.IsHealthy()
}

// SyncReport reports the sync indicator and gate state.
func (e *Engine) SyncReport() status.SyncReport {
	return status.SyncReport{
		Status:     e.State.SyncStatus(),
		DataLoaded: e.State.DataLoaded(),
		UserID:     e.Sync.UserID(),
		Remote:     e.remote != nil,
		Warm:       e.Sync.Warm(),
	}
}

// PendingUndo returns the armed undo, if any.
func (e *Engine) PendingUndo() (mutation.Undo, bool) { return e.Mutations.PendingUndo() }

// Undo invokes the pending undo.
func (e *Engine) Undo() bool { return e.Mutations.Undo() }

// Flush waits for queued remote writes and AI jobs.
func (e *Engine) Flush(ctx context.Context) error {
	return errors.Join(e.Scheduler.Flush(ctx), e.Sync.Flush(ctx))
}

// Close stops every loop, drains queues and closes the stores.
func (e *Engine) Close() error {
	e.cancel()
	e.Digest.Stop()
	e.Agents.Stop()
	_ = e.Scheduler.Close()
	_ = e.Sync.Close()
	e.closeStores()
	e.log.Info().Msg("engine closed")
	return nil
}
