package agents

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/state"
)

// Reconciler re-resolves session owners when the roster changes and keeps
// the displayed agent set in line with the active session.
type Reconciler struct {
	state    *state.Store
	log      zerolog.Logger
	fallback func() []string

	mu     sync.Mutex
	unsubs []func()
}

// NewReconciler returns a reconciler over st. fallback may be nil.
func NewReconciler(st *state.Store, log zerolog.Logger, fallback func() []string) *Reconciler {
	if fallback == nil {
		fallback = func() []string { return nil }
	}
	return &Reconciler{state: st, log: log, fallback: fallback}
}

// Start subscribes to roster, session and UI changes. It is idempotent.
func (r *Reconciler) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.unsubs) > 0 {
		return
	}
	r.unsubs = append(r.unsubs,
		r.state.Subscribe(model.CollectionPersonas, func(model.Collection) { r.ReconcileSessions() }),
		r.state.Subscribe(model.CollectionChatSessions, func(model.Collection) { r.SyncDisplayed() }),
		r.state.Subscribe(model.CollectionUI, func(model.Collection) { r.SyncDisplayed() }),
	)
}

// Stop removes the subscriptions.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

// ReconcileSessions rewrites only the sessions whose resolved owners differ
// from their stored ones and returns how many changed.
func (r *Reconciler) ReconcileSessions() int {
	roster := r.state.Personas()
	fallback := r.fallback()

	sessions := r.state.ChatSessions()
	changed := 0
	for _, s := range sessions {
		if !slices.Equal(Resolve(s, roster, fallback), s.AgentIDs) {
			changed++
		}
	}
	if changed == 0 {
		return 0
	}

	r.state.UpdateChatSessions(func(v []model.ChatSession) []model.ChatSession {
		for i, s := range v {
			ids := Resolve(s, roster, fallback)
			if slices.Equal(ids, s.AgentIDs) {
				continue
			}
			v[i].AgentIDs = ids
			v[i].AgentID = ""
			if len(ids) > 0 {
				v[i].AgentID = ids[0]
			}
		}
		return v
	})
	r.log.Debug().Int("sessions", changed).Msg("session owners re-resolved")
	return changed
}

// SyncDisplayed pushes the active session's agents into the UI state when
// they differ from what is displayed. It reports whether it changed.
func (r *Reconciler) SyncDisplayed() bool {
	id := r.state.ActiveChatSessionID()
	if id == "" {
		return false
	}
	for _, s := range r.state.ChatSessions() {
		if s.ID == id {
			return r.state.SetDisplayedAgentIDs(Resolve(s, r.state.Personas(), r.fallback()))
		}
	}
	return false
}
