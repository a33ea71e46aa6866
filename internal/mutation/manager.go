// Package mutation applies every user-initiated change optimistically:
// the state container is updated first, one activity item is appended and a
// single-slot undo is armed. Remote persistence follows from the syncer's
// write-through observers reacting to the state change.
package mutation

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/state"
)

// Reactor receives semantic triggers for AI reactions. Trigger must not
// block.
type Reactor interface {
	Trigger(kind model.TriggerKind, data map[string]any)
}

// Commenter requests an AI comment on a journal entry.
type Commenter interface {
	Request(entryID string)
}

// Options configures a Manager. Zero values fall back to defaults.
type Options struct {
	UndoTTL       time.Duration
	ActivityLimit int
	Clock         func() time.Time
	Reactor       Reactor
	Commenter     Commenter
}

// Undo describes the pending undo slot.
type Undo struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type pendingUndo struct {
	Undo
	inverse func()
}

// Manager owns the mutation functions and the undo slot.
type Manager struct {
	state *state.Store
	log   zerolog.Logger
	opts  Options

	mu      sync.Mutex
	pending *pendingUndo
}

// New returns a Manager operating on st.
func New(st *state.Store, log zerolog.Logger, opts Options) *Manager {
	if opts.UndoTTL <= 0 {
		opts.UndoTTL = 6 * time.Second
	}
	if opts.ActivityLimit <= 0 {
		opts.ActivityLimit = model.DefaultActivityLimit
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Manager{state: st, log: log, opts: opts}
}

// SetReactor replaces the trigger sink.
func (m *Manager) SetReactor(r Reactor) {
	m.mu.Lock()
	m.opts.Reactor = r
	m.mu.Unlock()
}

// SetCommenter replaces the journal comment sink.
func (m *Manager) SetCommenter(c Commenter) {
	m.mu.Lock()
	m.opts.Commenter = c
	m.mu.Unlock()
}

func (m *Manager) now() time.Time { return m.opts.Clock().UTC() }

// PendingUndo returns the armed undo, if it has not expired.
func (m *Manager) PendingUndo() (Undo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil || m.now().After(m.pending.ExpiresAt) {
		return Undo{}, false
	}
	return m.pending.Undo, true
}

// Undo runs the pending inverse and clears the slot. It reports whether an
// undo ran.
func (m *Manager) Undo() bool {
	m.mu.Lock()
	u := m.pending
	m.pending = nil
	m.mu.Unlock()

	if u == nil || m.now().After(u.ExpiresAt) {
		return false
	}
	u.inverse()
	m.appendActivity("undo", "취소(Undo): "+u.Label, map[string]string{"undoId": u.ID})
	undoTotal.WithLabelValues("invoked").Inc()
	m.log.Debug().Str("undo_id", u.ID).Str("label", u.Label).Msg("undo applied")
	return true
}

// arm replaces the undo slot. The expiry timer only clears the slot while it
// still holds the same id.
func (m *Manager) arm(label string, inverse func()) {
	id := model.NewID()
	m.mu.Lock()
	if m.pending != nil {
		undoTotal.WithLabelValues("replaced").Inc()
	}
	m.pending = &pendingUndo{
		Undo:    Undo{ID: id, Label: label, ExpiresAt: m.now().Add(m.opts.UndoTTL)},
		inverse: inverse,
	}
	m.mu.Unlock()
	undoTotal.WithLabelValues("armed").Inc()

	time.AfterFunc(m.opts.UndoTTL, func() { m.expire(id) })
}

func (m *Manager) expire(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil && m.pending.ID == id {
		m.pending = nil
		undoTotal.WithLabelValues("expired").Inc()
	}
}

// record logs the change and arms undo when inverse is non-nil.
func (m *Manager) record(typ, label string, meta map[string]string, inverse func()) {
	m.appendActivity(typ, label, meta)
	mutationsTotal.WithLabelValues(typ).Inc()
	if inverse != nil {
		m.arm(label, inverse)
	}
}

func (m *Manager) appendActivity(typ, label string, meta map[string]string) {
	item := model.NewActivity(typ, label, meta, m.now())
	m.state.UpdateActivityLog(func(v []model.ActivityItem) []model.ActivityItem {
		return model.AppendActivity(v, item, m.opts.ActivityLimit)
	})
}

func (m *Manager) fire(kind model.TriggerKind, data map[string]any) {
	m.mu.Lock()
	r := m.opts.Reactor
	m.mu.Unlock()
	if r != nil {
		r.Trigger(kind, data)
	}
}

func (m *Manager) requestComment(entryID string) {
	m.mu.Lock()
	c := m.opts.Commenter
	m.mu.Unlock()
	if c != nil {
		c.Request(entryID)
	}
}

// reject logs a refused mutation and hands err back to the caller.
func (m *Manager) reject(op string, err error) error {
	rejectedTotal.WithLabelValues(op).Inc()
	m.log.Debug().Err(err).Str("op", op).Msg("mutation rejected")
	return err
}
