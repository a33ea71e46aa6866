package trigger

import (
	"context"
	"sync"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
)

const commentChain = "journal_comment"

// Commenter appends one AI comment to a journal entry. At most one request
// per entry is outstanding, and an entry that already has a comment is
// never commented again.
type Commenter struct {
	s *Scheduler

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewCommenter shares s's generator, rotation and queue.
func NewCommenter(s *Scheduler) *Commenter {
	return &Commenter{s: s, inFlight: map[string]struct{}{}}
}

// InFlight reports whether a comment request for entryID is outstanding.
func (c *Commenter) InFlight(entryID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[entryID]
	return ok
}

// Request schedules a comment for entryID and returns immediately.
func (c *Commenter) Request(entryID string) {
	if !c.s.Enabled() {
		return
	}
	entry, ok := c.entry(entryID)
	if !ok || len(entry.Comments) > 0 {
		return
	}

	c.mu.Lock()
	if _, busy := c.inFlight[entryID]; busy {
		c.mu.Unlock()
		return
	}
	c.inFlight[entryID] = struct{}{}
	c.mu.Unlock()

	persona := c.s.rotation.Next(commentChain, c.s.state.Personas())
	err := c.s.enqueue(commentChain+":"+entryID, func(ctx context.Context) error {
		defer c.release(entryID)
		c.run(ctx, entry, persona)
		return nil
	})
	if err != nil {
		c.release(entryID)
		c.s.log.Warn().Err(err).Str("entry_id", entryID).Msg("comment request dropped")
	}
}

func (c *Commenter) release(entryID string) {
	c.mu.Lock()
	delete(c.inFlight, entryID)
	c.mu.Unlock()
}

func (c *Commenter) entry(id string) (model.JournalEntry, bool) {
	for _, e := range c.s.state.JournalEntries() {
		if e.ID == id {
			return e, true
		}
	}
	return model.JournalEntry{}, false
}

func (c *Commenter) run(ctx context.Context, entry model.JournalEntry, p model.Persona) {
	resp, err := c.s.generate(ctx, BuildCommentPrompt(p, entry))
	if err != nil {
		generationFailures.WithLabelValues("comment").Inc()
		c.s.log.Warn().Err(err).Str("entry_id", entry.ID).Msg("comment generation failed")
		return
	}
	comment := model.Comment{
		ID:        model.NewID(),
		Author:    p.ID,
		Content:   resp.Text,
		Timestamp: c.s.opts.Clock().UTC(),
	}

	c.s.recordUsage(resp)

	added := false
	c.s.state.UpdateJournalEntries(func(v []model.JournalEntry) []model.JournalEntry {
		for i := range v {
			if v[i].ID == entry.ID && len(v[i].Comments) == 0 {
				v[i].Comments = []model.Comment{comment}
				added = true
			}
		}
		return v
	})
	if !added {
		// Entry deleted or commented while generating.
		return
	}
	commentsCreated.Inc()
	c.s.log.Info().Str("entry_id", entry.ID).Str("persona", p.ID).Msg("journal comment added")
}
