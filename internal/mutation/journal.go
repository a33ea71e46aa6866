package mutation

import (
	"strings"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
)

const (
	LabelJournalAdded     = "일기가 작성됨"
	LabelJournalUpdated   = "일기가 수정됨"
	LabelJournalDeleted   = "일기가 삭제됨"
	LabelCategoryAdded    = "카테고리가 추가됨"
	LabelCategoryDeleted  = "카테고리가 삭제됨"
	defaultJournalExcerpt = 200
)

// AddJournalEntry stores a new entry, fires the journal trigger with the
// entry's mood and requests an AI comment.
func (m *Manager) AddJournalEntry(e model.JournalEntry) (model.JournalEntry, error) {
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" && strings.TrimSpace(e.Content) == "" {
		return model.JournalEntry{}, m.reject("add_journal_entry", model.NewValidationError("content", "title or content required"))
	}
	cats := m.state.JournalCategories()
	if e.CategoryID == "" || indexOf(cats, e.CategoryID, categoryID) < 0 {
		e.CategoryID = ""
		if len(cats) > 0 {
			e.CategoryID = cats[0].ID
		}
	}
	e.ID = model.NewID()
	e.Category = ""
	e.Comments = nil
	e.CreatedAt = m.now()
	if e.Date == "" {
		e.Date = e.CreatedAt.Format("2006-01-02")
	}

	m.state.UpdateJournalEntries(func(v []model.JournalEntry) []model.JournalEntry { return append([]model.JournalEntry{e}, v...) })
	m.record("journal_added", LabelJournalAdded, map[string]string{"entryId": e.ID, "title": e.Title}, func() {
		m.state.UpdateJournalEntries(func(v []model.JournalEntry) []model.JournalEntry { return removeID(v, e.ID, entryID) })
	})
	m.fire(model.TriggerJournalAdded, map[string]any{
		"title":   e.Title,
		"mood":    e.Mood,
		"excerpt": excerpt(e.Content, defaultJournalExcerpt),
	})
	m.requestComment(e.ID)
	return e, nil
}

// UpdateJournalEntry replaces an entry's editable fields. Comments are kept.
func (m *Manager) UpdateJournalEntry(e model.JournalEntry) error {
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" && strings.TrimSpace(e.Content) == "" {
		return m.reject("update_journal_entry", model.NewValidationError("content", "title or content required"))
	}
	var prev model.JournalEntry
	found := false
	m.state.UpdateJournalEntries(func(v []model.JournalEntry) []model.JournalEntry {
		i := indexOf(v, e.ID, entryID)
		if i < 0 {
			return v
		}
		prev, found = v[i], true
		e.Comments = prev.Comments
		e.CreatedAt = prev.CreatedAt
		e.Category = ""
		if e.CategoryID == "" {
			e.CategoryID = prev.CategoryID
		}
		v[i] = e
		return v
	})
	if !found {
		return m.reject("update_journal_entry", model.NewNotFoundError("entry", e.ID))
	}
	m.record("journal_updated", LabelJournalUpdated, map[string]string{"entryId": e.ID, "title": e.Title}, func() {
		m.state.UpdateJournalEntries(func(v []model.JournalEntry) []model.JournalEntry { return replaceID(v, prev, entryID) })
	})
	return nil
}

// DeleteJournalEntry removes an entry.
func (m *Manager) DeleteJournalEntry(id string) error {
	var removed model.JournalEntry
	at := -1
	m.state.UpdateJournalEntries(func(v []model.JournalEntry) []model.JournalEntry {
		if at = indexOf(v, id, entryID); at < 0 {
			return v
		}
		removed = v[at]
		return removeID(v, id, entryID)
	})
	if at < 0 {
		return m.reject("delete_journal_entry", model.NewNotFoundError("entry", id))
	}
	m.record("journal_deleted", LabelJournalDeleted, map[string]string{"entryId": id, "title": removed.Title}, func() {
		m.state.UpdateJournalEntries(func(v []model.JournalEntry) []model.JournalEntry { return restoreAt(v, at, removed, entryID) })
	})
	return nil
}

// AddJournalCategory creates a category. Duplicate names, ignoring case and
// spaces, are rejected.
func (m *Manager) AddJournalCategory(name, color string) (model.JournalCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.JournalCategory{}, m.reject("add_journal_category", model.NewValidationError("name", "must not be empty"))
	}
	folded := model.FoldName(name)
	for _, c := range m.state.JournalCategories() {
		if model.FoldName(c.Name) == folded {
			return model.JournalCategory{}, m.reject("add_journal_category", model.NewConflictError("name", name))
		}
	}
	cat := model.JournalCategory{ID: model.NewID(), Name: name, Color: color}
	m.state.UpdateJournalCategories(func(v []model.JournalCategory) []model.JournalCategory { return append(v, cat) })
	m.record("journal_category_added", LabelCategoryAdded, map[string]string{"categoryId": cat.ID, "name": name}, func() {
		m.state.UpdateJournalCategories(func(v []model.JournalCategory) []model.JournalCategory { return removeID(v, cat.ID, categoryID) })
	})
	return cat, nil
}

// DeleteJournalCategory removes a category and moves its entries to the
// first remaining one. The last category cannot be deleted.
func (m *Manager) DeleteJournalCategory(id string) error {
	cats := m.state.JournalCategories()
	at := indexOf(cats, id, categoryID)
	if at < 0 {
		return m.reject("delete_journal_category", model.NewNotFoundError("category", id))
	}
	if len(cats) == 1 {
		return m.reject("delete_journal_category", model.NewValidationError("category", "at least one category must remain"))
	}
	removed := cats[at]
	target := cats[0].ID
	if target == id {
		target = cats[1].ID
	}

	var moved []string
	m.state.UpdateJournalCategories(func(v []model.JournalCategory) []model.JournalCategory { return removeID(v, id, categoryID) })
	m.state.UpdateJournalEntries(func(v []model.JournalEntry) []model.JournalEntry {
		for i := range v {
			if v[i].CategoryID == id {
				v[i].CategoryID = target
				moved = append(moved, v[i].ID)
			}
		}
		return v
	})

	m.record("journal_category_deleted", LabelCategoryDeleted, map[string]string{"categoryId": id, "name": removed.Name}, func() {
		m.state.UpdateJournalCategories(func(v []model.JournalCategory) []model.JournalCategory {
			return restoreAt(v, at, removed, categoryID)
		})
		m.state.UpdateJournalEntries(func(v []model.JournalEntry) []model.JournalEntry {
			for _, eid := range moved {
				if i := indexOf(v, eid, entryID); i >= 0 && v[i].CategoryID == target {
					v[i].CategoryID = id
				}
			}
			return v
		})
	})
	return nil
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
