package mutation

import (
	"strings"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
)

const (
	LabelEventAdded   = "일정이 추가됨"
	LabelEventUpdated = "일정이 수정됨"
	LabelEventDeleted = "일정이 삭제됨"
	LabelTagAdded     = "태그가 추가됨"
	LabelTagDeleted   = "태그가 삭제됨"
)

func validateEvent(ev model.Event) error {
	if strings.TrimSpace(ev.Title) == "" {
		return model.NewValidationError("title", "must not be empty")
	}
	if strings.TrimSpace(ev.Date) == "" {
		return model.NewValidationError("date", "must not be empty")
	}
	return nil
}

// AddEvent stores a new calendar event. ID and CreatedAt are assigned here.
func (m *Manager) AddEvent(ev model.Event) (model.Event, error) {
	ev.Title = strings.TrimSpace(ev.Title)
	if err := validateEvent(ev); err != nil {
		return model.Event{}, m.reject("add_event", err)
	}
	ev.ID = model.NewID()
	ev.CreatedAt = m.now()

	m.state.UpdateEvents(func(v []model.Event) []model.Event { return append(v, ev) })
	m.record("event_added", LabelEventAdded, map[string]string{"eventId": ev.ID, "title": ev.Title}, func() {
		m.state.UpdateEvents(func(v []model.Event) []model.Event { return removeID(v, ev.ID, eventID) })
	})
	m.fire(model.TriggerEventAdded, map[string]any{
		"title":     ev.Title,
		"date":      ev.Date,
		"startTime": ev.StartTime,
	})
	return ev, nil
}

// UpdateEvent replaces the event sharing ev's id.
func (m *Manager) UpdateEvent(ev model.Event) error {
	ev.Title = strings.TrimSpace(ev.Title)
	if err := validateEvent(ev); err != nil {
		return m.reject("update_event", err)
	}
	var prev model.Event
	found := false
	m.state.UpdateEvents(func(v []model.Event) []model.Event {
		i := indexOf(v, ev.ID, eventID)
		if i < 0 {
			return v
		}
		prev, found = v[i], true
		ev.CreatedAt = prev.CreatedAt
		v[i] = ev
		return v
	})
	if !found {
		return m.reject("update_event", model.NewNotFoundError("event", ev.ID))
	}
	m.record("event_updated", LabelEventUpdated, map[string]string{"eventId": ev.ID, "title": ev.Title}, func() {
		m.state.UpdateEvents(func(v []model.Event) []model.Event { return replaceID(v, prev, eventID) })
	})
	return nil
}

// DeleteEvent removes an event.
func (m *Manager) DeleteEvent(id string) error {
	var removed model.Event
	at := -1
	m.state.UpdateEvents(func(v []model.Event) []model.Event {
		if at = indexOf(v, id, eventID); at < 0 {
			return v
		}
		removed = v[at]
		return removeID(v, id, eventID)
	})
	if at < 0 {
		return m.reject("delete_event", model.NewNotFoundError("event", id))
	}
	m.record("event_deleted", LabelEventDeleted, map[string]string{"eventId": id, "title": removed.Title}, func() {
		m.state.UpdateEvents(func(v []model.Event) []model.Event { return restoreAt(v, at, removed, eventID) })
	})
	return nil
}

// AddCalendarTag creates a tag. Names are unique, ignoring case and spaces.
func (m *Manager) AddCalendarTag(name, color string) (model.CalendarTag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.CalendarTag{}, m.reject("add_calendar_tag", model.NewValidationError("name", "must not be empty"))
	}
	folded := model.FoldName(name)
	for _, t := range m.state.CalendarTags() {
		if model.FoldName(t.Name) == folded {
			return model.CalendarTag{}, m.reject("add_calendar_tag", model.NewConflictError("name", name))
		}
	}
	tag := model.CalendarTag{ID: model.NewID(), Name: name, Color: color}
	m.state.UpdateCalendarTags(func(v []model.CalendarTag) []model.CalendarTag { return append(v, tag) })
	m.record("calendar_tag_added", LabelTagAdded, map[string]string{"tagId": tag.ID, "name": name}, func() {
		m.state.UpdateCalendarTags(func(v []model.CalendarTag) []model.CalendarTag { return removeID(v, tag.ID, tagID) })
	})
	return tag, nil
}

// DeleteCalendarTag removes a tag. Events keep their tag reference.
func (m *Manager) DeleteCalendarTag(id string) error {
	var removed model.CalendarTag
	at := -1
	m.state.UpdateCalendarTags(func(v []model.CalendarTag) []model.CalendarTag {
		if at = indexOf(v, id, tagID); at < 0 {
			return v
		}
		removed = v[at]
		return removeID(v, id, tagID)
	})
	if at < 0 {
		return m.reject("delete_calendar_tag", model.NewNotFoundError("tag", id))
	}
	m.record("calendar_tag_deleted", LabelTagDeleted, map[string]string{"tagId": id, "name": removed.Name}, func() {
		m.state.UpdateCalendarTags(func(v []model.CalendarTag) []model.CalendarTag { return restoreAt(v, at, removed, tagID) })
	})
	return nil
}
