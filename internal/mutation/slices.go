package mutation

import "github.com/daejaeonboy/lifesync-ai-sub000/internal/model"

func indexOf[T any](items []T, id string, idOf func(T) string) int {
	for i, it := range items {
		if idOf(it) == id {
			return i
		}
	}
	return -1
}

func removeID[T any](items []T, id string, idOf func(T) string) []T {
	out := items[:0]
	for _, it := range items {
		if idOf(it) != id {
			out = append(out, it)
		}
	}
	return out
}

// restoreAt puts v back at index i unless an item with its id is already
// present.
func restoreAt[T any](items []T, i int, v T, idOf func(T) string) []T {
	if indexOf(items, idOf(v), idOf) >= 0 {
		return items
	}
	if i < 0 || i > len(items) {
		i = len(items)
	}
	items = append(items, v)
	copy(items[i+1:], items[i:])
	items[i] = v
	return items
}

// replaceID swaps in v for the item sharing its id.
func replaceID[T any](items []T, v T, idOf func(T) string) []T {
	if i := indexOf(items, idOf(v), idOf); i >= 0 {
		items[i] = v
	}
	return items
}

func todoID(v model.Todo) string { return v.ID }
func todoListID(v model.TodoList) string { return v.ID }
func eventID(v model.Event) string { return v.ID }
func entryID(v model.JournalEntry) string { return v.ID }
func categoryID(v model.JournalCategory) string { return v.ID }
func personaID(v model.Persona) string { return v.ID }
func postID(v model.CommunityPost) string { return v.ID }
func chatSessionID(v model.ChatSession) string { return v.ID }
func tagID(v model.CalendarTag) string { return v.ID }
func connectionID(v model.APIConnection) string { return v.ID }
