package mutation

import (
	"strings"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
)

const (
	LabelTodoAdded       = "할 일이 추가됨"
	LabelTodoEdited      = "할 일이 수정됨"
	LabelTodoCompleted   = "할 일 완료"
	LabelTodoReopened    = "할 일 완료 취소"
	LabelTodoDeleted     = "할 일이 삭제됨"
	LabelTodoListAdded   = "목록이 추가됨"
	LabelTodoListRenamed = "목록 이름이 변경됨"
	LabelTodoListDeleted = "목록이 삭제됨"
)

// AddTodo appends a todo to listID, or to the first list when listID is
// empty.
func (m *Manager) AddTodo(listID, text string) (model.Todo, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Todo{}, m.reject("add_todo", model.NewValidationError("text", "must not be empty"))
	}
	lists := m.state.TodoLists()
	if listID == "" && len(lists) > 0 {
		listID = lists[0].ID
	}
	if indexOf(lists, listID, todoListID) < 0 {
		return model.Todo{}, m.reject("add_todo", model.NewNotFoundError("listId", listID))
	}

	td := model.Todo{ID: model.NewID(), ListID: listID, Text: text, CreatedAt: m.now()}
	m.state.UpdateTodos(func(v []model.Todo) []model.Todo { return append(v, td) })
	m.record("todo_added", LabelTodoAdded, map[string]string{"todoId": td.ID, "text": td.Text}, func() {
		m.state.UpdateTodos(func(v []model.Todo) []model.Todo { return removeID(v, td.ID, todoID) })
	})
	m.fire(model.TriggerTodoAdded, map[string]any{"text": td.Text, "listId": td.ListID})
	return td, nil
}

// EditTodo replaces the todo sharing td's id. Completion is changed through
// ToggleTodo only.
func (m *Manager) EditTodo(td model.Todo) error {
	td.Text = strings.TrimSpace(td.Text)
	if td.Text == "" {
		return m.reject("edit_todo", model.NewValidationError("text", "must not be empty"))
	}
	var prev model.Todo
	found := false
	m.state.UpdateTodos(func(v []model.Todo) []model.Todo {
		i := indexOf(v, td.ID, todoID)
		if i < 0 {
			return v
		}
		prev, found = v[i], true
		td.Completed = prev.Completed
		td.CreatedAt = prev.CreatedAt
		if td.ListID == "" {
			td.ListID = prev.ListID
		}
		v[i] = td
		return v
	})
	if !found {
		return m.reject("edit_todo", model.NewNotFoundError("todo", td.ID))
	}
	m.record("todo_edited", LabelTodoEdited, map[string]string{"todoId": td.ID}, func() {
		m.state.UpdateTodos(func(v []model.Todo) []model.Todo { return replaceID(v, prev, todoID) })
	})
	return nil
}

// ToggleTodo flips completion and reports the new value. Only completing
// arms undo and fires a trigger.
func (m *Manager) ToggleTodo(id string) (bool, error) {
	var cur model.Todo
	found := false
	m.state.UpdateTodos(func(v []model.Todo) []model.Todo {
		i := indexOf(v, id, todoID)
		if i < 0 {
			return v
		}
		v[i].Completed = !v[i].Completed
		cur, found = v[i], true
		return v
	})
	if !found {
		return false, m.reject("toggle_todo", model.NewNotFoundError("todo", id))
	}

	meta := map[string]string{"todoId": id, "text": cur.Text}
	if !cur.Completed {
		m.record("todo_reopened", LabelTodoReopened, meta, nil)
		return false, nil
	}
	m.record("todo_completed", LabelTodoCompleted, meta, func() {
		m.state.UpdateTodos(func(v []model.Todo) []model.Todo {
			if i := indexOf(v, id, todoID); i >= 0 {
				v[i].Completed = false
			}
			return v
		})
	})
	m.fire(model.TriggerTodoCompleted, map[string]any{"text": cur.Text, "listId": cur.ListID})
	return true, nil
}

// DeleteTodo removes a todo; undo restores it at its old position.
func (m *Manager) DeleteTodo(id string) error {
	var removed model.Todo
	at := -1
	m.state.UpdateTodos(func(v []model.Todo) []model.Todo {
		if at = indexOf(v, id, todoID); at < 0 {
			return v
		}
		removed = v[at]
		return removeID(v, id, todoID)
	})
	if at < 0 {
		return m.reject("delete_todo", model.NewNotFoundError("todo", id))
	}
	m.record("todo_deleted", LabelTodoDeleted, map[string]string{"todoId": id, "text": removed.Text}, func() {
		m.state.UpdateTodos(func(v []model.Todo) []model.Todo { return restoreAt(v, at, removed, todoID) })
	})
	return nil
}

// AddTodoList creates a list. Titles are unique, ignoring case and spaces.
func (m *Manager) AddTodoList(title string) (model.TodoList, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.TodoList{}, m.reject("add_todo_list", model.NewValidationError("title", "must not be empty"))
	}
	if listTitleTaken(m.state.TodoLists(), title, "") {
		return model.TodoList{}, m.reject("add_todo_list", model.NewConflictError("title", title))
	}
	l := model.TodoList{ID: model.NewID(), Title: title, CreatedAt: m.now()}
	m.state.UpdateTodoLists(func(v []model.TodoList) []model.TodoList { return append(v, l) })
	m.record("todo_list_added", LabelTodoListAdded, map[string]string{"listId": l.ID, "title": l.Title}, func() {
		m.state.UpdateTodoLists(func(v []model.TodoList) []model.TodoList { return removeID(v, l.ID, todoListID) })
	})
	return l, nil
}

// RenameTodoList changes a list title.
func (m *Manager) RenameTodoList(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return m.reject("rename_todo_list", model.NewValidationError("title", "must not be empty"))
	}
	if listTitleTaken(m.state.TodoLists(), title, id) {
		return m.reject("rename_todo_list", model.NewConflictError("title", title))
	}
	var prev model.TodoList
	found := false
	m.state.UpdateTodoLists(func(v []model.TodoList) []model.TodoList {
		i := indexOf(v, id, todoListID)
		if i < 0 {
			return v
		}
		prev, found = v[i], true
		v[i].Title = title
		return v
	})
	if !found {
		return m.reject("rename_todo_list", model.NewNotFoundError("list", id))
	}
	m.record("todo_list_renamed", LabelTodoListRenamed, map[string]string{"listId": id, "title": title}, func() {
		m.state.UpdateTodoLists(func(v []model.TodoList) []model.TodoList { return replaceID(v, prev, todoListID) })
	})
	return nil
}

// DeleteTodoList removes a list and its todos. The last list cannot be
// deleted.
func (m *Manager) DeleteTodoList(id string) error {
	lists := m.state.TodoLists()
	at := indexOf(lists, id, todoListID)
	if at < 0 {
		return m.reject("delete_todo_list", model.NewNotFoundError("list", id))
	}
	if len(lists) == 1 {
		return m.reject("delete_todo_list", model.NewValidationError("list", "at least one list must remain"))
	}
	list := lists[at]

	var orphans []model.Todo
	m.state.UpdateTodos(func(v []model.Todo) []model.Todo {
		kept := v[:0]
		for _, td := range v {
			if td.ListID == id {
				orphans = append(orphans, td)
				continue
			}
			kept = append(kept, td)
		}
		return kept
	})
	m.state.UpdateTodoLists(func(v []model.TodoList) []model.TodoList { return removeID(v, id, todoListID) })

	m.record("todo_list_deleted", LabelTodoListDeleted, map[string]string{"listId": id, "title": list.Title}, func() {
		m.state.UpdateTodoLists(func(v []model.TodoList) []model.TodoList { return restoreAt(v, at, list, todoListID) })
		m.state.UpdateTodos(func(v []model.Todo) []model.Todo {
			for _, td := range orphans {
				if indexOf(v, td.ID, todoID) < 0 {
					v = append(v, td)
				}
			}
			return v
		})
	})
	return nil
}

func listTitleTaken(lists []model.TodoList, title, exceptID string) bool {
	folded := model.FoldName(title)
	for _, l := range lists {
		if l.ID != exceptID && model.FoldName(l.Title) == folded {
			return true
		}
	}
	return false
}
