package mutation

import (
	"strings"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
)

const (
	LabelPersonaAdded   = "페르소나가 추가됨"
	LabelPersonaUpdated = "페르소나가 수정됨"
	LabelPersonaDeleted = "페르소나가 삭제됨"
	LabelPostDeleted    = "게시글이 삭제됨"
)

func (m *Manager) personaNameTaken(name, exceptID string) bool {
	folded := model.FoldName(name)
	for _, p := range m.state.Personas() {
		if p.ID != exceptID && model.FoldName(p.Name) == folded {
			return true
		}
	}
	return false
}

// AddPersona adds p to the roster with a fresh id.
func (m *Manager) AddPersona(p model.Persona) (model.Persona, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return model.Persona{}, m.reject("add_persona", model.NewValidationError("name", "must not be empty"))
	}
	if m.personaNameTaken(p.Name, "") {
		return model.Persona{}, m.reject("add_persona", model.NewConflictError("name", p.Name))
	}
	p.ID = model.NewID()
	m.state.UpdatePersonas(func(v []model.Persona) []model.Persona { return append(v, p) })
	m.record("persona_added", LabelPersonaAdded, map[string]string{"personaId": p.ID, "name": p.Name}, func() {
		m.state.UpdatePersonas(func(v []model.Persona) []model.Persona { return removeID(v, p.ID, personaID) })
	})
	return p, nil
}

// UpdatePersona replaces the persona sharing p's id.
func (m *Manager) UpdatePersona(p model.Persona) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return m.reject("update_persona", model.NewValidationError("name", "must not be empty"))
	}
	if m.personaNameTaken(p.Name, p.ID) {
		return m.reject("update_persona", model.NewConflictError("name", p.Name))
	}
	var prev model.Persona
	found := false
	m.state.UpdatePersonas(func(v []model.Persona) []model.Persona {
		i := indexOf(v, p.ID, personaID)
		if i < 0 {
			return v
		}
		prev, found = v[i], true
		v[i] = p
		return v
	})
	if !found {
		return m.reject("update_persona", model.NewNotFoundError("persona", p.ID))
	}
	m.record("persona_updated", LabelPersonaUpdated, map[string]string{"personaId": p.ID, "name": p.Name}, func() {
		m.state.UpdatePersonas(func(v []model.Persona) []model.Persona { return replaceID(v, prev, personaID) })
	})
	return nil
}

// DeletePersona removes a persona. Chat sessions owned by it are re-resolved
// by the agent reconciler.
func (m *Manager) DeletePersona(id string) error {
	var removed model.Persona
	at := -1
	m.state.UpdatePersonas(func(v []model.Persona) []model.Persona {
		if at = indexOf(v, id, personaID); at < 0 {
			return v
		}
		removed = v[at]
		return removeID(v, id, personaID)
	})
	if at < 0 {
		return m.reject("delete_persona", model.NewNotFoundError("persona", id))
	}
	m.record("persona_deleted", LabelPersonaDeleted, map[string]string{"personaId": id, "name": removed.Name}, func() {
		m.state.UpdatePersonas(func(v []model.Persona) []model.Persona { return restoreAt(v, at, removed, personaID) })
	})
	return nil
}

// DeletePost removes a community post.
func (m *Manager) DeletePost(id string) error {
	var removed model.CommunityPost
	at := -1
	m.state.UpdateCommunityPosts(func(v []model.CommunityPost) []model.CommunityPost {
		if at = indexOf(v, id, postID); at < 0 {
			return v
		}
		removed = v[at]
		return removeID(v, id, postID)
	})
	if at < 0 {
		return m.reject("delete_post", model.NewNotFoundError("post", id))
	}
	m.record("post_deleted", LabelPostDeleted, map[string]string{"postId": id}, func() {
		m.state.UpdateCommunityPosts(func(v []model.CommunityPost) []model.CommunityPost { return restoreAt(v, at, removed, postID) })
	})
	return nil
}
