package mutation

import (
	"strings"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/agents"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
)

const (
	LabelChatDeleted   = "대화가 삭제됨"
	defaultChatTitle   = "새 대화"
	chatTitleMaxRunes  = 30
	activityChatPrefix = "대화: "
)

// CreateChatSession starts a session owned by agentIDs and makes it active.
func (m *Manager) CreateChatSession(agentIDs []string) model.ChatSession {
	now := m.now()
	s := model.NormalizeChatSession(model.ChatSession{
		ID:            model.NewID(),
		Title:         defaultChatTitle,
		Messages:      []model.ChatMessage{},
		CreatedAt:     now,
		LastMessageAt: now,
		AgentIDs:      agentIDs,
	})
	m.state.UpdateChatSessions(func(v []model.ChatSession) []model.ChatSession {
		return append([]model.ChatSession{s}, v...)
	})
	m.state.SetActiveChatSessionID(s.ID)
	return s
}

// AppendChatMessage appends msg to a session. The message list is replaced,
// never edited in place. The first user message names an untitled session.
// An assistant message on an ownerless session assigns owners: its own
// persona if tagged, else the resolved roster choice.
func (m *Manager) AppendChatMessage(sessionID string, msg model.ChatMessage) (model.ChatMessage, error) {
	if strings.TrimSpace(msg.Content) == "" {
		return model.ChatMessage{}, m.reject("append_chat_message", model.NewValidationError("content", "must not be empty"))
	}
	if msg.Role != model.RoleUser && msg.Role != model.RoleAssistant {
		return model.ChatMessage{}, m.reject("append_chat_message", model.NewValidationError("role", msg.Role))
	}
	if msg.ID == "" {
		msg.ID = model.NewID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = m.now()
	}

	roster := m.state.Personas()
	found := false
	m.state.UpdateChatSessions(func(v []model.ChatSession) []model.ChatSession {
		i := indexOf(v, sessionID, chatSessionID)
		if i < 0 {
			return v
		}
		found = true
		s := v[i]
		msgs := make([]model.ChatMessage, 0, len(s.Messages)+1)
		msgs = append(msgs, s.Messages...)
		s.Messages = append(msgs, msg)
		s.LastMessageAt = msg.Timestamp
		if msg.Role == model.RoleUser && (s.Title == "" || s.Title == defaultChatTitle) {
			s.Title = chatTitle(msg.Content)
		}
		if msg.Role == model.RoleAssistant && msg.AgentID != "" && len(s.AgentIDs) == 0 && s.AgentID == "" {
			s.AgentIDs = []string{msg.AgentID}
		}
		s = model.NormalizeChatSession(s)
		if msg.Role == model.RoleAssistant && len(s.AgentIDs) == 0 {
			s.AgentIDs = agents.Resolve(s, roster, nil)
			if len(s.AgentIDs) == 0 {
				s.AgentIDs = []string{model.DefaultPersonaID}
			}
			s = model.NormalizeChatSession(s)
		}
		v[i] = s
		return v
	})
	if !found {
		return model.ChatMessage{}, m.reject("append_chat_message", model.NewNotFoundError("session", sessionID))
	}
	if msg.Role == model.RoleUser {
		m.appendActivity("chat_message", activityChatPrefix+excerpt(msg.Content, chatTitleMaxRunes), map[string]string{"sessionId": sessionID})
	}
	return msg, nil
}

// DeleteChatSession removes a session and clears it as active.
func (m *Manager) DeleteChatSession(id string) error {
	var removed model.ChatSession
	at := -1
	m.state.UpdateChatSessions(func(v []model.ChatSession) []model.ChatSession {
		if at = indexOf(v, id, chatSessionID); at < 0 {
			return v
		}
		removed = v[at]
		return removeID(v, id, chatSessionID)
	})
	if at < 0 {
		return m.reject("delete_chat_session", model.NewNotFoundError("session", id))
	}
	wasActive := m.state.ActiveChatSessionID() == id
	if wasActive {
		m.state.SetActiveChatSessionID("")
	}
	m.record("chat_deleted", LabelChatDeleted, map[string]string{"sessionId": id, "title": removed.Title}, func() {
		m.state.UpdateChatSessions(func(v []model.ChatSession) []model.ChatSession { return restoreAt(v, at, removed, chatSessionID) })
		if wasActive {
			m.state.SetActiveChatSessionID(id)
		}
	})
	return nil
}

// SetActiveChatSession selects the session shown in the chat view. An empty
// id clears the selection.
func (m *Manager) SetActiveChatSession(id string) error {
	if id != "" && indexOf(m.state.ChatSessions(), id, chatSessionID) < 0 {
		return m.reject("set_active_chat_session", model.NewNotFoundError("session", id))
	}
	m.state.SetActiveChatSessionID(id)
	return nil
}

func chatTitle(content string) string {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(content), "\n", 2)[0])
	r := []rune(line)
	if len(r) > chatTitleMaxRunes {
		return string(r[:chatTitleMaxRunes])
	}
	return line
}
