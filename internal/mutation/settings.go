package mutation

import (
	"strings"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
)

const (
	LabelAutoReactionsOn    = "AI 자동 반응 켜짐"
	LabelAutoReactionsOff   = "AI 자동 반응 꺼짐"
	LabelConnectionAdded    = "API 연결이 추가됨"
	LabelConnectionSelected = "활성 API 연결 변경"
	LabelUsageReset         = "API 사용량 초기화"
)

// SetAutoAIReactions turns automatic AI reactions on or off.
func (m *Manager) SetAutoAIReactions(on bool) {
	prev := m.state.UpdateSettings(func(s model.Settings) model.Settings {
		s.AutoAIReactions = on
		return s
	})
	if prev.AutoAIReactions == on {
		return
	}
	label := LabelAutoReactionsOff
	if on {
		label = LabelAutoReactionsOn
	}
	m.record("settings_auto_reactions", label, nil, func() {
		m.state.UpdateSettings(func(s model.Settings) model.Settings {
			s.AutoAIReactions = prev.AutoAIReactions
			return s
		})
	})
}

// AddAPIConnection stores a provider connection. The first connection, or
// one flagged active, becomes the active connection.
func (m *Manager) AddAPIConnection(c model.APIConnection) (model.APIConnection, error) {
	c.Provider = strings.TrimSpace(c.Provider)
	c.Model = strings.TrimSpace(c.Model)
	if c.Provider == "" {
		return model.APIConnection{}, m.reject("add_api_connection", model.NewValidationError("provider", "must not be empty"))
	}
	if c.Model == "" {
		return model.APIConnection{}, m.reject("add_api_connection", model.NewValidationError("model", "must not be empty"))
	}
	c.ID = model.NewID()

	prev := m.state.UpdateSettings(func(s model.Settings) model.Settings {
		activate := c.IsActive || len(s.APIConnections) == 0
		c.IsActive = false
		s.APIConnections = append(s.APIConnections, c)
		if activate {
			s.ActiveConnectionID = c.ID
		}
		return model.NormalizeSettings(s)
	})
	m.record("settings_connection_added", LabelConnectionAdded, map[string]string{"connectionId": c.ID, "provider": c.Provider}, func() {
		m.state.UpdateSettings(func(s model.Settings) model.Settings {
			s.APIConnections = removeID(s.APIConnections, c.ID, connectionID)
			if s.ActiveConnectionID == c.ID {
				s.ActiveConnectionID = prev.ActiveConnectionID
			}
			return model.NormalizeSettings(s)
		})
	})
	if conn, ok := m.state.Settings().ActiveConnection(); ok && conn.ID == c.ID {
		c.IsActive = true
	}
	return c, nil
}

// SetActiveConnection makes id the active connection for its provider.
func (m *Manager) SetActiveConnection(id string) error {
	if indexOf(m.state.Settings().APIConnections, id, connectionID) < 0 {
		return m.reject("set_active_connection", model.NewNotFoundError("connection", id))
	}
	prev := m.state.UpdateSettings(func(s model.Settings) model.Settings {
		s.ActiveConnectionID = id
		return model.NormalizeSettings(s)
	})
	if prev.ActiveConnectionID == id {
		return nil
	}
	m.record("settings_connection_selected", LabelConnectionSelected, map[string]string{"connectionId": id}, func() {
		m.state.UpdateSettings(func(s model.Settings) model.Settings {
			s.ActiveConnectionID = prev.ActiveConnectionID
			for i := range s.APIConnections {
				if j := indexOf(prev.APIConnections, s.APIConnections[i].ID, connectionID); j >= 0 {
					s.APIConnections[i].IsActive = prev.APIConnections[j].IsActive
				}
			}
			return model.NormalizeSettings(s)
		})
	})
	return nil
}

// ResetUsage zeroes the usage counters. It is the only way they decrease.
func (m *Manager) ResetUsage() {
	prev := m.state.UpdateSettings(func(s model.Settings) model.Settings {
		s.APIUsage = model.APIUsage{}
		return s
	})
	m.record("settings_usage_reset", LabelUsageReset, nil, func() {
		m.state.UpdateSettings(func(s model.Settings) model.Settings {
			s.APIUsage.TotalRequests += prev.APIUsage.TotalRequests
			s.APIUsage.TotalTokens += prev.APIUsage.TotalTokens
			if prev.APIUsage.LastRequestDate.After(s.APIUsage.LastRequestDate) {
				s.APIUsage.LastRequestDate = prev.APIUsage.LastRequestDate
			}
			return s
		})
	})
}
