package model

import "strings"

// NormalizeChatSession upgrades a persisted session to the current shape:
// a legacy AgentID is folded into AgentIDs, duplicates and blanks are
// dropped, and AgentID is re-pointed at AgentIDs[0].
func NormalizeChatSession(s ChatSession) ChatSession {
	ids := make([]string, 0, len(s.AgentIDs)+1)
	ids = append(ids, s.AgentIDs...)
	if s.AgentID != "" {
		ids = append(ids, s.AgentID)
	}
	s.AgentIDs = DedupeIDs(ids)
	if len(s.AgentIDs) == 0 {
		s.AgentIDs = nil
		s.AgentID = ""
	} else {
		s.AgentID = s.AgentIDs[0]
	}
	if s.Messages == nil {
		s.Messages = []ChatMessage{}
	}
	return s
}

// NormalizeChatSessions applies NormalizeChatSession to every session.
func NormalizeChatSessions(in []ChatSession) []ChatSession {
	out := make([]ChatSession, len(in))
	for i, s := range in {
		out[i] = NormalizeChatSession(s)
	}
	return out
}

// DedupeIDs removes blanks and duplicates while keeping first-seen order.
func DedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// FoldName lower-cases a name and strips every whitespace rune.
func FoldName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "")
}

// NormalizeJournalEntries resolves legacy category names into category ids.
// A name matching no category maps to the first category.
func NormalizeJournalEntries(entries []JournalEntry, categories []JournalCategory) []JournalEntry {
	byID := make(map[string]struct{}, len(categories))
	byName := make(map[string]string, len(categories))
	for _, c := range categories {
		byID[c.ID] = struct{}{}
		byName[FoldName(c.Name)] = c.ID
	}
	fallback := ""
	if len(categories) > 0 {
		fallback = categories[0].ID
	}

	out := make([]JournalEntry, len(entries))
	for i, e := range entries {
		if _, ok := byID[e.CategoryID]; !ok && len(categories) > 0 {
			switch {
			case e.Category != "":
				if id, ok := byName[FoldName(e.Category)]; ok {
					e.CategoryID = id
				} else {
					e.CategoryID = fallback
				}
			case e.CategoryID != "":
				// Older builds wrote the category name into the id slot.
				if id, ok := byName[FoldName(e.CategoryID)]; ok {
					e.CategoryID = id
				} else {
					e.CategoryID = fallback
				}
			default:
				e.CategoryID = fallback
			}
		}
		e.Category = ""
		out[i] = e
	}
	return out
}

// NormalizeSettings keeps at most one active connection per provider, with
// ActiveConnectionID winning, and clamps usage counters at zero.
func NormalizeSettings(s Settings) Settings {
	conns := make([]APIConnection, len(s.APIConnections))
	copy(conns, s.APIConnections)

	activeProvider := map[string]string{}
	if s.ActiveConnectionID != "" {
		for _, c := range conns {
			if c.ID == s.ActiveConnectionID {
				activeProvider[c.Provider] = c.ID
			}
		}
	}
	for _, c := range conns {
		if _, ok := activeProvider[c.Provider]; !ok && c.IsActive {
			activeProvider[c.Provider] = c.ID
		}
	}
	for i := range conns {
		conns[i].IsActive = activeProvider[conns[i].Provider] == conns[i].ID
	}
	s.APIConnections = conns

	if s.ActiveConnectionID != "" {
		found := false
		for _, c := range conns {
			if c.ID == s.ActiveConnectionID {
				found = true
				break
			}
		}
		if !found {
			s.ActiveConnectionID = ""
		}
	}
	if s.APIUsage.TotalRequests < 0 {
		s.APIUsage.TotalRequests = 0
	}
	if s.APIUsage.TotalTokens < 0 {
		s.APIUsage.TotalTokens = 0
	}
	return s
}
