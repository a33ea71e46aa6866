// Package agents decides which personas own a chat session and keeps
// sessions and the displayed agent set consistent with the roster.
package agents

import (
	"strings"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
)

// Resolve returns the persona ids that own session. The first non-empty
// source wins:
//
//  1. the session's own AgentIDs, or AgentID
//  2. ids tagged on assistant messages
//  3. personas whose folded name appears in assistant message text
//  4. fallback
//  5. the first persona of the roster
//
// With a non-empty roster, ids that are not in it are skipped as stale.
func Resolve(session model.ChatSession, roster []model.Persona, fallback []string) []string {
	known := make(map[string]struct{}, len(roster))
	for _, p := range roster {
		known[p.ID] = struct{}{}
	}
	valid := func(ids []string) []string {
		ids = model.DedupeIDs(ids)
		if len(known) == 0 {
			return ids
		}
		out := ids[:0]
		for _, id := range ids {
			if _, ok := known[id]; ok {
				out = append(out, id)
			}
		}
		return out
	}

	explicit := append([]string(nil), session.AgentIDs...)
	if session.AgentID != "" {
		explicit = append(explicit, session.AgentID)
	}
	if ids := valid(explicit); len(ids) > 0 {
		return ids
	}

	var tagged []string
	for _, m := range session.Messages {
		if m.Role == model.RoleAssistant && m.AgentID != "" {
			tagged = append(tagged, m.AgentID)
		}
	}
	if ids := valid(tagged); len(ids) > 0 {
		return ids
	}

	if ids := inferByName(session.Messages, roster); len(ids) > 0 {
		return ids
	}

	if ids := valid(append([]string(nil), fallback...)); len(ids) > 0 {
		return ids
	}

	if len(roster) > 0 {
		return []string{roster[0].ID}
	}
	return []string{}
}

func inferByName(msgs []model.ChatMessage, roster []model.Persona) []string {
	var ids []string
	for _, m := range msgs {
		if m.Role != model.RoleAssistant {
			continue
		}
		text := model.FoldName(m.Content)
		for _, p := range roster {
			name := model.FoldName(p.Name)
			if name != "" && strings.Contains(text, name) {
				ids = append(ids, p.ID)
			}
		}
	}
	return model.DedupeIDs(ids)
}
