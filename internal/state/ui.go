package state

import (
	"slices"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
)

// SyncStatus returns the current sync indicator.
func (s *Store) SyncStatus() SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncStatus
}

// SetSyncStatus updates the indicator and notifies CollectionUI observers if
// it changed.
func (s *Store) SetSyncStatus(v SyncStatus) {
	s.mu.Lock()
	changed := s.syncStatus != v
	s.syncStatus = v
	s.mu.Unlock()
	if changed {
		s.notify(model.CollectionUI)
	}
}

// DataLoaded reports whether the UI may be treated as interactive.
func (s *Store) DataLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataLoaded
}

func (s *Store) SetDataLoaded(v bool) {
	s.mu.Lock()
	changed := s.dataLoaded != v
	s.dataLoaded = v
	s.mu.Unlock()
	if changed {
		s.notify(model.CollectionUI)
	}
}

// ActiveChatSessionID is the session currently open in chat, or "".
func (s *Store) ActiveChatSessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeChatSessionID
}

func (s *Store) SetActiveChatSessionID(id string) {
	s.mu.Lock()
	changed := s.activeChatSessionID != id
	s.activeChatSessionID = id
	s.mu.Unlock()
	if changed {
		s.notify(model.CollectionUI)
	}
}

// DisplayedAgentIDs are the persona ids shown for the active chat.
func (s *Store) DisplayedAgentIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.displayedAgentIDs)
}

// SetDisplayedAgentIDs stores ids and reports whether they differed from
// the previous value. Observers are only notified on a change.
func (s *Store) SetDisplayedAgentIDs(ids []string) bool {
	s.mu.Lock()
	changed := !slices.Equal(s.displayedAgentIDs, ids)
	if changed {
		s.displayedAgentIDs = slices.Clone(ids)
	}
	s.mu.Unlock()
	if changed {
		s.notify(model.CollectionUI)
	}
	return changed
}
