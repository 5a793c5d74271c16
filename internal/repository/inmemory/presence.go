package inmemory

import (
	"context"
	"sync"

	presencedomain "eastask-go/internal/domain/presence"
)

// PresenceStore is the single-process presence store used when Redis is not
// configured.
type PresenceStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]presencedomain.Presence
}

func NewPresenceStore() *PresenceStore {
	return &PresenceStore{
		entries: make(map[string]map[string]presencedomain.Presence),
	}
}

func (s *PresenceStore) Set(ctx context.Context, entry presencedomain.Presence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	workspace, ok := s.entries[entry.WorkspaceID]
	if !ok {
		workspace = make(map[string]presencedomain.Presence)
		s.entries[entry.WorkspaceID] = workspace
	}
	workspace[entry.UserID] = entry
	return nil
}

func (s *PresenceStore) List(ctx context.Context, workspaceID string) ([]presencedomain.Presence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workspace := s.entries[workspaceID]
	result := make([]presencedomain.Presence, 0, len(workspace))
	for _, entry := range workspace {
		result = append(result, entry)
	}
	return result, nil
}

func (s *PresenceStore) Delete(ctx context.Context, workspaceID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	workspace, ok := s.entries[workspaceID]
	if !ok {
		return nil
	}
	delete(workspace, userID)
	if len(workspace) == 0 {
		delete(s.entries, workspaceID)
	}
	return nil
}
