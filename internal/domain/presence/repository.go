package presence

import "context"

// Store keeps the latest presence entry per user and workspace.
type Store interface {
	Set(ctx context.Context, entry Presence) error
	List(ctx context.Context, workspaceID string) ([]Presence, error)
	Delete(ctx context.Context, workspaceID, userID string) error
}
