package user

import "context"

type Repository interface {
	UpsertProfile(ctx context.Context, profile *Profile) error
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	// SetCurrentWorkspace stores the selection; an empty workspaceID clears it.
	SetCurrentWorkspace(ctx context.Context, userID, workspaceID string) error
}
