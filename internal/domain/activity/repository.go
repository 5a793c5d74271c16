package activity

import "context"

type Repository interface {
	Create(ctx context.Context, activity *Activity) error
	List(ctx context.Context, workspaceID string, filter ListFilter) ([]Activity, int64, error)
}

// Publisher fans out persisted activities to realtime subscribers.
type Publisher interface {
	Publish(ctx context.Context, activity Activity) error
}

// Subscriber reads published activities for one workspace, blocking until
// something arrives or ctx ends.
type Subscriber interface {
	// LastID returns the newest stream ID, or "0-0" for an empty stream.
	// Readers start from it so nothing published after they connect is missed.
	LastID(ctx context.Context, workspaceID string) (string, error)
	Read(ctx context.Context, workspaceID, lastID string) ([]Event, error)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Activity) error {
	return nil
}
