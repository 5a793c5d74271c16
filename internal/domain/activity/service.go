package activity

import (
	"context"
	"fmt"
	"strings"

	"eastask-go/pkg/logger"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Service struct {
	repo       Repository
	publisher  Publisher
	subscriber Subscriber
	log        logger.Logger
}

func NewService(repo Repository, publisher Publisher, log logger.Logger) *Service {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, publisher: publisher, log: log}
}

// Record persists the entry and publishes it. A failed publish is logged and
// does not fail the call.
func (s *Service) Record(ctx context.Context, entry Entry) (*Activity, error) {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return nil, ErrActionRequired
	}
	if strings.TrimSpace(entry.WorkspaceID) == "" {
		return nil, ErrWorkspaceRequired
	}

	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	item := Activity{
		ID:          uuid.NewString(),
		WorkspaceID: entry.WorkspaceID,
		UserID:      entry.UserID,
		Action:      action,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		Metadata:    metadata,
	}
	if err := s.repo.Create(ctx, &item); err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}

	if err := s.publisher.Publish(ctx, item); err != nil {
		s.log.InternalError("activity.record: publish failed", err,
			"workspace_id", item.WorkspaceID, "action", item.Action)
	}

	return &item, nil
}

func (s *Service) List(ctx context.Context, workspaceID string, filter ListFilter) ([]Activity, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, workspaceID, filter)
}

// UseSubscriber enables Read and Cursor. Without one, both return
// ErrStreamUnavailable.
func (s *Service) UseSubscriber(sub Subscriber) {
	s.subscriber = sub
}

func (s *Service) StreamAvailable() bool {
	return s.subscriber != nil
}

// Cursor returns the position a new reader should start after.
func (s *Service) Cursor(ctx context.Context, workspaceID string) (string, error) {
	if s.subscriber == nil {
		return "", ErrStreamUnavailable
	}
	return s.subscriber.LastID(ctx, workspaceID)
}

func (s *Service) Read(ctx context.Context, workspaceID, lastID string) ([]Event, error) {
	if s.subscriber == nil {
		return nil, ErrStreamUnavailable
	}
	return s.subscriber.Read(ctx, workspaceID, lastID)
}
