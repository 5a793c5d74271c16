package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	presencedomain "eastask-go/internal/domain/presence"
	"eastask-go/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const presenceKeyTTL = time.Hour

// PresenceStore keeps one hash per workspace, field = user id, value = JSON
// entry. The key expires an hour after the last write.
type PresenceStore struct {
	client *redis.Client
	log    logger.Logger
}

func NewPresenceStore(client *redis.Client, log logger.Logger) *PresenceStore {
	return &PresenceStore{client: client, log: log}
}

func presenceKey(workspaceID string) string {
	return "presence:workspace:" + workspaceID
}

func (s *PresenceStore) Set(ctx context.Context, entry presencedomain.Presence) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode presence: %w", err)
	}

	key := presenceKey(entry.WorkspaceID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, entry.UserID, payload)
	pipe.Expire(ctx, key, presenceKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store presence: %w", err)
	}
	return nil
}

func (s *PresenceStore) List(ctx context.Context, workspaceID string) ([]presencedomain.Presence, error) {
	values, err := s.client.HGetAll(ctx, presenceKey(workspaceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load presence: %w", err)
	}
	return decodePresence(values, s.log), nil
}

func (s *PresenceStore) Delete(ctx context.Context, workspaceID, userID string) error {
	return s.client.HDel(ctx, presenceKey(workspaceID), userID).Err()
}

func decodePresence(values map[string]string, log logger.Logger) []presencedomain.Presence {
	result := make([]presencedomain.Presence, 0, len(values))
	for userID, raw := range values {
		var entry presencedomain.Presence
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			if log != nil {
				log.Warn("presence.redis: skipping malformed entry", "user_id", userID, "err", err)
			}
			continue
		}
		result = append(result, entry)
	}
	return result
}
