package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	activitydomain "eastask-go/internal/domain/activity"
	"eastask-go/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	defaultStreamMaxLen = 1000
	defaultBlockTime    = 25 * time.Second
	readBatchSize       = 100
	payloadField        = "activity"
	streamStartID       = "0-0"
)

func activityStream(workspaceID string) string {
	return "workspace-activity:" + workspaceID
}

// ActivityPublisher appends activities to a capped per-workspace stream.
type ActivityPublisher struct {
	client *redis.Client
	maxLen int64
	log    logger.Logger
}

func NewActivityPublisher(client *redis.Client, maxLen int64, log logger.Logger) *ActivityPublisher {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &ActivityPublisher{client: client, maxLen: maxLen, log: log}
}

func (p *ActivityPublisher) Publish(ctx context.Context, item activitydomain.Activity) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: activityStream(item.WorkspaceID),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{payloadField: payload},
	}).Err(); err != nil {
		return fmt.Errorf("publish activity: %w", err)
	}

	p.log.Debug("activity.redis: published", "workspace_id", item.WorkspaceID, "action", item.Action)
	return nil
}

// ActivitySubscriber reads a workspace stream with a blocking XREAD.
type ActivitySubscriber struct {
	client    *redis.Client
	blockTime time.Duration
	log       logger.Logger
}

func NewActivitySubscriber(client *redis.Client, blockTime time.Duration, log logger.Logger) *ActivitySubscriber {
	if blockTime <= 0 {
		blockTime = defaultBlockTime
	}
	return &ActivitySubscriber{client: client, blockTime: blockTime, log: log}
}

func (s *ActivitySubscriber) LastID(ctx context.Context, workspaceID string) (string, error) {
	msgs, err := s.client.XRevRangeN(ctx, activityStream(workspaceID), "+", "-", 1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("read stream tail: %w", err)
	}
	return latestStreamID(msgs), nil
}

// Read returns an empty slice when the block time passes without new entries.
// An empty lastID reads from the start of the stream.
func (s *ActivitySubscriber) Read(ctx context.Context, workspaceID, lastID string) ([]activitydomain.Event, error) {
	if lastID == "" {
		lastID = streamStartID
	}

	res, err := s.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{activityStream(workspaceID), lastID},
		Block:   s.blockTime,
		Count:   readBatchSize,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []activitydomain.Event{}, nil
		}
		return nil, err
	}

	events := make([]activitydomain.Event, 0)
	for _, stream := range res {
		events = append(events, decodeMessages(stream.Messages, s.log)...)
	}
	return events, nil
}

func latestStreamID(messages []redis.XMessage) string {
	if len(messages) == 0 {
		return streamStartID
	}
	return messages[0].ID
}

func decodeMessages(messages []redis.XMessage, log logger.Logger) []activitydomain.Event {
	events := make([]activitydomain.Event, 0, len(messages))
	for _, msg := range messages {
		raw, ok := msg.Values[payloadField]
		if !ok {
			continue
		}

		var data []byte
		switch value := raw.(type) {
		case string:
			data = []byte(value)
		case []byte:
			data = value
		default:
			continue
		}

		var item activitydomain.Activity
		if err := json.Unmarshal(data, &item); err != nil {
			if log != nil {
				log.Warn("activity.redis: skipping malformed message", "id", msg.ID, "err", err)
			}
			continue
		}
		events = append(events, activitydomain.Event{StreamID: msg.ID, Activity: item})
	}
	return events
}
