package redisstore

import (
	"testing"

	"eastask-go/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "presence:workspace:ws-1", presenceKey("ws-1"))
	assert.Equal(t, "workspace-activity:ws-1", activityStream("ws-1"))
}

func TestDecodePresenceSkipsMalformed(t *testing.T) {
	entries := decodePresence(map[string]string{
		"user-1": `{"user_id":"user-1","workspace_id":"ws-1","status":"online","last_seen":"2025-03-01T12:00:00Z"}`,
		"user-2": `not json`,
	}, logger.Nop())

	require.Len(t, entries, 1)
	assert.Equal(t, "user-1", entries[0].UserID)
	assert.Equal(t, "online", entries[0].Status)
}

func TestDecodeMessages(t *testing.T) {
	events := decodeMessages([]redis.XMessage{
		{ID: "1-0", Values: map[string]interface{}{payloadField: `{"id":"a-1","workspace_id":"ws-1","action":"member_joined","metadata":{"via":"invite_code"}}`}},
		{ID: "2-0", Values: map[string]interface{}{"other": "x"}},
		{ID: "3-0", Values: map[string]interface{}{payloadField: "{broken"}},
	}, logger.Nop())

	require.Len(t, events, 1)
	assert.Equal(t, "1-0", events[0].StreamID)
	assert.Equal(t, "member_joined", events[0].Activity.Action)
	assert.Equal(t, "invite_code", events[0].Activity.Metadata["via"])
}

func TestLatestStreamID(t *testing.T) {
	assert.Equal(t, "0-0", latestStreamID(nil))
	assert.Equal(t, "1700000000000-3", latestStreamID([]redis.XMessage{{ID: "1700000000000-3"}}))
}
