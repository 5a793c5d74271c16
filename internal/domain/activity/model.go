package activity

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EntityWorkspace  = "workspace"
	EntityMember     = "member"
	EntityInvitation = "invitation"
	EntityPage       = "page"
	EntityTask       = "task"
)

type Activity struct {
	ID          string            `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID string            `gorm:"type:uuid;not null;index" json:"workspace_id"`
	UserID      string            `gorm:"not null" json:"user_id"`
	Action      string            `gorm:"type:varchar(64);not null" json:"action"`
	EntityType  string            `gorm:"type:varchar(32);not null;default:''" json:"entity_type"`
	EntityID    string            `gorm:"not null;default:''" json:"entity_id"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

func (Activity) TableName() string {
	return "user_activities"
}

// Entry is what callers hand to Record.
type Entry struct {
	WorkspaceID string
	UserID      string
	Action      string
	EntityType  string
	EntityID    string
	Metadata    map[string]any
}

type ListFilter struct {
	Limit  int
	Offset int
	UserID string
}

// Event is a published activity as seen by stream subscribers.
type Event struct {
	StreamID string   `json:"stream_id"`
	Activity Activity `json:"activity"`
}
