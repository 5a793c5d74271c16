package tasks

import (
	"time"

	"gorm.io/gorm"
)

type Page struct {
	ID          string         `gorm:"type:uuid;primaryKey"`
	WorkspaceID string         `gorm:"type:uuid;index;not null"`
	Title       string         `gorm:"not null"`
	URL         string         `gorm:"column:url;not null;default:''"`
	Description string         `gorm:"not null;default:''"`
	Order       int            `gorm:"column:order_index;not null;default:0"`
	CreatedBy   string         `gorm:"not null"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

type Task struct {
	ID                   string     `gorm:"type:uuid;primaryKey"`
	PageID               string     `gorm:"type:uuid;index;not null"`
	Title                string     `gorm:"not null"`
	Description          string     `gorm:"not null;default:''"`
	AssigneeID           *string    `gorm:"column:assignee_id"`
	DueDate              *time.Time `gorm:"type:date"`
	IsCompleted          bool       `gorm:"not null;default:false"`
	CompletedAt          *time.Time
	CompletedByID        *string        `gorm:"column:completed_by_id"`
	CompletedByName      *string        `gorm:"column:completed_by_name"`
	CompletedByEmail     *string        `gorm:"column:completed_by_email"`
	CompletedByAvatarURL *string        `gorm:"column:completed_by_avatar_url"`
	CreatedBy            string         `gorm:"not null"`
	CreatedAt            time.Time      `gorm:"autoCreateTime"`
	DeletedAt            gorm.DeletedAt `gorm:"index"`
}

type UserSnapshot struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
}

type ListFilter struct {
	Query  string
	Limit  int
	Offset int
}

type TaskCounts struct {
	Total     int64
	Completed int64
}

type PageWithCounts struct {
	Page   Page
	Counts TaskCounts
}

type CreatePageInput struct {
	WorkspaceID string
	Title       string
	URL         string
	Description string
	Order       *int
}

type UpdatePageInput struct {
	ID          string
	WorkspaceID string
	Title       *string
	URL         *string
	Description *string
	Order       *int
}

type CreateTaskInput struct {
	WorkspaceID string
	PageID      string
	Title       string
	Description string
	AssigneeID  *string
	DueDate     *time.Time
}

type UpdateTaskInput struct {
	ID            string
	WorkspaceID   string
	Title         *string
	Description   *string
	AssigneeID    *string
	ClearAssignee bool
	DueDate       *time.Time
	ClearDueDate  bool
	IsCompleted   *bool
	CompletedBy   *UserSnapshot
}

// Activity actions emitted by this package.
const (
	ActionPageCreated   = "page_created"
	ActionPageUpdated   = "page_updated"
	ActionPageDeleted   = "page_deleted"
	ActionTaskCreated   = "task_created"
	ActionTaskUpdated   = "task_updated"
	ActionTaskCompleted = "task_completed"
	ActionTaskDeleted   = "task_deleted"
)
