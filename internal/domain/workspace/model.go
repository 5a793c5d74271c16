package workspace

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleGuest  = "guest"
)

type Workspace struct {
	ID          string            `gorm:"type:uuid;primaryKey"`
	Name        string            `gorm:"not null"`
	Description string            `gorm:"not null;default:''"`
	OwnerID     string            `gorm:"not null;index"`
	InviteCode  string            `gorm:"size:16;not null;uniqueIndex"`
	Settings    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt   time.Time         `gorm:"autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime"`
}

type Member struct {
	WorkspaceID string    `gorm:"type:uuid;primaryKey"`
	UserID      string    `gorm:"primaryKey;index"`
	Role        string    `gorm:"type:varchar(16);not null"`
	JoinedAt    time.Time `gorm:"autoCreateTime"`
}

func (Member) TableName() string {
	return "workspace_members"
}

type MemberProfile struct {
	UserID    string
	Role      string
	JoinedAt  time.Time
	Email     *string
	FullName  *string
	AvatarURL *string
}

type CreateWorkspaceInput struct {
	Name        string
	Description string
	Settings    map[string]any
}

type UpdateWorkspaceInput struct {
	ID          string
	Name        *string
	Description *string
	Settings    map[string]any
}

// Access is the caller's effective standing in a workspace.
type Access struct {
	Workspace *Workspace
	Role      string
	// HasMemberRow is false when access was granted through Workspace.OwnerID
	// alone, i.e. the owner membership row is still missing.
	HasMemberRow bool
}

func (a Access) CanManage() bool {
	return a.Role == RoleOwner || a.Role == RoleAdmin
}

func (a Access) CanWrite() bool {
	return a.Role != RoleGuest
}

func IsValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleMember, RoleGuest:
		return true
	default:
		return false
	}
}

// Activity actions emitted by this package.
const (
	ActionWorkspaceCreated     = "workspace_created"
	ActionWorkspaceUpdated     = "workspace_updated"
	ActionMemberJoined         = "member_joined"
	ActionMemberLeft           = "member_left"
	ActionMemberRemoved        = "member_removed"
	ActionMemberRoleChanged    = "member_role_changed"
	ActionOwnershipTransferred = "ownership_transferred"
	ActionInviteCodeRotated    = "invite_code_rotated"
)

// Reconcile outcomes for the owner membership check.
const (
	ReconcileConfirmed = "confirmed"
	ReconcileInserted  = "fallback_inserted"
	ReconcileFailed    = "failed"
)
