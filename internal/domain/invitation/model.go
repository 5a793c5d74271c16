package invitation

import "time"

const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
	StatusExpired  = "expired"
	StatusRevoked  = "revoked"
)

// Activity actions emitted by this package.
const (
	ActionInvitationSent     = "invitation_sent"
	ActionInvitationAccepted = "invitation_accepted"
	ActionInvitationDeclined = "invitation_declined"
	ActionInvitationRevoked  = "invitation_revoked"
)

type Invitation struct {
	ID          string     `gorm:"type:uuid;primaryKey"`
	WorkspaceID string     `gorm:"type:uuid;not null;index"`
	Email       string     `gorm:"not null"`
	Role        string     `gorm:"type:varchar(16);not null"`
	Token       string     `gorm:"not null;uniqueIndex"`
	Status      string     `gorm:"type:varchar(16);not null;default:'pending'"`
	InvitedBy   string     `gorm:"not null"`
	ExpiresAt   time.Time  `gorm:"not null"`
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	RespondedAt *time.Time

	// WorkspaceName is filled by listing queries that join workspaces.
	WorkspaceName string `gorm:"->;-:migration"`
}

func (Invitation) TableName() string {
	return "workspace_invitations"
}

func (i Invitation) IsPending(now time.Time) bool {
	return i.Status == StatusPending && now.Before(i.ExpiresAt)
}

// Invitee is the authenticated user acting on an invitation.
type Invitee struct {
	UserID string
	Email  string
}

type CreateInput struct {
	WorkspaceID string
	Email       string
	Role        string
}
