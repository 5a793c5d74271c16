package invitation

import (
	"context"
	"time"

	workspacedomain "eastask-go/internal/domain/workspace"
)

type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error
	Create(ctx context.Context, invitation *Invitation) error
	GetByID(ctx context.Context, id string) (*Invitation, error)
	GetByToken(ctx context.Context, token string) (*Invitation, error)
	FindPending(ctx context.Context, workspaceID, email string, now time.Time) (*Invitation, error)
	ListPending(ctx context.Context, workspaceID string, now time.Time) ([]Invitation, error)
	ListPendingByEmail(ctx context.Context, email string, now time.Time) ([]Invitation, error)
	// SetStatus moves a pending invitation to status. It returns
	// ErrInvitationNotPending when the row is no longer pending.
	SetStatus(ctx context.Context, id, status string, at time.Time) error
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
	// IsEmailMember reports whether a user with this email already owns or
	// belongs to the workspace.
	IsEmailMember(ctx context.Context, workspaceID, email string) (bool, error)
	GetMember(ctx context.Context, workspaceID, userID string) (*workspacedomain.Member, error)
	AddMember(ctx context.Context, member *workspacedomain.Member) error
}
