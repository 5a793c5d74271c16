package workspace

import "context"

type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error
	GetWorkspace(ctx context.Context, workspaceID string) (*Workspace, error)
	GetWorkspaceByCode(ctx context.Context, code string) (*Workspace, error)
	ListWorkspacesForUser(ctx context.Context, userID string) ([]Workspace, error)
	CreateWorkspace(ctx context.Context, workspace *Workspace) error
	UpdateWorkspace(ctx context.Context, workspace *Workspace) error
	UpdateInviteCode(ctx context.Context, workspaceID, code string) error
	UpdateOwner(ctx context.Context, workspaceID, ownerID string) error
	DeleteWorkspace(ctx context.Context, workspaceID string) error
	GetMember(ctx context.Context, workspaceID, userID string) (*Member, error)
	// ListOwnedMissingOwnerRow returns workspaces owned by ownerID that have
	// no member row with the owner role for that user.
	ListOwnedMissingOwnerRow(ctx context.Context, ownerID string) ([]Workspace, error)
	ListMembersWithProfiles(ctx context.Context, workspaceID string) ([]MemberProfile, error)
	// UpsertMember inserts the row and silently ignores an existing
	// (workspace_id, user_id) pair.
	UpsertMember(ctx context.Context, member *Member) error
	AddMember(ctx context.Context, member *Member) error
	UpdateMemberRole(ctx context.Context, workspaceID, userID, role string) error
	DeleteMember(ctx context.Context, workspaceID, userID string) error
	CountMembers(ctx context.Context, workspaceID string) (int64, error)
	IsCodeTaken(ctx context.Context, code string) (bool, error)
}
