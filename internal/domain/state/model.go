package state

import (
	invitationdomain "eastask-go/internal/domain/invitation"
	presencedomain "eastask-go/internal/domain/presence"
	workspacedomain "eastask-go/internal/domain/workspace"
)

// Snapshot is everything a client needs to render the workspace shell.
// CurrentWorkspace is nil when the user belongs to no workspace.
type Snapshot struct {
	CurrentWorkspace   *workspacedomain.Workspace
	CurrentRole        string
	UserWorkspaces     []workspacedomain.Workspace
	WorkspaceMembers   []workspacedomain.MemberProfile
	PendingInvitations []invitationdomain.Invitation
	OnlineUsers        []presencedomain.Presence
}

// User identifies the caller loading state.
type User struct {
	ID    string
	Email string
}
