package state

import (
	"context"

	invitationdomain "eastask-go/internal/domain/invitation"
	presencedomain "eastask-go/internal/domain/presence"
	workspacedomain "eastask-go/internal/domain/workspace"
	"eastask-go/pkg/logger"
)

type Workspaces interface {
	ListUserWorkspaces(ctx context.Context, userID string) ([]workspacedomain.Workspace, error)
	RepairOwnerMemberships(ctx context.Context, userID string) int
	CheckAccess(ctx context.Context, userID, workspaceID string) (workspacedomain.Access, error)
	ListMembers(ctx context.Context, userID, workspaceID string) ([]workspacedomain.MemberProfile, error)
}

type Invitations interface {
	ListPending(ctx context.Context, userID, workspaceID string) ([]invitationdomain.Invitation, error)
	ListForUser(ctx context.Context, email string) ([]invitationdomain.Invitation, error)
}

type Presence interface {
	Online(ctx context.Context, workspaceID string) ([]presencedomain.Presence, error)
}

// Selection persists which workspace a user last had open.
type Selection interface {
	CurrentWorkspace(ctx context.Context, userID string) (string, error)
	SetCurrentWorkspace(ctx context.Context, userID, workspaceID string) error
}

type Service struct {
	workspaces  Workspaces
	invitations Invitations
	presence    Presence
	selection   Selection
	log         logger.Logger
}

func NewService(workspaces Workspaces, invitations Invitations, presence Presence, selection Selection, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		workspaces:  workspaces,
		invitations: invitations,
		presence:    presence,
		selection:   selection,
		log:         log.With("component", "state"),
	}
}

// Load assembles the caller's snapshot. Owned workspaces missing their owner
// membership row are repaired first so the row heals on read.
func (s *Service) Load(ctx context.Context, user User) (*Snapshot, error) {
	s.workspaces.RepairOwnerMemberships(ctx, user.ID)

	workspaces, err := s.workspaces.ListUserWorkspaces(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		UserWorkspaces:     workspaces,
		WorkspaceMembers:   []workspacedomain.MemberProfile{},
		PendingInvitations: []invitationdomain.Invitation{},
		OnlineUsers:        []presencedomain.Presence{},
	}

	current, err := s.resolveCurrent(ctx, user.ID, workspaces)
	if err != nil {
		return nil, err
	}

	if current != nil {
		access, err := s.workspaces.CheckAccess(ctx, user.ID, current.ID)
		if err != nil {
			return nil, err
		}
		snapshot.CurrentWorkspace = current
		snapshot.CurrentRole = access.Role

		members, err := s.workspaces.ListMembers(ctx, user.ID, current.ID)
		if err != nil {
			return nil, err
		}
		snapshot.WorkspaceMembers = members

		if access.CanManage() {
			pending, err := s.invitations.ListPending(ctx, user.ID, current.ID)
			if err != nil {
				return nil, err
			}
			snapshot.PendingInvitations = append(snapshot.PendingInvitations, pending...)
		}

		if s.presence != nil {
			online, err := s.presence.Online(ctx, current.ID)
			if err != nil {
				s.log.InternalError("state.load: presence unavailable", err, "workspace_id", current.ID)
			} else {
				snapshot.OnlineUsers = online
			}
		}
	}

	if user.Email != "" {
		mine, err := s.invitations.ListForUser(ctx, user.Email)
		if err != nil {
			return nil, err
		}
		snapshot.PendingInvitations = mergeInvitations(snapshot.PendingInvitations, mine)
	}

	return snapshot, nil
}

// Switch makes workspaceID the caller's current workspace and reloads.
func (s *Service) Switch(ctx context.Context, user User, workspaceID string) (*Snapshot, error) {
	if _, err := s.workspaces.CheckAccess(ctx, user.ID, workspaceID); err != nil {
		return nil, err
	}
	if err := s.selection.SetCurrentWorkspace(ctx, user.ID, workspaceID); err != nil {
		return nil, err
	}
	return s.Load(ctx, user)
}

// resolveCurrent prefers the stored selection while it is still one of the
// user's workspaces and falls back to the first one, persisting the change.
func (s *Service) resolveCurrent(ctx context.Context, userID string, workspaces []workspacedomain.Workspace) (*workspacedomain.Workspace, error) {
	stored, err := s.selection.CurrentWorkspace(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(workspaces) == 0 {
		if stored != "" {
			s.persist(ctx, userID, "")
		}
		return nil, nil
	}

	for i := range workspaces {
		if workspaces[i].ID == stored {
			return &workspaces[i], nil
		}
	}

	current := &workspaces[0]
	s.persist(ctx, userID, current.ID)
	return current, nil
}

func (s *Service) persist(ctx context.Context, userID, workspaceID string) {
	if err := s.selection.SetCurrentWorkspace(ctx, userID, workspaceID); err != nil {
		s.log.InternalError("state.load: persist selection failed", err,
			"user_id", userID, "workspace_id", workspaceID)
	}
}

func mergeInvitations(base, extra []invitationdomain.Invitation) []invitationdomain.Invitation {
	seen := make(map[string]struct{}, len(base))
	for _, item := range base {
		seen[item.ID] = struct{}{}
	}
	for _, item := range extra {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		base = append(base, item)
	}
	return base
}
