package workspace

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	activitydomain "eastask-go/internal/domain/activity"
	"eastask-go/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	inviteCodeLength   = 10
	inviteCodeAttempts = 10
	defaultCacheTTL    = time.Minute
)

type ActivityRecorder interface {
	Record(ctx context.Context, entry activitydomain.Entry) (*activitydomain.Activity, error)
}

// PresenceCleaner drops presence entries of users who lost access.
type PresenceCleaner interface {
	Forget(ctx context.Context, workspaceID, userID string) error
}

// ReconcileObserver is told how each owner membership check ended.
type ReconcileObserver interface {
	ObserveOwnerReconcile(outcome string)
}

type Options struct {
	Cache    Cache
	CacheTTL time.Duration
	Activity ActivityRecorder
	Observer ReconcileObserver
}

type Service struct {
	repo     Repository
	log      logger.Logger
	cache    Cache
	cacheTTL time.Duration
	activity ActivityRecorder
	observer ReconcileObserver
	presence PresenceCleaner
}

// UsePresence is set after construction because the presence service checks
// access through this one.
func (s *Service) UsePresence(presence PresenceCleaner) {
	s.presence = presence
}

func NewService(repo Repository, log logger.Logger, opts Options) *Service {
	if log == nil {
		log = logger.Nop()
	}
	cache := opts.Cache
	if cache == nil {
		cache = noopCache{}
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Service{
		repo:     repo,
		log:      log.With("component", "workspace"),
		cache:    cache,
		cacheTTL: ttl,
		activity: opts.Activity,
		observer: opts.Observer,
	}
}

// CreateWorkspace inserts the workspace and makes sure its creator ends up
// with an owner membership row. The row is normally written by the
// workspaces insert trigger; the upsert, verify and single retry below cover
// deployments where the trigger is missing or has not fired. Failure of the
// final retry is logged only: the owner keeps access through OwnerID.
func (s *Service) CreateWorkspace(ctx context.Context, userID string, input CreateWorkspaceInput) (*Workspace, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	code, err := generateUniqueCode(ctx, s.repo)
	if err != nil {
		return nil, err
	}

	settings := datatypes.JSONMap{}
	for key, value := range input.Settings {
		settings[key] = value
	}

	ws := Workspace{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		OwnerID:     userID,
		InviteCode:  code,
		Settings:    settings,
	}
	if err := s.repo.CreateWorkspace(ctx, &ws); err != nil {
		return nil, fmt.Errorf("insert workspace: %w", err)
	}

	owner := Member{WorkspaceID: ws.ID, UserID: userID, Role: RoleOwner}
	if err := s.repo.UpsertMember(ctx, &owner); err != nil {
		s.log.Warn("workspaces.create: owner upsert failed, verifying",
			"workspace_id", ws.ID, "user_id", userID, "err", err)
	}

	s.EnsureOwnerMembership(ctx, &ws)
	s.cache.Set(ws.ID, &ws, s.cacheTTL)

	s.record(ctx, activitydomain.Entry{
		WorkspaceID: ws.ID,
		UserID:      userID,
		Action:      ActionWorkspaceCreated,
		EntityType:  activitydomain.EntityWorkspace,
		EntityID:    ws.ID,
		Metadata:    map[string]any{"name": ws.Name},
	})

	return &ws, nil
}

// EnsureOwnerMembership verifies the owner's membership row and inserts it
// once if missing. It never returns an error; the outcome is reported to the
// observer and returned for callers that care.
func (s *Service) EnsureOwnerMembership(ctx context.Context, ws *Workspace) string {
	outcome := s.reconcileOwner(ctx, ws)
	if s.observer != nil {
		s.observer.ObserveOwnerReconcile(outcome)
	}
	return outcome
}

// RepairOwnerMemberships reconciles only the workspaces owned by userID whose
// owner row is missing or demoted, and returns how many it touched.
func (s *Service) RepairOwnerMemberships(ctx context.Context, userID string) int {
	broken, err := s.repo.ListOwnedMissingOwnerRow(ctx, userID)
	if err != nil {
		s.log.InternalError("workspaces.reconcile: list owned workspaces failed", err, "user_id", userID)
		return 0
	}
	for i := range broken {
		s.EnsureOwnerMembership(ctx, &broken[i])
	}
	return len(broken)
}

func (s *Service) reconcileOwner(ctx context.Context, ws *Workspace) string {
	member, err := s.repo.GetMember(ctx, ws.ID, ws.OwnerID)
	switch {
	case err == nil && member.Role == RoleOwner:
		return ReconcileConfirmed
	case err == nil:
		s.log.Warn("workspaces.reconcile: owner row has wrong role",
			"workspace_id", ws.ID, "user_id", ws.OwnerID, "role", member.Role)
		if err := s.repo.UpdateMemberRole(ctx, ws.ID, ws.OwnerID, RoleOwner); err != nil {
			s.log.InternalError("workspaces.reconcile: role repair failed", err,
				"workspace_id", ws.ID, "user_id", ws.OwnerID)
			return ReconcileFailed
		}
		return ReconcileInserted
	case !errors.Is(err, ErrMemberNotFound):
		s.log.Warn("workspaces.reconcile: verify query failed, retrying insert",
			"workspace_id", ws.ID, "user_id", ws.OwnerID, "err", err)
	}

	owner := Member{WorkspaceID: ws.ID, UserID: ws.OwnerID, Role: RoleOwner}
	if err := s.repo.AddMember(ctx, &owner); err != nil {
		if errors.Is(err, ErrAlreadyMember) {
			return ReconcileConfirmed
		}
		s.log.InternalError("workspaces.reconcile: owner membership missing after retry", err,
			"workspace_id", ws.ID, "user_id", ws.OwnerID)
		return ReconcileFailed
	}

	s.log.Info("workspaces.reconcile: owner membership inserted by fallback",
		"workspace_id", ws.ID, "user_id", ws.OwnerID)
	return ReconcileInserted
}

// CheckAccess resolves the caller's role. Non-members get
// ErrWorkspaceNotFound so existence is not leaked.
func (s *Service) CheckAccess(ctx context.Context, userID, workspaceID string) (Access, error) {
	ws, err := s.loadWorkspace(ctx, workspaceID)
	if err != nil {
		return Access{}, err
	}

	member, err := s.repo.GetMember(ctx, workspaceID, userID)
	if err != nil {
		if !errors.Is(err, ErrMemberNotFound) {
			return Access{}, err
		}
		if ws.OwnerID == userID {
			return Access{Workspace: ws, Role: RoleOwner}, nil
		}
		return Access{}, ErrWorkspaceNotFound
	}

	role := member.Role
	if ws.OwnerID == userID {
		role = RoleOwner
	}
	return Access{Workspace: ws, Role: role, HasMemberRow: true}, nil
}

func (s *Service) GetWorkspace(ctx context.Context, userID, workspaceID string) (*Workspace, error) {
	access, err := s.CheckAccess(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	return access.Workspace, nil
}

func (s *Service) ListUserWorkspaces(ctx context.Context, userID string) ([]Workspace, error) {
	return s.repo.ListWorkspacesForUser(ctx, userID)
}

func (s *Service) UpdateWorkspace(ctx context.Context, userID string, input UpdateWorkspaceInput) (*Workspace, error) {
	if input.Name == nil && input.Description == nil && input.Settings == nil {
		return nil, ErrNoFieldsToUpdate
	}

	access, err := s.CheckAccess(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	if !access.CanManage() {
		return nil, ErrForbidden
	}

	ws := *access.Workspace
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		ws.Name = name
	}
	if input.Description != nil {
		ws.Description = strings.TrimSpace(*input.Description)
	}
	if input.Settings != nil {
		settings := datatypes.JSONMap{}
		for key, value := range input.Settings {
			settings[key] = value
		}
		ws.Settings = settings
	}

	if err := s.repo.UpdateWorkspace(ctx, &ws); err != nil {
		return nil, err
	}
	s.cache.Delete(ws.ID)

	s.record(ctx, activitydomain.Entry{
		WorkspaceID: ws.ID,
		UserID:      userID,
		Action:      ActionWorkspaceUpdated,
		EntityType:  activitydomain.EntityWorkspace,
		EntityID:    ws.ID,
	})

	return &ws, nil
}

func (s *Service) DeleteWorkspace(ctx context.Context, userID, workspaceID string) error {
	access, err := s.CheckAccess(ctx, userID, workspaceID)
	if err != nil {
		return err
	}
	if access.Role != RoleOwner {
		return ErrNotOwner
	}

	if err := s.repo.DeleteWorkspace(ctx, workspaceID); err != nil {
		return err
	}
	s.cache.Delete(workspaceID)
	return nil
}

func (s *Service) JoinByCode(ctx context.Context, userID, code string) (*Workspace, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, ErrInviteCodeNotFound
	}

	var result Workspace
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		ws, err := tx.GetWorkspaceByCode(ctx, code)
		if err != nil {
			return err
		}
		if ws.OwnerID == userID {
			return ErrAlreadyMember
		}

		if _, err := tx.GetMember(ctx, ws.ID, userID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, ErrMemberNotFound) {
			return err
		}

		member := Member{WorkspaceID: ws.ID, UserID: userID, Role: RoleMember}
		if err := tx.AddMember(ctx, &member); err != nil {
			return err
		}

		result = *ws
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, activitydomain.Entry{
		WorkspaceID: result.ID,
		UserID:      userID,
		Action:      ActionMemberJoined,
		EntityType:  activitydomain.EntityMember,
		EntityID:    userID,
		Metadata:    map[string]any{"via": "invite_code"},
	})

	return &result, nil
}

func (s *Service) RegenerateInviteCode(ctx context.Context, userID, workspaceID string) (*Workspace, error) {
	access, err := s.CheckAccess(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	if !access.CanManage() {
		return nil, ErrForbidden
	}

	code, err := generateUniqueCode(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateInviteCode(ctx, workspaceID, code); err != nil {
		return nil, err
	}
	s.cache.Delete(workspaceID)

	ws := *access.Workspace
	ws.InviteCode = code

	s.record(ctx, activitydomain.Entry{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Action:      ActionInviteCodeRotated,
		EntityType:  activitydomain.EntityWorkspace,
		EntityID:    workspaceID,
	})

	return &ws, nil
}

// LeaveWorkspace removes the caller's membership. The owner may only leave
// when nobody else is left, in which case the workspace is deleted.
func (s *Service) LeaveWorkspace(ctx context.Context, userID, workspaceID string) error {
	access, err := s.CheckAccess(ctx, userID, workspaceID)
	if err != nil {
		return err
	}

	if access.Role == RoleOwner {
		count, err := s.repo.CountMembers(ctx, workspaceID)
		if err != nil {
			return err
		}
		others := count
		if access.HasMemberRow {
			others--
		}
		if others > 0 {
			return ErrOwnerMustTransfer
		}

		if err := s.repo.DeleteWorkspace(ctx, workspaceID); err != nil {
			return err
		}
		s.cache.Delete(workspaceID)
		s.forgetPresence(ctx, workspaceID, userID)
		return nil
	}

	if err := s.repo.DeleteMember(ctx, workspaceID, userID); err != nil {
		return err
	}
	s.forgetPresence(ctx, workspaceID, userID)

	s.record(ctx, activitydomain.Entry{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Action:      ActionMemberLeft,
		EntityType:  activitydomain.EntityMember,
		EntityID:    userID,
	})
	return nil
}

func (s *Service) RemoveMember(ctx context.Context, actorID, workspaceID, memberID string) error {
	access, err := s.CheckAccess(ctx, actorID, workspaceID)
	if err != nil {
		return err
	}
	if !access.CanManage() {
		return ErrForbidden
	}

	if memberID == access.Workspace.OwnerID {
		return ErrCannotRemoveOwner
	}

	target, err := s.repo.GetMember(ctx, workspaceID, memberID)
	if err != nil {
		return err
	}
	if target.Role == RoleOwner {
		return ErrCannotRemoveOwner
	}
	if access.Role == RoleAdmin && target.Role == RoleAdmin && memberID != actorID {
		return ErrNotOwner
	}

	if err := s.repo.DeleteMember(ctx, workspaceID, memberID); err != nil {
		return err
	}
	s.forgetPresence(ctx, workspaceID, memberID)

	s.record(ctx, activitydomain.Entry{
		WorkspaceID: workspaceID,
		UserID:      actorID,
		Action:      ActionMemberRemoved,
		EntityType:  activitydomain.EntityMember,
		EntityID:    memberID,
	})
	return nil
}

func (s *Service) UpdateMemberRole(ctx context.Context, actorID, workspaceID, memberID, role string) (*Member, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if !IsValidRole(role) || role == RoleOwner {
		return nil, ErrInvalidRole
	}

	access, err := s.CheckAccess(ctx, actorID, workspaceID)
	if err != nil {
		return nil, err
	}
	if !access.CanManage() {
		return nil, ErrForbidden
	}

	target, err := s.repo.GetMember(ctx, workspaceID, memberID)
	if err != nil {
		return nil, err
	}
	if target.Role == RoleOwner || memberID == access.Workspace.OwnerID {
		return nil, ErrCannotChangeOwnerRole
	}
	if access.Role != RoleOwner && (role == RoleAdmin || target.Role == RoleAdmin) {
		return nil, ErrNotOwner
	}
	if target.Role == role {
		return target, nil
	}

	previous := target.Role
	if err := s.repo.UpdateMemberRole(ctx, workspaceID, memberID, role); err != nil {
		return nil, err
	}
	target.Role = role

	s.record(ctx, activitydomain.Entry{
		WorkspaceID: workspaceID,
		UserID:      actorID,
		Action:      ActionMemberRoleChanged,
		EntityType:  activitydomain.EntityMember,
		EntityID:    memberID,
		Metadata:    map[string]any{"from": previous, "to": role},
	})

	return target, nil
}

// TransferOwnership hands the workspace to another member. The previous
// owner stays on as admin. The old owner is demoted before the new one is
// promoted so the single-owner index never sees two owners.
func (s *Service) TransferOwnership(ctx context.Context, actorID, workspaceID, newOwnerID string) (*Workspace, error) {
	access, err := s.CheckAccess(ctx, actorID, workspaceID)
	if err != nil {
		return nil, err
	}
	if access.Role != RoleOwner {
		return nil, ErrNotOwner
	}
	if newOwnerID == actorID {
		return access.Workspace, nil
	}

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if _, err := tx.GetMember(ctx, workspaceID, newOwnerID); err != nil {
			return err
		}

		if access.HasMemberRow {
			if err := tx.UpdateMemberRole(ctx, workspaceID, actorID, RoleAdmin); err != nil {
				return err
			}
		} else {
			previous := Member{WorkspaceID: workspaceID, UserID: actorID, Role: RoleAdmin}
			if err := tx.UpsertMember(ctx, &previous); err != nil {
				return err
			}
		}

		if err := tx.UpdateMemberRole(ctx, workspaceID, newOwnerID, RoleOwner); err != nil {
			return err
		}
		return tx.UpdateOwner(ctx, workspaceID, newOwnerID)
	})
	if err != nil {
		return nil, err
	}
	s.cache.Delete(workspaceID)

	ws := *access.Workspace
	ws.OwnerID = newOwnerID

	s.record(ctx, activitydomain.Entry{
		WorkspaceID: workspaceID,
		UserID:      actorID,
		Action:      ActionOwnershipTransferred,
		EntityType:  activitydomain.EntityWorkspace,
		EntityID:    workspaceID,
		Metadata:    map[string]any{"from": actorID, "to": newOwnerID},
	})

	return &ws, nil
}

func (s *Service) ListMembers(ctx context.Context, userID, workspaceID string) ([]MemberProfile, error) {
	if _, err := s.CheckAccess(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	return s.repo.ListMembersWithProfiles(ctx, workspaceID)
}

// IsMember reports whether userID already belongs to the workspace, counting
// the owner even without a membership row.
func (s *Service) IsMember(ctx context.Context, workspaceID, userID string) (bool, error) {
	_, err := s.CheckAccess(ctx, userID, workspaceID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrWorkspaceNotFound) {
		return false, nil
	}
	return false, err
}

func (s *Service) loadWorkspace(ctx context.Context, workspaceID string) (*Workspace, error) {
	if cached, ok := s.cache.Get(workspaceID); ok {
		return cached, nil
	}
	ws, err := s.repo.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(workspaceID, ws, s.cacheTTL)
	return ws, nil
}

func (s *Service) forgetPresence(ctx context.Context, workspaceID, userID string) {
	if s.presence == nil {
		return
	}
	if err := s.presence.Forget(ctx, workspaceID, userID); err != nil {
		s.log.InternalError("workspaces.presence: forget failed", err,
			"workspace_id", workspaceID, "user_id", userID)
	}
}

func (s *Service) record(ctx context.Context, entry activitydomain.Entry) {
	if s.activity == nil {
		return
	}
	if _, err := s.activity.Record(ctx, entry); err != nil {
		s.log.InternalError("workspaces.activity: record failed", err,
			"workspace_id", entry.WorkspaceID, "action", entry.Action)
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func generateUniqueCode(ctx context.Context, repo Repository) (string, error) {
	for i := 0; i < inviteCodeAttempts; i++ {
		code, err := generateCode(inviteCodeLength)
		if err != nil {
			return "", err
		}
		taken, err := repo.IsCodeTaken(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeGenerationFailed
}

func generateCode(length int) (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	max := big.NewInt(int64(len(alphabet)))

	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		builder.WriteByte(alphabet[n.Int64()])
	}

	return builder.String(), nil
}
