package invitation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	activitydomain "eastask-go/internal/domain/activity"
	workspacedomain "eastask-go/internal/domain/workspace"
	"eastask-go/pkg/logger"
	"github.com/google/uuid"
)

const (
	tokenBytes = 32
	defaultTTL = 7 * 24 * time.Hour
)

// AccessChecker resolves a caller's role in a workspace.
type AccessChecker interface {
	CheckAccess(ctx context.Context, userID, workspaceID string) (workspacedomain.Access, error)
}

type ActivityRecorder interface {
	Record(ctx context.Context, entry activitydomain.Entry) (*activitydomain.Activity, error)
}

// Observer counts invitation status transitions.
type Observer interface {
	ObserveInvitation(transition string)
}

type Options struct {
	TTL      time.Duration
	Activity ActivityRecorder
	Observer Observer
	Now      func() time.Time
}

type Service struct {
	repo     Repository
	access   AccessChecker
	log      logger.Logger
	ttl      time.Duration
	activity ActivityRecorder
	observer Observer
	now      func() time.Time
}

func NewService(repo Repository, access AccessChecker, log logger.Logger, opts Options) *Service {
	if log == nil {
		log = logger.Nop()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     repo,
		access:   access,
		log:      log.With("component", "invitation"),
		ttl:      ttl,
		activity: opts.Activity,
		observer: opts.Observer,
		now:      now,
	}
}

func (s *Service) Invite(ctx context.Context, inviterID string, input CreateInput) (*Invitation, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	role := strings.ToLower(strings.TrimSpace(input.Role))
	if role == "" {
		role = workspacedomain.RoleMember
	}
	if !workspacedomain.IsValidRole(role) || role == workspacedomain.RoleOwner {
		return nil, workspacedomain.ErrInvalidRole
	}

	access, err := s.access.CheckAccess(ctx, inviterID, input.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if !access.CanManage() {
		return nil, workspacedomain.ErrForbidden
	}
	if role == workspacedomain.RoleAdmin && access.Role != workspacedomain.RoleOwner {
		return nil, workspacedomain.ErrNotOwner
	}

	member, err := s.repo.IsEmailMember(ctx, input.WorkspaceID, email)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, workspacedomain.ErrAlreadyMember
	}

	now := s.now().UTC()
	if _, err := s.repo.FindPending(ctx, input.WorkspaceID, email, now); err == nil {
		return nil, ErrInvitationExists
	} else if !errors.Is(err, ErrInvitationNotFound) {
		return nil, err
	}

	token, err := generateToken(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate invitation token: %w", err)
	}

	item := Invitation{
		ID:          uuid.NewString(),
		WorkspaceID: input.WorkspaceID,
		Email:       email,
		Role:        role,
		Token:       token,
		Status:      StatusPending,
		InvitedBy:   inviterID,
		ExpiresAt:   now.Add(s.ttl),
		CreatedAt:   now,
	}
	if err := s.repo.Create(ctx, &item); err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	item.WorkspaceName = access.Workspace.Name

	s.observe(StatusPending)
	s.log.Info("invitations.invite: created",
		"invitation_id", item.ID, "workspace_id", item.WorkspaceID, "role", item.Role)
	s.record(ctx, activitydomain.Entry{
		WorkspaceID: item.WorkspaceID,
		UserID:      inviterID,
		Action:      ActionInvitationSent,
		EntityType:  activitydomain.EntityInvitation,
		EntityID:    item.ID,
		Metadata:    map[string]any{"email": item.Email, "role": item.Role},
	})

	return &item, nil
}

// ListPending returns the open invitations of a workspace. Only owners and
// admins see them.
func (s *Service) ListPending(ctx context.Context, userID, workspaceID string) ([]Invitation, error) {
	access, err := s.access.CheckAccess(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	if !access.CanManage() {
		return nil, workspacedomain.ErrForbidden
	}
	return s.repo.ListPending(ctx, workspaceID, s.now().UTC())
}

func (s *Service) ListForUser(ctx context.Context, email string) ([]Invitation, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return []Invitation{}, nil
	}
	return s.repo.ListPendingByEmail(ctx, normalized, s.now().UTC())
}

// Accept turns a pending invitation into a membership. The status change and
// the membership insert share one transaction, so an invitation is accepted
// at most once.
func (s *Service) Accept(ctx context.Context, user Invitee, token string) (*Invitation, error) {
	var (
		result        Invitation
		expired       bool
		alreadyMember bool
	)
	now := s.now().UTC()

	err := s.repo.Transaction(ctx, func(tx Repository) error {
		item, err := s.respondable(ctx, tx, user, token)
		if err != nil {
			return err
		}
		result = *item

		if !item.IsPending(now) {
			expired = true
			return tx.SetStatus(ctx, item.ID, StatusExpired, now)
		}

		if _, err := tx.GetMember(ctx, item.WorkspaceID, user.UserID); err == nil {
			alreadyMember = true
			return tx.SetStatus(ctx, item.ID, StatusAccepted, now)
		} else if !errors.Is(err, workspacedomain.ErrMemberNotFound) {
			return err
		}

		member := workspacedomain.Member{
			WorkspaceID: item.WorkspaceID,
			UserID:      user.UserID,
			Role:        item.Role,
		}
		if err := tx.AddMember(ctx, &member); err != nil {
			return err
		}
		return tx.SetStatus(ctx, item.ID, StatusAccepted, now)
	})
	if err != nil {
		return nil, err
	}

	if expired {
		s.observe(StatusExpired)
		return nil, ErrInvitationExpired
	}

	result.Status = StatusAccepted
	result.RespondedAt = &now
	s.observe(StatusAccepted)

	if alreadyMember {
		s.log.BusinessError("invitations.accept: user already a member", workspacedomain.ErrAlreadyMember,
			"invitation_id", result.ID, "workspace_id", result.WorkspaceID, "user_id", user.UserID)
		return &result, workspacedomain.ErrAlreadyMember
	}

	s.record(ctx, activitydomain.Entry{
		WorkspaceID: result.WorkspaceID,
		UserID:      user.UserID,
		Action:      ActionInvitationAccepted,
		EntityType:  activitydomain.EntityInvitation,
		EntityID:    result.ID,
		Metadata:    map[string]any{"role": result.Role},
	})
	s.record(ctx, activitydomain.Entry{
		WorkspaceID: result.WorkspaceID,
		UserID:      user.UserID,
		Action:      workspacedomain.ActionMemberJoined,
		EntityType:  activitydomain.EntityMember,
		EntityID:    user.UserID,
		Metadata:    map[string]any{"via": "invitation"},
	})

	return &result, nil
}

func (s *Service) Decline(ctx context.Context, user Invitee, token string) (*Invitation, error) {
	now := s.now().UTC()

	item, err := s.respondable(ctx, s.repo, user, token)
	if err != nil {
		return nil, err
	}
	if !item.IsPending(now) {
		if err := s.repo.SetStatus(ctx, item.ID, StatusExpired, now); err != nil {
			return nil, err
		}
		s.observe(StatusExpired)
		return nil, ErrInvitationExpired
	}

	if err := s.repo.SetStatus(ctx, item.ID, StatusDeclined, now); err != nil {
		return nil, err
	}
	item.Status = StatusDeclined
	item.RespondedAt = &now
	s.observe(StatusDeclined)

	s.record(ctx, activitydomain.Entry{
		WorkspaceID: item.WorkspaceID,
		UserID:      user.UserID,
		Action:      ActionInvitationDeclined,
		EntityType:  activitydomain.EntityInvitation,
		EntityID:    item.ID,
	})
	return item, nil
}

func (s *Service) Revoke(ctx context.Context, actorID, invitationID string) error {
	item, err := s.repo.GetByID(ctx, invitationID)
	if err != nil {
		return err
	}

	access, err := s.access.CheckAccess(ctx, actorID, item.WorkspaceID)
	if err != nil {
		if errors.Is(err, workspacedomain.ErrWorkspaceNotFound) {
			return ErrInvitationNotFound
		}
		return err
	}
	if !access.CanManage() {
		return workspacedomain.ErrForbidden
	}
	if item.Status != StatusPending {
		return ErrInvitationNotPending
	}

	if err := s.repo.SetStatus(ctx, item.ID, StatusRevoked, s.now().UTC()); err != nil {
		return err
	}
	s.observe(StatusRevoked)

	s.record(ctx, activitydomain.Entry{
		WorkspaceID: item.WorkspaceID,
		UserID:      actorID,
		Action:      ActionInvitationRevoked,
		EntityType:  activitydomain.EntityInvitation,
		EntityID:    item.ID,
		Metadata:    map[string]any{"email": item.Email},
	})
	return nil
}

func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	count, err := s.repo.ExpireStale(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	for i := int64(0); i < count; i++ {
		s.observe(StatusExpired)
	}
	if count > 0 {
		s.log.Info("invitations.expire: marked stale invitations expired", "count", count)
	}
	return count, nil
}

// RunSweeper calls ExpireStale every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ExpireStale(ctx); err != nil && ctx.Err() == nil {
				s.log.InternalError("invitations.sweeper: expire failed", err)
			}
		}
	}
}

// respondable loads the invitation behind token and checks that user may act
// on it and that it is still pending.
func (s *Service) respondable(ctx context.Context, repo Repository, user Invitee, token string) (*Invitation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvitationNotFound
	}
	item, err := repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(item.Email, strings.TrimSpace(user.Email)) {
		s.log.Warn("invitations.respond: email mismatch",
			"invitation_id", item.ID, "user_id", user.UserID)
		return nil, ErrEmailMismatch
	}
	if item.Status != StatusPending {
		return nil, ErrInvitationNotPending
	}
	return item, nil
}

func (s *Service) observe(transition string) {
	if s.observer != nil {
		s.observer.ObserveInvitation(transition)
	}
}

func (s *Service) record(ctx context.Context, entry activitydomain.Entry) {
	if s.activity == nil {
		return
	}
	if _, err := s.activity.Record(ctx, entry); err != nil {
		s.log.InternalError("invitations.activity: record failed", err,
			"workspace_id", entry.WorkspaceID, "action", entry.Action)
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmailRequired
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
