package invitation

import (
	"context"
	"errors"
	"time"

	invitationdomain "eastask-go/internal/domain/invitation"
	workspacedomain "eastask-go/internal/domain/workspace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const selectWithWorkspace = "workspace_invitations.*, workspaces.name AS workspace_name"

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Transaction(ctx context.Context, fn func(invitationdomain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresRepository{db: tx})
	})
}

func (r *PostgresRepository) Create(ctx context.Context, item *invitationdomain.Invitation) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*invitationdomain.Invitation, error) {
	return r.first(ctx, "workspace_invitations.id = ?", id)
}

// GetByToken locks the row so concurrent accepts serialize.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*invitationdomain.Invitation, error) {
	var item invitationdomain.Invitation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token = ?", token).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invitationdomain.ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *PostgresRepository) FindPending(ctx context.Context, workspaceID, email string, now time.Time) (*invitationdomain.Invitation, error) {
	return r.first(ctx,
		"workspace_invitations.workspace_id = ? AND workspace_invitations.email = ? AND workspace_invitations.status = ? AND workspace_invitations.expires_at > ?",
		workspaceID, email, invitationdomain.StatusPending, now)
}

func (r *PostgresRepository) ListPending(ctx context.Context, workspaceID string, now time.Time) ([]invitationdomain.Invitation, error) {
	return r.list(ctx,
		"workspace_invitations.workspace_id = ? AND workspace_invitations.status = ? AND workspace_invitations.expires_at > ?",
		workspaceID, invitationdomain.StatusPending, now)
}

func (r *PostgresRepository) ListPendingByEmail(ctx context.Context, email string, now time.Time) ([]invitationdomain.Invitation, error) {
	return r.list(ctx,
		"workspace_invitations.email = ? AND workspace_invitations.status = ? AND workspace_invitations.expires_at > ?",
		email, invitationdomain.StatusPending, now)
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id, status string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&invitationdomain.Invitation{}).
		Where("id = ? AND status = ?", id, invitationdomain.StatusPending).
		Updates(map[string]any{"status": status, "responded_at": at})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return invitationdomain.ErrInvitationNotPending
	}
	return nil
}

func (r *PostgresRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&invitationdomain.Invitation{}).
		Where("status = ? AND expires_at <= ?", invitationdomain.StatusPending, now).
		Update("status", invitationdomain.StatusExpired)
	return result.RowsAffected, result.Error
}

func (r *PostgresRepository) IsEmailMember(ctx context.Context, workspaceID, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("user_profiles").
		Where("LOWER(user_profiles.email) = ?", email).
		Where(
			r.db.Where("EXISTS (SELECT 1 FROM workspace_members m WHERE m.workspace_id = ? AND m.user_id = user_profiles.user_id)", workspaceID).
				Or("EXISTS (SELECT 1 FROM workspaces w WHERE w.id = ? AND w.owner_id = user_profiles.user_id)", workspaceID),
		).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresRepository) GetMember(ctx context.Context, workspaceID, userID string) (*workspacedomain.Member, error) {
	var member workspacedomain.Member
	if err := r.db.WithContext(ctx).Where("workspace_id = ? AND user_id = ?", workspaceID, userID).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workspacedomain.ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

func (r *PostgresRepository) AddMember(ctx context.Context, member *workspacedomain.Member) error {
	err := r.db.WithContext(ctx).Create(member).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return workspacedomain.ErrAlreadyMember
	}
	return err
}

func (r *PostgresRepository) first(ctx context.Context, query string, args ...any) (*invitationdomain.Invitation, error) {
	var item invitationdomain.Invitation
	err := r.db.WithContext(ctx).
		Model(&invitationdomain.Invitation{}).
		Select(selectWithWorkspace).
		Joins("join workspaces on workspaces.id = workspace_invitations.workspace_id").
		Where(query, args...).
		Order("workspace_invitations.created_at desc").
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invitationdomain.ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]invitationdomain.Invitation, error) {
	var items []invitationdomain.Invitation
	if err := r.db.WithContext(ctx).
		Model(&invitationdomain.Invitation{}).
		Select(selectWithWorkspace).
		Joins("join workspaces on workspaces.id = workspace_invitations.workspace_id").
		Where(query, args...).
		Order("workspace_invitations.created_at desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
