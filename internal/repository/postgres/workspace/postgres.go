package workspace

import (
	"context"
	"errors"
	"time"

	workspacedomain "eastask-go/internal/domain/workspace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Transaction(ctx context.Context, fn func(workspacedomain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresRepository{db: tx})
	})
}

func (r *PostgresRepository) GetWorkspace(ctx context.Context, workspaceID string) (*workspacedomain.Workspace, error) {
	var ws workspacedomain.Workspace
	if err := r.db.WithContext(ctx).Where("id = ?", workspaceID).First(&ws).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workspacedomain.ErrWorkspaceNotFound
		}
		return nil, err
	}
	return &ws, nil
}

func (r *PostgresRepository) GetWorkspaceByCode(ctx context.Context, code string) (*workspacedomain.Workspace, error) {
	var ws workspacedomain.Workspace
	if err := r.db.WithContext(ctx).Where("invite_code = ?", code).First(&ws).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workspacedomain.ErrInviteCodeNotFound
		}
		return nil, err
	}
	return &ws, nil
}

// ListWorkspacesForUser includes workspaces the user owns even when the owner
// membership row is missing.
func (r *PostgresRepository) ListWorkspacesForUser(ctx context.Context, userID string) ([]workspacedomain.Workspace, error) {
	var workspaces []workspacedomain.Workspace
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", userID).
		Or("id IN (?)", r.db.Model(&workspacedomain.Member{}).Select("workspace_id").Where("user_id = ?", userID)).
		Order("created_at asc").
		Find(&workspaces).Error
	if err != nil {
		return nil, err
	}
	return workspaces, nil
}

func (r *PostgresRepository) CreateWorkspace(ctx context.Context, ws *workspacedomain.Workspace) error {
	return r.db.WithContext(ctx).Create(ws).Error
}

func (r *PostgresRepository) UpdateWorkspace(ctx context.Context, ws *workspacedomain.Workspace) error {
	result := r.db.WithContext(ctx).Model(&workspacedomain.Workspace{}).
		Where("id = ?", ws.ID).
		Updates(map[string]any{
			"name":        ws.Name,
			"description": ws.Description,
			"settings":    ws.Settings,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return workspacedomain.ErrWorkspaceNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdateInviteCode(ctx context.Context, workspaceID, code string) error {
	return r.db.WithContext(ctx).Model(&workspacedomain.Workspace{}).
		Where("id = ?", workspaceID).
		Updates(map[string]any{"invite_code": code, "updated_at": time.Now().UTC()}).Error
}

func (r *PostgresRepository) UpdateOwner(ctx context.Context, workspaceID, ownerID string) error {
	return r.db.WithContext(ctx).Model(&workspacedomain.Workspace{}).
		Where("id = ?", workspaceID).
		Updates(map[string]any{"owner_id": ownerID, "updated_at": time.Now().UTC()}).Error
}

func (r *PostgresRepository) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	return r.db.WithContext(ctx).Delete(&workspacedomain.Workspace{}, "id = ?", workspaceID).Error
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

func (r *PostgresRepository) ListOwnedMissingOwnerRow(ctx context.Context, ownerID string) ([]workspacedomain.Workspace, error) {
	ownerRow := r.db.Model(&workspacedomain.Member{}).
		Select("1").
		Where("workspace_members.workspace_id = workspaces.id").
		Where("workspace_members.user_id = workspaces.owner_id").
		Where("workspace_members.role = ?", workspacedomain.RoleOwner)

	var workspaces []workspacedomain.Workspace
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Where("NOT EXISTS (?)", ownerRow).
		Order("created_at asc").
		Find(&workspaces).Error; err != nil {
		return nil, err
	}
	return workspaces, nil
}

func (r *PostgresRepository) ListMembersWithProfiles(ctx context.Context, workspaceID string) ([]workspacedomain.MemberProfile, error) {
	type memberRow struct {
		UserID    string    `gorm:"column:user_id"`
		Role      string    `gorm:"column:role"`
		JoinedAt  time.Time `gorm:"column:joined_at"`
		Email     *string   `gorm:"column:email"`
		FullName  *string   `gorm:"column:full_name"`
		AvatarURL *string   `gorm:"column:avatar_url"`
	}

	var rows []memberRow
	if err := r.db.WithContext(ctx).
		Table("workspace_members").
		Select("workspace_members.user_id, workspace_members.role, workspace_members.joined_at, user_profiles.email, user_profiles.full_name, user_profiles.avatar_url").
		Joins("left join user_profiles on user_profiles.user_id = workspace_members.user_id").
		Where("workspace_members.workspace_id = ?", workspaceID).
		Order("workspace_members.joined_at asc").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	members := make([]workspacedomain.MemberProfile, 0, len(rows))
	for _, row := range rows {
		members = append(members, workspacedomain.MemberProfile{
			UserID:    row.UserID,
			Role:      row.Role,
			JoinedAt:  row.JoinedAt,
			Email:     row.Email,
			FullName:  row.FullName,
			AvatarURL: row.AvatarURL,
		})
	}
	return members, nil
}

func (r *PostgresRepository) UpsertMember(ctx context.Context, member *workspacedomain.Member) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "workspace_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(member).Error
}

func (r *PostgresRepository) AddMember(ctx context.Context, member *workspacedomain.Member) error {
	err := r.db.WithContext(ctx).Create(member).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return workspacedomain.ErrAlreadyMember
	}
	return err
}

func (r *PostgresRepository) UpdateMemberRole(ctx context.Context, workspaceID, userID, role string) error {
	result := r.db.WithContext(ctx).Model(&workspacedomain.Member{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Update("role", role)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return workspacedomain.ErrMemberNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteMember(ctx context.Context, workspaceID, userID string) error {
	return r.db.WithContext(ctx).Delete(&workspacedomain.Member{}, "workspace_id = ? AND user_id = ?", workspaceID, userID).Error
}

func (r *PostgresRepository) CountMembers(ctx context.Context, workspaceID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&workspacedomain.Member{}).Where("workspace_id = ?", workspaceID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PostgresRepository) IsCodeTaken(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&workspacedomain.Workspace{}).Where("invite_code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
