package user

import (
	"context"
	"errors"
	"time"

	domain "eastask-go/internal/domain/user"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) UpsertProfile(ctx context.Context, profile *domain.Profile) error {
	updates := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if profile.Email != nil {
		updates["email"] = profile.Email
	}
	if profile.FullName != nil {
		updates["full_name"] = profile.FullName
	}
	if profile.AvatarURL != nil {
		updates["avatar_url"] = profile.AvatarURL
	}

	return r.db.WithContext(ctx).
		Omit("current_workspace_id").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(updates),
		}).
		Create(profile).Error
}

func (r *PostgresRepository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var profile domain.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (r *PostgresRepository) SetCurrentWorkspace(ctx context.Context, userID, workspaceID string) error {
	var value any
	profile := domain.Profile{UserID: userID}
	if workspaceID != "" {
		value = workspaceID
		profile.CurrentWorkspaceID = &workspaceID
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"current_workspace_id": value,
				"updated_at":           time.Now().UTC(),
			}),
		}).
		Create(&profile).Error
}
