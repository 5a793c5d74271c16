package activity

import (
	"context"

	activitydomain "eastask-go/internal/domain/activity"
	"gorm.io/gorm"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, item *activitydomain.Activity) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *PostgresRepository) List(ctx context.Context, workspaceID string, filter activitydomain.ListFilter) ([]activitydomain.Activity, int64, error) {
	query := r.db.WithContext(ctx).Model(&activitydomain.Activity{}).Where("workspace_id = ?", workspaceID)
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}

	countQuery := query.Session(&gorm.Session{})

	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []activitydomain.Activity
	if err := query.Session(&gorm.Session{}).
		Order("created_at desc").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
