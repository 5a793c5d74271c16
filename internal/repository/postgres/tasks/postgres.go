package tasks

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	tasksdomain "eastask-go/internal/domain/tasks"
	"gorm.io/gorm"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Transaction(ctx context.Context, fn func(tasksdomain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresRepository{db: tx})
	})
}

// LockWorkspaceOrders serializes page reordering within a workspace until the
// surrounding transaction ends.
func (r *PostgresRepository) LockWorkspaceOrders(ctx context.Context, workspaceID string) error {
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "pages:"+workspaceID).
		Error
}

func (r *PostgresRepository) ListPages(ctx context.Context, workspaceID string, filter tasksdomain.ListFilter) ([]tasksdomain.Page, int64, error) {
	query := r.db.WithContext(ctx).Model(&tasksdomain.Page{}).Where("workspace_id = ?", workspaceID)
	if search := strings.TrimSpace(filter.Query); search != "" {
		query = query.Where("title ILIKE ?", "%"+search+"%")
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("order_index asc, created_at asc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var pages []tasksdomain.Page
	if err := query.Find(&pages).Error; err != nil {
		return nil, 0, err
	}
	return pages, total, nil
}

func (r *PostgresRepository) GetPage(ctx context.Context, workspaceID, pageID string) (*tasksdomain.Page, error) {
	var page tasksdomain.Page
	if err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND id = ?", workspaceID, pageID).
		First(&page).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tasksdomain.ErrPageNotFound
		}
		return nil, err
	}
	return &page, nil
}

func (r *PostgresRepository) CreatePage(ctx context.Context, page *tasksdomain.Page) error {
	return r.db.WithContext(ctx).Create(page).Error
}

func (r *PostgresRepository) UpdatePage(ctx context.Context, page *tasksdomain.Page) error {
	return r.db.WithContext(ctx).
		Model(&tasksdomain.Page{}).
		Where("id = ? AND workspace_id = ?", page.ID, page.WorkspaceID).
		Updates(map[string]any{
			"title":       page.Title,
			"url":         page.URL,
			"description": page.Description,
			"order_index": page.Order,
		}).Error
}

func (r *PostgresRepository) SoftDeletePage(ctx context.Context, workspaceID, pageID string) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&tasksdomain.Page{}, "workspace_id = ? AND id = ?", workspaceID, pageID)
	return result.RowsAffected > 0, result.Error
}

func (r *PostgresRepository) GetMaxOrder(ctx context.Context, workspaceID string) (int, error) {
	var max sql.NullInt64
	if err := r.db.WithContext(ctx).
		Model(&tasksdomain.Page{}).
		Select("MAX(order_index)").
		Where("workspace_id = ?", workspaceID).
		Scan(&max).Error; err != nil {
		return 0, err
	}
	if !max.Valid {
		return -1, nil
	}
	return int(max.Int64), nil
}

// ShiftOrderRange moves pages in [from, to] by delta, lifting them past the
// current maximum first so the two ranges never overlap mid-update.
func (r *PostgresRepository) ShiftOrderRange(ctx context.Context, workspaceID string, from, to, delta int) error {
	if from > to || delta == 0 {
		return nil
	}

	maxOrder, err := r.GetMaxOrder(ctx, workspaceID)
	if err != nil {
		return err
	}
	offset := maxOrder + 1 + (to - from + 1)
	if offset < 1 {
		offset = 1
	}

	const inRange = "workspace_id = ? AND order_index BETWEEN ? AND ? AND deleted_at IS NULL"
	if err := r.db.WithContext(ctx).
		Model(&tasksdomain.Page{}).
		Where(inRange, workspaceID, from, to).
		Update("order_index", gorm.Expr("order_index + ?", offset)).Error; err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Model(&tasksdomain.Page{}).
		Where(inRange, workspaceID, from+offset, to+offset).
		Update("order_index", gorm.Expr("order_index - ? + ?", offset, delta)).Error
}

func (r *PostgresRepository) SoftDeleteTasksByPage(ctx context.Context, pageID string) error {
	return r.db.WithContext(ctx).Delete(&tasksdomain.Task{}, "page_id = ?", pageID).Error
}

func (r *PostgresRepository) CountTasksByPageIDs(ctx context.Context, pageIDs []string) (map[string]tasksdomain.TaskCounts, error) {
	result := make(map[string]tasksdomain.TaskCounts, len(pageIDs))
	if len(pageIDs) == 0 {
		return result, nil
	}

	type row struct {
		PageID    string `gorm:"column:page_id"`
		Total     int64  `gorm:"column:total"`
		Completed int64  `gorm:"column:completed"`
	}

	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&tasksdomain.Task{}).
		Select("page_id, COUNT(*) AS total, SUM(CASE WHEN is_completed THEN 1 ELSE 0 END) AS completed").
		Where("page_id IN ?", pageIDs).
		Group("page_id").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	for _, item := range rows {
		result[item.PageID] = tasksdomain.TaskCounts{Total: item.Total, Completed: item.Completed}
	}
	return result, nil
}

func (r *PostgresRepository) ListTasks(ctx context.Context, pageID string) ([]tasksdomain.Task, error) {
	var items []tasksdomain.Task
	if err := r.db.WithContext(ctx).
		Where("page_id = ?", pageID).
		Order("is_completed asc, due_date asc nulls last, created_at asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PostgresRepository) CreateTask(ctx context.Context, task *tasksdomain.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// GetTask resolves the task only through a live page of the workspace.
func (r *PostgresRepository) GetTask(ctx context.Context, workspaceID, taskID string) (*tasksdomain.Task, error) {
	var task tasksdomain.Task
	err := r.db.WithContext(ctx).
		Model(&tasksdomain.Task{}).
		Select("tasks.*").
		Joins("join pages on pages.id = tasks.page_id").
		Where("tasks.id = ?", taskID).
		Where("pages.workspace_id = ?", workspaceID).
		Where("pages.deleted_at IS NULL").
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tasksdomain.ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (r *PostgresRepository) UpdateTask(ctx context.Context, task *tasksdomain.Task) error {
	return r.db.WithContext(ctx).
		Model(&tasksdomain.Task{}).
		Where("id = ? AND page_id = ?", task.ID, task.PageID).
		Updates(map[string]any{
			"title":                   task.Title,
			"description":             task.Description,
			"assignee_id":             task.AssigneeID,
			"due_date":                task.DueDate,
			"is_completed":            task.IsCompleted,
			"completed_at":            task.CompletedAt,
			"completed_by_id":         task.CompletedByID,
			"completed_by_name":       task.CompletedByName,
			"completed_by_email":      task.CompletedByEmail,
			"completed_by_avatar_url": task.CompletedByAvatarURL,
		}).Error
}

func (r *PostgresRepository) SoftDeleteTask(ctx context.Context, taskID string) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&tasksdomain.Task{}, "id = ?", taskID)
	return result.RowsAffected > 0, result.Error
}
