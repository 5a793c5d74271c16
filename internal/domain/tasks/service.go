package tasks

import (
	"context"
	"strings"
	"time"

	activitydomain "eastask-go/internal/domain/activity"
	workspacedomain "eastask-go/internal/domain/workspace"
	"eastask-go/pkg/logger"
	"github.com/google/uuid"
)

type AccessChecker interface {
	CheckAccess(ctx context.Context, userID, workspaceID string) (workspacedomain.Access, error)
	IsMember(ctx context.Context, workspaceID, userID string) (bool, error)
}

type ActivityRecorder interface {
	Record(ctx context.Context, entry activitydomain.Entry) (*activitydomain.Activity, error)
}

type Service struct {
	repo     Repository
	access   AccessChecker
	activity ActivityRecorder
	log      logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, access AccessChecker, activity ActivityRecorder, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:     repo,
		access:   access,
		activity: activity,
		log:      log.With("component", "tasks"),
		now:      time.Now,
	}
}

func (s *Service) ListPages(ctx context.Context, userID, workspaceID string, filter ListFilter) ([]PageWithCounts, int64, error) {
	if _, err := s.access.CheckAccess(ctx, userID, workspaceID); err != nil {
		return nil, 0, err
	}

	pages, total, err := s.repo.ListPages(ctx, workspaceID, filter)
	if err != nil {
		return nil, 0, err
	}
	if len(pages) == 0 {
		return []PageWithCounts{}, total, nil
	}

	pageIDs := make([]string, 0, len(pages))
	for _, page := range pages {
		pageIDs = append(pageIDs, page.ID)
	}

	counts, err := s.repo.CountTasksByPageIDs(ctx, pageIDs)
	if err != nil {
		return nil, 0, err
	}

	result := make([]PageWithCounts, 0, len(pages))
	for _, page := range pages {
		result = append(result, PageWithCounts{Page: page, Counts: counts[page.ID]})
	}
	return result, total, nil
}

// CreatePage appends the page, or inserts it at Order and shifts the pages
// after it down by one.
func (s *Service) CreatePage(ctx context.Context, userID string, input CreatePageInput) (*Page, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if input.Order != nil && *input.Order < 0 {
		return nil, ErrInvalidOrder
	}
	if err := s.requireWrite(ctx, userID, input.WorkspaceID); err != nil {
		return nil, err
	}

	page := Page{
		ID:          uuid.NewString(),
		WorkspaceID: input.WorkspaceID,
		Title:       title,
		URL:         strings.TrimSpace(input.URL),
		Description: strings.TrimSpace(input.Description),
		CreatedBy:   userID,
	}

	err := s.repo.Transaction(ctx, func(tx Repository) error {
		if err := tx.LockWorkspaceOrders(ctx, input.WorkspaceID); err != nil {
			return err
		}
		maxOrder, err := tx.GetMaxOrder(ctx, input.WorkspaceID)
		if err != nil {
			return err
		}

		order := maxOrder + 1
		if input.Order != nil && *input.Order <= maxOrder {
			order = *input.Order
			if err := tx.ShiftOrderRange(ctx, input.WorkspaceID, order, maxOrder, 1); err != nil {
				return err
			}
		}

		page.Order = order
		return tx.CreatePage(ctx, &page)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, userID, page.WorkspaceID, ActionPageCreated, activitydomain.EntityPage, page.ID, map[string]any{"title": page.Title})
	return &page, nil
}

func (s *Service) UpdatePage(ctx context.Context, userID string, input UpdatePageInput) (*Page, error) {
	if input.Title == nil && input.URL == nil && input.Description == nil && input.Order == nil {
		return nil, ErrNoFieldsToUpdate
	}
	if input.Order != nil && *input.Order < 0 {
		return nil, ErrInvalidOrder
	}
	if err := s.requireWrite(ctx, userID, input.WorkspaceID); err != nil {
		return nil, err
	}

	page, err := s.repo.GetPage(ctx, input.WorkspaceID, input.ID)
	if err != nil {
		return nil, err
	}
	if input.Title != nil {
		trimmed := strings.TrimSpace(*input.Title)
		if trimmed == "" {
			return nil, ErrTitleRequired
		}
		page.Title = trimmed
	}
	if input.URL != nil {
		page.URL = strings.TrimSpace(*input.URL)
	}
	if input.Description != nil {
		page.Description = strings.TrimSpace(*input.Description)
	}

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if input.Order != nil {
			if err := tx.LockWorkspaceOrders(ctx, input.WorkspaceID); err != nil {
				return err
			}
		}
		current, err := tx.GetPage(ctx, input.WorkspaceID, input.ID)
		if err != nil {
			return err
		}
		page.Order = current.Order

		if input.Order != nil {
			maxOrder, err := tx.GetMaxOrder(ctx, input.WorkspaceID)
			if err != nil {
				return err
			}
			newOrder := *input.Order
			if newOrder > maxOrder {
				newOrder = maxOrder
			}

			if newOrder != current.Order {
				// park the page outside the range while its neighbours move
				page.Order = maxOrder + 1
				if err := tx.UpdatePage(ctx, page); err != nil {
					return err
				}
				if newOrder > current.Order {
					err = tx.ShiftOrderRange(ctx, input.WorkspaceID, current.Order+1, newOrder, -1)
				} else {
					err = tx.ShiftOrderRange(ctx, input.WorkspaceID, newOrder, current.Order-1, 1)
				}
				if err != nil {
					return err
				}
				page.Order = newOrder
			}
		}

		return tx.UpdatePage(ctx, page)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, userID, page.WorkspaceID, ActionPageUpdated, activitydomain.EntityPage, page.ID, nil)
	return page, nil
}

// DeletePage soft-deletes the page and its tasks and closes the gap in the
// ordering.
func (s *Service) DeletePage(ctx context.Context, userID, workspaceID, pageID string) error {
	if err := s.requireWrite(ctx, userID, workspaceID); err != nil {
		return err
	}

	err := s.repo.Transaction(ctx, func(tx Repository) error {
		if err := tx.LockWorkspaceOrders(ctx, workspaceID); err != nil {
			return err
		}
		page, err := tx.GetPage(ctx, workspaceID, pageID)
		if err != nil {
			return err
		}
		if err := tx.SoftDeleteTasksByPage(ctx, page.ID); err != nil {
			return err
		}
		deleted, err := tx.SoftDeletePage(ctx, workspaceID, pageID)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrPageNotFound
		}

		maxOrder, err := tx.GetMaxOrder(ctx, workspaceID)
		if err != nil {
			return err
		}
		return tx.ShiftOrderRange(ctx, workspaceID, page.Order+1, maxOrder, -1)
	})
	if err != nil {
		return err
	}

	s.record(ctx, userID, workspaceID, ActionPageDeleted, activitydomain.EntityPage, pageID, nil)
	return nil
}

func (s *Service) ListTasks(ctx context.Context, userID, workspaceID, pageID string) ([]Task, error) {
	if _, err := s.access.CheckAccess(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetPage(ctx, workspaceID, pageID); err != nil {
		return nil, err
	}
	return s.repo.ListTasks(ctx, pageID)
}

func (s *Service) CreateTask(ctx context.Context, userID string, input CreateTaskInput) (*Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if err := s.requireWrite(ctx, userID, input.WorkspaceID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetPage(ctx, input.WorkspaceID, input.PageID); err != nil {
		return nil, err
	}

	task := Task{
		ID:          uuid.NewString(),
		PageID:      input.PageID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		DueDate:     truncateDate(input.DueDate),
		CreatedBy:   userID,
	}
	if input.AssigneeID != nil && strings.TrimSpace(*input.AssigneeID) != "" {
		assignee := strings.TrimSpace(*input.AssigneeID)
		if err := s.requireMember(ctx, input.WorkspaceID, assignee); err != nil {
			return nil, err
		}
		task.AssigneeID = &assignee
	}

	if err := s.repo.CreateTask(ctx, &task); err != nil {
		return nil, err
	}

	s.record(ctx, userID, input.WorkspaceID, ActionTaskCreated, activitydomain.EntityTask, task.ID,
		map[string]any{"title": task.Title, "page_id": task.PageID})
	return &task, nil
}

func (s *Service) UpdateTask(ctx context.Context, userID string, input UpdateTaskInput) (*Task, error) {
	if input.Title == nil && input.Description == nil && input.AssigneeID == nil && !input.ClearAssignee &&
		input.DueDate == nil && !input.ClearDueDate && input.IsCompleted == nil {
		return nil, ErrNoFieldsToUpdate
	}
	if err := s.requireWrite(ctx, userID, input.WorkspaceID); err != nil {
		return nil, err
	}

	task, err := s.repo.GetTask(ctx, input.WorkspaceID, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		trimmed := strings.TrimSpace(*input.Title)
		if trimmed == "" {
			return nil, ErrTitleRequired
		}
		task.Title = trimmed
	}
	if input.Description != nil {
		task.Description = strings.TrimSpace(*input.Description)
	}
	switch {
	case input.ClearAssignee:
		task.AssigneeID = nil
	case input.AssigneeID != nil:
		assignee := strings.TrimSpace(*input.AssigneeID)
		if err := s.requireMember(ctx, input.WorkspaceID, assignee); err != nil {
			return nil, err
		}
		task.AssigneeID = &assignee
	}
	switch {
	case input.ClearDueDate:
		task.DueDate = nil
	case input.DueDate != nil:
		task.DueDate = truncateDate(input.DueDate)
	}

	completed := false
	if input.IsCompleted != nil {
		if *input.IsCompleted {
			if input.CompletedBy == nil || strings.TrimSpace(input.CompletedBy.ID) == "" {
				return nil, ErrCompletedByRequired
			}
			completed = !task.IsCompleted
			applyCompletion(task, input.CompletedBy, s.now().UTC())
		} else {
			clearCompletion(task)
		}
	}

	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	action := ActionTaskUpdated
	if completed {
		action = ActionTaskCompleted
	}
	s.record(ctx, userID, input.WorkspaceID, action, activitydomain.EntityTask, task.ID, map[string]any{"title": task.Title})
	return task, nil
}

func (s *Service) DeleteTask(ctx context.Context, userID, workspaceID, taskID string) error {
	if err := s.requireWrite(ctx, userID, workspaceID); err != nil {
		return err
	}

	task, err := s.repo.GetTask(ctx, workspaceID, taskID)
	if err != nil {
		return err
	}

	deleted, err := s.repo.SoftDeleteTask(ctx, task.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrTaskNotFound
	}

	s.record(ctx, userID, workspaceID, ActionTaskDeleted, activitydomain.EntityTask, task.ID, nil)
	return nil
}

func (s *Service) requireWrite(ctx context.Context, userID, workspaceID string) error {
	access, err := s.access.CheckAccess(ctx, userID, workspaceID)
	if err != nil {
		return err
	}
	if !access.CanWrite() {
		return workspacedomain.ErrForbidden
	}
	return nil
}

func (s *Service) requireMember(ctx context.Context, workspaceID, userID string) error {
	ok, err := s.access.IsMember(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAssigneeNotMember
	}
	return nil
}

func (s *Service) record(ctx context.Context, userID, workspaceID, action, entityType, entityID string, metadata map[string]any) {
	if s.activity == nil {
		return
	}
	_, err := s.activity.Record(ctx, activitydomain.Entry{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Metadata:    metadata,
	})
	if err != nil {
		s.log.InternalError("tasks.activity: record failed", err,
			"workspace_id", workspaceID, "action", action)
	}
}

func applyCompletion(task *Task, by *UserSnapshot, now time.Time) {
	task.IsCompleted = true
	task.CompletedAt = &now

	completedByID := strings.TrimSpace(by.ID)
	completedByName := strings.TrimSpace(by.Name)
	completedByEmail := strings.TrimSpace(by.Email)
	completedByAvatar := strings.TrimSpace(by.AvatarURL)

	task.CompletedByID = &completedByID
	task.CompletedByName = &completedByName
	task.CompletedByEmail = &completedByEmail
	if completedByAvatar == "" {
		task.CompletedByAvatarURL = nil
	} else {
		task.CompletedByAvatarURL = &completedByAvatar
	}
}

func clearCompletion(task *Task) {
	task.IsCompleted = false
	task.CompletedAt = nil
	task.CompletedByID = nil
	task.CompletedByName = nil
	task.CompletedByEmail = nil
	task.CompletedByAvatarURL = nil
}

func truncateDate(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	y, m, d := value.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &date
}
