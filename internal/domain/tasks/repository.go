package tasks

import "context"

type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error
	LockWorkspaceOrders(ctx context.Context, workspaceID string) error
	ListPages(ctx context.Context, workspaceID string, filter ListFilter) ([]Page, int64, error)
	GetPage(ctx context.Context, workspaceID, pageID string) (*Page, error)
	CreatePage(ctx context.Context, page *Page) error
	UpdatePage(ctx context.Context, page *Page) error
	SoftDeletePage(ctx context.Context, workspaceID, pageID string) (bool, error)
	GetMaxOrder(ctx context.Context, workspaceID string) (int, error)
	ShiftOrderRange(ctx context.Context, workspaceID string, from, to, delta int) error
	SoftDeleteTasksByPage(ctx context.Context, pageID string) error
	CountTasksByPageIDs(ctx context.Context, pageIDs []string) (map[string]TaskCounts, error)
	ListTasks(ctx context.Context, pageID string) ([]Task, error)
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, workspaceID, taskID string) (*Task, error)
	UpdateTask(ctx context.Context, task *Task) error
	SoftDeleteTask(ctx context.Context, taskID string) (bool, error)
}
