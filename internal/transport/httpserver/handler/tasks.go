package handler

import (
	"net/http"
	"strings"
	"time"

	tasksdomain "eastask-go/internal/domain/tasks"
)

type createPageRequest struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Order       *int   `json:"order"`
}

type updatePageRequest struct {
	Title       *string `json:"title"`
	URL         *string `json:"url"`
	Description *string `json:"description"`
	Order       *int    `json:"order"`
}

type createTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	AssigneeID  *string `json:"assignee_id"`
	DueDate     string  `json:"due_date"`
}

// An empty assignee_id or due_date clears the field.
type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	AssigneeID  *string `json:"assignee_id"`
	DueDate     *string `json:"due_date"`
	IsCompleted *bool   `json:"is_completed"`
}

type pageResponse struct {
	ID             string    `json:"id"`
	WorkspaceID    string    `json:"workspace_id"`
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Description    string    `json:"description"`
	Order          int       `json:"order"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	TasksTotal     int64     `json:"tasks_total"`
	TasksCompleted int64     `json:"tasks_completed"`
}

type taskResponse struct {
	ID          string               `json:"id"`
	PageID      string               `json:"page_id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	AssigneeID  *string              `json:"assignee_id"`
	DueDate     *string              `json:"due_date"`
	IsCompleted bool                 `json:"is_completed"`
	CompletedAt *time.Time           `json:"completed_at"`
	CompletedBy *completedByResponse `json:"completed_by"`
	CreatedBy   string               `json:"created_by"`
	CreatedAt   time.Time            `json:"created_at"`
}

type completedByResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	AvatarURL *string `json:"avatar_url"`
}

func (h *Handlers) ListPages(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaceID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r, 50)
	if !ok {
		return
	}

	items, total, err := h.Tasks.ListPages(r.Context(), user.ID, workspaceID, tasksdomain.ListFilter{
		Query:  strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(w, "pages.list", err, "user_id", user.ID, "workspace_id", workspaceID)
		return
	}

	response := make([]pageResponse, 0, len(items))
	for _, item := range items {
		response = append(response, toPageResponse(item.Page, item.Counts))
	}
	writeJSON(w, http.StatusOK, listResponse[pageResponse]{Items: response, Total: total})
}

func (h *Handlers) CreatePage(w http.ResponseWriter, r *http.Request) {
	var req createPageRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidJSON(w)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		invalidRequest(w, "title is required")
		return
	}

	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaceID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	page, err := h.Tasks.CreatePage(r.Context(), user.ID, tasksdomain.CreatePageInput{
		WorkspaceID: workspaceID,
		Title:       req.Title,
		URL:         req.URL,
		Description: req.Description,
		Order:       req.Order,
	})
	if err != nil {
		h.fail(w, "pages.create", err, "user_id", user.ID, "workspace_id", workspaceID)
		return
	}

	writeJSON(w, http.StatusCreated, toPageResponse(*page, tasksdomain.TaskCounts{}))
}

func (h *Handlers) UpdatePage(w http.ResponseWriter, r *http.Request) {
	var req updatePageRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidJSON(w)
		return
	}

	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaceID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	pageID, ok := pathParam(w, r, "page_id")
	if !ok {
		return
	}

	page, err := h.Tasks.UpdatePage(r.Context(), user.ID, tasksdomain.UpdatePageInput{
		ID:          pageID,
		WorkspaceID: workspaceID,
		Title:       req.Title,
		URL:         req.URL,
		Description: req.Description,
		Order:       req.Order,
	})
	if err != nil {
		h.fail(w, "pages.update", err, "user_id", user.ID, "workspace_id", workspaceID, "page_id", pageID)
		return
	}

	writeJSON(w, http.StatusOK, toPageResponse(*page, tasksdomain.TaskCounts{}))
}

func (h *Handlers) DeletePage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaceID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	pageID, ok := pathParam(w, r, "page_id")
	if !ok {
		return
	}

	if err := h.Tasks.DeletePage(r.Context(), user.ID, workspaceID, pageID); err != nil {
		h.fail(w, "pages.delete", err, "user_id", user.ID, "workspace_id", workspaceID, "page_id", pageID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaceID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	pageID, ok := pathParam(w, r, "page_id")
	if !ok {
		return
	}

	items, err := h.Tasks.ListTasks(r.Context(), user.ID, workspaceID, pageID)
	if err != nil {
		h.fail(w, "tasks.list", err, "user_id", user.ID, "workspace_id", workspaceID, "page_id", pageID)
		return
	}

	response := make([]taskResponse, 0, len(items))
	for _, item := range items {
		response = append(response, toTaskResponse(item))
	}
	writeJSON(w, http.StatusOK, listResponse[taskResponse]{Items: response, Total: int64(len(response))})
}

func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidJSON(w)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		invalidRequest(w, "title is required")
		return
	}
	dueDate, err := parseDateParam(req.DueDate)
	if err != nil {
		invalidRequest(w, "invalid due_date")
		return
	}

	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaceID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	pageID, ok := pathParam(w, r, "page_id")
	if !ok {
		return
	}

	task, err := h.Tasks.CreateTask(r.Context(), user.ID, tasksdomain.CreateTaskInput{
		WorkspaceID: workspaceID,
		PageID:      pageID,
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		DueDate:     dueDate,
	})
	if err != nil {
		h.fail(w, "tasks.create", err, "user_id", user.ID, "workspace_id", workspaceID, "page_id", pageID)
		return
	}

	writeJSON(w, http.StatusCreated, toTaskResponse(*task))
}

func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidJSON(w)
		return
	}

	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaceID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	taskID, ok := pathParam(w, r, "task_id")
	if !ok {
		return
	}

	input := tasksdomain.UpdateTaskInput{
		ID:          taskID,
		WorkspaceID: workspaceID,
		Title:       req.Title,
		Description: req.Description,
		IsCompleted: req.IsCompleted,
	}
	if req.AssigneeID != nil {
		if strings.TrimSpace(*req.AssigneeID) == "" {
			input.ClearAssignee = true
		} else {
			input.AssigneeID = req.AssigneeID
		}
	}
	if req.DueDate != nil {
		dueDate, err := parseDateParam(*req.DueDate)
		if err != nil {
			invalidRequest(w, "invalid due_date")
			return
		}
		if dueDate == nil {
			input.ClearDueDate = true
		} else {
			input.DueDate = dueDate
		}
	}
	if req.IsCompleted != nil && *req.IsCompleted {
		input.CompletedBy = &tasksdomain.UserSnapshot{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			AvatarURL: user.AvatarURL,
		}
	}

	task, err := h.Tasks.UpdateTask(r.Context(), user.ID, input)
	if err != nil {
		h.fail(w, "tasks.update", err, "user_id", user.ID, "workspace_id", workspaceID, "task_id", taskID)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(*task))
}

func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaceID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	taskID, ok := pathParam(w, r, "task_id")
	if !ok {
		return
	}

	if err := h.Tasks.DeleteTask(r.Context(), user.ID, workspaceID, taskID); err != nil {
		h.fail(w, "tasks.delete", err, "user_id", user.ID, "workspace_id", workspaceID, "task_id", taskID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toPageResponse(page tasksdomain.Page, counts tasksdomain.TaskCounts) pageResponse {
	return pageResponse{
		ID:             page.ID,
		WorkspaceID:    page.WorkspaceID,
		Title:          page.Title,
		URL:            page.URL,
		Description:    page.Description,
		Order:          page.Order,
		CreatedBy:      page.CreatedBy,
		CreatedAt:      page.CreatedAt,
		TasksTotal:     counts.Total,
		TasksCompleted: counts.Completed,
	}
}

func toTaskResponse(task tasksdomain.Task) taskResponse {
	var completedBy *completedByResponse
	if task.CompletedByID != nil && strings.TrimSpace(*task.CompletedByID) != "" {
		completedBy = &completedByResponse{
			ID:        *task.CompletedByID,
			Name:      valueOrEmpty(task.CompletedByName),
			Email:     valueOrEmpty(task.CompletedByEmail),
			AvatarURL: task.CompletedByAvatarURL,
		}
	}

	var dueDate *string
	if task.DueDate != nil {
		formatted := task.DueDate.Format("2006-01-02")
		dueDate = &formatted
	}

	return taskResponse{
		ID:          task.ID,
		PageID:      task.PageID,
		Title:       task.Title,
		Description: task.Description,
		AssigneeID:  task.AssigneeID,
		DueDate:     dueDate,
		IsCompleted: task.IsCompleted,
		CompletedAt: task.CompletedAt,
		CompletedBy: completedBy,
		CreatedBy:   task.CreatedBy,
		CreatedAt:   task.CreatedAt,
	}
}

func valueOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
