package tasks

import "errors"

var (
	ErrPageNotFound        = errors.New("page not found")
	ErrTaskNotFound        = errors.New("task not found")
	ErrTitleRequired       = errors.New("title is required")
	ErrNoFieldsToUpdate    = errors.New("no fields to update")
	ErrInvalidOrder        = errors.New("order must be non-negative")
	ErrCompletedByRequired = errors.New("completed_by is required")
	ErrAssigneeNotMember   = errors.New("assignee is not a workspace member")
)
