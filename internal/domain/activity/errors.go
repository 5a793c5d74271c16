package activity

import "errors"

var (
	ErrActionRequired    = errors.New("action is required")
	ErrWorkspaceRequired = errors.New("workspace id is required")
	ErrStreamUnavailable = errors.New("activity stream unavailable")
)
