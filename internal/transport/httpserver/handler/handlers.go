package handler

import (
	"context"

	activitydomain "eastask-go/internal/domain/activity"
	invitationdomain "eastask-go/internal/domain/invitation"
	presencedomain "eastask-go/internal/domain/presence"
	statedomain "eastask-go/internal/domain/state"
	tasksdomain "eastask-go/internal/domain/tasks"
	workspacedomain "eastask-go/internal/domain/workspace"
	"eastask-go/pkg/logger"
)

type Services struct {
	Workspaces  *workspacedomain.Service
	Invitations *invitationdomain.Service
	Presence    *presencedomain.Service
	Activity    *activitydomain.Service
	Tasks       *tasksdomain.Service
	State       *statedomain.Service
}

type Handlers struct {
	Workspaces  *workspacedomain.Service
	Invitations *invitationdomain.Service
	Presence    *presencedomain.Service
	Activity    *activitydomain.Service
	Tasks       *tasksdomain.Service
	State       *statedomain.Service
	log         logger.Logger

	streams      context.Context
	closeStreams context.CancelFunc
}

func New(services Services, log logger.Logger) *Handlers {
	if log == nil {
		log = logger.Nop()
	}
	streams, closeStreams := context.WithCancel(context.Background())
	return &Handlers{
		Workspaces:   services.Workspaces,
		Invitations:  services.Invitations,
		Presence:     services.Presence,
		Activity:     services.Activity,
		Tasks:        services.Tasks,
		State:        services.State,
		log:          log,
		streams:      streams,
		closeStreams: closeStreams,
	}
}

// CloseStreams ends every open activity stream. Streams never go idle, so
// the server calls this when shutdown starts.
func (h *Handlers) CloseStreams() {
	h.closeStreams()
}
