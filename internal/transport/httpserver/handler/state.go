package handler

import (
	"net/http"
	"strings"

	presencedomain "eastask-go/internal/domain/presence"
	statedomain "eastask-go/internal/domain/state"
)

type switchWorkspaceRequest struct {
	WorkspaceID string `json:"workspace_id"`
}

type stateResponse struct {
	CurrentWorkspace   *workspaceResponse        `json:"current_workspace"`
	CurrentRole        string                    `json:"current_role,omitempty"`
	UserWorkspaces     []workspaceResponse       `json:"user_workspaces"`
	WorkspaceMembers   []memberResponse          `json:"workspace_members"`
	PendingInvitations []invitationResponse      `json:"pending_invitations"`
	OnlineUsers        []presencedomain.Presence `json:"online_users"`
}

func (h *Handlers) GetState(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	snapshot, err := h.State.Load(r.Context(), statedomain.User{ID: user.ID, Email: user.Email})
	if err != nil {
		h.fail(w, "state.load", err, "user_id", user.ID)
		return
	}

	writeJSON(w, http.StatusOK, toStateResponse(snapshot, user.Email))
}

func (h *Handlers) SwitchWorkspace(w http.ResponseWriter, r *http.Request) {
	var req switchWorkspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidJSON(w)
		return
	}
	req.WorkspaceID = strings.TrimSpace(req.WorkspaceID)
	if req.WorkspaceID == "" {
		invalidRequest(w, "workspace_id is required")
		return
	}

	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	snapshot, err := h.State.Switch(r.Context(), statedomain.User{ID: user.ID, Email: user.Email}, req.WorkspaceID)
	if err != nil {
		h.fail(w, "state.switch", err, "user_id", user.ID, "workspace_id", req.WorkspaceID)
		return
	}

	writeJSON(w, http.StatusOK, toStateResponse(snapshot, user.Email))
}

func toStateResponse(snapshot *statedomain.Snapshot, viewerEmail string) stateResponse {
	response := stateResponse{
		CurrentRole:        snapshot.CurrentRole,
		UserWorkspaces:     make([]workspaceResponse, 0, len(snapshot.UserWorkspaces)),
		WorkspaceMembers:   toMemberResponses(snapshot.WorkspaceMembers),
		PendingInvitations: toInvitationResponses(snapshot.PendingInvitations, viewerEmail),
		OnlineUsers:        snapshot.OnlineUsers,
	}
	if snapshot.CurrentWorkspace != nil {
		current := toWorkspaceResponse(snapshot.CurrentWorkspace)
		response.CurrentWorkspace = &current
	}
	for i := range snapshot.UserWorkspaces {
		response.UserWorkspaces = append(response.UserWorkspaces, toWorkspaceResponse(&snapshot.UserWorkspaces[i]))
	}
	if response.OnlineUsers == nil {
		response.OnlineUsers = []presencedomain.Presence{}
	}
	return response
}
