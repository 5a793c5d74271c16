package handler

import (
	"net/http"
	"strings"
	"time"

	workspacedomain "eastask-go/internal/domain/workspace"
)

type createWorkspaceRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Settings    map[string]any `json:"settings"`
}

type updateWorkspaceRequest struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Settings    map[string]any `json:"settings"`
}

type joinWorkspaceRequest struct {
	Code string `json:"code"`
}

type transferOwnershipRequest struct {
	UserID string `json:"user_id"`
}

type updateMemberRoleRequest struct {
	Role string `json:"role"`
}

type workspaceResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	OwnerID     string         `json:"owner_id"`
	InviteCode  string         `json:"invite_code"`
	Settings    map[string]any `json:"settings"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type memberResponse struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
	Email     *string   `json:"email"`
	FullName  *string   `json:"full_name"`
	AvatarURL *string   `json:"avatar_url"`
}

func (h *Handlers) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	items, err := h.Workspaces.ListUserWorkspaces(r.Context(), user.ID)
	if err != nil {
		h.fail(w, "workspaces.list", err, "user_id", user.ID)
		return
	}

	response := make([]workspaceResponse, 0, len(items))
	for i := range items {
		response = append(response, toWorkspaceResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, listResponse[workspaceResponse]{Items: response, Total: int64(len(response))})
}

func (h *Handlers) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidJSON(w)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		invalidRequest(w, "name is required")
		return
	}

	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	ws, err := h.Workspaces.CreateWorkspace(r.Context(), user.ID, workspacedomain.CreateWorkspaceInput{
		Name:        req.Name,
		Description: req.Description,
		Settings:    req.Settings,
	})
	if err != nil {
		h.fail(w, "workspaces.create", err, "user_id", user.ID)
		return
	}

	writeJSON(w, http.StatusCreated, toWorkspaceResponse(ws))
}

func (h *Handlers) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaceID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	ws, err := h.Workspaces.GetWorkspace(r.Context(), user.ID, workspaceID)
	if err != nil {
		h.fail(w, "workspaces.get", err, "user_id", user.ID, "workspace_id", workspaceID)
		return
	}

	writeJSON(w, http.StatusOK, toWorkspaceResponse(ws))
}

func (h *Handlers) UpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req updateWorkspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidJSON(w)
		return
	}
	if req.Name == nil && req.Description == nil && req.Settings == nil {
		invalidRequest(w, "no fields to update")
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

	ws, err := h.Workspaces.UpdateWorkspace(r.Context(), user.ID, workspacedomain.UpdateWorkspaceInput{
		ID:          workspaceID,
		Name:        req.Name,
		Description: req.Description,
		Settings:    req.Settings,
	})
	if err != nil {
		h.fail(w, "workspaces.update", err, "user_id", user.ID, "workspace_id", workspaceID)
		return
	}

	writeJSON(w, http.StatusOK, toWorkspaceResponse(ws))
}

func (h *Handlers) DeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaceID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.Workspaces.DeleteWorkspace(r.Context(), user.ID, workspaceID); err != nil {
		h.fail(w, "workspaces.delete", err, "user_id", user.ID, "workspace_id", workspaceID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) JoinWorkspace(w http.ResponseWriter, r *http.Request) {
	var req joinWorkspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidJSON(w)
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		invalidRequest(w, "code is required")
		return
	}

	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	ws, err := h.Workspaces.JoinByCode(r.Context(), user.ID, req.Code)
	if err != nil {
		h.fail(w, "workspaces.join", err, "user_id", user.ID, "code", req.Code)
		return
	}

	writeJSON(w, http.StatusOK, toWorkspaceResponse(ws))
}

func (h *Handlers) LeaveWorkspace(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaceID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.Workspaces.LeaveWorkspace(r.Context(), user.ID, workspaceID); err != nil {
		h.fail(w, "workspaces.leave", err, "user_id", user.ID, "workspace_id", workspaceID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) RegenerateInviteCode(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaceID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	ws, err := h.Workspaces.RegenerateInviteCode(r.Context(), user.ID, workspaceID)
	if err != nil {
		h.fail(w, "workspaces.invite_code", err, "user_id", user.ID, "workspace_id", workspaceID)
		return
	}

	writeJSON(w, http.StatusOK, toWorkspaceResponse(ws))
}

func (h *Handlers) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req transferOwnershipRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidJSON(w)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		invalidRequest(w, "user_id is required")
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

	ws, err := h.Workspaces.TransferOwnership(r.Context(), user.ID, workspaceID, req.UserID)
	if err != nil {
		h.fail(w, "workspaces.transfer", err, "user_id", user.ID, "workspace_id", workspaceID, "new_owner_id", req.UserID)
		return
	}

	writeJSON(w, http.StatusOK, toWorkspaceResponse(ws))
}

func (h *Handlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaceID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	members, err := h.Workspaces.ListMembers(r.Context(), user.ID, workspaceID)
	if err != nil {
		h.fail(w, "workspaces.list_members", err, "user_id", user.ID, "workspace_id", workspaceID)
		return
	}

	writeJSON(w, http.StatusOK, toMemberResponses(members))
}

func (h *Handlers) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	var req updateMemberRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidJSON(w)
		return
	}
	if strings.TrimSpace(req.Role) == "" {
		invalidRequest(w, "role is required")
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
	memberID, ok := pathParam(w, r, "user_id")
	if !ok {
		return
	}

	member, err := h.Workspaces.UpdateMemberRole(r.Context(), user.ID, workspaceID, memberID, req.Role)
	if err != nil {
		h.fail(w, "workspaces.update_member_role", err, "actor_id", user.ID, "workspace_id", workspaceID, "member_id", memberID)
		return
	}

	writeJSON(w, http.StatusOK, memberResponse{
		UserID:   member.UserID,
		Role:     member.Role,
		JoinedAt: member.JoinedAt,
	})
}

func (h *Handlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaceID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	memberID, ok := pathParam(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.Workspaces.RemoveMember(r.Context(), user.ID, workspaceID, memberID); err != nil {
		h.fail(w, "workspaces.remove_member", err, "actor_id", user.ID, "workspace_id", workspaceID, "member_id", memberID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toWorkspaceResponse(ws *workspacedomain.Workspace) workspaceResponse {
	settings := map[string]any(ws.Settings)
	if settings == nil {
		settings = map[string]any{}
	}
	return workspaceResponse{
		ID:          ws.ID,
		Name:        ws.Name,
		Description: ws.Description,
		OwnerID:     ws.OwnerID,
		InviteCode:  ws.InviteCode,
		Settings:    settings,
		CreatedAt:   ws.CreatedAt,
		UpdatedAt:   ws.UpdatedAt,
	}
}

func toMemberResponses(members []workspacedomain.MemberProfile) []memberResponse {
	response := make([]memberResponse, 0, len(members))
	for _, member := range members {
		response = append(response, memberResponse{
			UserID:    member.UserID,
			Role:      member.Role,
			JoinedAt:  member.JoinedAt,
			Email:     member.Email,
			FullName:  member.FullName,
			AvatarURL: member.AvatarURL,
		})
	}
	return response
}
