package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	invitationdomain "eastask-go/internal/domain/invitation"
	workspacedomain "eastask-go/internal/domain/workspace"
)

type createInvitationRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type invitationResponse struct {
	ID            string     `json:"id"`
	WorkspaceID   string     `json:"workspace_id"`
	WorkspaceName string     `json:"workspace_name,omitempty"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	Status        string     `json:"status"`
	InvitedBy     string     `json:"invited_by"`
	ExpiresAt     time.Time  `json:"expires_at"`
	CreatedAt     time.Time  `json:"created_at"`
	RespondedAt   *time.Time `json:"responded_at"`
	// Token is returned to the inviter right after creation and to the
	// invitee whenever the invitation is addressed to their email.
	Token string `json:"token,omitempty"`
}

type acceptInvitationResponse struct {
	Invitation    invitationResponse `json:"invitation"`
	AlreadyMember bool               `json:"already_member"`
}

func (h *Handlers) ListWorkspaceInvitations(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaceID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	items, err := h.Invitations.ListPending(r.Context(), user.ID, workspaceID)
	if err != nil {
		h.fail(w, "invitations.list_workspace", err, "user_id", user.ID, "workspace_id", workspaceID)
		return
	}

	writeJSON(w, http.StatusOK, toInvitationResponses(items, user.Email))
}

func (h *Handlers) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	var req createInvitationRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidJSON(w)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		invalidRequest(w, "email is required")
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

	item, err := h.Invitations.Invite(r.Context(), user.ID, invitationdomain.CreateInput{
		WorkspaceID: workspaceID,
		Email:       req.Email,
		Role:        req.Role,
	})
	if err != nil {
		h.fail(w, "invitations.create", err, "user_id", user.ID, "workspace_id", workspaceID)
		return
	}

	response := toInvitationResponse(*item)
	response.Token = item.Token
	writeJSON(w, http.StatusCreated, response)
}

func (h *Handlers) RevokeInvitation(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	invitationID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.Invitations.Revoke(r.Context(), user.ID, invitationID); err != nil {
		h.fail(w, "invitations.revoke", err, "user_id", user.ID, "invitation_id", invitationID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListMyInvitations(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(user.Email) == "" {
		writeJSON(w, http.StatusOK, []invitationResponse{})
		return
	}

	items, err := h.Invitations.ListForUser(r.Context(), user.Email)
	if err != nil {
		h.fail(w, "invitations.list_mine", err, "user_id", user.ID)
		return
	}

	writeJSON(w, http.StatusOK, toInvitationResponses(items, user.Email))
}

func (h *Handlers) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	token, ok := pathParam(w, r, "token")
	if !ok {
		return
	}

	item, err := h.Invitations.Accept(r.Context(), invitationdomain.Invitee{UserID: user.ID, Email: user.Email}, token)
	alreadyMember := errors.Is(err, workspacedomain.ErrAlreadyMember) && item != nil
	if err != nil && !alreadyMember {
		h.fail(w, "invitations.accept", err, "user_id", user.ID)
		return
	}

	writeJSON(w, http.StatusOK, acceptInvitationResponse{
		Invitation:    toInvitationResponse(*item),
		AlreadyMember: alreadyMember,
	})
}

func (h *Handlers) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	token, ok := pathParam(w, r, "token")
	if !ok {
		return
	}

	item, err := h.Invitations.Decline(r.Context(), invitationdomain.Invitee{UserID: user.ID, Email: user.Email}, token)
	if err != nil {
		h.fail(w, "invitations.decline", err, "user_id", user.ID)
		return
	}

	writeJSON(w, http.StatusOK, toInvitationResponse(*item))
}

func toInvitationResponse(item invitationdomain.Invitation) invitationResponse {
	return invitationResponse{
		ID:            item.ID,
		WorkspaceID:   item.WorkspaceID,
		WorkspaceName: item.WorkspaceName,
		Email:         item.Email,
		Role:          item.Role,
		Status:        item.Status,
		InvitedBy:     item.InvitedBy,
		ExpiresAt:     item.ExpiresAt,
		CreatedAt:     item.CreatedAt,
		RespondedAt:   item.RespondedAt,
	}
}

// toInvitationResponses includes the token on entries addressed to viewerEmail.
func toInvitationResponses(items []invitationdomain.Invitation, viewerEmail string) []invitationResponse {
	viewerEmail = strings.TrimSpace(viewerEmail)
	response := make([]invitationResponse, 0, len(items))
	for _, item := range items {
		entry := toInvitationResponse(item)
		if viewerEmail != "" && strings.EqualFold(item.Email, viewerEmail) {
			entry.Token = item.Token
		}
		response = append(response, entry)
	}
	return response
}
