package handler

import (
	"net/http"

	presencedomain "eastask-go/internal/domain/presence"
)

type updatePresenceRequest struct {
	Status   string `json:"status"`
	Location string `json:"location"`
}

func (h *Handlers) UpdatePresence(w http.ResponseWriter, r *http.Request) {
	var req updatePresenceRequest
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

	entry, err := h.Presence.Update(r.Context(), presencedomain.UpdateInput{
		UserID:      user.ID,
		WorkspaceID: workspaceID,
		Status:      req.Status,
		Location:    req.Location,
	})
	if err != nil {
		h.fail(w, "presence.update", err, "user_id", user.ID, "workspace_id", workspaceID)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *Handlers) ListPresence(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaceID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	online, err := h.Presence.ListOnline(r.Context(), user.ID, workspaceID)
	if err != nil {
		h.fail(w, "presence.list", err, "user_id", user.ID, "workspace_id", workspaceID)
		return
	}

	writeJSON(w, http.StatusOK, online)
}
