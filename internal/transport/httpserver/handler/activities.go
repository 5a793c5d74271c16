package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	activitydomain "eastask-go/internal/domain/activity"
)

const streamErrorBackoff = time.Second

func (h *Handlers) ListActivities(w http.ResponseWriter, r *http.Request) {
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

	if _, err := h.Workspaces.CheckAccess(r.Context(), user.ID, workspaceID); err != nil {
		h.fail(w, "activities.list", err, "user_id", user.ID, "workspace_id", workspaceID)
		return
	}

	items, total, err := h.Activity.List(r.Context(), workspaceID, activitydomain.ListFilter{
		Limit:  limit,
		Offset: offset,
		UserID: strings.TrimSpace(r.URL.Query().Get("user_id")),
	})
	if err != nil {
		h.fail(w, "activities.list", err, "user_id", user.ID, "workspace_id", workspaceID)
		return
	}

	writeJSON(w, http.StatusOK, listResponse[activitydomain.Activity]{Items: items, Total: total})
}

// StreamActivities relays the workspace activity stream as server-sent
// events. Clients resume with Last-Event-ID or ?last_id.
func (h *Handlers) StreamActivities(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.streams, cancel)
	defer stop()
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaceID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.Workspaces.CheckAccess(ctx, user.ID, workspaceID); err != nil {
		h.fail(w, "activities.stream", err, "user_id", user.ID, "workspace_id", workspaceID)
		return
	}
	if !h.Activity.StreamAvailable() {
		h.fail(w, "activities.stream", activitydomain.ErrStreamUnavailable, "workspace_id", workspaceID)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported")
		return
	}

	lastID := strings.TrimSpace(r.Header.Get("Last-Event-ID"))
	if lastID == "" {
		lastID = strings.TrimSpace(r.URL.Query().Get("last_id"))
	}
	if lastID == "" {
		cursor, err := h.Activity.Cursor(ctx, workspaceID)
		if err != nil {
			h.fail(w, "activities.stream", err, "workspace_id", workspaceID)
			return
		}
		lastID = cursor
	}

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	sseWrite(w, "", "ping", "ready")
	flusher.Flush()

	for {
		if ctx.Err() != nil {
			return
		}

		events, err := h.Activity.Read(ctx, workspaceID, lastID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.log.InternalError("activities.stream: read failed", err, "workspace_id", workspaceID)
			sseWrite(w, "", "error", map[string]string{"error": "stream read failed"})
			flusher.Flush()
			select {
			case <-ctx.Done():
				return
			case <-time.After(streamErrorBackoff):
			}
			continue
		}

		if len(events) == 0 {
			sseWrite(w, "", "ping", time.Now().UTC().Format(time.RFC3339Nano))
			flusher.Flush()
			continue
		}

		for _, event := range events {
			lastID = event.StreamID
			sseWrite(w, event.StreamID, "activity", event.Activity)
		}
		flusher.Flush()
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
}

func sseWrite(w http.ResponseWriter, id, event string, data any) {
	if id != "" {
		_, _ = fmt.Fprintf(w, "id: %s\n", id)
	}
	if event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", event)
	}
	for _, line := range strings.Split(marshalPayload(data), "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
}

func marshalPayload(data any) string {
	switch payload := data.(type) {
	case string:
		return payload
	case []byte:
		return string(payload)
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Sprintf("%v", data)
		}
		return string(encoded)
	}
}
