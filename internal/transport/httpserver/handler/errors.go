package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	activitydomain "eastask-go/internal/domain/activity"
	invitationdomain "eastask-go/internal/domain/invitation"
	presencedomain "eastask-go/internal/domain/presence"
	tasksdomain "eastask-go/internal/domain/tasks"
	userdomain "eastask-go/internal/domain/user"
	workspacedomain "eastask-go/internal/domain/workspace"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// Checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{workspacedomain.ErrWorkspaceNotFound, http.StatusNotFound, "workspace_not_found"},
	{workspacedomain.ErrInviteCodeNotFound, http.StatusNotFound, "invite_code_not_found"},
	{workspacedomain.ErrAlreadyMember, http.StatusConflict, "already_member"},
	{workspacedomain.ErrMemberNotFound, http.StatusNotFound, "member_not_found"},
	{workspacedomain.ErrNotOwner, http.StatusForbidden, "not_owner"},
	{workspacedomain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{workspacedomain.ErrCannotRemoveOwner, http.StatusConflict, "cannot_remove_owner"},
	{workspacedomain.ErrOwnerMustTransfer, http.StatusConflict, "owner_must_transfer"},
	{workspacedomain.ErrInvalidRole, http.StatusBadRequest, "invalid_role"},
	{workspacedomain.ErrCannotChangeOwnerRole, http.StatusConflict, "cannot_change_owner_role"},
	{workspacedomain.ErrNameRequired, http.StatusBadRequest, "invalid_request"},
	{workspacedomain.ErrNoFieldsToUpdate, http.StatusBadRequest, "invalid_request"},

	{invitationdomain.ErrInvitationNotFound, http.StatusNotFound, "invitation_not_found"},
	{invitationdomain.ErrInvitationExists, http.StatusConflict, "invitation_exists"},
	{invitationdomain.ErrInvitationExpired, http.StatusGone, "invitation_expired"},
	{invitationdomain.ErrInvitationNotPending, http.StatusConflict, "invitation_not_pending"},
	{invitationdomain.ErrEmailMismatch, http.StatusForbidden, "email_mismatch"},
	{invitationdomain.ErrEmailRequired, http.StatusBadRequest, "invalid_request"},
	{invitationdomain.ErrInvalidEmail, http.StatusBadRequest, "invalid_email"},

	{presencedomain.ErrThrottled, http.StatusTooManyRequests, "presence_throttled"},
	{presencedomain.ErrUpdateInFlight, http.StatusConflict, "presence_update_in_flight"},
	{presencedomain.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},

	{activitydomain.ErrStreamUnavailable, http.StatusServiceUnavailable, "stream_unavailable"},

	{tasksdomain.ErrPageNotFound, http.StatusNotFound, "page_not_found"},
	{tasksdomain.ErrTaskNotFound, http.StatusNotFound, "task_not_found"},
	{tasksdomain.ErrTitleRequired, http.StatusBadRequest, "invalid_request"},
	{tasksdomain.ErrNoFieldsToUpdate, http.StatusBadRequest, "invalid_request"},
	{tasksdomain.ErrInvalidOrder, http.StatusBadRequest, "invalid_order"},
	{tasksdomain.ErrCompletedByRequired, http.StatusBadRequest, "invalid_request"},
	{tasksdomain.ErrAssigneeNotMember, http.StatusBadRequest, "invalid_assignee"},

	{userdomain.ErrUserIDRequired, http.StatusBadRequest, "invalid_request"},
}

func lookupError(err error) (errorMapping, bool) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.err) {
			return mapping, true
		}
	}
	return errorMapping{}, false
}

// fail writes the error envelope for err. Known domain errors are logged as
// business errors, anything else as an internal error with a generic body.
func (h *Handlers) fail(w http.ResponseWriter, operation string, err error, args ...any) {
	mapping, ok := lookupError(err)
	if !ok {
		h.log.InternalError(operation+": failed", err, args...)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	h.log.BusinessError(operation+": "+mapping.err.Error(), err, args...)

	var throttle *presencedomain.ThrottleError
	if errors.As(err, &throttle) {
		seconds := int(math.Ceil(throttle.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	writeError(w, mapping.status, mapping.code, mapping.err.Error())
}
