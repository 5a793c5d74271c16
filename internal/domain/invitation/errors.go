package invitation

import "errors"

var (
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrInvitationExists     = errors.New("a pending invitation already exists for this email")
	ErrInvitationExpired    = errors.New("invitation has expired")
	ErrInvitationNotPending = errors.New("invitation is no longer pending")
	ErrEmailMismatch        = errors.New("authenticated email does not match invitation")
	ErrEmailRequired        = errors.New("email is required")
	ErrInvalidEmail         = errors.New("invalid email")
)
