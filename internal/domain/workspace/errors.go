package workspace

import "errors"

var (
	ErrWorkspaceNotFound     = errors.New("workspace not found")
	ErrInviteCodeNotFound    = errors.New("invite code not found")
	ErrAlreadyMember         = errors.New("already a member")
	ErrMemberNotFound        = errors.New("member not found")
	ErrNotOwner              = errors.New("not owner")
	ErrForbidden             = errors.New("forbidden")
	ErrCannotRemoveOwner     = errors.New("cannot remove owner")
	ErrOwnerMustTransfer     = errors.New("owner must transfer ownership before leaving")
	ErrInvalidRole           = errors.New("invalid role")
	ErrCannotChangeOwnerRole = errors.New("cannot change owner role")
	ErrCodeGenerationFailed  = errors.New("invite code generation failed")
	ErrNameRequired          = errors.New("name is required")
	ErrNoFieldsToUpdate      = errors.New("no fields to update")
)
