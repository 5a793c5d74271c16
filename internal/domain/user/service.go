package user

import (
	"context"
	"strings"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// UpsertProfile records the latest identity data. Blank fields never
// overwrite stored values.
func (s *Service) UpsertProfile(ctx context.Context, identity Identity) error {
	if identity.UserID == "" {
		return ErrUserIDRequired
	}

	profile := Profile{UserID: identity.UserID}
	if email := strings.ToLower(strings.TrimSpace(identity.Email)); email != "" {
		profile.Email = &email
	}
	if name := strings.TrimSpace(identity.FullName); name != "" {
		profile.FullName = &name
	}
	if identity.AvatarURL != "" {
		profile.AvatarURL = &identity.AvatarURL
	}

	return s.repo.UpsertProfile(ctx, &profile)
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	return s.repo.GetProfile(ctx, userID)
}

// CurrentWorkspace returns the stored selection, or "" when there is none.
func (s *Service) CurrentWorkspace(ctx context.Context, userID string) (string, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		if err == ErrProfileNotFound {
			return "", nil
		}
		return "", err
	}
	if profile.CurrentWorkspaceID == nil {
		return "", nil
	}
	return *profile.CurrentWorkspaceID, nil
}

func (s *Service) SetCurrentWorkspace(ctx context.Context, userID, workspaceID string) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	return s.repo.SetCurrentWorkspace(ctx, userID, workspaceID)
}
