package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"eastask-go/internal/config"
	userdomain "eastask-go/internal/domain/user"
	"eastask-go/pkg/logger"
)

type SupabaseAuth struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	profiles ProfileSaver
	log      logger.Logger
	skipAuth bool
	mockUser User
}

type contextKey int

const (
	userIDKey contextKey = iota
	userKey
)

type userResponse struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Sub          string                 `json:"sub"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	User         struct {
		ID  string `json:"id"`
		Sub string `json:"sub"`
	} `json:"user"`
}

type User struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

// ProfileSaver mirrors the authenticated identity into user_profiles so
// invitations and member lists can resolve emails and names.
type ProfileSaver interface {
	UpsertProfile(ctx context.Context, identity userdomain.Identity) error
}

func NewSupabaseAuth(cfg config.SupabaseConfig, profiles ProfileSaver, log logger.Logger) *SupabaseAuth {
	if log == nil {
		log = logger.Nop()
	}
	timeout := cfg.AuthTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &SupabaseAuth{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		apiKey:   cfg.PublishableKey,
		client:   &http.Client{Timeout: timeout},
		profiles: profiles,
		log:      log.With("component", "auth"),
		skipAuth: cfg.SkipAuth,
		mockUser: User{
			ID:        strings.TrimSpace(cfg.MockUserID),
			Email:     strings.TrimSpace(cfg.MockUserEmail),
			Name:      strings.TrimSpace(cfg.MockUserName),
			AvatarURL: strings.TrimSpace(cfg.MockUserAvatar),
		},
	}
}

func (a *SupabaseAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.skipAuth {
			if a.mockUser.ID == "" {
				writeError(w, http.StatusInternalServerError, "auth_not_configured", "auth mock user id not configured")
				return
			}
			a.saveProfile(r.Context(), a.mockUser)
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), a.mockUser)))
			return
		}

		if a.baseURL == "" || a.apiKey == "" {
			writeError(w, http.StatusInternalServerError, "auth_not_configured", "auth not configured")
			return
		}

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			unauthorized(w)
			return
		}

		user, err := a.fetchUser(r.Context(), token)
		if err != nil {
			a.log.BusinessError("auth.verify: token rejected", err, "path", r.URL.Path)
			unauthorized(w)
			return
		}

		a.saveProfile(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

type authError string

func (e authError) Error() string { return string(e) }

func (a *SupabaseAuth) fetchUser(ctx context.Context, token string) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return User{}, authError("auth server returned " + resp.Status)
	}

	var payload userResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return User{}, err
	}

	userID := firstNonEmpty(payload.ID, payload.Sub, payload.User.ID, payload.User.Sub)
	if userID == "" {
		return User{}, authError("auth response has no user id")
	}

	return User{
		ID:        userID,
		Email:     payload.Email,
		Name:      firstNonEmpty(stringFromMap(payload.UserMetadata, "name"), stringFromMap(payload.UserMetadata, "full_name")),
		AvatarURL: stringFromMap(payload.UserMetadata, "avatar_url"),
	}, nil
}

func (a *SupabaseAuth) saveProfile(ctx context.Context, user User) {
	if a.profiles == nil {
		return
	}
	err := a.profiles.UpsertProfile(ctx, userdomain.Identity{
		UserID:    user.ID,
		Email:     user.Email,
		FullName:  user.Name,
		AvatarURL: user.AvatarURL,
	})
	if err != nil {
		a.log.InternalError("auth.profile: upsert failed", err, "user_id", user.ID)
	}
}

func bearerToken(value string) (string, bool) {
	parts := strings.Fields(value)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
}

func WithUser(ctx context.Context, user User) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, userIDKey, user.ID)
}

func UserFromContext(ctx context.Context) (User, bool) {
	value := ctx.Value(userKey)
	user, ok := value.(User)
	if !ok || user.ID == "" {
		return User{}, false
	}
	return user, true
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	value := ctx.Value(userIDKey)
	userID, ok := value.(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func stringFromMap(values map[string]interface{}, key string) string {
	if values == nil {
		return ""
	}
	parsed, _ := values[key].(string)
	return parsed
}
