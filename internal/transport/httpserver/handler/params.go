package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"eastask-go/internal/transport/httpserver/middleware"
	"github.com/go-chi/chi/v5"
)

func parseDateParam(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseIntParam(value string, fallback int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("invalid int")
	}
	return parsed, nil
}

// requireUser returns the authenticated user or writes 401.
func requireUser(w http.ResponseWriter, r *http.Request) (middleware.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return middleware.User{}, false
	}
	return user, true
}

// pathParam returns the trimmed URL parameter or writes 400.
func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := strings.TrimSpace(chi.URLParam(r, name))
	if value == "" {
		invalidRequest(w, name+" is required")
		return "", false
	}
	return value, true
}

func pagination(w http.ResponseWriter, r *http.Request, defaultLimit int) (int, int, bool) {
	query := r.URL.Query()
	limit, err := parseIntParam(query.Get("limit"), defaultLimit)
	if err != nil {
		invalidRequest(w, "invalid limit")
		return 0, 0, false
	}
	offset, err := parseIntParam(query.Get("offset"), 0)
	if err != nil {
		invalidRequest(w, "invalid offset")
		return 0, 0, false
	}
	return limit, offset, true
}
