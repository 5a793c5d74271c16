package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"eastask-go/internal/config"
	userdomain "eastask-go/internal/domain/user"
	"eastask-go/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type recordingProfiles struct {
	mu    sync.Mutex
	saved []userdomain.Identity
}

func (p *recordingProfiles) UpsertProfile(ctx context.Context, identity userdomain.Identity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = append(p.saved, identity)
	return nil
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": user.ID, "email": user.Email, "name": user.Name})
	})
}

func TestSupabaseAuthVerifiesToken(t *testing.T) {
	supabase := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" || r.Header.Get("apikey") != "anon" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "user-1",
			"email":         "ann@acme.io",
			"user_metadata": map[string]any{"full_name": "Ann"},
		})
	}))
	defer supabase.Close()

	profiles := &recordingProfiles{}
	auth := NewSupabaseAuth(config.SupabaseConfig{URL: supabase.URL + "/", PublishableKey: "anon"}, profiles, logger.Nop())
	handler := auth.Middleware(echoUser())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["id"] != "user-1" || body["name"] != "Ann" {
		t.Fatalf("unexpected user %v", body)
	}
	if len(profiles.saved) != 1 || profiles.saved[0].FullName != "Ann" {
		t.Fatalf("expected profile upsert, got %+v", profiles.saved)
	}

	for _, header := range []string{"", "Bearer bad", "Basic good"} {
		rec = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestSupabaseAuthSkipUsesMockUser(t *testing.T) {
	auth := NewSupabaseAuth(config.SupabaseConfig{SkipAuth: true, MockUserID: "dev", MockUserEmail: "dev@local"}, nil, nil)
	rec := httptest.NewRecorder()
	auth.Middleware(echoUser()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	auth = NewSupabaseAuth(config.SupabaseConfig{SkipAuth: true}, nil, nil)
	rec = httptest.NewRecorder()
	auth.Middleware(echoUser()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without mock user, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	handler := NewCORS([]string{"http://localhost:5173", " "})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/state", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("expected origin echoed, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("Origin", "http://evil.test")
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("expected foreign origin rejected")
	}
}

type requestSample struct {
	method, route, status string
}

type requestRecorder struct {
	samples []requestSample
}

func (r *requestRecorder) ObserveRequest(method, route, status string, elapsed time.Duration) {
	r.samples = append(r.samples, requestSample{method, route, status})
}

func TestRequestMetricsUsesRoutePattern(t *testing.T) {
	observer := &requestRecorder{}
	r := chi.NewRouter()
	r.Use(NewRequestMetrics(observer))
	r.Get("/api/workspaces/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/workspaces/abc", nil))

	if len(observer.samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(observer.samples))
	}
	got := observer.samples[0]
	if got.route != "/api/workspaces/{id}" || got.status != "404" || got.method != http.MethodGet {
		t.Fatalf("unexpected sample %+v", got)
	}
}
