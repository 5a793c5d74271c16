package httpserver

import (
	"net/http"
	"time"

	"eastask-go/internal/config"
	"eastask-go/internal/metrics"
	"eastask-go/internal/transport/httpserver/handler"
	authmw "eastask-go/internal/transport/httpserver/middleware"
	"eastask-go/pkg/logger"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const requestTimeout = 30 * time.Second

// NewRouter wires the API. m may be nil, which disables request metrics and
// the /metrics endpoint.
func NewRouter(cfg config.Config, handlers *handler.Handlers, profiles authmw.ProfileSaver, m *metrics.Metrics, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(authmw.NewCORS(cfg.CORSOrigins))
	if m != nil {
		r.Use(authmw.NewRequestMetrics(m))
		r.Handle("/metrics", metrics.Handler())
	}

	auth := authmw.NewSupabaseAuth(cfg.Supabase, profiles, log)

	r.Route("/api", func(r chi.Router) {
		r.With(chimw.Timeout(requestTimeout)).Get("/health", handlers.Health)

		// long-lived streams run without the request timeout
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Get("/workspaces/{id}/activities/stream", handlers.StreamActivities)
		})

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(requestTimeout))
			r.Use(auth.Middleware)

			r.Get("/auth/me", handlers.AuthMe)

			r.Get("/state", handlers.GetState)
			r.Post("/state/switch", handlers.SwitchWorkspace)

			r.Get("/workspaces", handlers.ListWorkspaces)
			r.Post("/workspaces", handlers.CreateWorkspace)
			r.Post("/workspaces/join", handlers.JoinWorkspace)
			r.Get("/workspaces/{id}", handlers.GetWorkspace)
			r.Patch("/workspaces/{id}", handlers.UpdateWorkspace)
			r.Delete("/workspaces/{id}", handlers.DeleteWorkspace)
			r.Post("/workspaces/{id}/leave", handlers.LeaveWorkspace)
			r.Post("/workspaces/{id}/invite-code", handlers.RegenerateInviteCode)
			r.Post("/workspaces/{id}/transfer", handlers.TransferOwnership)

			r.Get("/workspaces/{id}/members", handlers.ListMembers)
			r.Patch("/workspaces/{id}/members/{user_id}", handlers.UpdateMemberRole)
			r.Delete("/workspaces/{id}/members/{user_id}", handlers.RemoveMember)

			r.Get("/workspaces/{id}/invitations", handlers.ListWorkspaceInvitations)
			r.Post("/workspaces/{id}/invitations", handlers.CreateInvitation)
			r.Get("/invitations", handlers.ListMyInvitations)
			r.Delete("/invitations/{id}", handlers.RevokeInvitation)
			r.Post("/invitations/{token}/accept", handlers.AcceptInvitation)
			r.Post("/invitations/{token}/decline", handlers.DeclineInvitation)

			r.Put("/workspaces/{id}/presence", handlers.UpdatePresence)
			r.Get("/workspaces/{id}/presence", handlers.ListPresence)

			r.Get("/workspaces/{id}/activities", handlers.ListActivities)

			r.Get("/workspaces/{id}/pages", handlers.ListPages)
			r.Post("/workspaces/{id}/pages", handlers.CreatePage)
			r.Patch("/workspaces/{id}/pages/{page_id}", handlers.UpdatePage)
			r.Delete("/workspaces/{id}/pages/{page_id}", handlers.DeletePage)
			r.Get("/workspaces/{id}/pages/{page_id}/tasks", handlers.ListTasks)
			r.Post("/workspaces/{id}/pages/{page_id}/tasks", handlers.CreateTask)
			r.Patch("/workspaces/{id}/tasks/{task_id}", handlers.UpdateTask)
			r.Delete("/workspaces/{id}/tasks/{task_id}", handlers.DeleteTask)
		})
	})

	return r
}
