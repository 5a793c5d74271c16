//go:build e2e
// +build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"eastask-go/internal/config"
	"eastask-go/internal/db"
	activitydomain "eastask-go/internal/domain/activity"
	invitationdomain "eastask-go/internal/domain/invitation"
	presencedomain "eastask-go/internal/domain/presence"
	statedomain "eastask-go/internal/domain/state"
	tasksdomain "eastask-go/internal/domain/tasks"
	userdomain "eastask-go/internal/domain/user"
	workspacedomain "eastask-go/internal/domain/workspace"
	"eastask-go/internal/repository/inmemory"
	activityrepo "eastask-go/internal/repository/postgres/activity"
	invitationrepo "eastask-go/internal/repository/postgres/invitation"
	tasksrepo "eastask-go/internal/repository/postgres/tasks"
	userrepo "eastask-go/internal/repository/postgres/user"
	workspacerepo "eastask-go/internal/repository/postgres/workspace"
	"eastask-go/internal/transport/httpserver"
	"eastask-go/internal/transport/httpserver/handler"
	"eastask-go/pkg/logger"
	"gorm.io/gorm"
)

type testEnv struct {
	server     *httptest.Server
	authServer *httptest.Server
	db         *gorm.DB
}

func setupE2E(t *testing.T) *testEnv {
	t.Helper()

	dsn := os.Getenv("E2E_DB_DSN")
	if dsn == "" {
		t.Skip("E2E_DB_DSN not set; skipping e2e tests")
	}

	log := logger.Nop()
	authServer := newAuthServer(t)

	cfg := config.Config{
		DB: config.DBConfig{DSN: dsn},
		Supabase: config.SupabaseConfig{
			URL:            authServer.URL,
			PublishableKey: "test-key",
			AuthTimeout:    2 * time.Second,
		},
	}

	dbConn, err := db.NewPostgres(cfg.DB, log)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}

	if err := db.Migrate(dbConn, log); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := cleanDB(dbConn); err != nil {
		t.Fatalf("clean db: %v", err)
	}

	users := userdomain.NewService(userrepo.NewPostgres(dbConn))
	activity := activitydomain.NewService(activityrepo.NewPostgres(dbConn), nil, log)
	workspaces := workspacedomain.NewService(workspacerepo.NewPostgres(dbConn), log, workspacedomain.Options{
		Cache:    inmemory.NewWorkspaceCache(),
		Activity: activity,
	})
	invitations := invitationdomain.NewService(invitationrepo.NewPostgres(dbConn), workspaces, log, invitationdomain.Options{
		Activity: activity,
	})
	presence := presencedomain.NewService(inmemory.NewPresenceStore(), workspaces, log, presencedomain.Options{})
	workspaces.UsePresence(presence)
	tasks := tasksdomain.NewService(tasksrepo.NewPostgres(dbConn), workspaces, activity, log)
	state := statedomain.NewService(workspaces, invitations, presence, users, log)

	handlers := handler.New(handler.Services{
		Workspaces:  workspaces,
		Invitations: invitations,
		Presence:    presence,
		Activity:    activity,
		Tasks:       tasks,
		State:       state,
	}, log)

	router := httpserver.NewRouter(cfg, handlers, users, nil, log)
	server := httptest.NewServer(router)

	return &testEnv{server: server, authServer: authServer, db: dbConn}
}

func (e *testEnv) Close() {
	e.server.Close()
	e.authServer.Close()
	sqlDB, err := e.db.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
}

func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		payload := map[string]interface{}{
			"id":    token,
			"email": token + "@acme.io",
			"user_metadata": map[string]interface{}{
				"full_name":  "User " + token,
				"avatar_url": "https://acme.io/avatar.png",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}))
}

func cleanDB(dbConn *gorm.DB) error {
	return dbConn.WithContext(context.Background()).Exec(
		"TRUNCATE TABLE tasks, pages, user_activities, workspace_invitations, workspace_members, workspaces, user_profiles CASCADE",
	).Error
}

func requestJSON(t *testing.T, client *http.Client, method, url, token string, payload interface{}) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}

	return resp, respBody
}

func expectStatus(t *testing.T, resp *http.Response, body []byte, status int) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("expected %d, got %d: %s", status, resp.StatusCode, string(body))
	}
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type workspaceResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OwnerID    string `json:"owner_id"`
	InviteCode string `json:"invite_code"`
}

type memberResponse struct {
	UserID string  `json:"user_id"`
	Role   string  `json:"role"`
	Email  *string `json:"email"`
}

type invitationResponse struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Status string `json:"status"`
	Token  string `json:"token"`
}

type stateResponse struct {
	CurrentWorkspace   *workspaceResponse   `json:"current_workspace"`
	CurrentRole        string               `json:"current_role"`
	UserWorkspaces     []workspaceResponse  `json:"user_workspaces"`
	WorkspaceMembers   []memberResponse     `json:"workspace_members"`
	PendingInvitations []invitationResponse `json:"pending_invitations"`
}

const (
	alice = "11111111-1111-1111-1111-111111111111"
	bob   = "22222222-2222-2222-2222-222222222222"
	carol = "33333333-3333-3333-3333-333333333333"
)

func createWorkspace(t *testing.T, env *testEnv, client *http.Client, token, name string) workspaceResponse {
	t.Helper()
	resp, body := requestJSON(t, client, http.MethodPost, env.server.URL+"/api/workspaces", token, map[string]string{"name": name})
	expectStatus(t, resp, body, http.StatusCreated)
	var ws workspaceResponse
	if err := json.Unmarshal(body, &ws); err != nil {
		t.Fatalf("decode workspace: %v", err)
	}
	return ws
}

func TestE2EHealthAndAuth(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()

	client := &http.Client{Timeout: 5 * time.Second}

	resp, body := requestJSON(t, client, http.MethodGet, env.server.URL+"/api/health", "", nil)
	expectStatus(t, resp, body, http.StatusOK)

	resp, body = requestJSON(t, client, http.MethodGet, env.server.URL+"/api/auth/me", "", nil)
	expectStatus(t, resp, body, http.StatusUnauthorized)
	var errResp errorEnvelope
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Error.Code != "invalid_token" {
		t.Fatalf("expected invalid_token, got %q", errResp.Error.Code)
	}

	resp, body = requestJSON(t, client, http.MethodGet, env.server.URL+"/api/auth/me", alice, nil)
	expectStatus(t, resp, body, http.StatusOK)
}

func TestE2EOwnerMembershipAndState(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()

	client := &http.Client{Timeout: 5 * time.Second}

	acme := createWorkspace(t, env, client, alice, "Acme")
	if acme.OwnerID != alice || acme.InviteCode == "" {
		t.Fatalf("unexpected workspace %+v", acme)
	}

	resp, body := requestJSON(t, client, http.MethodGet, env.server.URL+"/api/workspaces/"+acme.ID+"/members", alice, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var members []memberResponse
	if err := json.Unmarshal(body, &members); err != nil {
		t.Fatalf("decode members: %v", err)
	}
	if len(members) != 1 || members[0].UserID != alice || members[0].Role != workspacedomain.RoleOwner {
		t.Fatalf("expected single owner row, got %+v", members)
	}

	// simulate a missing trigger row; state load must restore it
	if err := env.db.Exec("DELETE FROM workspace_members WHERE workspace_id = ?", acme.ID).Error; err != nil {
		t.Fatalf("delete owner row: %v", err)
	}

	resp, body = requestJSON(t, client, http.MethodGet, env.server.URL+"/api/state", alice, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var state stateResponse
	if err := json.Unmarshal(body, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.CurrentWorkspace == nil || state.CurrentWorkspace.ID != acme.ID {
		t.Fatalf("expected Acme as current workspace, got %+v", state.CurrentWorkspace)
	}
	if state.CurrentRole != workspacedomain.RoleOwner {
		t.Fatalf("expected owner role, got %q", state.CurrentRole)
	}
	if len(state.WorkspaceMembers) != 1 {
		t.Fatalf("expected restored owner row, got %+v", state.WorkspaceMembers)
	}

	resp, body = requestJSON(t, client, http.MethodGet, env.server.URL+"/api/workspaces/"+acme.ID, bob, nil)
	expectStatus(t, resp, body, http.StatusNotFound)
}

func TestE2EInvitationFlow(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()

	client := &http.Client{Timeout: 5 * time.Second}

	acme := createWorkspace(t, env, client, alice, "Acme")

	resp, body := requestJSON(t, client, http.MethodPost, env.server.URL+"/api/workspaces/"+acme.ID+"/invitations", alice, map[string]string{
		"email": bob + "@acme.io",
		"role":  workspacedomain.RoleMember,
	})
	expectStatus(t, resp, body, http.StatusCreated)
	var invite invitationResponse
	if err := json.Unmarshal(body, &invite); err != nil {
		t.Fatalf("decode invitation: %v", err)
	}
	if invite.Token == "" || invite.Status != invitationdomain.StatusPending {
		t.Fatalf("unexpected invitation %+v", invite)
	}

	resp, body = requestJSON(t, client, http.MethodPost, env.server.URL+"/api/workspaces/"+acme.ID+"/invitations", alice, map[string]string{
		"email": bob + "@acme.io",
		"role":  workspacedomain.RoleMember,
	})
	expectStatus(t, resp, body, http.StatusConflict)

	resp, body = requestJSON(t, client, http.MethodPost, env.server.URL+"/api/invitations/"+invite.Token+"/accept", carol, nil)
	expectStatus(t, resp, body, http.StatusForbidden)

	// bob only knows his email; the token comes from his own invitation list
	resp, body = requestJSON(t, client, http.MethodGet, env.server.URL+"/api/invitations", bob, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var mine []invitationResponse
	if err := json.Unmarshal(body, &mine); err != nil {
		t.Fatalf("decode invitations: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != invite.ID || mine[0].Token == "" {
		t.Fatalf("expected bob's invitation with token, got %+v", mine)
	}
	bobToken := mine[0].Token

	resp, body = requestJSON(t, client, http.MethodGet, env.server.URL+"/api/state", bob, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var bobState stateResponse
	if err := json.Unmarshal(body, &bobState); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if len(bobState.PendingInvitations) != 1 || bobState.PendingInvitations[0].Token != bobToken {
		t.Fatalf("expected pending invitation with token in state, got %+v", bobState.PendingInvitations)
	}

	resp, body = requestJSON(t, client, http.MethodPost, env.server.URL+"/api/invitations/"+bobToken+"/accept", bob, nil)
	expectStatus(t, resp, body, http.StatusOK)

	resp, body = requestJSON(t, client, http.MethodPost, env.server.URL+"/api/invitations/"+bobToken+"/accept", bob, nil)
	expectStatus(t, resp, body, http.StatusConflict)

	resp, body = requestJSON(t, client, http.MethodGet, env.server.URL+"/api/workspaces/"+acme.ID+"/members", bob, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var members []memberResponse
	if err := json.Unmarshal(body, &members); err != nil {
		t.Fatalf("decode members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}

	resp, body = requestJSON(t, client, http.MethodDelete, env.server.URL+"/api/workspaces/"+acme.ID+"/members/"+alice, bob, nil)
	expectStatus(t, resp, body, http.StatusForbidden)

	resp, body = requestJSON(t, client, http.MethodPost, env.server.URL+"/api/workspaces/"+acme.ID+"/leave", alice, nil)
	expectStatus(t, resp, body, http.StatusConflict)

	resp, body = requestJSON(t, client, http.MethodPost, env.server.URL+"/api/workspaces/"+acme.ID+"/leave", bob, nil)
	expectStatus(t, resp, body, http.StatusNoContent)
}

func TestE2EJoinByCodeAndSwitch(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()

	client := &http.Client{Timeout: 5 * time.Second}

	acme := createWorkspace(t, env, client, alice, "Acme")
	globex := createWorkspace(t, env, client, carol, "Globex")

	resp, body := requestJSON(t, client, http.MethodPost, env.server.URL+"/api/workspaces/join", bob, map[string]string{"code": acme.InviteCode})
	expectStatus(t, resp, body, http.StatusOK)
	resp, body = requestJSON(t, client, http.MethodPost, env.server.URL+"/api/workspaces/join", bob, map[string]string{"code": globex.InviteCode})
	expectStatus(t, resp, body, http.StatusOK)

	resp, body = requestJSON(t, client, http.MethodPost, env.server.URL+"/api/state/switch", bob, map[string]string{"workspace_id": globex.ID})
	expectStatus(t, resp, body, http.StatusOK)

	resp, body = requestJSON(t, client, http.MethodGet, env.server.URL+"/api/state", bob, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var state stateResponse
	if err := json.Unmarshal(body, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.CurrentWorkspace == nil || state.CurrentWorkspace.ID != globex.ID {
		t.Fatalf("expected Globex selected, got %+v", state.CurrentWorkspace)
	}
	if len(state.UserWorkspaces) != 2 {
		t.Fatalf("expected 2 workspaces, got %d", len(state.UserWorkspaces))
	}
	if state.CurrentRole != workspacedomain.RoleMember {
		t.Fatalf("expected member role, got %q", state.CurrentRole)
	}
}

func TestE2EPagesAndTasks(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()

	client := &http.Client{Timeout: 5 * time.Second}

	acme := createWorkspace(t, env, client, alice, "Acme")
	base := env.server.URL + "/api/workspaces/" + acme.ID

	resp, body := requestJSON(t, client, http.MethodPost, base+"/pages", alice, map[string]string{"title": "Roadmap"})
	expectStatus(t, resp, body, http.StatusCreated)
	var page struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}

	resp, body = requestJSON(t, client, http.MethodPost, base+"/pages/"+page.ID+"/tasks", alice, map[string]string{
		"title":    "Ship v1",
		"due_date": "2026-11-01",
	})
	expectStatus(t, resp, body, http.StatusCreated)
	var task struct {
		ID      string  `json:"id"`
		DueDate *string `json:"due_date"`
	}
	if err := json.Unmarshal(body, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}

	resp, body = requestJSON(t, client, http.MethodPatch, base+"/tasks/"+task.ID, alice, map[string]bool{"is_completed": true})
	expectStatus(t, resp, body, http.StatusOK)
	var completed struct {
		IsCompleted bool `json:"is_completed"`
		CompletedBy *struct {
			ID string `json:"id"`
		} `json:"completed_by"`
	}
	if err := json.Unmarshal(body, &completed); err != nil {
		t.Fatalf("decode completed: %v", err)
	}
	if !completed.IsCompleted || completed.CompletedBy == nil || completed.CompletedBy.ID != alice {
		t.Fatalf("expected completion by alice, got %s", string(body))
	}

	resp, body = requestJSON(t, client, http.MethodGet, base+"/pages", alice, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var pages struct {
		Items []struct {
			TasksTotal     int64 `json:"tasks_total"`
			TasksCompleted int64 `json:"tasks_completed"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal(body, &pages); err != nil {
		t.Fatalf("decode pages: %v", err)
	}
	if pages.Total != 1 || pages.Items[0].TasksTotal != 1 || pages.Items[0].TasksCompleted != 1 {
		t.Fatalf("unexpected page counts: %s", string(body))
	}

	resp, body = requestJSON(t, client, http.MethodDelete, base+"/pages/"+page.ID, alice, nil)
	expectStatus(t, resp, body, http.StatusNoContent)

	resp, body = requestJSON(t, client, http.MethodPatch, base+"/tasks/"+task.ID, alice, map[string]string{"title": "x"})
	expectStatus(t, resp, body, http.StatusNotFound)

	resp, body = requestJSON(t, client, http.MethodGet, base+"/activities", alice, nil)
	expectStatus(t, resp, body, http.StatusOK)
	if !strings.Contains(string(body), workspacedomain.ActionWorkspaceCreated) {
		t.Fatalf("expected workspace_created activity: %s", string(body))
	}
}
