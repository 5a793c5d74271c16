package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"eastask-go/internal/config"
	activitydomain "eastask-go/internal/domain/activity"
	presencedomain "eastask-go/internal/domain/presence"
	workspacedomain "eastask-go/internal/domain/workspace"
	"eastask-go/internal/metrics"
	"eastask-go/internal/repository/inmemory"
	"eastask-go/internal/transport/httpserver/handler"
	"eastask-go/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryWorkspaces struct {
	mu         sync.Mutex
	workspaces map[string]workspacedomain.Workspace
	members    map[string]workspacedomain.Member
}

func newMemoryWorkspaces() *memoryWorkspaces {
	return &memoryWorkspaces{
		workspaces: make(map[string]workspacedomain.Workspace),
		members:    make(map[string]workspacedomain.Member),
	}
}

func memberKey(workspaceID, userID string) string { return workspaceID + "/" + userID }

func (m *memoryWorkspaces) Transaction(ctx context.Context, fn func(workspacedomain.Repository) error) error {
	return fn(m)
}

func (m *memoryWorkspaces) GetWorkspace(ctx context.Context, workspaceID string) (*workspacedomain.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[workspaceID]
	if !ok {
		return nil, workspacedomain.ErrWorkspaceNotFound
	}
	return &ws, nil
}

func (m *memoryWorkspaces) GetWorkspaceByCode(ctx context.Context, code string) (*workspacedomain.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ws := range m.workspaces {
		if ws.InviteCode == code {
			return &ws, nil
		}
	}
	return nil, workspacedomain.ErrInviteCodeNotFound
}

func (m *memoryWorkspaces) ListWorkspacesForUser(ctx context.Context, userID string) ([]workspacedomain.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]workspacedomain.Workspace, 0)
	for _, ws := range m.workspaces {
		if _, ok := m.members[memberKey(ws.ID, userID)]; ok || ws.OwnerID == userID {
			result = append(result, ws)
		}
	}
	return result, nil
}

func (m *memoryWorkspaces) CreateWorkspace(ctx context.Context, ws *workspacedomain.Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws.CreatedAt = time.Now()
	m.workspaces[ws.ID] = *ws
	return nil
}

func (m *memoryWorkspaces) UpdateWorkspace(ctx context.Context, ws *workspacedomain.Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workspaces[ws.ID] = *ws
	return nil
}

func (m *memoryWorkspaces) UpdateInviteCode(ctx context.Context, workspaceID, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws := m.workspaces[workspaceID]
	ws.InviteCode = code
	m.workspaces[workspaceID] = ws
	return nil
}

func (m *memoryWorkspaces) UpdateOwner(ctx context.Context, workspaceID, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws := m.workspaces[workspaceID]
	ws.OwnerID = ownerID
	m.workspaces[workspaceID] = ws
	return nil
}

func (m *memoryWorkspaces) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workspaces, workspaceID)
	return nil
}

func (m *memoryWorkspaces) GetMember(ctx context.Context, workspaceID, userID string) (*workspacedomain.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[memberKey(workspaceID, userID)]
	if !ok {
		return nil, workspacedomain.ErrMemberNotFound
	}
	return &member, nil
}

func (m *memoryWorkspaces) membersOf(workspaceID string) []workspacedomain.Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]workspacedomain.Member, 0)
	for _, member := range m.members {
		if member.WorkspaceID == workspaceID {
			result = append(result, member)
		}
	}
	return result
}

func (m *memoryWorkspaces) ListOwnedMissingOwnerRow(ctx context.Context, ownerID string) ([]workspacedomain.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]workspacedomain.Workspace, 0)
	for _, ws := range m.workspaces {
		if ws.OwnerID != ownerID {
			continue
		}
		if member, ok := m.members[memberKey(ws.ID, ownerID)]; ok && member.Role == workspacedomain.RoleOwner {
			continue
		}
		result = append(result, ws)
	}
	return result, nil
}

func (m *memoryWorkspaces) ListMembersWithProfiles(ctx context.Context, workspaceID string) ([]workspacedomain.MemberProfile, error) {
	members := m.membersOf(workspaceID)
	result := make([]workspacedomain.MemberProfile, 0, len(members))
	for _, member := range members {
		result = append(result, workspacedomain.MemberProfile{UserID: member.UserID, Role: member.Role, JoinedAt: member.JoinedAt})
	}
	return result, nil
}

func (m *memoryWorkspaces) UpsertMember(ctx context.Context, member *workspacedomain.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[memberKey(member.WorkspaceID, member.UserID)]; !ok {
		m.members[memberKey(member.WorkspaceID, member.UserID)] = *member
	}
	return nil
}

func (m *memoryWorkspaces) AddMember(ctx context.Context, member *workspacedomain.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[memberKey(member.WorkspaceID, member.UserID)]; ok {
		return workspacedomain.ErrAlreadyMember
	}
	m.members[memberKey(member.WorkspaceID, member.UserID)] = *member
	return nil
}

func (m *memoryWorkspaces) UpdateMemberRole(ctx context.Context, workspaceID, userID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[memberKey(workspaceID, userID)]
	if !ok {
		return workspacedomain.ErrMemberNotFound
	}
	member.Role = role
	m.members[memberKey(workspaceID, userID)] = member
	return nil
}

func (m *memoryWorkspaces) DeleteMember(ctx context.Context, workspaceID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, memberKey(workspaceID, userID))
	return nil
}

func (m *memoryWorkspaces) CountMembers(ctx context.Context, workspaceID string) (int64, error) {
	return int64(len(m.membersOf(workspaceID))), nil
}

func (m *memoryWorkspaces) IsCodeTaken(ctx context.Context, code string) (bool, error) {
	_, err := m.GetWorkspaceByCode(ctx, code)
	return err == nil, nil
}

type memoryActivities struct {
	mu    sync.Mutex
	items []activitydomain.Activity
}

func (m *memoryActivities) Create(ctx context.Context, item *activitydomain.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, *item)
	return nil
}

func (m *memoryActivities) List(ctx context.Context, workspaceID string, filter activitydomain.ListFilter) ([]activitydomain.Activity, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]activitydomain.Activity, 0)
	for _, item := range m.items {
		if item.WorkspaceID == workspaceID {
			result = append(result, item)
		}
	}
	return result, int64(len(result)), nil
}

type scriptedSubscriber struct {
	tail    string
	batches [][]activitydomain.Event
	cancel  context.CancelFunc

	cursorCalls int
	reads       []string
}

func (s *scriptedSubscriber) LastID(ctx context.Context, workspaceID string) (string, error) {
	s.cursorCalls++
	return s.tail, nil
}

// Read replays batches in order and ends the request once they run out.
func (s *scriptedSubscriber) Read(ctx context.Context, workspaceID, lastID string) ([]activitydomain.Event, error) {
	s.reads = append(s.reads, lastID)
	if len(s.batches) == 0 {
		s.cancel()
		return nil, context.Canceled
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	return batch, nil
}

func newTestRouter(t *testing.T, userID string) http.Handler {
	router, _ := buildTestRouter(t, userID, nil)
	return router
}

func buildTestRouter(t *testing.T, userID string, sub activitydomain.Subscriber) (http.Handler, *handler.Handlers) {
	t.Helper()
	log := logger.Nop()
	activity := activitydomain.NewService(&memoryActivities{}, nil, log)
	if sub != nil {
		activity.UseSubscriber(sub)
	}
	workspaces := workspacedomain.NewService(newMemoryWorkspaces(), log, workspacedomain.Options{Activity: activity})
	presence := presencedomain.NewService(inmemory.NewPresenceStore(), workspaces, log, presencedomain.Options{Window: time.Minute})
	workspaces.UsePresence(presence)

	handlers := handler.New(handler.Services{
		Workspaces: workspaces,
		Presence:   presence,
		Activity:   activity,
	}, log)

	cfg := config.Config{
		CORSOrigins: []string{"http://localhost:5173"},
		Supabase:    config.SupabaseConfig{SkipAuth: true, MockUserID: userID, MockUserEmail: userID + "@acme.io"},
	}
	return NewRouter(cfg, handlers, nil, metrics.New(), log), handlers
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, &payload))
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	return envelope.Error.Code
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, "owner-1")
	rec := do(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWorkspaceLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t, "owner-1")

	rec := do(t, router, http.MethodPost, "/api/workspaces", map[string]any{"name": "Acme", "settings": map[string]any{"theme": "dark"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID         string         `json:"id"`
		OwnerID    string         `json:"owner_id"`
		InviteCode string         `json:"invite_code"`
		Settings   map[string]any `json:"settings"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "owner-1", created.OwnerID)
	assert.Len(t, created.InviteCode, 10)
	assert.Equal(t, "dark", created.Settings["theme"])

	rec = do(t, router, http.MethodGet, "/api/workspaces/"+created.ID+"/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var members []struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&members))
	require.Len(t, members, 1)
	assert.Equal(t, workspacedomain.RoleOwner, members[0].Role)

	rec = do(t, router, http.MethodGet, "/api/workspaces/"+created.ID+"/activities", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), workspacedomain.ActionWorkspaceCreated)

	rec = do(t, router, http.MethodGet, "/api/workspaces/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "workspace_not_found", errorCode(t, rec))
}

func TestCreateWorkspaceValidation(t *testing.T) {
	router := newTestRouter(t, "owner-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/workspaces", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", errorCode(t, rec))

	rec = do(t, router, http.MethodPost, "/api/workspaces", map[string]any{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", errorCode(t, rec))
}

func TestPresenceThrottleOverHTTP(t *testing.T) {
	router := newTestRouter(t, "owner-1")

	rec := do(t, router, http.MethodPost, "/api/workspaces", map[string]any{"name": "Acme"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	path := "/api/workspaces/" + created.ID + "/presence"

	rec = do(t, router, http.MethodPut, path, map[string]any{"status": "online", "location": "/pages"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPut, path, map[string]any{"status": "away"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "presence_throttled", errorCode(t, rec))

	rec = do(t, router, http.MethodPut, path, map[string]any{"status": "busy"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var online []presencedomain.Presence
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&online))
	require.Len(t, online, 1)
	assert.Equal(t, "/pages", online[0].Location)
}

func TestPresenceHiddenFromOutsiders(t *testing.T) {
	router := newTestRouter(t, "stranger")
	rec := do(t, router, http.MethodGet, "/api/workspaces/ws-1/presence", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActivityStreamUnavailableWithoutRedis(t *testing.T) {
	router := newTestRouter(t, "owner-1")

	rec := do(t, router, http.MethodPost, "/api/workspaces", map[string]any{"name": "Acme"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	rec = do(t, router, http.MethodGet, "/api/workspaces/"+created.ID+"/activities/stream", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "stream_unavailable", errorCode(t, rec))
}

func streamWorkspace(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/workspaces", map[string]any{"name": "Acme"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	return created.ID
}

func openStream(router http.Handler, sub *scriptedSubscriber, path, lastEventID string) *httptest.ResponseRecorder {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub.cancel = cancel

	req := httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx)
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestActivityStreamKeepsCursorAcrossEmptyReads(t *testing.T) {
	sub := &scriptedSubscriber{
		tail: "1700-0",
		batches: [][]activitydomain.Event{
			{},
			{{StreamID: "1701-0", Activity: activitydomain.Activity{ID: "act-1", Action: workspacedomain.ActionMemberJoined}}},
		},
	}
	router, _ := buildTestRouter(t, "owner-1", sub)
	workspaceID := streamWorkspace(t, router)

	rec := openStream(router, sub, "/api/workspaces/"+workspaceID+"/activities/stream", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	assert.Equal(t, 1, sub.cursorCalls)
	assert.Equal(t, []string{"1700-0", "1700-0", "1701-0"}, sub.reads)

	body := rec.Body.String()
	assert.Contains(t, body, "event: ping\ndata: ready\n\n")
	assert.Contains(t, body, "id: 1701-0\nevent: activity\n")
	assert.Contains(t, body, `"action":"`+workspacedomain.ActionMemberJoined+`"`)
}

func TestActivityStreamResumesFromLastEventID(t *testing.T) {
	sub := &scriptedSubscriber{
		tail:    "1800-0",
		batches: [][]activitydomain.Event{{{StreamID: "1650-0", Activity: activitydomain.Activity{ID: "act-2"}}}},
	}
	router, _ := buildTestRouter(t, "owner-1", sub)
	workspaceID := streamWorkspace(t, router)

	rec := openStream(router, sub, "/api/workspaces/"+workspaceID+"/activities/stream", "1600-0")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Zero(t, sub.cursorCalls)
	assert.Equal(t, []string{"1600-0", "1650-0"}, sub.reads)
	assert.Contains(t, rec.Body.String(), "id: 1650-0\nevent: activity\n")
}

type idleSubscriber struct {
	reading chan struct{}
	once    sync.Once
}

func (s *idleSubscriber) LastID(ctx context.Context, workspaceID string) (string, error) {
	return "0-0", nil
}

func (s *idleSubscriber) Read(ctx context.Context, workspaceID, lastID string) ([]activitydomain.Event, error) {
	s.once.Do(func() { close(s.reading) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCloseStreamsEndsOpenStreams(t *testing.T) {
	sub := &idleSubscriber{reading: make(chan struct{})}
	router, handlers := buildTestRouter(t, "owner-1", sub)
	workspaceID := streamWorkspace(t, router)

	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workspaces/"+workspaceID+"/activities/stream", nil))
	}()

	select {
	case <-sub.reading:
	case <-time.After(2 * time.Second):
		t.Fatal("stream never started reading")
	}
	handlers.CloseStreams()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after CloseStreams")
	}
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "data: ready")
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, "owner-1")
	do(t, router, http.MethodGet, "/api/health", nil)

	rec := do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "eastask_http_request_duration_seconds")
}
