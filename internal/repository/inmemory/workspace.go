package inmemory

import (
	"sync"
	"time"

	workspacedomain "eastask-go/internal/domain/workspace"
)

type WorkspaceCache struct {
	mu    sync.RWMutex
	items map[string]workspaceItem
	now   func() time.Time
}

type workspaceItem struct {
	value     workspacedomain.Workspace
	expiresAt time.Time
}

func NewWorkspaceCache() *WorkspaceCache {
	return &WorkspaceCache{
		items: make(map[string]workspaceItem),
		now:   time.Now,
	}
}

func (c *WorkspaceCache) Get(workspaceID string) (*workspacedomain.Workspace, bool) {
	now := c.now()

	c.mu.RLock()
	item, ok := c.items[workspaceID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !item.expiresAt.After(now) {
		c.mu.Lock()
		item, ok = c.items[workspaceID]
		if ok && !item.expiresAt.After(now) {
			delete(c.items, workspaceID)
		}
		c.mu.Unlock()
		return nil, false
	}

	value := item.value
	value.Settings = cloneSettings(item.value.Settings)
	return &value, true
}

func (c *WorkspaceCache) Set(workspaceID string, ws *workspacedomain.Workspace, ttl time.Duration) {
	if ws == nil || ttl <= 0 {
		c.Delete(workspaceID)
		return
	}

	value := *ws
	value.Settings = cloneSettings(ws.Settings)

	c.mu.Lock()
	c.items[workspaceID] = workspaceItem{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()
}

func (c *WorkspaceCache) Delete(workspaceID string) {
	c.mu.Lock()
	delete(c.items, workspaceID)
	c.mu.Unlock()
}

func cloneSettings[M ~map[string]any](settings M) M {
	if settings == nil {
		return nil
	}
	cloned := make(M, len(settings))
	for key, value := range settings {
		cloned[key] = value
	}
	return cloned
}
