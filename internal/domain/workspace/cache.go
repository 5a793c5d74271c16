package workspace

import "time"

type Cache interface {
	Get(workspaceID string) (*Workspace, bool)
	Set(workspaceID string, workspace *Workspace, ttl time.Duration)
	Delete(workspaceID string)
}

type noopCache struct{}

func (noopCache) Get(string) (*Workspace, bool) {
	return nil, false
}

func (noopCache) Set(string, *Workspace, time.Duration) {}

func (noopCache) Delete(string) {}
