// Package manifest caches per-workspace tool manifests (spec §4.3).
package manifest

import (
	"context"
	"sync"
	"time"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
)

// DefaultTTL is the manifest cache's staleness bound (spec: "TTL ≤ 5 minutes").
const DefaultTTL = 5 * time.Minute

// Source fetches the authoritative manifest for a workspace from whatever
// external collaborator owns tool registration. A workspace with no
// manifest returns an empty (non-nil) slice, never an error, per spec §4.3:
// "If a workspace has no manifest, treat as empty."
type Source interface {
	Fetch(ctx context.Context, workspaceID string) ([]domain.ManifestEntry, error)
}

type entry struct {
	tools     []domain.ManifestEntry
	byName    map[string]domain.ManifestEntry
	fetchedAt time.Time
}

// Cache is a process-wide, many-reader/single-writer-per-key manifest cache.
// Refresh is non-blocking: a stale-but-present entry is served immediately
// while a background fetch races to replace it (spec: "refresh is
// non-blocking and safe to race").
type Cache struct {
	source Source
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[string]*entry

	refreshMu sync.Mutex
	inFlight  map[string]bool
}

// New builds a Cache backed by source with the given TTL. ttl<=0 uses
// DefaultTTL.
func New(source Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		source:   source,
		ttl:      ttl,
		entries:  make(map[string]*entry),
		inFlight: make(map[string]bool),
	}
}

// Tools returns the manifest entries for workspaceID. If the cached entry is
// stale or absent, a synchronous fetch is performed on first access; once
// warm, subsequent calls trigger asynchronous background refreshes instead
// of blocking the caller.
func (c *Cache) Tools(ctx context.Context, workspaceID string) ([]domain.ManifestEntry, error) {
	c.mu.RLock()
	e, ok := c.entries[workspaceID]
	c.mu.RUnlock()

	if !ok {
		return c.fetchAndStore(ctx, workspaceID)
	}
	if time.Since(e.fetchedAt) >= c.ttl {
		c.triggerBackgroundRefresh(workspaceID)
	}
	return e.tools, nil
}

// Lookup resolves a single tool by name for workspaceID. The second return
// value is false if the tool is absent from the (possibly empty) manifest.
func (c *Cache) Lookup(ctx context.Context, workspaceID, tool string) (domain.ManifestEntry, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[workspaceID]
	c.mu.RUnlock()
	if !ok {
		if _, err := c.fetchAndStore(ctx, workspaceID); err != nil {
			return domain.ManifestEntry{}, false, err
		}
		c.mu.RLock()
		e = c.entries[workspaceID]
		c.mu.RUnlock()
	} else if time.Since(e.fetchedAt) >= c.ttl {
		c.triggerBackgroundRefresh(workspaceID)
	}
	m, found := e.byName[tool]
	return m, found, nil
}

func (c *Cache) fetchAndStore(ctx context.Context, workspaceID string) ([]domain.ManifestEntry, error) {
	tools, err := c.source.Fetch(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if tools == nil {
		tools = []domain.ManifestEntry{}
	}
	c.store(workspaceID, tools)
	return tools, nil
}

func (c *Cache) store(workspaceID string, tools []domain.ManifestEntry) {
	byName := make(map[string]domain.ManifestEntry, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}
	c.mu.Lock()
	c.entries[workspaceID] = &entry{tools: tools, byName: byName, fetchedAt: time.Now()}
	c.mu.Unlock()
}

// triggerBackgroundRefresh starts at most one concurrent refresh per
// workspace; callers racing on a stale entry all get the stale value
// immediately and the winner's fetch updates the cache for everyone else.
func (c *Cache) triggerBackgroundRefresh(workspaceID string) {
	c.refreshMu.Lock()
	if c.inFlight[workspaceID] {
		c.refreshMu.Unlock()
		return
	}
	c.inFlight[workspaceID] = true
	c.refreshMu.Unlock()

	go func() {
		defer func() {
			c.refreshMu.Lock()
			delete(c.inFlight, workspaceID)
			c.refreshMu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = c.fetchAndStore(ctx, workspaceID)
	}()
}
