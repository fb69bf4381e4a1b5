package tools

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	logx "github.com/chative-dialogue/server/pkg/logger"
)

const catalogKey = "catalog"

// Cache loads the catalog once and serves it to every conversation. Concurrent
// first callers share a single fetch. Failed fetches are not cached.
type Cache struct {
	source  Source
	group   singleflight.Group
	current atomic.Pointer[Catalog]

	hits     atomic.Int64
	fetches  atomic.Int64
	failures atomic.Int64
}

type Stats struct {
	Loaded   bool      `json:"loaded"`
	Tools    int       `json:"tools"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
	Hits     int64     `json:"hits"`
	Fetches  int64     `json:"fetches"`
	Failures int64     `json:"failures"`
}

func NewCache(source Source) *Cache {
	return &Cache{source: source}
}

// Catalog returns the cached catalog, fetching it on first use.
func (c *Cache) Catalog(ctx context.Context) (*Catalog, error) {
	if cat := c.current.Load(); cat != nil {
		c.hits.Add(1)
		return cat, nil
	}

	v, err, _ := c.group.Do(catalogKey, func() (any, error) {
		if cat := c.current.Load(); cat != nil {
			return cat, nil
		}
		c.fetches.Add(1)
		// one caller giving up must not fail the others waiting on this fetch
		descriptors, err := c.source.Fetch(context.WithoutCancel(ctx))
		if err != nil {
			c.failures.Add(1)
			logx.Error().Err(err).Msg("Failed to load tool catalog")
			return nil, err
		}
		cat := NewCatalog(descriptors)
		c.current.Store(cat)
		logx.Info().Int("tools", cat.Len()).Strs("names", cat.Names()).Msg("Tool catalog loaded")
		return cat, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Catalog), nil
}

// Invalidate drops the cached catalog; the next Catalog call refetches.
func (c *Cache) Invalidate() {
	c.current.Store(nil)
	logx.Info().Msg("Tool catalog invalidated")
}

// Refresh invalidates and reloads immediately.
func (c *Cache) Refresh(ctx context.Context) (*Catalog, error) {
	c.Invalidate()
	return c.Catalog(ctx)
}

func (c *Cache) Stats() Stats {
	s := Stats{
		Hits:     c.hits.Load(),
		Fetches:  c.fetches.Load(),
		Failures: c.failures.Load(),
	}
	if cat := c.current.Load(); cat != nil {
		s.Loaded = true
		s.Tools = cat.Len()
		s.LoadedAt = cat.loadedAt
	}
	return s
}
