package activities

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lifeapp/backend/internal/models"
)

// ErrCatalogUnavailable indicates no backing catalog is configured.
var ErrCatalogUnavailable = errors.New("activity catalog unavailable")

// Catalog provides read access to activity categories and activities.
type Catalog interface {
	ListCategories(ctx context.Context) ([]models.ActivityCategory, error)
	GetCategory(ctx context.Context, id string) (models.ActivityCategory, error)
	ListActivities(ctx context.Context, categoryID string) ([]models.Activity, error)
	GetActivity(ctx context.Context, id string) (models.Activity, error)
}

type cacheEntry struct {
	value   any
	expires time.Time
}

// CachingCatalog wraps another Catalog with a TTL-based in-memory cache. Lookup
// failures are never cached.
type CachingCatalog struct {
	base Catalog
	ttl  time.Duration
	now  func() time.Time

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewCachingCatalog returns a Catalog that caches reads for the provided TTL.
func NewCachingCatalog(base Catalog, ttl time.Duration) *CachingCatalog {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingCatalog{
		base:  base,
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]cacheEntry),
	}
}

// ListCategories returns every category.
func (c *CachingCatalog) ListCategories(ctx context.Context) ([]models.ActivityCategory, error) {
	return cached(c, "categories", func() ([]models.ActivityCategory, error) {
		return c.base.ListCategories(ctx)
	})
}

// GetCategory returns a single category.
func (c *CachingCatalog) GetCategory(ctx context.Context, id string) (models.ActivityCategory, error) {
	return cached(c, "category:"+id, func() (models.ActivityCategory, error) {
		return c.base.GetCategory(ctx, id)
	})
}

// ListActivities returns activities, optionally restricted to a category.
func (c *CachingCatalog) ListActivities(ctx context.Context, categoryID string) ([]models.Activity, error) {
	return cached(c, "activities:"+categoryID, func() ([]models.Activity, error) {
		return c.base.ListActivities(ctx, categoryID)
	})
}

// GetActivity returns a single activity.
func (c *CachingCatalog) GetActivity(ctx context.Context, id string) (models.Activity, error) {
	return cached(c, "activity:"+id, func() (models.Activity, error) {
		return c.base.GetActivity(ctx, id)
	})
}

// Invalidate drops every cached entry.
func (c *CachingCatalog) Invalidate() {
	c.mu.Lock()
	c.items = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func cached[T any](c *CachingCatalog, key string, load func() (T, error)) (T, error) {
	var zero T
	if c == nil || c.base == nil {
		return zero, ErrCatalogUnavailable
	}

	now := c.now()

	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		if v, ok := entry.value.(T); ok {
			return v, nil
		}
	}

	value, err := load()
	if err != nil {
		return zero, err
	}

	c.mu.Lock()
	c.items[key] = cacheEntry{value: value, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return value, nil
}
