package cache

import (
	"context"
	"errors"
	"time"

	"pos_checkout/internal/backend"
)

// ClientCache holds client records, including their debt, between lookups.
type ClientCache interface {
	Get(ctx context.Context, clientID int64) (*backend.Client, error)
	Set(ctx context.Context, client *backend.Client) error
	Delete(ctx context.Context, clientID int64) error
}

var ErrCacheMiss = errors.New("cache miss")

// MemoryCache is an in-process ClientCache.
type MemoryCache struct {
	entries *TTL[int64, backend.Client]
	now     func() time.Time
}

// NewMemoryCache creates a MemoryCache. A nil now uses time.Now.
func NewMemoryCache(ttl time.Duration, now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		entries: NewTTL[int64, backend.Client](ttl),
		now:     now,
	}
}

func (m *MemoryCache) Get(_ context.Context, clientID int64) (*backend.Client, error) {
	client, ok := m.entries.Get(clientID, m.now())
	if !ok {
		return nil, ErrCacheMiss
	}
	return &client, nil
}

// Set stores the record and drops every expired one, so clients that are
// never looked up again do not pile up.
func (m *MemoryCache) Set(_ context.Context, client *backend.Client) error {
	now := m.now()
	m.entries.Purge(now)
	m.entries.Set(client.ID, *client, now)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, clientID int64) error {
	m.entries.Invalidate(clientID)
	return nil
}
