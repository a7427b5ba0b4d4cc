package checkout

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"pos_checkout/internal/backend"
	"pos_checkout/internal/cache"
)

// clientDirectory reads client records for display through the cache and
// for debt decisions from the backend.
type clientDirectory struct {
	api    ClientDirectory
	cache  cache.ClientCache
	logger *zap.Logger
}

// Cached returns the cached record, fetching it on a miss. The debt may be
// up to the cache TTL old.
func (d *clientDirectory) Cached(ctx context.Context, id int64) (*backend.Client, error) {
	client, err := d.cache.Get(ctx, id)
	if err == nil {
		return client, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		d.logger.Warn("client cache read failed", zap.Int64("client_id", id), zap.Error(err))
	}
	return d.Fetch(ctx, id)
}

// Fetch always reads the current record from the backend and stores it in
// the cache.
func (d *clientDirectory) Fetch(ctx context.Context, id int64) (*backend.Client, error) {
	client, err := d.api.Client(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.cache.Set(ctx, client); err != nil {
		d.logger.Warn("client cache write failed", zap.Int64("client_id", id), zap.Error(err))
	}
	return client, nil
}
