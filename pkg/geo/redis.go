package geo

import (
	"context"
	"fmt"

	"goride/pkg/cache"

	"github.com/redis/go-redis/v9"
)

// RedisIndex keeps members in a Redis GEO sorted set.
type RedisIndex struct {
	cache *cache.RedisCache
	key   string
}

func NewRedisIndex(c *cache.RedisCache, key string) *RedisIndex {
	return &RedisIndex{cache: c, key: key}
}

func (r *RedisIndex) Upsert(ctx context.Context, id string, lat, lng float64) error {
	err := r.cache.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      id,
		Longitude: lng,
		Latitude:  lat,
	})
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", id, err)
	}
	return nil
}

func (r *RedisIndex) Remove(ctx context.Context, id string) error {
	if err := r.cache.GeoRemove(ctx, r.key, id); err != nil {
		return fmt.Errorf("failed to remove %s from index: %w", id, err)
	}
	return nil
}

func (r *RedisIndex) Nearby(ctx context.Context, q Query) ([]Entry, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	query := &redis.GeoRadiusQuery{
		Radius:    q.RadiusKm,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
	}
	if q.Filter == nil && q.Limit > 0 {
		query.Count = q.Limit
	}

	locations, err := r.cache.GeoRadius(ctx, r.key, q.Lng, q.Lat, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby members: %w", err)
	}

	entries := make([]Entry, 0, len(locations))
	for _, loc := range locations {
		entries = append(entries, Entry{
			ID:         loc.Name,
			Lat:        loc.Latitude,
			Lng:        loc.Longitude,
			DistanceKm: loc.Dist,
		})
	}

	return applyFilterAndLimit(entries, q), nil
}
