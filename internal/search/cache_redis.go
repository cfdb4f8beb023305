package search

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisSnapshotKey = "catalog:snapshot:v1"

// RedisSnapshotStore shares the latest catalog between instances as one JSON
// value.
type RedisSnapshotStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedisSnapshotStore keeps snapshots for ttl; zero keeps them forever.
func NewRedisSnapshotStore(client redis.UniversalClient, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client, key: redisSnapshotKey, ttl: ttl}
}

func (r *RedisSnapshotStore) Name() string {
	return "redis"
}

func (r *RedisSnapshotStore) Load(ctx context.Context) (StoredCatalog, bool, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return StoredCatalog{}, false, nil
		}
		return StoredCatalog{}, false, err
	}
	var catalog StoredCatalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return StoredCatalog{}, false, err
	}
	return catalog, true, nil
}

func (r *RedisSnapshotStore) Save(ctx context.Context, catalog StoredCatalog) error {
	data, err := json.Marshal(catalog)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, data, r.ttl).Err()
}

func (r *RedisSnapshotStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
