package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sitestock/sitestock/internal/inventory"
)

// SnapshotCache keeps a project's computed stock under a versioned key.
// Every mutation bumps the version, so a cached value is never served for
// a ledger it was not computed from.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache instantiates the cache helper. A nil client disables it.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

func versionKey(projectID string) string {
	return fmt.Sprintf("sitestock:project:%s:version", projectID)
}

// Version returns the project's cache version, initialising it when missing.
func (c *SnapshotCache) Version(ctx context.Context, projectID string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(projectID)).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, versionKey(projectID), 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey(projectID)).Int64()
	}
	return ver, err
}

func stockKey(projectID string, version int64) string {
	return fmt.Sprintf("sitestock:project:%s:stock:%d", projectID, version)
}

// Fetch returns the cached stock or computes it with loader and stores it.
func (c *SnapshotCache) Fetch(ctx context.Context, projectID string, loader func(context.Context) ([]inventory.Snapshot, error)) ([]inventory.Snapshot, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	ver, err := c.Version(ctx, projectID)
	if err != nil {
		return nil, err
	}
	key := stockKey(projectID, ver)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var snaps []inventory.Snapshot
		if err := json.Unmarshal(payload, &snaps); err == nil {
			return snaps, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return nil, err
	}
	snaps, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.store(ctx, key, snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

// Store caches snaps under version. Callers read the version before loading
// the state the snapshot is computed from.
func (c *SnapshotCache) Store(ctx context.Context, projectID string, version int64, snaps []inventory.Snapshot) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.store(ctx, stockKey(projectID, version), snaps)
}

func (c *SnapshotCache) store(ctx context.Context, key string, snaps []inventory.Snapshot) error {
	raw, err := json.Marshal(snaps)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Bump invalidates the project's cached stock.
func (c *SnapshotCache) Bump(ctx context.Context, projectID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(projectID)).Err()
}
