// Package cache provides a redis read-through cache for workflow definitions.
//
// Definitions are immutable once published, so the only staleness risk is an
// active-version replacement; Save invalidates the per-type key and the TTL
// bounds the window for other nodes.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"loanflow/internal/workflow"
	id "loanflow/pkg/domain"
)

// DefinitionCache wraps a DefinitionStore with redis caching.
type DefinitionCache struct {
	next   workflow.DefinitionStore
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func New(next workflow.DefinitionStore, client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *DefinitionCache {
	return &DefinitionCache{next: next, client: client, ttl: ttl, logger: logger}
}

func activeKey(appType id.ApplicationType) string {
	return fmt.Sprintf("loanflow:wfdef:active:%s", appType)
}

func idKey(defID id.DefinitionID) string {
	return fmt.Sprintf("loanflow:wfdef:id:%s", defID)
}

// ActiveByType serves from redis when possible, falling back to the backing
// store. Cache failures degrade to the store, never to an error.
func (c *DefinitionCache) ActiveByType(ctx context.Context, appType id.ApplicationType) (*workflow.Definition, error) {
	if def, ok := c.fetch(ctx, activeKey(appType)); ok {
		return def, nil
	}

	def, err := c.next.ActiveByType(ctx, appType)
	if err != nil {
		return nil, err
	}
	c.put(ctx, activeKey(appType), def)
	return def, nil
}

func (c *DefinitionCache) GetByID(ctx context.Context, defID id.DefinitionID) (*workflow.Definition, error) {
	if def, ok := c.fetch(ctx, idKey(defID)); ok {
		return def, nil
	}

	def, err := c.next.GetByID(ctx, defID)
	if err != nil {
		return nil, err
	}
	c.put(ctx, idKey(def.ID), def)
	return def, nil
}

// Save publishes through to the store and invalidates the active-type key so
// this node sees the replacement immediately.
func (c *DefinitionCache) Save(ctx context.Context, def *workflow.Definition) error {
	if err := c.next.Save(ctx, def); err != nil {
		return err
	}
	if err := c.client.Del(ctx, activeKey(def.ApplicationType), idKey(def.ID)).Err(); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "definition cache invalidation failed",
			"application_type", def.ApplicationType, "error", err)
	}
	return nil
}

func (c *DefinitionCache) fetch(ctx context.Context, key string) (*workflow.Definition, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.WarnContext(ctx, "definition cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var def workflow.Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "definition cache entry corrupt", "key", key, "error", err)
		}
		return nil, false
	}
	return &def, true
}

func (c *DefinitionCache) put(ctx context.Context, key string, def *workflow.Definition) {
	raw, err := json.Marshal(def)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "definition cache write failed", "key", key, "error", err)
	}
}
