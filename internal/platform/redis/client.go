// Package redis provides the shared redis client backing the workflow
// definition cache.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"loanflow/internal/platform/config"
)

// Client wraps go-redis with health checking for the ops endpoint.
type Client struct {
	*redis.Client
}

// New connects a client from configuration. Returns nil when no URL is set:
// caching is optional and the definition stores work without it.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health checks if the client can reach redis.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
