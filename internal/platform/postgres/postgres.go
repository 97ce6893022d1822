// Package postgres provides the shared pgx connection pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"loanflow/internal/platform/config"
)

// Pool wraps pgxpool with health checking.
type Pool struct {
	*pgxpool.Pool
}

// New connects a pool from configuration. Returns nil when no URL is set
// (in-memory stores take over).
func New(ctx context.Context, cfg config.PostgresConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.AppName != "" {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.AppName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// Health checks if the pool can reach the database.
func (p *Pool) Health(ctx context.Context) error {
	return p.Ping(ctx)
}
