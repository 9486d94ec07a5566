// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

// Package store provides the PostgreSQL plumbing shared by dayplan
// repositories: connection pools, transactions, and schema migrations.
package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/dayplan/dayplan/pkg/errutil"
)

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	URL      string
	MaxConns int32
}

// OpenPool connects to PostgreSQL and verifies the connection with a ping.
func OpenPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	pgCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrapf(errutil.ErrValidation, "parse database url: %v", err)
	}
	if cfg.MaxConns > 0 {
		pgCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(errutil.Storage(err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(errutil.Storage(err))
	}
	return pool, nil
}
