// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dayplan/dayplan/internal/observability"
	"github.com/dayplan/dayplan/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// PoolFactory opens the database pool.
	// Default: store.OpenPool
	PoolFactory func(ctx context.Context, cfg store.PoolConfig) (Database, error)

	// ObservabilityServerFactory creates the metrics and probe server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, gatherer prometheus.Gatherer, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// ListenerFactory binds the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.PoolFactory == nil {
		out.PoolFactory = func(ctx context.Context, cfg store.PoolConfig) (Database, error) {
			pool, err := store.OpenPool(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, gatherer prometheus.Gatherer, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, gatherer, ready, logger)
		}
	}
	if out.ListenerFactory == nil {
		out.ListenerFactory = net.Listen
	}
	return &out
}

// Database wraps the methods used from *pgxpool.Pool.
type Database interface {
	store.Pool
	Ping(ctx context.Context) error
	Close()
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// MigratorFactory opens a schema migrator for a database URL.
type MigratorFactory func(databaseURL string) (Migrator, error)

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Status() ([]store.MigrationStatus, error)
	Close() error
}

func defaultMigratorFactory(databaseURL string) (Migrator, error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return nil, err
	}
	return m, nil
}
