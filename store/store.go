// Package store defines the aggregate persistence interface. Each subsystem
// (job, scholar, payout) defines its own store interface. The composite
// Store composes them all. Backends: Postgres, Redis, Mongo and Memory.
package store

import (
	"context"

	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/payout"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
)

// Store is the aggregate persistence interface.
// A single backend implements every subsystem store.
type Store interface {
	job.Store
	scholar.Store
	payout.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
