// Package store defines the composite Store interface for all Beacon
// persistence.
//
// Each subsystem defines its own store interface and the aggregate Store
// composes them all.
package store

import (
	"context"

	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/endpoint"
	"github.com/xraph/beacon/event"
	"github.com/xraph/beacon/run"
	"github.com/xraph/beacon/subject"
	"github.com/xraph/beacon/workflow"
)

// Store is the aggregate persistence interface.
type Store interface {
	endpoint.Store
	event.Store
	delivery.Store
	workflow.Store
	run.Store
	subject.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
