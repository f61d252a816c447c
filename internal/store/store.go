// Package store persists consolidated events and serves the read paths
// of the collaborator-owned stores (groups, overrides, categories,
// manual submissions). One SQL implementation backs both SQLite and
// Postgres; the core pipeline only sees the EventStore interface.
package store

import (
	"context"
	"strings"

	"techcal/internal/model"
)

// EventStore is the durable storage surface the pipeline reconciles
// against. Get-style methods return (nil, nil) for expected absence.
type EventStore interface {
	GetEvent(ctx context.Context, guid string) (*model.ConsolidatedEvent, error)
	PutEvent(ctx context.Context, ev model.ConsolidatedEvent) error
	MarkRemoved(ctx context.Context, guid string) error
	QueryRange(ctx context.Context, from, to string) ([]model.ConsolidatedEvent, error)
	QueryActive(ctx context.Context) ([]model.ConsolidatedEvent, error)
	QueryByGroup(ctx context.Context, groupID string) ([]model.ConsolidatedEvent, error)

	ListGroups(ctx context.Context) ([]model.GroupConfig, error)
	GetOverride(ctx context.Context, guid string) (*model.Override, error)
	ListCategories(ctx context.Context) (map[string]model.Category, error)
	ListManualEvents(ctx context.Context) ([]model.ManualEvent, error)
	AddManualEvent(ctx context.Context, ev model.ManualEvent) (model.ManualEvent, error)

	Close() error
}

// Open selects a backend from the configured database string: a
// postgres DSN opens the Postgres store, anything else is treated as a
// SQLite file path.
func Open(database string) (EventStore, error) {
	if strings.HasPrefix(database, "postgres://") || strings.HasPrefix(database, "postgresql://") {
		return OpenPostgres(database)
	}
	return OpenSQLite(database)
}
