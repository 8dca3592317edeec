// Package repository defines the plan store interface and an in-memory
// implementation. Database-backed stores live in subpackages.
package repository

import (
	"context"

	"github.com/tapdin/planner/internal/domain/model"
)

// Store persists plans. There is no update operation: a plan is written once
// and may later be deleted.
type Store interface {
	// Create stamps the creation time, assigns an id and inserts the plan.
	Create(ctx context.Context, rec model.EventRecord, meta model.Meta) (string, error)

	// List returns every plan, newest first.
	List(ctx context.Context) ([]model.Plan, error)

	// Delete removes one plan. A malformed id fails with errs.ErrInvalidID,
	// an unknown one with errs.ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored plans.
	Count(ctx context.Context) (int, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close(ctx context.Context) error
}
