package recorder

import (
	"context"
	"errors"
	"time"

	"PriceOptimizer/internal/model"
)

// ErrNotFound is returned when no record matches the lookup.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an owner already has a record with the name.
var ErrDuplicate = errors.New("record name already exists")

// ChartRef identifies a stored chart image.
type ChartRef struct {
	OwnerID string
	Key     string
	// StoredAt is set by image stores; records leave it zero.
	StoredAt time.Time
}

// Recorder persists optimization records, unique by (owner, name).
type Recorder interface {
	FindByNameAndOwner(ctx context.Context, name, ownerID string) (*model.Record, error)
	Save(ctx context.Context, rec *model.Record) error
	Update(ctx context.Context, rec *model.Record) error
	ListByOwner(ctx context.Context, ownerID string) ([]model.Record, error)
	Delete(ctx context.Context, name, ownerID string) error
	// ChartKeys lists the charts referenced by any record.
	ChartKeys(ctx context.Context) ([]ChartRef, error)
	Close() error
}
