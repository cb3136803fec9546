package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/relay/internal/model"
)

// ErrNotFound is returned when a requested event does not exist.
var ErrNotFound = errors.New("not found")

// InsertResult distinguishes a stored event from an idempotent re-publish.
type InsertResult int

const (
	// Inserted means a new row was written.
	Inserted InsertResult = iota
	// Duplicate means an event with the same id already existed; nothing changed.
	Duplicate
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Store defines the persistence interface for events. Implementations must be
// safe for concurrent use; each call is atomic on its own.
type Store interface {
	// QueryEvents returns events matching the filter, newest first, with tags decoded.
	QueryEvents(ctx context.Context, filter model.Filter) ([]*model.Event, error)
	// CountEvents returns the number of events matching the filter, bounded by its limit.
	CountEvents(ctx context.Context, filter model.Filter) (int64, error)
	// InsertEvent stores an event. A duplicate id is not an error.
	InsertEvent(ctx context.Context, event *model.Event) (InsertResult, error)
	// DeleteEvent removes the event with the given id only if it was authored by author.
	// It returns the number of rows removed.
	DeleteEvent(ctx context.Context, id, author string) (int64, error)
	// ScanEvents calls fn for every stored event, oldest first. A non-nil error
	// from fn stops the scan and is returned.
	ScanEvents(ctx context.Context, fn func(*model.Event) error) error

	// Lifecycle
	Close() error
}
