package authlog

import (
	"context"
	"time"
)

// Store defines persistence operations for decision logs.
type Store interface {
	// CreateEntry persists a new decision-log entry.
	CreateEntry(ctx context.Context, e *Entry) error

	// ListEntries returns entries matching the filter, newest first.
	ListEntries(ctx context.Context, filter *QueryFilter) ([]*Entry, error)

	// PurgeEntries removes entries created before the cutoff and returns
	// how many were removed.
	PurgeEntries(ctx context.Context, before time.Time) (int64, error)
}
