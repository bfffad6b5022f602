package storage

import (
	"context"
	"errors"

	"cdc/internal/core"
)

// ErrNotFound is returned when a snapshot or cached report does not exist.
var ErrNotFound = errors.New("not found")

// Ports implemented by the sqlite repository and the in-memory store.
type (
	SnapshotStore interface {
		GetSnapshot(ctx context.Context, date string) (core.Snapshot, error)
		// PutSnapshot inserts or replaces the snapshot of a date and drops
		// every cached report that involves that date.
		PutSnapshot(ctx context.Context, s core.Snapshot) error
		// DeleteSnapshot removes a snapshot and its cached reports.
		DeleteSnapshot(ctx context.Context, date string) error
		// ListDates returns stored dates in ascending order.
		ListDates(ctx context.Context) ([]string, error)
	}

	ReportStore interface {
		GetCachedReport(ctx context.Context, oldDate, newDate string) ([]byte, error)
		PutCachedReport(ctx context.Context, oldDate, newDate string, resultJSON []byte) error
		InvalidateCachedReports(ctx context.Context, date string) error
	}

	Repository interface {
		SnapshotStore
		ReportStore
		Close() error
	}
)

// ReportKey identifies the cached report of a date pair.
func ReportKey(oldDate, newDate string) string {
	return oldDate + "_" + newDate
}
