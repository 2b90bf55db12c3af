package store

import (
	"context"
	"errors"
	"time"

	"nightpress/internal/models"
)

// ErrNotFound is returned when a record id is unknown or tombstoned.
var ErrNotFound = errors.New("record not found")

// RecordFilter narrows published-record listings. Zero values mean "any".
type RecordFilter struct {
	Kind       models.RecordKind
	AuthorID   string
	Visibility models.Visibility
	Since      time.Time // inclusive, on the effective published time
	Until      time.Time // exclusive
	Limit      int
}

// Store is the durable contract behind the publication engine: records,
// recaps, deliveries and digests. Two implementations exist, Memory (no
// native durability, relies on the recovery snapshot) and Mongo, selected
// by configuration at construction.
type Store interface {
	// Records
	InsertRecord(ctx context.Context, rec *models.Record) error
	GetRecord(ctx context.Context, id string) (*models.Record, error)
	// MarkPublished atomically transitions pending→published. It reports
	// false when the record was not pending, which is how concurrent
	// publishers lose the race without double-dispatching.
	MarkPublished(ctx context.Context, id string, at time.Time) (bool, error)
	MarkDeleted(ctx context.Context, id string, at time.Time) error
	ListPending(ctx context.Context) ([]*models.Record, error)
	ListPendingByAuthor(ctx context.Context, authorID string) ([]*models.Record, error)
	ListPublished(ctx context.Context, filter RecordFilter) ([]*models.Record, error)

	// Session recaps
	InsertSessionRecap(ctx context.Context, recap *models.SessionRecap) error
	SessionRecapOverlaps(ctx context.Context, authorID string, start, end time.Time) (bool, error)
	LatestSessionRecapEnd(ctx context.Context, authorID string) (time.Time, bool, error)
	ListSessionRecaps(ctx context.Context, authorID string, limit int) ([]*models.SessionRecap, error)

	// Day recaps
	GetDayRecap(ctx context.Context, date string) (*models.DayRecap, error)
	InsertDayRecap(ctx context.Context, recap *models.DayRecap) error
	ListDayRecaps(ctx context.Context, limit int) ([]*models.DayRecap, error)

	// Delivery and digest artifacts
	InsertDelivery(ctx context.Context, delivery *models.Delivery) error
	GetDigest(ctx context.Context, date string) (*models.Digest, error)
	InsertDigest(ctx context.Context, digest *models.Digest) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// matchesFilter is shared by both implementations for post-query filtering
// the Memory store does in full and the Mongo store only needs for the
// effective-time window.
func matchesFilter(rec *models.Record, f RecordFilter) bool {
	if f.Kind != "" && rec.Kind != f.Kind {
		return false
	}
	if f.AuthorID != "" && rec.AuthorID != f.AuthorID {
		return false
	}
	if f.Visibility != "" && rec.Visibility != f.Visibility {
		return false
	}
	ts := rec.PublishedTime()
	if !f.Since.IsZero() && ts.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !ts.Before(f.Until) {
		return false
	}
	return true
}
