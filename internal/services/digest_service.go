package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"nightpress/internal/models"
	"nightpress/internal/store"
)

// DigestService prepares the once-a-day digest artifact covering the
// previous UTC day's published entries. Rendering and mailing the digest
// belongs to an external collaborator; this records what a digest for the
// day covers and guarantees it is prepared at most once.
type DigestService struct {
	store store.Store
}

// NewDigestService creates a digest service.
func NewDigestService(st store.Store) *DigestService {
	return &DigestService{store: st}
}

// RunDaily prepares yesterday's digest if it does not exist yet.
func (s *DigestService) RunDaily(ctx context.Context) error {
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format(models.DateLayout)
	return s.PrepareFor(ctx, yesterday)
}

// PrepareFor builds the digest document for one past date. Idempotent: a
// covered date is a skip.
func (s *DigestService) PrepareFor(ctx context.Context, date string) error {
	day, err := time.ParseInLocation(models.DateLayout, date, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", date, err)
	}

	if _, err := s.store.GetDigest(ctx, date); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to check digest: %w", err)
	}

	entries, err := s.store.ListPublished(ctx, store.RecordFilter{
		Kind:  models.RecordKindEntry,
		Since: day,
		Until: day.AddDate(0, 0, 1),
	})
	if err != nil {
		return fmt.Errorf("failed to load digest entries: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	digest := &models.Digest{
		ID:          uuid.New().String(),
		Date:        date,
		EntryCount:  len(entries),
		Authors:     distinctAuthors(entries),
		GeneratedAt: time.Now().UTC(),
	}
	if err := s.store.InsertDigest(ctx, digest); err != nil {
		return fmt.Errorf("failed to persist digest: %w", err)
	}

	log.Printf("📨 [DIGEST] Prepared digest for %s: %d entries from %d authors", date, digest.EntryCount, len(digest.Authors))
	return nil
}
