package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"nightpress/internal/models"
	"nightpress/internal/store"
)

// DayRecapService summarizes all authors' entries for completed UTC days.
// The check runs at most once per calendar day (gated by a last-checked
// marker) but is invoked opportunistically on publish events and by the
// digest job; extra invocations are idempotent.
type DayRecapService struct {
	store   store.Store
	gen     RecapGenerator
	metrics *Metrics

	mu          sync.Mutex
	lastChecked string // DateLayout of the day the check last ran
}

// NewDayRecapService creates a day clusterer.
func NewDayRecapService(st store.Store, gen RecapGenerator, metrics *Metrics) *DayRecapService {
	return &DayRecapService{
		store:   st,
		gen:     gen,
		metrics: metrics,
	}
}

// HandlePublish is the publish-bus consumer: an opportunistic trigger for
// the once-a-day check.
func (s *DayRecapService) HandlePublish(ctx context.Context, _ *models.Record) error {
	return s.CheckYesterday(ctx)
}

// CheckYesterday generates yesterday's recap if it has not run today.
func (s *DayRecapService) CheckYesterday(ctx context.Context) error {
	now := time.Now().UTC()
	today := now.Format(models.DateLayout)

	s.mu.Lock()
	if s.lastChecked == today {
		s.mu.Unlock()
		return nil
	}
	s.lastChecked = today
	s.mu.Unlock()

	yesterday := now.AddDate(0, 0, -1).Format(models.DateLayout)
	err := s.GenerateFor(ctx, yesterday)
	if err != nil && !errors.Is(err, ErrFutureDate) {
		return err
	}
	return nil
}

// GenerateFor generates the recap for one past UTC date. The current or a
// future day is always rejected; a date already covered is a skip, not a
// duplicate.
func (s *DayRecapService) GenerateFor(ctx context.Context, date string) error {
	day, err := time.ParseInLocation(models.DateLayout, date, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", date, err)
	}
	todayStart := time.Now().UTC().Truncate(24 * time.Hour)
	if !day.Before(todayStart) {
		return ErrFutureDate
	}

	if _, err := s.store.GetDayRecap(ctx, date); err == nil {
		return nil // already covered
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to check day recap: %w", err)
	}

	entries, err := s.store.ListPublished(ctx, store.RecordFilter{
		Kind:  models.RecordKindEntry,
		Since: day,
		Until: day.AddDate(0, 0, 1),
	})
	if err != nil {
		return fmt.Errorf("failed to load day entries: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	summary, err := s.gen.SummarizeDay(ctx, date, entries)
	if err != nil {
		return fmt.Errorf("day recap generation failed: %w", err)
	}

	recap := &models.DayRecap{
		ID:         uuid.New().String(),
		Date:       date,
		EntryCount: len(entries),
		Authors:    distinctAuthors(entries),
		Summary:    summary,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.InsertDayRecap(ctx, recap); err != nil {
		return fmt.Errorf("failed to persist day recap: %w", err)
	}

	if s.metrics != nil {
		s.metrics.DayRecaps.Inc()
	}

	log.Printf("📅 [DAY-RECAP] Recapped %s: %d entries from %d authors", date, recap.EntryCount, len(recap.Authors))
	return nil
}

// List returns persisted day recaps, newest first.
func (s *DayRecapService) List(ctx context.Context, limit int) ([]*models.DayRecap, error) {
	return s.store.ListDayRecaps(ctx, limit)
}

func distinctAuthors(entries []*models.Record) []string {
	seen := make(map[string]struct{}, len(entries))
	var out []string
	for _, entry := range entries {
		if _, ok := seen[entry.AuthorID]; ok {
			continue
		}
		seen[entry.AuthorID] = struct{}{}
		out = append(out, entry.AuthorID)
	}
	sort.Strings(out)
	return out
}
