package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"

	"nightpress/internal/models"
	"nightpress/internal/store"
)

// cursorTTL bounds how long a per-author last-entry timestamp is kept. An
// author silent for this long would close any session by gap anyway.
const cursorTTL = 72 * time.Hour

// SessionRecapService clusters one author's published entries into
// sessions separated by inactivity gaps and hands each closed session to
// the recap generator.
//
// The per-author cursor is a best-effort accelerator, not durable state:
// after a restart, the first published entry never closes a session, and
// the range is conservatively re-derived from published history when a
// boundary is seen.
type SessionRecapService struct {
	store   store.Store
	gen     RecapGenerator
	gap     time.Duration
	metrics *Metrics

	// authorID → time.Time of that author's last published entry
	cursors *cache.Cache
}

// NewSessionRecapService creates a session clusterer with the given
// inactivity gap threshold.
func NewSessionRecapService(st store.Store, gen RecapGenerator, gap time.Duration, metrics *Metrics) *SessionRecapService {
	if gap <= 0 {
		gap = 30 * time.Minute
	}
	return &SessionRecapService{
		store:   st,
		gen:     gen,
		gap:     gap,
		metrics: metrics,
		cursors: cache.New(cursorTTL, cursorTTL),
	}
}

// HandlePublish is the publish-bus consumer. Conversations and reflection
// essays never participate in session clustering.
func (s *SessionRecapService) HandlePublish(ctx context.Context, rec *models.Record) error {
	if rec.Kind != models.RecordKindEntry || rec.Reflection {
		return nil
	}

	ts := rec.PublishedTime()

	lastRaw, seen := s.cursors.Get(rec.AuthorID)
	s.cursors.Set(rec.AuthorID, ts, cache.DefaultExpiration)
	if !seen {
		// Cold start for this author: nothing to measure a gap against.
		return nil
	}

	last := lastRaw.(time.Time)
	if ts.Sub(last) <= s.gap {
		// Still mid-session.
		return nil
	}

	// A boundary occurred in the author's history: the session ends at the
	// entry immediately before the gap.
	return s.closeSession(ctx, rec.AuthorID, last)
}

// closeSession summarizes the author's entries between the end of their
// last recap (or the beginning of time) and sessionEnd, inclusive.
func (s *SessionRecapService) closeSession(ctx context.Context, authorID string, sessionEnd time.Time) error {
	var since time.Time
	if end, ok, err := s.store.LatestSessionRecapEnd(ctx, authorID); err != nil {
		return fmt.Errorf("failed to find last recap: %w", err)
	} else if ok {
		// Strictly after the previous recap's range.
		since = end.Add(time.Nanosecond)
	}

	entries, err := s.store.ListPublished(ctx, store.RecordFilter{
		Kind:     models.RecordKindEntry,
		AuthorID: authorID,
		Since:    since,
		Until:    sessionEnd.Add(time.Nanosecond), // inclusive end
	})
	if err != nil {
		return fmt.Errorf("failed to load session entries: %w", err)
	}

	qualifying := entries[:0]
	for _, entry := range entries {
		if !entry.Reflection {
			qualifying = append(qualifying, entry)
		}
	}
	if len(qualifying) < 2 {
		// A single isolated entry is not a session.
		return nil
	}

	start := qualifying[0].PublishedTime()
	end := qualifying[len(qualifying)-1].PublishedTime()

	if overlaps, err := s.store.SessionRecapOverlaps(ctx, authorID, start, end); err != nil {
		return fmt.Errorf("failed to check recap coverage: %w", err)
	} else if overlaps {
		log.Printf("⏭️ [SESSION-RECAP] Range [%s, %s] for author %s already covered, skipping",
			start.Format(time.RFC3339), end.Format(time.RFC3339), authorID)
		return nil
	}

	summary, err := s.gen.SummarizeSession(ctx, authorID, qualifying)
	if err != nil {
		return fmt.Errorf("recap generation failed: %w", err)
	}

	sourceIDs := make([]string, 0, len(qualifying))
	for _, entry := range qualifying {
		sourceIDs = append(sourceIDs, entry.ID)
	}

	recap := &models.SessionRecap{
		ID:        uuid.New().String(),
		AuthorID:  authorID,
		StartTime: start,
		EndTime:   end,
		SourceIDs: sourceIDs,
		Summary:   summary,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertSessionRecap(ctx, recap); err != nil {
		return fmt.Errorf("failed to persist session recap: %w", err)
	}

	if s.metrics != nil {
		s.metrics.SessionRecaps.Inc()
	}

	log.Printf("🧵 [SESSION-RECAP] Recapped %d entries for author %s [%s → %s]",
		len(qualifying), authorID, start.Format(time.RFC3339), end.Format(time.RFC3339))
	return nil
}

// List returns persisted session recaps, newest first.
func (s *SessionRecapService) List(ctx context.Context, authorID string, limit int) ([]*models.SessionRecap, error) {
	return s.store.ListSessionRecaps(ctx, authorID, limit)
}
