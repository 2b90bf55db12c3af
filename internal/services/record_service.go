package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"nightpress/internal/config"
	"nightpress/internal/models"
	"nightpress/internal/store"
)

// CreateRecordInput is the caller-supplied part of a new staged record.
type CreateRecordInput struct {
	AuthorID     string
	AuthorHandle string
	Body         string
	Recipients   []string
	Reflection   bool
	Visibility   models.Visibility
	StageDelayMs int64 // 0 → configured default; otherwise clamped
}

// RecordService is the staged publication engine. It owns the pending
// queue, evaluates readiness lazily on reads plus the periodic sweep, and
// guarantees each record transitions to published exactly once.
type RecordService struct {
	store   store.Store
	queue   *PendingQueue
	bus     *PublishBus
	cfg     *config.Config
	metrics *Metrics

	// locks serializes transitions per record id. Two callers observing
	// the same record as due perform one dispatch, and no published
	// listing includes a record whose own dispatch is mid-run. Records
	// are independent of each other, so transitions on distinct ids
	// proceed concurrently.
	locks *recordLocks
}

// NewRecordService creates the publication engine.
func NewRecordService(st store.Store, queue *PendingQueue, bus *PublishBus, cfg *config.Config, metrics *Metrics) *RecordService {
	return &RecordService{
		store:   st,
		queue:   queue,
		bus:     bus,
		cfg:     cfg,
		metrics: metrics,
		locks:   newRecordLocks(),
	}
}

// CreateEntry stages a new entry for delayed publication.
func (s *RecordService) CreateEntry(ctx context.Context, input CreateRecordInput) (*models.Record, error) {
	return s.create(ctx, models.RecordKindEntry, input)
}

// CreateConversation stages a new conversation for delayed publication.
func (s *RecordService) CreateConversation(ctx context.Context, input CreateRecordInput) (*models.Record, error) {
	return s.create(ctx, models.RecordKindConversation, input)
}

func (s *RecordService) create(ctx context.Context, kind models.RecordKind, input CreateRecordInput) (*models.Record, error) {
	if input.AuthorID == "" {
		return nil, fmt.Errorf("author id is required")
	}

	delay := s.cfg.ClampStageDelay(time.Duration(input.StageDelayMs) * time.Millisecond)
	now := time.Now().UTC()

	visibility := input.Visibility
	if visibility == "" {
		visibility = models.VisibilityPublic
	}

	rec := &models.Record{
		ID:                 uuid.New().String(),
		Kind:               kind,
		AuthorID:           input.AuthorID,
		AuthorHandle:       input.AuthorHandle,
		Body:               input.Body,
		Recipients:         input.Recipients,
		Reflection:         input.Reflection,
		Visibility:         visibility,
		Status:             models.RecordStatusPending,
		CreatedAt:          now,
		ScheduledPublishAt: now.Add(delay),
	}

	if err := s.store.InsertRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store record: %w", err)
	}

	// The queue is rebuilt from the store on startup, so track-after-insert
	// keeps the two consistent.
	s.queue.Track(rec)

	log.Printf("📝 [RECORDS] Staged %s %s for author %s (publishes %s)",
		kind, rec.ID, rec.AuthorID, rec.ScheduledPublishAt.Format(time.RFC3339))

	return rec, nil
}

// Get returns a record by id. Tombstoned records are not retrievable.
func (s *RecordService) Get(ctx context.Context, id string) (*models.Record, error) {
	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status == models.RecordStatusDeleted {
		return nil, ErrNotFound
	}
	return rec, nil
}

// ListPendingForAuthor returns the author's not-yet-published records.
func (s *RecordService) ListPendingForAuthor(ctx context.Context, authorID string) ([]*models.Record, error) {
	return s.store.ListPendingByAuthor(ctx, authorID)
}

// ListPublished returns published records matching the filter. Readiness
// is evaluated first, so a record whose time has come is transitioned and
// its bus dispatch completed before it can appear in the listing.
func (s *RecordService) ListPublished(ctx context.Context, filter store.RecordFilter) ([]*models.Record, error) {
	if err := s.PromoteDue(ctx); err != nil {
		log.Printf("⚠️ [RECORDS] Readiness sweep failed: %v", err)
	}

	recs, err := s.store.ListPublished(ctx, filter)
	if err != nil {
		return nil, err
	}

	// A record another caller is still dispatching is withheld until its
	// transition completes.
	out := recs[:0]
	for _, rec := range recs {
		if !s.locks.inFlight(rec.ID) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// PromoteDue publishes every pending record whose scheduled time has
// elapsed. It is called on read paths and by the minute sweep job, and is
// safe to call concurrently: transitions are serialized per record id and
// idempotent.
func (s *RecordService) PromoteDue(ctx context.Context) error {
	due := s.queue.Due(time.Now().UTC())
	for _, entry := range due {
		// An id another caller is already transitioning is skipped; that
		// caller finishes it.
		if !s.locks.tryLock(entry.ID) {
			continue
		}
		// Scheduled publishes carry the scheduled time, not the sweep time.
		s.publishLocked(ctx, entry.ID, entry.ScheduledPublishAt, models.TriggerScheduled)
		s.locks.unlock(entry.ID)
	}
	return nil
}

// publishLocked performs one pending→published transition. Caller holds
// the record's transition lock. The store-level compare-and-swap is the
// exactly-once guard; losing it just untracks the stale index entry.
func (s *RecordService) publishLocked(ctx context.Context, id string, at time.Time, trigger models.PublishTrigger) *models.Record {
	ok, err := s.store.MarkPublished(ctx, id, at)
	if err != nil {
		// An id the store no longer knows will never publish; drop it from
		// the index so the sweep converges.
		if errors.Is(err, store.ErrNotFound) {
			s.queue.Untrack(id)
		}
		log.Printf("❌ [RECORDS] Failed to publish record %s: %v", id, err)
		return nil
	}
	s.queue.Untrack(id)
	if !ok {
		return nil
	}

	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		log.Printf("❌ [RECORDS] Published record %s vanished before dispatch: %v", id, err)
		return nil
	}

	log.Printf("📣 [RECORDS] Published %s %s (author %s, trigger %s)", rec.Kind, rec.ID, rec.AuthorID, trigger)

	if s.metrics != nil {
		s.metrics.Publishes.WithLabelValues(string(rec.Kind), string(trigger)).Inc()
		s.metrics.PublishLatency.Observe(time.Since(rec.ScheduledPublishAt).Seconds())
	}

	s.bus.Dispatch(ctx, rec)
	return rec
}

// ForcePublish transitions a pending record to published immediately,
// bypassing the time check. Only the record's author may force it.
func (s *RecordService) ForcePublish(ctx context.Context, id, requesterID string) (*models.Record, error) {
	s.locks.lock(id)
	defer s.locks.unlock(id)

	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.AuthorID != requesterID {
		return nil, ErrForbidden
	}
	if rec.Status != models.RecordStatusPending {
		return nil, ErrNotPending
	}

	published := s.publishLocked(ctx, id, time.Now().UTC(), models.TriggerForced)
	if published == nil {
		return nil, ErrNotPending
	}
	return published, nil
}

// Delete tombstones a record. While pending this cancels publication; a
// post-publish delete is permitted but no longer prevents it.
func (s *RecordService) Delete(ctx context.Context, id, requesterID string) error {
	s.locks.lock(id)
	defer s.locks.unlock(id)

	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status == models.RecordStatusDeleted {
		return ErrNotFound
	}
	if rec.AuthorID != requesterID {
		return ErrForbidden
	}

	if rec.Status == models.RecordStatusPending {
		s.queue.Untrack(id)
	}
	if err := s.store.MarkDeleted(ctx, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	log.Printf("🗑️ [RECORDS] Deleted %s %s (author %s, was %s)", rec.Kind, rec.ID, rec.AuthorID, rec.Status)
	return nil
}

// RebuildPendingIndex re-scans the Store for pending records and tracks
// them, making the queue consistent after a restart before any snapshot
// restore runs.
func (s *RecordService) RebuildPendingIndex(ctx context.Context) error {
	recs, err := s.store.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan pending records: %w", err)
	}
	for _, rec := range recs {
		s.queue.Track(rec)
	}
	if len(recs) > 0 {
		log.Printf("🔁 [RECORDS] Rebuilt pending index with %d records", len(recs))
	}
	return nil
}
