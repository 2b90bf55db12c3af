package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"nightpress/internal/config"
	"nightpress/internal/models"
	"nightpress/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		DefaultStageDelay: time.Hour,
		SessionGap:        30 * time.Minute,
		SnapshotTimeout:   5 * time.Second,
	}
}

func setupEngine(t *testing.T) (*RecordService, *PendingQueue, *PublishBus, *store.Memory) {
	t.Helper()

	st := store.NewMemory()
	queue := NewPendingQueue()
	bus := NewPublishBus(nil)
	svc := NewRecordService(st, queue, bus, testConfig(), nil)
	return svc, queue, bus, st
}

// insertPending puts a record straight into store and queue with an
// arbitrary scheduled time, bypassing create's clamping.
func insertPending(t *testing.T, st *store.Memory, queue *PendingQueue, authorID string, scheduledAt time.Time) *models.Record {
	t.Helper()

	rec := &models.Record{
		ID:                 uuid.New().String(),
		Kind:               models.RecordKindEntry,
		AuthorID:           authorID,
		Body:               "test body",
		Visibility:         models.VisibilityPublic,
		Status:             models.RecordStatusPending,
		CreatedAt:          scheduledAt.Add(-time.Hour),
		ScheduledPublishAt: scheduledAt,
	}
	if err := st.InsertRecord(context.Background(), rec); err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}
	queue.Track(rec)
	return rec
}

func TestCreateClampsStagingDelay(t *testing.T) {
	svc, _, _, _ := setupEngine(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		delayMs int64
		want    time.Duration
	}{
		{"default when unspecified", 0, time.Hour},
		{"below minimum clamps to 1h", 1000, time.Hour},
		{"within range kept", int64(2 * time.Hour / time.Millisecond), 2 * time.Hour},
		{"above maximum clamps to 30d", int64(90 * 24 * time.Hour / time.Millisecond), 30 * 24 * time.Hour},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := time.Now().UTC()
			rec, err := svc.CreateEntry(ctx, CreateRecordInput{
				AuthorID:     "author-1",
				Body:         "hello",
				StageDelayMs: tc.delayMs,
			})
			if err != nil {
				t.Fatalf("CreateEntry failed: %v", err)
			}

			got := rec.ScheduledPublishAt.Sub(rec.CreatedAt)
			if got != tc.want {
				t.Errorf("Expected delay %v, got %v", tc.want, got)
			}
			if rec.CreatedAt.Before(before.Add(-time.Second)) {
				t.Errorf("CreatedAt %v unexpectedly in the past", rec.CreatedAt)
			}
			if rec.Status != models.RecordStatusPending {
				t.Errorf("Expected pending status, got %s", rec.Status)
			}
		})
	}
}

func TestCreateRegistersPendingQueue(t *testing.T) {
	svc, queue, _, _ := setupEngine(t)

	rec, err := svc.CreateEntry(context.Background(), CreateRecordInput{
		AuthorID: "author-1",
		Body:     "hello",
	})
	if err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}

	if !queue.Has(rec.ID) {
		t.Error("Created record not tracked in pending queue")
	}

	pending, err := svc.ListPendingForAuthor(context.Background(), "author-1")
	if err != nil {
		t.Fatalf("ListPendingForAuthor failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != rec.ID {
		t.Errorf("Expected pending listing with the created record, got %d records", len(pending))
	}
}

func TestPromoteDuePublishesExactlyOnce(t *testing.T) {
	svc, queue, bus, st := setupEngine(t)
	ctx := context.Background()

	var dispatches int64
	bus.OnPublish("counter", func(_ context.Context, _ *models.Record) error {
		atomic.AddInt64(&dispatches, 1)
		return nil
	})

	rec := insertPending(t, st, queue, "author-1", time.Now().UTC().Add(-time.Minute))

	// Race the sweep against a force publish.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.PromoteDue(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := svc.ForcePublish(ctx, rec.ID, "author-1")
		if err != nil && !errors.Is(err, ErrNotPending) {
			t.Errorf("ForcePublish returned unexpected error: %v", err)
		}
	}()
	wg.Wait()

	if got := atomic.LoadInt64(&dispatches); got != 1 {
		t.Errorf("Expected exactly 1 bus dispatch, got %d", got)
	}

	stored, err := st.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if stored.Status != models.RecordStatusPublished {
		t.Errorf("Expected published status, got %s", stored.Status)
	}
	if queue.Has(rec.ID) {
		t.Error("Published record still tracked in pending queue")
	}
}

func TestListPublishedPromotesDueRecords(t *testing.T) {
	svc, queue, bus, st := setupEngine(t)
	ctx := context.Background()

	dispatched := make(map[string]bool)
	bus.OnPublish("tracker", func(_ context.Context, rec *models.Record) error {
		dispatched[rec.ID] = true
		return nil
	})

	due := insertPending(t, st, queue, "author-1", time.Now().UTC().Add(-time.Minute))
	future := insertPending(t, st, queue, "author-1", time.Now().UTC().Add(time.Hour))

	recs, err := svc.ListPublished(ctx, store.RecordFilter{})
	if err != nil {
		t.Fatalf("ListPublished failed: %v", err)
	}

	if len(recs) != 1 || recs[0].ID != due.ID {
		t.Fatalf("Expected only the due record published, got %d records", len(recs))
	}
	if !dispatched[due.ID] {
		t.Error("Record appeared in listing before its bus dispatch ran")
	}
	if dispatched[future.ID] {
		t.Error("Future record was dispatched")
	}
	if !queue.Has(future.ID) {
		t.Error("Future record fell out of the pending queue")
	}
}

func TestForcePublishErrors(t *testing.T) {
	svc, queue, _, st := setupEngine(t)
	ctx := context.Background()

	rec := insertPending(t, st, queue, "author-1", time.Now().UTC().Add(time.Hour))

	if _, err := svc.ForcePublish(ctx, "no-such-id", "author-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown id, got %v", err)
	}
	if _, err := svc.ForcePublish(ctx, rec.ID, "someone-else"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden for wrong author, got %v", err)
	}

	if _, err := svc.ForcePublish(ctx, rec.ID, "author-1"); err != nil {
		t.Fatalf("ForcePublish failed: %v", err)
	}
	if _, err := svc.ForcePublish(ctx, rec.ID, "author-1"); !errors.Is(err, ErrNotPending) {
		t.Errorf("Expected ErrNotPending for second force, got %v", err)
	}
}

func TestDeletePendingPreventsPublication(t *testing.T) {
	svc, queue, bus, st := setupEngine(t)
	ctx := context.Background()

	var dispatches int64
	bus.OnPublish("counter", func(_ context.Context, _ *models.Record) error {
		atomic.AddInt64(&dispatches, 1)
		return nil
	})

	rec := insertPending(t, st, queue, "author-1", time.Now().UTC().Add(-time.Minute))

	if err := svc.Delete(ctx, rec.ID, "author-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	pending, _ := svc.ListPendingForAuthor(ctx, "author-1")
	if len(pending) != 0 {
		t.Errorf("Deleted record still in pending listing")
	}

	published, err := svc.ListPublished(ctx, store.RecordFilter{})
	if err != nil {
		t.Fatalf("ListPublished failed: %v", err)
	}
	if len(published) != 0 {
		t.Error("Deleted record appeared in published listing")
	}
	if atomic.LoadInt64(&dispatches) != 0 {
		t.Error("Deleted record was dispatched")
	}

	if _, err := svc.Get(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for tombstoned record, got %v", err)
	}
}

func TestDeleteAfterPublishIsPostPublishDelete(t *testing.T) {
	svc, queue, _, st := setupEngine(t)
	ctx := context.Background()

	rec := insertPending(t, st, queue, "author-1", time.Now().UTC().Add(-time.Minute))

	if err := svc.PromoteDue(ctx); err != nil {
		t.Fatalf("PromoteDue failed: %v", err)
	}
	if err := svc.Delete(ctx, rec.ID, "author-1"); err != nil {
		t.Fatalf("Post-publish delete failed: %v", err)
	}

	stored, err := st.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if stored.Status != models.RecordStatusDeleted {
		t.Errorf("Expected deleted status, got %s", stored.Status)
	}
}

func TestDeleteErrors(t *testing.T) {
	svc, queue, _, st := setupEngine(t)
	ctx := context.Background()

	rec := insertPending(t, st, queue, "author-1", time.Now().UTC().Add(time.Hour))

	if err := svc.Delete(ctx, "no-such-id", "author-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, rec.ID, "someone-else"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, rec.ID, "author-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := svc.Delete(ctx, rec.ID, "author-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for double delete, got %v", err)
	}
}

func TestSlowDispatchDoesNotBlockOtherAuthors(t *testing.T) {
	svc, queue, bus, st := setupEngine(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	bus.OnPublish("slow", func(_ context.Context, _ *models.Record) error {
		close(started)
		<-release
		return nil
	})

	insertPending(t, st, queue, "alice", time.Now().UTC().Add(-time.Minute))
	bobRec := insertPending(t, st, queue, "bob", time.Now().UTC().Add(time.Hour))

	promoted := make(chan struct{})
	go func() {
		_ = svc.PromoteDue(ctx)
		close(promoted)
	}()
	<-started

	// Alice's dispatch is mid-run; bob's operations must not wait for it.
	deleted := make(chan error, 1)
	go func() {
		deleted <- svc.Delete(ctx, bobRec.ID, "bob")
	}()
	select {
	case err := <-deleted:
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Unrelated author's Delete blocked behind another record's dispatch")
	}

	close(release)
	<-promoted
}

func TestListPublishedWithholdsMidDispatchRecord(t *testing.T) {
	svc, queue, bus, st := setupEngine(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	bus.OnPublish("slow", func(_ context.Context, _ *models.Record) error {
		close(started)
		<-release
		return nil
	})

	rec := insertPending(t, st, queue, "author-1", time.Now().UTC().Add(-time.Minute))

	promoted := make(chan struct{})
	go func() {
		_ = svc.PromoteDue(ctx)
		close(promoted)
	}()
	<-started

	// The store already holds the record as published, but its dispatch
	// has not completed, so it must not be listed yet.
	recs, err := svc.ListPublished(ctx, store.RecordFilter{})
	if err != nil {
		t.Fatalf("ListPublished failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("Record listed while its dispatch was mid-run")
	}

	close(release)
	<-promoted

	recs, err = svc.ListPublished(ctx, store.RecordFilter{})
	if err != nil {
		t.Fatalf("ListPublished failed: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != rec.ID {
		t.Fatalf("Expected the record after its dispatch completed, got %d records", len(recs))
	}
}

func TestPromoteDueUntracksVanishedRecord(t *testing.T) {
	svc, queue, _, _ := setupEngine(t)
	ctx := context.Background()

	// Index entry with no backing store document.
	ghost := &models.Record{
		ID:                 uuid.New().String(),
		Kind:               models.RecordKindEntry,
		AuthorID:           "author-1",
		Status:             models.RecordStatusPending,
		ScheduledPublishAt: time.Now().UTC().Add(-time.Minute),
	}
	queue.Track(ghost)

	if err := svc.PromoteDue(ctx); err != nil {
		t.Fatalf("PromoteDue failed: %v", err)
	}
	if queue.Has(ghost.ID) {
		t.Error("Vanished record still tracked after sweep")
	}
}

func TestRebuildPendingIndex(t *testing.T) {
	_, queue, _, st := setupEngine(t)
	ctx := context.Background()

	rec := insertPending(t, st, queue, "author-1", time.Now().UTC().Add(time.Hour))

	// Simulate a restart: fresh queue over the same store.
	fresh := NewPendingQueue()
	svc2 := NewRecordService(st, fresh, NewPublishBus(nil), testConfig(), nil)
	if err := svc2.RebuildPendingIndex(ctx); err != nil {
		t.Fatalf("RebuildPendingIndex failed: %v", err)
	}

	if !fresh.Has(rec.ID) {
		t.Error("Rebuilt index is missing the pending record")
	}
}
