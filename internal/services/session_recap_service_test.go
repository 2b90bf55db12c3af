package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"nightpress/internal/models"
	"nightpress/internal/store"
)

func insertPublishedEntry(t *testing.T, st *store.Memory, authorID string, ts time.Time, reflection bool) *models.Record {
	t.Helper()

	rec := &models.Record{
		ID:                 uuid.New().String(),
		Kind:               models.RecordKindEntry,
		AuthorID:           authorID,
		Body:               "entry at " + ts.Format(time.RFC3339),
		Reflection:         reflection,
		Visibility:         models.VisibilityPublic,
		Status:             models.RecordStatusPublished,
		CreatedAt:          ts.Add(-time.Hour),
		ScheduledPublishAt: ts,
		PublishedAt:        &ts,
	}
	if err := st.InsertRecord(context.Background(), rec); err != nil {
		t.Fatalf("InsertRecord failed: %v", err)
	}
	return rec
}

func setupSessionClusterer(t *testing.T) (*SessionRecapService, *store.Memory) {
	t.Helper()

	st := store.NewMemory()
	svc := NewSessionRecapService(st, NewExtractiveGenerator(), 30*time.Minute, nil)
	return svc, st
}

func TestSessionBoundaryProducesOneRecap(t *testing.T) {
	svc, st := setupSessionClusterer(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-48 * time.Hour)

	// Entries at t=0, t=10m, then a 40m gap, then t=50m and t=55m.
	e0 := insertPublishedEntry(t, st, "alice", base, false)
	e10 := insertPublishedEntry(t, st, "alice", base.Add(10*time.Minute), false)
	e50 := insertPublishedEntry(t, st, "alice", base.Add(50*time.Minute), false)
	e55 := insertPublishedEntry(t, st, "alice", base.Add(55*time.Minute), false)

	for _, rec := range []*models.Record{e0, e10, e50, e55} {
		if err := svc.HandlePublish(ctx, rec); err != nil {
			t.Fatalf("HandlePublish(%s) failed: %v", rec.ID, err)
		}
	}

	recaps, err := svc.List(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(recaps) != 1 {
		t.Fatalf("Expected exactly 1 session recap, got %d", len(recaps))
	}

	recap := recaps[0]
	if !recap.StartTime.Equal(base) || !recap.EndTime.Equal(base.Add(10*time.Minute)) {
		t.Errorf("Expected range [t0, t0+10m], got [%v, %v]", recap.StartTime, recap.EndTime)
	}
	if len(recap.SourceIDs) != 2 {
		t.Errorf("Expected 2 source entries, got %d", len(recap.SourceIDs))
	}
	if recap.Summary == "" {
		t.Error("Recap has no summary")
	}
}

func TestFirstEntryAfterColdStartNeverClosesSession(t *testing.T) {
	svc, st := setupSessionClusterer(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-48 * time.Hour)

	// History exists in the store, but this clusterer has never observed
	// the author: the first publish it sees must not trigger anything.
	insertPublishedEntry(t, st, "bob", base, false)
	insertPublishedEntry(t, st, "bob", base.Add(5*time.Minute), false)
	late := insertPublishedEntry(t, st, "bob", base.Add(3*time.Hour), false)

	if err := svc.HandlePublish(ctx, late); err != nil {
		t.Fatalf("HandlePublish failed: %v", err)
	}

	recaps, _ := svc.List(ctx, "bob", 0)
	if len(recaps) != 0 {
		t.Errorf("Cold-start publish produced %d recaps", len(recaps))
	}
}

func TestIsolatedEntryProducesNoRecap(t *testing.T) {
	svc, st := setupSessionClusterer(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-48 * time.Hour)

	e0 := insertPublishedEntry(t, st, "carol", base, false)
	e40 := insertPublishedEntry(t, st, "carol", base.Add(40*time.Minute), false)

	if err := svc.HandlePublish(ctx, e0); err != nil {
		t.Fatalf("HandlePublish failed: %v", err)
	}
	if err := svc.HandlePublish(ctx, e40); err != nil {
		t.Fatalf("HandlePublish failed: %v", err)
	}

	recaps, _ := svc.List(ctx, "carol", 0)
	if len(recaps) != 0 {
		t.Errorf("Single isolated entry produced %d recaps", len(recaps))
	}
}

func TestReflectionsAreExcludedFromClustering(t *testing.T) {
	svc, st := setupSessionClusterer(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-48 * time.Hour)

	e0 := insertPublishedEntry(t, st, "dan", base, false)
	essay := insertPublishedEntry(t, st, "dan", base.Add(10*time.Minute), true)
	e50 := insertPublishedEntry(t, st, "dan", base.Add(50*time.Minute), false)

	for _, rec := range []*models.Record{e0, essay, e50} {
		if err := svc.HandlePublish(ctx, rec); err != nil {
			t.Fatalf("HandlePublish failed: %v", err)
		}
	}

	// The candidate session is [e0] after excluding the essay: one entry,
	// no recap.
	recaps, _ := svc.List(ctx, "dan", 0)
	if len(recaps) != 0 {
		t.Errorf("Reflection leaked into clustering: %d recaps", len(recaps))
	}
}

func TestOverlappingRangeIsSkipped(t *testing.T) {
	svc, st := setupSessionClusterer(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-48 * time.Hour)

	insertPublishedEntry(t, st, "erin", base, false)
	insertPublishedEntry(t, st, "erin", base.Add(10*time.Minute), false)

	if err := svc.closeSession(ctx, "erin", base.Add(10*time.Minute)); err != nil {
		t.Fatalf("closeSession failed: %v", err)
	}
	if err := svc.closeSession(ctx, "erin", base.Add(10*time.Minute)); err != nil {
		t.Fatalf("Second closeSession failed: %v", err)
	}

	recaps, _ := svc.List(ctx, "erin", 0)
	if len(recaps) != 1 {
		t.Errorf("Expected 1 recap after duplicate close, got %d", len(recaps))
	}
}

func TestConversationsDoNotCluster(t *testing.T) {
	svc, st := setupSessionClusterer(t)
	ctx := context.Background()
	ts := time.Now().UTC().Add(-48 * time.Hour)

	conv := &models.Record{
		ID:          uuid.New().String(),
		Kind:        models.RecordKindConversation,
		AuthorID:    "frank",
		Status:      models.RecordStatusPublished,
		PublishedAt: &ts,
	}
	if err := st.InsertRecord(ctx, conv); err != nil {
		t.Fatalf("InsertRecord failed: %v", err)
	}

	if err := svc.HandlePublish(ctx, conv); err != nil {
		t.Fatalf("HandlePublish failed: %v", err)
	}
	if _, seen := svc.cursors.Get("frank"); seen {
		t.Error("Conversation publish moved the session cursor")
	}
}
