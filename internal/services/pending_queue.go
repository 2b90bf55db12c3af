package services

import (
	"sync"
	"time"

	"nightpress/internal/models"
)

// PendingEntry is the lightweight index entry for one not-yet-published
// record. The full record lives in the Store; this carries just enough to
// decide "has its time come" and "who owns it".
type PendingEntry struct {
	ID                 string            `json:"id"`
	AuthorID           string            `json:"author_id"`
	Kind               models.RecordKind `json:"kind"`
	ScheduledPublishAt time.Time         `json:"scheduled_publish_at"`
}

// PendingQueue is the in-memory index of pending records, grouped by
// author. It is the one shared mutable structure touched by every caller,
// so all access goes through its RWMutex. The queue is reconstructable by
// re-scanning the Store; it exists to avoid a full scan per sweep tick.
type PendingQueue struct {
	mu       sync.RWMutex
	byID     map[string]PendingEntry
	byAuthor map[string]map[string]struct{} // authorID → set of record ids
}

// NewPendingQueue creates an empty pending queue.
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{
		byID:     make(map[string]PendingEntry),
		byAuthor: make(map[string]map[string]struct{}),
	}
}

// Track indexes a pending record. Tracking an already-tracked id is a
// no-op overwrite, which makes restore idempotent.
func (q *PendingQueue) Track(rec *models.Record) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.byID[rec.ID] = PendingEntry{
		ID:                 rec.ID,
		AuthorID:           rec.AuthorID,
		Kind:               rec.Kind,
		ScheduledPublishAt: rec.ScheduledPublishAt,
	}
	if _, ok := q.byAuthor[rec.AuthorID]; !ok {
		q.byAuthor[rec.AuthorID] = make(map[string]struct{})
	}
	q.byAuthor[rec.AuthorID][rec.ID] = struct{}{}
}

// Untrack removes a record from the index, on publish or on delete.
func (q *PendingQueue) Untrack(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.byID[id]
	if !ok {
		return
	}
	delete(q.byID, id)
	if ids, ok := q.byAuthor[entry.AuthorID]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(q.byAuthor, entry.AuthorID)
		}
	}
}

// Has reports whether the id is currently tracked.
func (q *PendingQueue) Has(id string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	_, ok := q.byID[id]
	return ok
}

// ListByAuthor returns the author's pending entries, unordered.
func (q *PendingQueue) ListByAuthor(authorID string) []PendingEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ids, ok := q.byAuthor[authorID]
	if !ok {
		return nil
	}
	out := make([]PendingEntry, 0, len(ids))
	for id := range ids {
		out = append(out, q.byID[id])
	}
	return out
}

// Due returns every entry whose scheduled time has elapsed.
func (q *PendingQueue) Due(now time.Time) []PendingEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var out []PendingEntry
	for _, entry := range q.byID {
		if !now.Before(entry.ScheduledPublishAt) {
			out = append(out, entry)
		}
	}
	return out
}

// Len returns the number of tracked records.
func (q *PendingQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return len(q.byID)
}

// Snapshot returns the full serializable queue state.
func (q *PendingQueue) Snapshot() []PendingEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]PendingEntry, 0, len(q.byID))
	for _, entry := range q.byID {
		out = append(out, entry)
	}
	return out
}
