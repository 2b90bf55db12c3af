package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"nightpress/internal/models"
)

// Memory is the in-memory Store. It keeps every document in maps behind a
// single RWMutex, which is plenty for the single-process deployment it
// serves. Durability across restarts comes from the recovery snapshot, not
// from this store.
type Memory struct {
	mu            sync.RWMutex
	records       map[string]*models.Record
	sessionRecaps map[string]*models.SessionRecap
	dayRecaps     map[string]*models.DayRecap // keyed by date
	deliveries    map[string]*models.Delivery
	digests       map[string]*models.Digest // keyed by date
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records:       make(map[string]*models.Record),
		sessionRecaps: make(map[string]*models.SessionRecap),
		dayRecaps:     make(map[string]*models.DayRecap),
		deliveries:    make(map[string]*models.Delivery),
		digests:       make(map[string]*models.Digest),
	}
}

func (m *Memory) InsertRecord(_ context.Context, rec *models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *rec
	m.records[rec.ID] = &clone
	return nil
}

func (m *Memory) GetRecord(_ context.Context, id string) (*models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *Memory) MarkPublished(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return false, ErrNotFound
	}
	if rec.Status != models.RecordStatusPending {
		return false, nil
	}
	rec.Status = models.RecordStatusPublished
	rec.PublishedAt = &at
	return true, nil
}

func (m *Memory) MarkDeleted(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Status = models.RecordStatusDeleted
	rec.DeletedAt = &at
	return nil
}

func (m *Memory) ListPending(_ context.Context) ([]*models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Record
	for _, rec := range m.records {
		if rec.Status == models.RecordStatusPending {
			clone := *rec
			out = append(out, &clone)
		}
	}
	sortByScheduled(out)
	return out, nil
}

func (m *Memory) ListPendingByAuthor(_ context.Context, authorID string) ([]*models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Record
	for _, rec := range m.records {
		if rec.Status == models.RecordStatusPending && rec.AuthorID == authorID {
			clone := *rec
			out = append(out, &clone)
		}
	}
	sortByScheduled(out)
	return out, nil
}

func (m *Memory) ListPublished(_ context.Context, filter RecordFilter) ([]*models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Record
	for _, rec := range m.records {
		if rec.Status != models.RecordStatusPublished {
			continue
		}
		if !matchesFilter(rec, filter) {
			continue
		}
		clone := *rec
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PublishedTime().Before(out[j].PublishedTime())
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *Memory) InsertSessionRecap(_ context.Context, recap *models.SessionRecap) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *recap
	m.sessionRecaps[recap.ID] = &clone
	return nil
}

func (m *Memory) SessionRecapOverlaps(_ context.Context, authorID string, start, end time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, recap := range m.sessionRecaps {
		if recap.AuthorID != authorID {
			continue
		}
		// Ranges are inclusive on both ends.
		if !recap.StartTime.After(end) && !recap.EndTime.Before(start) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) LatestSessionRecapEnd(_ context.Context, authorID string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest time.Time
	found := false
	for _, recap := range m.sessionRecaps {
		if recap.AuthorID != authorID {
			continue
		}
		if !found || recap.EndTime.After(latest) {
			latest = recap.EndTime
			found = true
		}
	}
	return latest, found, nil
}

func (m *Memory) ListSessionRecaps(_ context.Context, authorID string, limit int) ([]*models.SessionRecap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.SessionRecap
	for _, recap := range m.sessionRecaps {
		if authorID != "" && recap.AuthorID != authorID {
			continue
		}
		clone := *recap
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EndTime.After(out[j].EndTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) GetDayRecap(_ context.Context, date string) (*models.DayRecap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recap, ok := m.dayRecaps[date]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *recap
	return &clone, nil
}

func (m *Memory) InsertDayRecap(_ context.Context, recap *models.DayRecap) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *recap
	m.dayRecaps[recap.Date] = &clone
	return nil
}

func (m *Memory) ListDayRecaps(_ context.Context, limit int) ([]*models.DayRecap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.DayRecap
	for _, recap := range m.dayRecaps {
		clone := *recap
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date > out[j].Date
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) InsertDelivery(_ context.Context, delivery *models.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *delivery
	m.deliveries[delivery.ID] = &clone
	return nil
}

func (m *Memory) GetDigest(_ context.Context, date string) (*models.Digest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	digest, ok := m.digests[date]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *digest
	return &clone, nil
}

func (m *Memory) InsertDigest(_ context.Context, digest *models.Digest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *digest
	m.digests[digest.Date] = &clone
	return nil
}

func (m *Memory) Ping(_ context.Context) error { return nil }

func (m *Memory) Close(_ context.Context) error { return nil }

func sortByScheduled(recs []*models.Record) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].ScheduledPublishAt.Before(recs[j].ScheduledPublishAt)
	})
}
