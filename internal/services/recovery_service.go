package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"nightpress/internal/models"
	"nightpress/internal/store"
)

// RecoveryService makes pending state durable across process restarts. On
// controlled shutdown it serializes every pending record to a single JSON
// file; on startup it restores the queue from that file and deletes it so
// a later crash cannot replay stale state.
type RecoveryService struct {
	path    string
	store   store.Store
	queue   *PendingQueue
	timeout time.Duration
}

// NewRecoveryService creates a recovery service writing to path.
func NewRecoveryService(path string, st store.Store, queue *PendingQueue, timeout time.Duration) *RecoveryService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RecoveryService{
		path:    path,
		store:   st,
		queue:   queue,
		timeout: timeout,
	}
}

// CheckWritable verifies the snapshot location at startup. Failure is a
// warning, not fatal: the process runs in reduced-durability mode where
// pending records are lost on crash.
func (r *RecoveryService) CheckWritable() bool {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("⚠️ [RECOVERY] %s is not writable: %v (pending records will not survive restarts)", dir, err)
		return false
	}
	probe := filepath.Join(dir, ".recovery_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		log.Printf("⚠️ [RECOVERY] %s is not writable: %v (pending records will not survive restarts)", dir, err)
		return false
	}
	os.Remove(probe)
	return true
}

// Save writes the recovery snapshot. It is bounded by the configured
// timeout; on expiry the caller proceeds with shutdown rather than hang.
func (r *RecoveryService) Save(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	snapshot := &models.RecoverySnapshot{SavedAt: time.Now().UTC()}

	for _, entry := range r.queue.Snapshot() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("snapshot aborted: %w", err)
		}
		rec, err := r.store.GetRecord(ctx, entry.ID)
		if err != nil {
			log.Printf("⚠️ [RECOVERY] Skipping pending record %s: %v", entry.ID, err)
			continue
		}
		switch rec.Kind {
		case models.RecordKindConversation:
			snapshot.Conversations = append(snapshot.Conversations, *rec)
		default:
			snapshot.Entries = append(snapshot.Entries, *rec)
		}
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	// Write-then-rename so a crash mid-write never leaves a half-written
	// snapshot at the real path.
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to finalize snapshot: %w", err)
	}

	log.Printf("💾 [RECOVERY] Saved snapshot: %d entries, %d conversations",
		len(snapshot.Entries), len(snapshot.Conversations))
	return nil
}

// Load consumes the recovery snapshot if one exists: restore the queue,
// then delete the file. A missing file is normal (clean prior shutdown or
// nothing pending). A corrupt file is logged and discarded; the engine
// starts with an empty queue rather than refuse to start.
func (r *RecoveryService) Load(ctx context.Context) error {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		log.Printf("⚠️ [RECOVERY] Failed to read snapshot: %v (starting with empty pending queue)", err)
		return nil
	}

	var snapshot models.RecoverySnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		log.Printf("⚠️ [RECOVERY] Snapshot is corrupt: %v (starting with empty pending queue)", err)
		os.Remove(r.path)
		return nil
	}

	restored := 0
	dropped := 0
	records := append(append([]models.Record{}, snapshot.Entries...), snapshot.Conversations...)
	for i := range records {
		rec := &records[i]
		if r.restoreRecord(ctx, rec) {
			restored++
		} else {
			dropped++
		}
	}

	// Consume the snapshot so a crash-without-shutdown cannot replay it.
	if err := os.Remove(r.path); err != nil {
		log.Printf("⚠️ [RECOVERY] Failed to delete consumed snapshot: %v", err)
	}

	log.Printf("♻️ [RECOVERY] Restored %d pending records (%d dropped as already resolved)", restored, dropped)
	return nil
}

// restoreRecord re-queues one snapshotted record. Ids the Store already
// knows as published or deleted are dropped silently; published state is
// monotonic.
func (r *RecoveryService) restoreRecord(ctx context.Context, rec *models.Record) bool {
	existing, err := r.store.GetRecord(ctx, rec.ID)
	if err == nil {
		if existing.Status != models.RecordStatusPending {
			return false
		}
		r.queue.Track(existing)
		return true
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Printf("⚠️ [RECOVERY] Failed to check record %s: %v", rec.ID, err)
		return false
	}

	// Unknown to the store (in-memory backend after a restart): re-insert
	// with its original scheduledPublishAt intact.
	rec.Status = models.RecordStatusPending
	if err := r.store.InsertRecord(ctx, rec); err != nil {
		log.Printf("⚠️ [RECOVERY] Failed to re-insert record %s: %v", rec.ID, err)
		return false
	}
	r.queue.Track(rec)
	return true
}
