package models

import "time"

// RecoverySnapshot is the point-in-time serialization of every pending
// record, written once at controlled shutdown and consumed once at startup.
// Records are carried whole so a restart can reconstruct them without
// re-deriving scheduledPublishAt.
type RecoverySnapshot struct {
	SavedAt       time.Time `json:"saved_at"`
	Entries       []Record  `json:"entries"`
	Conversations []Record  `json:"conversations"`
}

// Count returns the total number of pending records in the snapshot.
func (s *RecoverySnapshot) Count() int {
	return len(s.Entries) + len(s.Conversations)
}
