package models

import "time"

// DateLayout is the UTC calendar-day key used by day recaps and digests.
const DateLayout = "2006-01-02"

// SessionRecap summarizes one author's contiguous run of published entries.
// Ranges for the same author never overlap; the clusterer checks existing
// coverage before generating a new one.
type SessionRecap struct {
	ID        string    `bson:"_id" json:"id"`
	AuthorID  string    `bson:"authorId" json:"author_id"`
	StartTime time.Time `bson:"startTime" json:"start_time"`
	EndTime   time.Time `bson:"endTime" json:"end_time"`
	SourceIDs []string  `bson:"sourceIds" json:"source_ids"`
	Summary   string    `bson:"summary" json:"summary"`
	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
}

// DayRecap summarizes all authors' entries for one past UTC date.
type DayRecap struct {
	ID         string    `bson:"_id" json:"id"`
	Date       string    `bson:"date" json:"date"` // DateLayout
	EntryCount int       `bson:"entryCount" json:"entry_count"`
	Authors    []string  `bson:"authors" json:"authors"`
	Summary    string    `bson:"summary" json:"summary"`
	CreatedAt  time.Time `bson:"createdAt" json:"created_at"`
}
