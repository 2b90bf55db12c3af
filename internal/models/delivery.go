package models

import "time"

// DeliveryStatus is the outbound delivery lifecycle. The engine only
// enqueues; the transport that drains the queue is external.
type DeliveryStatus string

const (
	DeliveryStatusQueued DeliveryStatus = "queued"
	DeliveryStatusSent   DeliveryStatus = "sent"
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// Delivery is one recipient's copy of a just-published conversation.
type Delivery struct {
	ID          string         `bson:"_id" json:"id"`
	RecordID    string         `bson:"recordId" json:"record_id"`
	AuthorID    string         `bson:"authorId" json:"author_id"`
	RecipientID string         `bson:"recipientId" json:"recipient_id"`
	Status      DeliveryStatus `bson:"status" json:"status"`
	QueuedAt    time.Time      `bson:"queuedAt" json:"queued_at"`
}

// Digest records the day-digest check for one past UTC date. Rendering and
// mailing are external collaborators; this is the engine-side artifact.
type Digest struct {
	ID          string    `bson:"_id" json:"id"`
	Date        string    `bson:"date" json:"date"` // DateLayout
	EntryCount  int       `bson:"entryCount" json:"entry_count"`
	Authors     []string  `bson:"authors" json:"authors"`
	GeneratedAt time.Time `bson:"generatedAt" json:"generated_at"`
}
