package models

import "time"

// RecordKind distinguishes the two payload shapes sharing the staged
// publication lifecycle.
type RecordKind string

const (
	RecordKindEntry        RecordKind = "entry"
	RecordKindConversation RecordKind = "conversation"
)

// RecordStatus is the lifecycle state of a record. Transitions are
// pending→published and pending→deleted (plus post-publish deletes);
// published never reverts to pending.
type RecordStatus string

const (
	RecordStatusPending   RecordStatus = "pending"
	RecordStatusPublished RecordStatus = "published"
	RecordStatusDeleted   RecordStatus = "deleted"
)

// Visibility classifies who may read a record once published. Enforcement
// is the access-control layer's concern; the engine only stores the flag.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
)

// PublishTrigger records how a record transitioned to published.
type PublishTrigger string

const (
	TriggerScheduled PublishTrigger = "scheduled"
	TriggerForced    PublishTrigger = "forced"
)

// Record is a single staged text record (entry or conversation).
type Record struct {
	ID           string     `bson:"_id" json:"id"`
	Kind         RecordKind `bson:"kind" json:"kind"`
	AuthorID     string     `bson:"authorId" json:"author_id"`
	AuthorHandle string     `bson:"authorHandle,omitempty" json:"author_handle,omitempty"`

	Body       string   `bson:"body" json:"body"`
	Recipients []string `bson:"recipients,omitempty" json:"recipients,omitempty"` // conversations only

	// Reflection marks a long-form standalone essay. Reflections publish
	// normally but never merge into session recaps.
	Reflection bool       `bson:"reflection" json:"reflection"`
	Visibility Visibility `bson:"visibility" json:"visibility"`

	Status             RecordStatus `bson:"status" json:"status"`
	CreatedAt          time.Time    `bson:"createdAt" json:"created_at"`
	ScheduledPublishAt time.Time    `bson:"scheduledPublishAt" json:"scheduled_publish_at"`
	PublishedAt        *time.Time   `bson:"publishedAt,omitempty" json:"published_at,omitempty"`
	DeletedAt          *time.Time   `bson:"deletedAt,omitempty" json:"-"`
}

// Due reports whether a pending record's staging delay has elapsed.
func (r *Record) Due(now time.Time) bool {
	return r.Status == RecordStatusPending && !now.Before(r.ScheduledPublishAt)
}

// PublishedTime returns the effective publication timestamp. Records
// published by the sweep carry their scheduled time; forced records carry
// the moment of the force.
func (r *Record) PublishedTime() time.Time {
	if r.PublishedAt != nil {
		return *r.PublishedAt
	}
	return r.ScheduledPublishAt
}
