package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"nightpress/internal/logging"
	"nightpress/internal/models"
)

// PublishHandler is invoked with a just-published record. A non-nil error
// is logged and counted, never propagated: downstream failure must not
// roll back a publication.
type PublishHandler func(ctx context.Context, rec *models.Record) error

type busSubscriber struct {
	name    string
	handler PublishHandler
}

// PublishBus dispatches publish transitions to registered consumers
// (clusterers, delivery, digests). Handlers run synchronously in
// registration order relative to the publishing call; each handler's
// failure (error or panic) is isolated from the others and from the
// transition itself.
type PublishBus struct {
	mu          sync.RWMutex
	subscribers []busSubscriber
	metrics     *Metrics
}

// NewPublishBus creates an empty publish bus.
func NewPublishBus(metrics *Metrics) *PublishBus {
	return &PublishBus{metrics: metrics}
}

// OnPublish registers a named handler. Registration order is dispatch
// order.
func (b *PublishBus) OnPublish(name string, handler PublishHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers = append(b.subscribers, busSubscriber{name: name, handler: handler})
	log.Printf("✅ [PUBLISH-BUS] Registered handler: %s (total=%d)", name, len(b.subscribers))
}

// Dispatch invokes every handler with the published record.
func (b *PublishBus) Dispatch(ctx context.Context, rec *models.Record) {
	b.mu.RLock()
	subs := make([]busSubscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	recLogger := logging.WithRecord(rec.ID, string(rec.Kind), rec.AuthorID)
	for _, sub := range subs {
		if err := b.invoke(ctx, sub, rec); err != nil {
			logging.WithHandler(recLogger, sub.name).Error("publish handler failed", "error", err)
			if b.metrics != nil {
				b.metrics.HandlerFailures.WithLabelValues(sub.name).Inc()
			}
		}
	}
}

// invoke runs one handler, converting a panic into an error so a broken
// consumer cannot take down the publish path.
func (b *PublishBus) invoke(ctx context.Context, sub busSubscriber, rec *models.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return sub.handler(ctx, rec)
}
