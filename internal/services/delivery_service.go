package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"nightpress/internal/models"
	"nightpress/internal/store"
)

// inboxChannelPrefix is the Redis pub/sub channel namespace; one channel
// per recipient pseudonym.
const inboxChannelPrefix = "nightpress:inbox:"

// DeliveryService fans a just-published conversation out to its addressed
// recipients: one delivery document per recipient, plus a Redis publish so
// a connected transport can push it live. Without Redis it degrades to
// store-only queuing.
type DeliveryService struct {
	store   store.Store
	redis   *RedisService // may be nil
	metrics *Metrics
	logger  *logrus.Logger
}

// NewDeliveryService creates the delivery fan-out consumer.
func NewDeliveryService(st store.Store, redisService *RedisService, metrics *Metrics) *DeliveryService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &DeliveryService{
		store:   st,
		redis:   redisService,
		metrics: metrics,
		logger:  logger,
	}
}

// HandlePublish is the publish-bus consumer. Entries and unaddressed
// conversations have no recipients to deliver to.
func (s *DeliveryService) HandlePublish(ctx context.Context, rec *models.Record) error {
	if rec.Kind != models.RecordKindConversation || len(rec.Recipients) == 0 {
		return nil
	}

	var firstErr error
	for _, recipient := range rec.Recipients {
		if err := s.deliver(ctx, rec, recipient); err != nil {
			s.logger.WithFields(logrus.Fields{
				"record_id": rec.ID,
				"recipient": recipient,
				"error":     err.Error(),
			}).Error("delivery failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *DeliveryService) deliver(ctx context.Context, rec *models.Record, recipient string) error {
	delivery := &models.Delivery{
		ID:          uuid.New().String(),
		RecordID:    rec.ID,
		AuthorID:    rec.AuthorID,
		RecipientID: recipient,
		Status:      models.DeliveryStatusQueued,
		QueuedAt:    time.Now().UTC(),
	}
	if err := s.store.InsertDelivery(ctx, delivery); err != nil {
		return fmt.Errorf("failed to queue delivery: %w", err)
	}

	if s.metrics != nil {
		s.metrics.Deliveries.Inc()
	}

	s.logger.WithFields(logrus.Fields{
		"record_id": rec.ID,
		"recipient": recipient,
		"delivery":  delivery.ID,
	}).Info("delivery queued")

	if s.redis == nil {
		return nil
	}

	payload, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("failed to encode delivery: %w", err)
	}
	if err := s.redis.Publish(ctx, inboxChannelPrefix+recipient, payload); err != nil {
		// The queued document survives; the live push is best-effort.
		s.logger.WithFields(logrus.Fields{
			"record_id": rec.ID,
			"recipient": recipient,
		}).Warn("live delivery notification failed")
	}
	return nil
}
