package services

import (
	"context"
	"errors"
	"testing"

	"nightpress/internal/models"
)

func TestPublishBusDispatchOrder(t *testing.T) {
	bus := NewPublishBus(nil)

	var order []string
	bus.OnPublish("first", func(_ context.Context, _ *models.Record) error {
		order = append(order, "first")
		return nil
	})
	bus.OnPublish("second", func(_ context.Context, _ *models.Record) error {
		order = append(order, "second")
		return nil
	})

	bus.Dispatch(context.Background(), &models.Record{ID: "r1"})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("Handlers ran out of registration order: %v", order)
	}
}

func TestPublishBusIsolatesFailures(t *testing.T) {
	bus := NewPublishBus(nil)

	ran := false
	bus.OnPublish("failing", func(_ context.Context, _ *models.Record) error {
		return errors.New("recap backend unavailable")
	})
	bus.OnPublish("panicking", func(_ context.Context, _ *models.Record) error {
		panic("boom")
	})
	bus.OnPublish("healthy", func(_ context.Context, _ *models.Record) error {
		ran = true
		return nil
	})

	// Must not panic, and the healthy handler must still run.
	bus.Dispatch(context.Background(), &models.Record{ID: "r1"})

	if !ran {
		t.Error("Handler after a failing/panicking one did not run")
	}
}
