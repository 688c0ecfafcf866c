package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/obrafin/obrafin/internal/event_bus"
	"github.com/obrafin/obrafin/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// Publisher is the part of Client the forwarder needs.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Forwarder sends in-process domain events to the broker for other services.
type Forwarder struct {
	publisher Publisher
}

func NewForwarder(publisher Publisher) *Forwarder {
	return &Forwarder{publisher: publisher}
}

var forwardedEvents = []event_bus.EventType{
	event_bus.BudgetVersionPublished,
	event_bus.BudgetReopened,
	event_bus.RubroRenamed,
	event_bus.ReceiptReconciled,
}

// Attach subscribes the forwarder to the bus. The returned function detaches it.
func (f *Forwarder) Attach(eb *event_bus.EventBus) (detach func()) {
	unsubscribes := make([]func(), 0, len(forwardedEvents))
	for _, eventType := range forwardedEvents {
		unsubscribes = append(unsubscribes, eb.Subscribe(eventType, f.forward))
	}
	return func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
	}
}

func (f *Forwarder) forward(e event_bus.Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		metrics.EventsForwarded.WithLabelValues(string(e.Type), "error").Inc()
		return fmt.Errorf("marshal %s data: %w", e.Type, err)
	}
	msg := &EventMessage{
		Type:       string(e.Type),
		TenantId:   tenantOf(e.Data),
		OccurredAt: e.Timestamp,
		Data:       data,
	}
	body, err := msg.ToJSON()
	if err != nil {
		metrics.EventsForwarded.WithLabelValues(string(e.Type), "error").Inc()
		return fmt.Errorf("marshal message: %w", err)
	}

	// the request may finish before the broker answers
	ctx := context.WithoutCancel(e.Context())
	if err := f.publisher.Publish(ctx, string(e.Type), body); err != nil {
		metrics.EventsForwarded.WithLabelValues(string(e.Type), "error").Inc()
		log.Errorf("failed to forward %s event: %v", e.Type, err)
		return err
	}
	metrics.EventsForwarded.WithLabelValues(string(e.Type), "ok").Inc()
	return nil
}

func tenantOf(data any) int {
	switch d := data.(type) {
	case event_bus.BudgetVersionPublishedData:
		return d.TenantId
	case event_bus.BudgetReopenedData:
		return d.TenantId
	case event_bus.RubroRenamedData:
		return d.TenantId
	case event_bus.ReceiptReconciledData:
		return d.TenantId
	default:
		return 0
	}
}
