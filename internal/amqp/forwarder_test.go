package amqp

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/obrafin/obrafin/internal/event_bus"
	"github.com/obrafin/obrafin/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	routingKey string
	body       []byte
}

type publisherStub struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (p *publisherStub) Publish(ctx context.Context, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, published{routingKey: routingKey, body: body})
	return nil
}

func TestForwarder_Forward(t *testing.T) {
	// given
	bus := event_bus.NewEventBus()
	publisher := &publisherStub{}
	detach := NewForwarder(publisher).Attach(bus)
	defer detach()
	okBefore := testutil.ToFloat64(metrics.EventsForwarded.WithLabelValues(string(event_bus.BudgetVersionPublished), "ok"))

	// when
	err := bus.Publish(event_bus.NewEvent(context.Background(), event_bus.BudgetVersionPublished, event_bus.BudgetVersionPublishedData{
		TenantId:      3,
		BudgetId:      8,
		VersionNumber: 2,
		Total:         decimal.NewFromInt(2500),
	}))

	// then
	require.NoError(t, err)
	require.Len(t, publisher.messages, 1)
	assert.Equal(t, "budget.version.published", publisher.messages[0].routingKey)
	msg, err := EventMessageFromJSON(publisher.messages[0].body)
	require.NoError(t, err)
	assert.Equal(t, 3, msg.TenantId)
	assert.JSONEq(t, `{"TenantId":3,"BudgetId":8,"ProjectId":0,"VersionNumber":2,"Total":"2500","PublishedAt":"0001-01-01T00:00:00Z"}`, string(msg.Data))
	assert.Equal(t, okBefore+1, testutil.ToFloat64(metrics.EventsForwarded.WithLabelValues(string(event_bus.BudgetVersionPublished), "ok")))
}

func TestForwarder_BrokerFailure(t *testing.T) {
	// given
	bus := event_bus.NewEventBus()
	publisher := &publisherStub{err: errors.New("connection refused")}
	detach := NewForwarder(publisher).Attach(bus)
	defer detach()
	before := testutil.ToFloat64(metrics.EventsForwarded.WithLabelValues(string(event_bus.ReceiptReconciled), "error"))

	// when
	err := bus.Publish(event_bus.NewEvent(context.Background(), event_bus.ReceiptReconciled, event_bus.ReceiptReconciledData{TenantId: 1}))

	// then
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EventsForwarded.WithLabelValues(string(event_bus.ReceiptReconciled), "error")))
}

func TestForwarder_Detach(t *testing.T) {
	bus := event_bus.NewEventBus()
	publisher := &publisherStub{}
	detach := NewForwarder(publisher).Attach(bus)

	detach()
	err := bus.Publish(event_bus.NewEvent(context.Background(), event_bus.RubroRenamed, event_bus.RubroRenamedData{TenantId: 1}))

	require.NoError(t, err)
	assert.Empty(t, publisher.messages)
}
