package event_bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishTyped(t *testing.T) {
	// given
	bus := NewEventBus()
	var received []string
	SubscribeTyped(bus, RubroRenamed, func(e EventT[RubroRenamedData]) error {
		received = append(received, "first:"+e.Data.Name)
		return nil
	})
	SubscribeTyped(bus, RubroRenamed, func(e EventT[RubroRenamedData]) error {
		received = append(received, "second:"+e.Data.Name)
		return nil
	})
	SubscribeTyped(bus, RubroRenamed, func(e EventT[ReceiptReconciledData]) error {
		received = append(received, "wrong type")
		return nil
	})

	// when
	err := bus.Publish(NewEvent(context.Background(), RubroRenamed, RubroRenamedData{CategoryId: 1, Name: "Masonry"}))

	// then
	require.NoError(t, err)
	assert.Equal(t, []string{"first:Masonry", "second:Masonry"}, received)
}

func TestEventBus_Publish_CollectsErrorsAndPanics(t *testing.T) {
	bus := NewEventBus()
	handlerErr := errors.New("handler failed")
	called := false
	bus.Subscribe(ReceiptReconciled, func(e Event) error { return handlerErr })
	bus.Subscribe(ReceiptReconciled, func(e Event) error { panic("boom") })
	bus.Subscribe(ReceiptReconciled, func(e Event) error {
		called = true
		return nil
	})

	err := bus.Publish(NewEvent(context.Background(), ReceiptReconciled, ReceiptReconciledData{}))

	assert.ErrorIs(t, err, handlerErr)
	assert.Contains(t, err.Error(), "2 handler(s) failed")
	assert.True(t, called)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	calls := 0
	unsubscribe := bus.Subscribe(BudgetReopened, func(e Event) error {
		calls++
		return nil
	})

	require.NoError(t, bus.Publish(NewEvent(context.Background(), BudgetReopened, BudgetReopenedData{})))
	unsubscribe()
	require.NoError(t, bus.Publish(NewEvent(context.Background(), BudgetReopened, BudgetReopenedData{})))

	assert.Equal(t, 1, calls)
}

func TestEventBus_Publish_CancelledContext(t *testing.T) {
	bus := NewEventBus()
	bus.Subscribe(BudgetReopened, func(e Event) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bus.Publish(NewEvent(ctx, BudgetReopened, BudgetReopenedData{}))

	assert.ErrorIs(t, err, context.Canceled)
}
