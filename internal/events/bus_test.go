package events

import (
	"bytes"
	"context"
	"testing"

	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus(nil)
	var order []string
	bus.Subscribe(func(ctx context.Context, evt Event) { order = append(order, "navbar:"+string(evt.Kind)) })
	bus.Subscribe(func(ctx context.Context, evt Event) { order = append(order, "dropdown:"+string(evt.Kind)) })

	bus.Publish(context.Background(), Event{Kind: KindCartUpdated, SessionID: "s1"})

	assert.Equal(t, []string{"navbar:cart.updated", "dropdown:cart.updated"}, order)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(nil)
	calls := 0
	unsubscribe := bus.Subscribe(func(ctx context.Context, evt Event) { calls++ })
	require.Equal(t, 1, bus.Len())

	bus.Publish(context.Background(), Event{Kind: KindCartCleared})
	unsubscribe()
	unsubscribe()
	bus.Publish(context.Background(), Event{Kind: KindCartCleared})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.Len())
}

func TestPanickingSubscriberDoesNotStopOthers(t *testing.T) {
	buf := &bytes.Buffer{}
	bus := NewBus(logger.New(logger.Options{ServiceName: "test", Output: buf}))
	delivered := false
	bus.Subscribe(func(ctx context.Context, evt Event) { panic("boom") })
	bus.Subscribe(func(ctx context.Context, evt Event) { delivered = true })

	bus.Publish(context.Background(), Event{Kind: KindCartMerged})

	assert.True(t, delivered)
	assert.Contains(t, buf.String(), "events.subscriber_panic")
}

func TestSubscriberMayUnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus(nil)
	var unsubscribe func()
	calls := 0
	unsubscribe = bus.Subscribe(func(ctx context.Context, evt Event) {
		calls++
		unsubscribe()
	})

	bus.Publish(context.Background(), Event{Kind: KindCartUpdated})
	bus.Publish(context.Background(), Event{Kind: KindCartUpdated})
	assert.Equal(t, 1, calls)
}

func TestCountHint(t *testing.T) {
	n := 3
	got, ok := Event{Count: &n}.CountHint()
	assert.True(t, ok)
	assert.Equal(t, 3, got)

	_, ok = Event{}.CountHint()
	assert.False(t, ok)

	var nilBus *Bus
	nilBus.Publish(context.Background(), Event{})
	assert.NotNil(t, NewBus(nil).Subscribe(nil))
}
