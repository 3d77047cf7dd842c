// Package events broadcasts cart change notifications to in-process subscribers.
package events

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

type Kind string

const (
	KindCartUpdated      Kind = "cart.updated"
	KindCartCountChanged Kind = "cart.count_changed"
	KindCartCleared      Kind = "cart.cleared"
	KindCartMerged       Kind = "cart.merged"
)

// Event carries no payload contract beyond "re-check your state"; Count is an optional hint.
type Event struct {
	Kind      Kind
	SessionID string
	UserID    string
	Count     *int
}

// CountHint returns an event's count hint, if any.
func (e Event) CountHint() (int, bool) {
	if e.Count == nil {
		return 0, false
	}
	return *e.Count, true
}

// Handler reacts to a published event. Handlers run synchronously on the publisher's goroutine.
type Handler func(ctx context.Context, evt Event)

// Bus is a typed observer. The zero value is not usable; build one with NewBus.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Handler
	logg   *logger.Logger
}

func NewBus(logg *logger.Logger) *Bus {
	return &Bus{subs: map[int]Handler{}, logg: logg}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Handler) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers evt to every subscriber in subscription order.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	handlers := make([]Handler, 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(ctx, h, evt)
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, evt Event) {
	defer func() {
		if rec := recover(); rec != nil && b.logg != nil {
			fields := map[string]any{"event": string(evt.Kind), "panic": rec}
			b.logg.Error(b.logg.WithFields(ctx, fields), "events.subscriber_panic", fmt.Errorf("panic: %v", rec))
		}
	}()
	h(ctx, evt)
}

// Len reports the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
