package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

// Publisher delivers one encoded message to an external topic.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) error
}

// Envelope is the wire shape of a relayed event.
type Envelope struct {
	Version    int       `json:"version"`
	EventID    string    `json:"eventId"`
	OccurredAt time.Time `json:"occurredAt"`
	Kind       Kind      `json:"kind"`
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId,omitempty"`
	Count      *int      `json:"count,omitempty"`
}

const envelopeVersion = 1

// Relay forwards bus events to a Publisher off the request path.
// Events are dropped, and logged, when the buffer is full.
type Relay struct {
	publisher Publisher
	logg      *logger.Logger
	queue     chan Envelope
	now       func() time.Time

	mu      sync.Mutex
	stopped bool

	done     chan struct{}
	doneOnce sync.Once
}

func NewRelay(publisher Publisher, buffer int, logg *logger.Logger) (*Relay, error) {
	if publisher == nil {
		return nil, errors.New("relay publisher is required")
	}
	if buffer <= 0 {
		buffer = 1
	}
	return &Relay{
		publisher: publisher,
		logg:      logg,
		queue:     make(chan Envelope, buffer),
		now:       time.Now,
		done:      make(chan struct{}),
	}, nil
}

// Attach subscribes the relay to bus and returns the unsubscribe func.
func (r *Relay) Attach(bus *Bus) func() {
	return bus.Subscribe(r.enqueue)
}

func (r *Relay) enqueue(ctx context.Context, evt Event) {
	env := Envelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: r.now().UTC(),
		Kind:       evt.Kind,
		SessionID:  evt.SessionID,
		UserID:     evt.UserID,
		Count:      evt.Count,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	select {
	case r.queue <- env:
	default:
		if r.logg != nil {
			r.logg.Warn(r.logg.WithField(ctx, "event", string(evt.Kind)), "events.relay_dropped")
		}
	}
}

// Run publishes queued events until ctx is done or Stop drains the queue.
func (r *Relay) Run(ctx context.Context) {
	defer r.doneOnce.Do(func() { close(r.done) })
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-r.queue:
			if !ok {
				return
			}
			r.publish(ctx, env)
		}
	}
}

// Stop closes the queue; Run returns after publishing what is left.
func (r *Relay) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	close(r.queue)
}

// Close stops the relay and waits until Run has published the queued events.
func (r *Relay) Close(ctx context.Context) error {
	r.Stop()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Relay) publish(ctx context.Context, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	attrs := map[string]string{
		"kind":    string(env.Kind),
		"version": "1",
	}
	if err := r.publisher.Publish(ctx, data, attrs); err != nil && r.logg != nil {
		fields := map[string]any{"event": string(env.Kind), "event_id": env.EventID}
		r.logg.Error(r.logg.WithFields(ctx, fields), "events.relay_publish_failed", err)
	}
}
