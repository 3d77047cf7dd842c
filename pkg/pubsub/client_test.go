package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/storefront-cart/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	tests := []struct {
		project string
		name    string
		want    string
	}{
		{project: "storefront", name: "cart-events", want: "projects/storefront/topics/cart-events"},
		{project: "storefront", name: " cart-events ", want: "projects/storefront/topics/cart-events"},
		{project: "other", name: "projects/storefront/topics/cart-events", want: "projects/storefront/topics/cart-events"},
		{project: "", name: "cart-events", want: ""},
		{project: "storefront", name: "", want: ""},
	}
	for _, tt := range tests {
		if got := TopicResourceName(tt.project, tt.name); got != tt.want {
			t.Fatalf("TopicResourceName(%q, %q) = %q want %q", tt.project, tt.name, got, tt.want)
		}
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{CartEventsTopic: "cart-events"}, nil)
	if err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
}

func TestNilPublisherRejects(t *testing.T) {
	var p *TopicPublisher
	if err := p.Publish(context.Background(), []byte("{}"), nil); err == nil {
		t.Fatalf("expected error from nil publisher")
	}
	p.Stop()

	var c *Client
	if c.CartEventsPublisher() != nil {
		t.Fatalf("nil client should yield nil publisher")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error from nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}
