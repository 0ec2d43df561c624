// Package metrics counts auth flow events with OpenTelemetry.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	multitoken "github.com/goliatone/go-multitoken"
)

const (
	instrumentationName = "github.com/goliatone/go-multitoken"
	// EventsCounterName counts events by type
	EventsCounterName = "multitoken.auth.events"
)

// Subscriber records one counter increment per event. Attach it with
// multitoken.WithSubscribers.
type Subscriber struct {
	events metric.Int64Counter
}

var _ multitoken.Subscriber = (*Subscriber)(nil)

func NewSubscriber(provider metric.MeterProvider) (*Subscriber, error) {
	meter := provider.Meter(instrumentationName)

	events, err := meter.Int64Counter(EventsCounterName,
		metric.WithDescription("Auth flow events by type"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events counter: %w", err)
	}

	return &Subscriber{events: events}, nil
}

func (s *Subscriber) Notify(ctx context.Context, event multitoken.Event) error {
	attrs := []attribute.KeyValue{
		attribute.String("event", string(event.Type)),
	}
	if event.Type == multitoken.EventPasswordResetRequested {
		attrs = append(attrs, attribute.Bool("reused", event.Reused))
	}
	if reason, ok := event.Metadata["reason"].(string); ok && event.Type == multitoken.EventLoginFailure {
		attrs = append(attrs, attribute.String("reason", reason))
	}

	s.events.Add(ctx, 1, metric.WithAttributes(attrs...))
	return nil
}
