package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing events to NATS JetStream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishDayTotals publishes recomputed day totals.
func (p *Publisher) PublishDayTotals(ctx context.Context, evt DayTotalsUpdated) error {
	return p.publish(ctx, SubjectDayTotals, evt)
}

// PublishInteraction publishes a stored chat exchange.
func (p *Publisher) PublishInteraction(ctx context.Context, evt InteractionRecorded) error {
	return p.publish(ctx, SubjectInteraction, evt)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
