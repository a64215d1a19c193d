package nats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing lifecycle events to
// JetStream. A nil Publisher is valid and drops every event, so callers
// never branch on whether eventing is configured.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishJobEvent publishes a job status transition.
func (p *Publisher) PublishJobEvent(ctx context.Context, event JobEvent) {
	p.publish(ctx, SubjectJobEvent, event)
}

// PublishEnhanceEvent publishes a synchronous enhancement outcome.
func (p *Publisher) PublishEnhanceEvent(ctx context.Context, event EnhanceEvent) {
	p.publish(ctx, SubjectEnhanceEvent, event)
}

// publish is best-effort: event delivery never fails the request that
// produced the event.
func (p *Publisher) publish(ctx context.Context, subject string, data any) {
	if p == nil || p.js == nil {
		return
	}

	payload, err := json.Marshal(data)
	if err != nil {
		slog.Warn("marshaling event", "subject", subject, "error", err)
		return
	}
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		slog.Warn("publishing event", "subject", subject, "error", err)
	}
}
